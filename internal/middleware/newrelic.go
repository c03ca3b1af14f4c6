package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// TransactionAttributes tags the New Relic transaction started by
// nrgin.Middleware with the settlement entity a request acts on, so traces
// can be searched by booking, commission, or owner. It is a no-op when the
// agent is disabled.
func TransactionAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		txn := nrgin.Transaction(c)
		if txn == nil {
			c.Next()
			return
		}

		if attr := entityAttribute(c.FullPath()); attr != "" {
			if id := c.Param("id"); id != "" {
				txn.AddAttribute(attr, id)
			}
		}
		if id := c.Query("booking_id"); id != "" {
			txn.AddAttribute("booking.id", id)
		}

		c.Next()

		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
	}
}

// entityAttribute names the attribute for a route's :id parameter.
func entityAttribute(route string) string {
	switch {
	case strings.HasPrefix(route, "/v1/bookings/"):
		return "booking.id"
	case strings.HasPrefix(route, "/v1/commissions/"):
		return "commission.id"
	case strings.HasPrefix(route, "/v1/owners/"):
		return "owner.id"
	}
	return ""
}
