package gateway

import (
	"strconv"
	"strings"
	"time"

	"rental/internal/metrics"
)

// metricPath reduces a request path to its collection so ids do not
// explode label cardinality.
func metricPath(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if i := strings.Index(trimmed, "/"); i >= 0 {
		trimmed = trimmed[:i]
	}
	return "/" + trimmed
}

func metricsObserve(method, path, status string, elapsed time.Duration) {
	metrics.ObserveGateway(method, metricPath(path), status, elapsed.Seconds())
}

func metricsRetry(path string, status int) {
	metrics.IncRetry(metricPath(path), strconv.Itoa(status))
}
