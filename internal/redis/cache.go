package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// PaymentStatusTTL bounds how long a settled outcome is served from cache.
const PaymentStatusTTL = 10 * time.Minute

const paymentStatusPrefix = "cache:payment-status:"

// CachedPaymentStatus is the settled outcome of a booking's payment.
// Only paid outcomes are cached so a pending booking always reaches the
// gateway on the next poll.
type CachedPaymentStatus struct {
	BookingID string `json:"booking_id"`
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
	Method    string `json:"method"`
	Amount    string `json:"amount"`
}

// CacheStore handles payment status caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// GetPaymentStatus retrieves a cached status. A miss returns nil, nil.
func (s *CacheStore) GetPaymentStatus(ctx context.Context, bookingID string) (*CachedPaymentStatus, error) {
	data, err := s.client.Get(ctx, paymentStatusPrefix+bookingID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var status CachedPaymentStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// SetPaymentStatus stores a settled status.
func (s *CacheStore) SetPaymentStatus(ctx context.Context, status *CachedPaymentStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, paymentStatusPrefix+status.BookingID, data, PaymentStatusTTL).Err()
}
