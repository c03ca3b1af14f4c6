package redis

import (
	"context"
	"time"
)

// PaymentStatusCache defines the interface for settled payment status caching.
type PaymentStatusCache interface {
	GetPaymentStatus(ctx context.Context, bookingID string) (*CachedPaymentStatus, error)
	SetPaymentStatus(ctx context.Context, status *CachedPaymentStatus) error
}

// LockStoreInterface defines the interface for distributed locking. Acquire
// returns an empty token when the lock is held elsewhere.
type LockStoreInterface interface {
	AcquirePaymentLock(ctx context.Context, paymentID string, ttl time.Duration) (string, error)
	ReleasePaymentLock(ctx context.Context, paymentID, token string) error
}

// Ensure concrete types implement interfaces.
var (
	_ PaymentStatusCache = (*CacheStore)(nil)
	_ LockStoreInterface = (*LockStore)(nil)
)
