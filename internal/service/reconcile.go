package service

import (
	"context"
	"log"
	"sync"
	"time"

	"rental/internal/domain"
	"rental/internal/redis"
	"rental/internal/repository"
)

// PaymentReconciler settles one stale payment from the gateway's answer.
type PaymentReconciler interface {
	ReconcilePayment(ctx context.Context, paymentID string) error
}

// ReconcilerConfig holds reconciler settings.
type ReconcilerConfig struct {
	Interval   time.Duration
	StaleAfter time.Duration
	BatchSize  int
	Workers    int
	LockTTL    time.Duration
}

// Reconciler periodically asks the gateway about payments stuck in pending.
// A pending row can hide a charge that already happened when the webhook
// was lost or a timed-out call never got its answer.
type Reconciler struct {
	payments   repository.PaymentRepository
	reconciler PaymentReconciler
	locks      redis.LockStoreInterface
	cfg        ReconcilerConfig
	now        func() time.Time
}

// NewReconciler creates a new Reconciler. locks may be nil for a single
// instance deployment.
func NewReconciler(
	payments repository.PaymentRepository,
	reconciler PaymentReconciler,
	locks redis.LockStoreInterface,
	cfg ReconcilerConfig,
) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 10 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Minute
	}
	return &Reconciler{
		payments:   payments,
		reconciler: reconciler,
		locks:      locks,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Start runs the reconciliation loop until ctx is cancelled. Blocking.
func (r *Reconciler) Start(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	log.Printf("[RECONCILER] started: interval=%s stale_after=%s workers=%d", r.cfg.Interval, r.cfg.StaleAfter, r.cfg.Workers)
	for {
		select {
		case <-ctx.Done():
			log.Println("[RECONCILER] stopping")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce reconciles one batch of stale pending payments and returns how
// many were checked.
func (r *Reconciler) RunOnce(ctx context.Context) int {
	cutoff := r.now().Add(-r.cfg.StaleAfter)
	stale, err := r.payments.ListStalePending(ctx, cutoff, r.cfg.BatchSize)
	if err != nil {
		log.Printf("[RECONCILER] failed to list stale payments: %v", err)
		return 0
	}
	if len(stale) == 0 {
		return 0
	}
	log.Printf("[RECONCILER] checking %d stale payments", len(stale))

	jobs := make(chan *domain.Payment, len(stale))
	var wg sync.WaitGroup
	for w := 0; w < r.cfg.Workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for payment := range jobs {
				r.reconcile(ctx, id, payment)
			}
		}(w)
	}

	for _, payment := range stale {
		jobs <- payment
	}
	close(jobs)
	wg.Wait()

	log.Println("[RECONCILER] cycle completed")
	return len(stale)
}

func (r *Reconciler) reconcile(ctx context.Context, worker int, payment *domain.Payment) {
	if r.locks != nil {
		token, err := r.locks.AcquirePaymentLock(ctx, payment.ID, r.cfg.LockTTL)
		if err != nil {
			log.Printf("[RECONCILER] worker %d: lock error for payment %s: %v", worker, payment.ID, err)
			return
		}
		if token == "" {
			return
		}
		defer func() {
			if err := r.locks.ReleasePaymentLock(context.Background(), payment.ID, token); err != nil {
				log.Printf("[RECONCILER] failed to release lock for payment %s: %v", payment.ID, err)
			}
		}()
	}

	if err := r.reconciler.ReconcilePayment(ctx, payment.ID); err != nil {
		log.Printf("[RECONCILER] worker %d failed on payment %s (booking %s): %v", worker, payment.ID, payment.BookingID, err)
	}
}
