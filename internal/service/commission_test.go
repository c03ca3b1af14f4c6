package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"rental/internal/domain"
	"rental/internal/service"
)

func addCommission(f *fixture, id string, status domain.CommissionStatus, amount string) {
	f.commissions.AddCommission(&domain.Commission{
		ID:                   id,
		BookingID:            "booking-" + id,
		OwnerID:              "owner-1",
		RentalAmount:         decimal.RequireFromString("1050.00"),
		CommissionAmount:     decimal.RequireFromString(amount),
		CommissionPercentage: decimal.RequireFromString("10.00"),
		Category:             domain.CategoryCashless,
		Status:               status,
		CreatedAt:            time.Now(),
	})
}

func TestMarkPaid_FromSuspendedClearsOwnerSuspension(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.owners.AddOwner(&domain.Owner{
		ID:              "owner-1",
		IsSuspended:     true,
		SuspendedReason: "overdue commission",
		SuspendedAt:     time.Now(),
		SuspendedBy:     "admin-1",
	})
	addCommission(f, "c-1", domain.CommissionStatusSuspended, "105.00")

	commission, err := f.commissionSvc.MarkPaid(context.Background(), service.ReviewRequest{
		CommissionID: "c-1",
		AdminID:      "admin-2",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if commission.Status != domain.CommissionStatusPaid {
		t.Errorf("expected paid, got %s", commission.Status)
	}
	if commission.VerifiedBy != "admin-2" || commission.VerifiedAt.IsZero() {
		t.Errorf("expected verification metadata, got %q at %s", commission.VerifiedBy, commission.VerifiedAt)
	}

	owner := f.owners.Owner("owner-1")
	if owner.IsSuspended {
		t.Error("settling a suspended commission must lift the owner's suspension")
	}
	if owner.SuspendedReason != "" || owner.SuspendedBy != "" {
		t.Errorf("expected suspension details cleared, got %+v", owner)
	}
	if f.tx.CallCount != 1 {
		t.Errorf("expected commission and owner updated in one transaction, got %d", f.tx.CallCount)
	}
	if n := f.notifier.Count(service.NotificationCommissionPaid); n != 1 {
		t.Errorf("expected 1 commission_paid notification, got %d", n)
	}
}

func TestMarkPaid_SuspendedOwnerCanBookAgain(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	addCommission(f, "c-1", domain.CommissionStatusUnpaid, "105.00")

	if _, err := f.commissionSvc.Suspend(ctx, service.ReviewRequest{CommissionID: "c-1", AdminID: "admin-1", Notes: "overdue"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	start := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	req := service.CreateBookingRequest{
		RenterID:  "renter-1",
		VehicleID: "vehicle-1",
		StartDate: start,
		EndDate:   start.AddDate(0, 0, 1),
		Method:    "card",
	}
	if _, err := f.bookingSvc.Create(ctx, req); !errors.Is(err, service.ErrOwnerSuspended) {
		t.Fatalf("expected ErrOwnerSuspended, got %v", err)
	}

	if _, err := f.commissionSvc.MarkPaid(ctx, service.ReviewRequest{CommissionID: "c-1", AdminID: "admin-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.bookingSvc.Create(ctx, req); err != nil {
		t.Errorf("expected booking allowed after settlement, got %v", err)
	}
}

func TestMarkPaid_OnlyFromVerificationOrSuspended(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	addCommission(f, "c-unpaid", domain.CommissionStatusUnpaid, "105.00")
	addCommission(f, "c-paid", domain.CommissionStatusPaid, "105.00")
	addCommission(f, "c-review", domain.CommissionStatusForVerification, "105.00")

	for _, id := range []string{"c-unpaid", "c-paid"} {
		_, err := f.commissionSvc.MarkPaid(ctx, service.ReviewRequest{CommissionID: id, AdminID: "admin-1"})
		if !errors.Is(err, service.ErrInvalidTransition) {
			t.Errorf("%s: expected ErrInvalidTransition, got %v", id, err)
		}
	}

	if _, err := f.commissionSvc.MarkPaid(ctx, service.ReviewRequest{CommissionID: "c-review"}); !errors.Is(err, service.ErrInvalidActorID) {
		t.Errorf("expected ErrInvalidActorID, got %v", err)
	}

	commission, err := f.commissionSvc.MarkPaid(ctx, service.ReviewRequest{CommissionID: "c-review", AdminID: "admin-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if commission.Status != domain.CommissionStatusPaid {
		t.Errorf("expected paid, got %s", commission.Status)
	}
	if f.owners.UpdateCallCount != 0 {
		t.Errorf("owner untouched when settling a non-suspended commission, got %d updates", f.owners.UpdateCallCount)
	}
}

func TestSubmit_OwnerProvidesReference(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	addCommission(f, "c-1", domain.CommissionStatusUnpaid, "105.00")

	_, err := f.commissionSvc.Submit(ctx, service.SubmitRequest{CommissionID: "c-1", OwnerID: "owner-1", Reference: "  "})
	if !errors.Is(err, service.ErrValidation) {
		t.Errorf("expected validation error for blank reference, got %v", err)
	}

	_, err = f.commissionSvc.Submit(ctx, service.SubmitRequest{CommissionID: "c-1", OwnerID: "owner-2", Reference: "GC-123"})
	if !errors.Is(err, service.ErrNotCommissionOwner) {
		t.Errorf("expected ErrNotCommissionOwner, got %v", err)
	}

	commission, err := f.commissionSvc.Submit(ctx, service.SubmitRequest{CommissionID: "c-1", OwnerID: "owner-1", Reference: "GC-123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if commission.Status != domain.CommissionStatusForVerification || commission.PaymentReference != "GC-123" {
		t.Errorf("expected for_verification with reference, got %s/%q", commission.Status, commission.PaymentReference)
	}

	_, err = f.commissionSvc.Submit(ctx, service.SubmitRequest{CommissionID: "c-1", OwnerID: "owner-1", Reference: "GC-124"})
	if !errors.Is(err, service.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition on resubmit, got %v", err)
	}
}

func TestSuspend_AlsoSuspendsOwner(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	addCommission(f, "c-1", domain.CommissionStatusForVerification, "105.00")

	if _, err := f.commissionSvc.Suspend(ctx, service.ReviewRequest{CommissionID: "c-1", AdminID: "admin-1"}); !errors.Is(err, service.ErrValidation) {
		t.Errorf("expected validation error without a reason, got %v", err)
	}

	commission, err := f.commissionSvc.Suspend(ctx, service.ReviewRequest{CommissionID: "c-1", AdminID: "admin-1", Notes: "reference not found"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if commission.Status != domain.CommissionStatusSuspended {
		t.Errorf("expected suspended, got %s", commission.Status)
	}

	owner := f.owners.Owner("owner-1")
	if !owner.IsSuspended || owner.SuspendedBy != "admin-1" || owner.SuspendedAt.IsZero() {
		t.Errorf("expected owner suspended by admin-1, got %+v", owner)
	}

	if _, err := f.commissionSvc.Suspend(ctx, service.ReviewRequest{CommissionID: "c-1", AdminID: "admin-1", Notes: "again"}); !errors.Is(err, service.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestReset_ReturnsSuspendedToUnpaid(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()
	f.owners.AddOwner(&domain.Owner{ID: "owner-1", IsSuspended: true})
	addCommission(f, "c-1", domain.CommissionStatusSuspended, "105.00")
	addCommission(f, "c-2", domain.CommissionStatusUnpaid, "105.00")

	commission, err := f.commissionSvc.Reset(ctx, service.ReviewRequest{CommissionID: "c-1", AdminID: "admin-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if commission.Status != domain.CommissionStatusUnpaid {
		t.Errorf("expected unpaid, got %s", commission.Status)
	}
	if !f.owners.Owner("owner-1").IsSuspended {
		t.Error("reset must not lift the owner's suspension")
	}

	if _, err := f.commissionSvc.Reset(ctx, service.ReviewRequest{CommissionID: "c-2", AdminID: "admin-1"}); !errors.Is(err, service.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestOwnerSummary_OutstandingExcludesPaid(t *testing.T) {
	t.Parallel()

	f := newFixture()
	addCommission(f, "c-1", domain.CommissionStatusUnpaid, "10.00")
	addCommission(f, "c-2", domain.CommissionStatusForVerification, "20.00")
	addCommission(f, "c-3", domain.CommissionStatusSuspended, "30.00")
	addCommission(f, "c-4", domain.CommissionStatusPaid, "40.00")

	summary, err := f.commissionSvc.OwnerSummary(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.TotalCommissions != 4 {
		t.Errorf("expected 4 commissions, got %d", summary.TotalCommissions)
	}
	if summary.OutstandingCount != 3 {
		t.Errorf("expected 3 outstanding, got %d", summary.OutstandingCount)
	}
	if !summary.OutstandingAmount.Equal(decimal.RequireFromString("60.00")) {
		t.Errorf("expected outstanding 60.00, got %s", summary.OutstandingAmount)
	}
	if !summary.PaidAmount.Equal(decimal.RequireFromString("40.00")) {
		t.Errorf("expected paid 40.00, got %s", summary.PaidAmount)
	}
	if !summary.HasOutstanding {
		t.Error("expected owner flagged with outstanding balance")
	}
}

func TestOwnerSummary_AllPaidHasNoOutstanding(t *testing.T) {
	t.Parallel()

	f := newFixture()
	addCommission(f, "c-1", domain.CommissionStatusPaid, "105.00")

	summary, err := f.commissionSvc.OwnerSummary(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.HasOutstanding || !summary.OutstandingAmount.IsZero() {
		t.Errorf("expected no outstanding balance, got %+v", summary)
	}
}

func TestOwnerRateResolver(t *testing.T) {
	t.Parallel()

	override := decimal.RequireFromString("7.50")
	zero := decimal.Zero
	resolver := service.OwnerRateResolver{Default: decimal.RequireFromString("10.00")}

	tests := []struct {
		name  string
		owner *domain.Owner
		want  string
	}{
		{"no owner", nil, "10.00"},
		{"no override", &domain.Owner{ID: "o"}, "10.00"},
		{"override", &domain.Owner{ID: "o", CommissionRate: &override}, "7.50"},
		{"zero override ignored", &domain.Owner{ID: "o", CommissionRate: &zero}, "10.00"},
	}
	for _, tt := range tests {
		if got := resolver.RateFor(tt.owner); !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("%s: expected %s, got %s", tt.name, tt.want, got)
		}
	}

	if got := (service.OwnerRateResolver{}).RateFor(nil); !got.Equal(decimal.RequireFromString("10.00")) {
		t.Errorf("expected platform default 10.00, got %s", got)
	}
}

func TestOwnerService_SuspendAndUnsuspend(t *testing.T) {
	t.Parallel()

	f := newFixture()
	owners := service.NewOwnerService(f.owners)
	ctx := context.Background()

	if _, err := owners.Unsuspend(ctx, "owner-1", "admin-1"); !errors.Is(err, service.ErrOwnerNotSuspended) {
		t.Errorf("expected ErrOwnerNotSuspended, got %v", err)
	}
	if _, err := owners.Suspend(ctx, "owner-1", "admin-1", ""); !errors.Is(err, service.ErrValidation) {
		t.Errorf("expected validation error without reason, got %v", err)
	}

	owner, err := owners.Suspend(ctx, "owner-1", "admin-1", "fraud review")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !owner.IsSuspended || owner.SuspendedReason != "fraud review" {
		t.Errorf("expected suspended with reason, got %+v", owner)
	}

	owner, err = owners.Unsuspend(ctx, "owner-1", "admin-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if owner.IsSuspended {
		t.Error("expected owner unsuspended")
	}
}
