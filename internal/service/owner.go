package service

import (
	"context"
	"log"
	"strings"
	"time"

	"rental/internal/domain"
	"rental/internal/repository"
)

// OwnerService manages owner suspension.
type OwnerService struct {
	owners repository.OwnerRepository
	now    func() time.Time
}

// NewOwnerService creates a new OwnerService.
func NewOwnerService(owners repository.OwnerRepository) *OwnerService {
	return &OwnerService{
		owners: owners,
		now:    time.Now,
	}
}

// Get returns an owner by id.
func (s *OwnerService) Get(ctx context.Context, ownerID string) (*domain.Owner, error) {
	if ownerID == "" {
		return nil, ErrInvalidOwnerID
	}
	return s.owners.GetByID(ctx, ownerID)
}

// Suspend blocks new bookings against the owner's vehicles. Suspending an
// already suspended owner keeps the original reason and actor.
func (s *OwnerService) Suspend(ctx context.Context, ownerID, adminID, reason string) (*domain.Owner, error) {
	if ownerID == "" {
		return nil, ErrInvalidOwnerID
	}
	if adminID == "" {
		return nil, ErrInvalidActorID
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &ValidationError{Field: "reason", Reason: "is required"}
	}

	owner, err := s.owners.GetByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if owner.IsSuspended {
		return owner, nil
	}

	owner.IsSuspended = true
	owner.SuspendedReason = reason
	owner.SuspendedAt = s.now()
	owner.SuspendedBy = adminID
	if err := s.owners.UpdateSuspension(ctx, owner); err != nil {
		return nil, err
	}

	log.Printf("[OWNER] owner %s suspended by %s: %s", owner.ID, adminID, reason)
	return owner, nil
}

// Unsuspend lifts an owner's suspension.
func (s *OwnerService) Unsuspend(ctx context.Context, ownerID, adminID string) (*domain.Owner, error) {
	if ownerID == "" {
		return nil, ErrInvalidOwnerID
	}
	if adminID == "" {
		return nil, ErrInvalidActorID
	}

	owner, err := s.owners.GetByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !owner.IsSuspended {
		return nil, ErrOwnerNotSuspended
	}

	owner.IsSuspended = false
	owner.SuspendedReason = ""
	owner.SuspendedAt = time.Time{}
	owner.SuspendedBy = ""
	if err := s.owners.UpdateSuspension(ctx, owner); err != nil {
		return nil, err
	}

	log.Printf("[OWNER] owner %s unsuspended by %s", owner.ID, adminID)
	return owner, nil
}
