package repository

import (
	"context"

	"rental/internal/domain"
)

// OwnerRepository defines the persistence operations for owner settlement state.
type OwnerRepository interface {
	// GetByID retrieves an owner by ID.
	GetByID(ctx context.Context, id string) (*domain.Owner, error)

	// UpdateSuspension writes the owner's suspension flag and its metadata.
	UpdateSuspension(ctx context.Context, owner *domain.Owner) error
}

// VehicleRepository reads the catalog fields settlement depends on.
type VehicleRepository interface {
	// GetByID retrieves a vehicle by ID.
	GetByID(ctx context.Context, id string) (*domain.Vehicle, error)
}
