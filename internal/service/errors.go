package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is wrapped by every ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidBookingID is returned when booking ID is empty.
	ErrInvalidBookingID = errors.New("invalid booking id")

	// ErrInvalidCommissionID is returned when commission ID is empty.
	ErrInvalidCommissionID = errors.New("invalid commission id")

	// ErrInvalidOwnerID is returned when owner ID is empty.
	ErrInvalidOwnerID = errors.New("invalid owner id")

	// ErrInvalidActorID is returned when an administrative action has no actor.
	ErrInvalidActorID = errors.New("invalid actor id")

	// ErrOwnerSuspended is returned when booking a vehicle whose owner is suspended.
	ErrOwnerSuspended = errors.New("vehicle owner is suspended")

	// ErrOwnerNotSuspended is returned when unsuspending an owner in good standing.
	ErrOwnerNotSuspended = errors.New("owner is not suspended")

	// ErrNotBookingOwner is returned when an owner acts on another owner's booking.
	ErrNotBookingOwner = errors.New("booking belongs to a different owner")

	// ErrNotBookingRenter is returned when a renter pays for another renter's booking.
	ErrNotBookingRenter = errors.New("booking belongs to a different renter")

	// ErrNotCommissionOwner is returned when an owner acts on another owner's commission.
	ErrNotCommissionOwner = errors.New("commission belongs to a different owner")

	// ErrInvalidTransition is returned when a status change is not allowed.
	ErrInvalidTransition = errors.New("status transition not allowed")

	// ErrConcurrentUpdate is returned when a conditional update lost a race.
	ErrConcurrentUpdate = errors.New("record was modified concurrently")

	// ErrBookingNotPayable is returned when checking out a booking that is not pending.
	ErrBookingNotPayable = errors.New("booking is not awaiting payment")

	// ErrNoPayment is returned when a booking has no payment record.
	ErrNoPayment = errors.New("booking has no payment")

	// ErrPaymentNotSettled is returned when confirming a booking whose payment is not paid.
	ErrPaymentNotSettled = errors.New("booking payment is not settled")

	// ErrPaymentPending is returned when the outcome of a charge is not yet known.
	ErrPaymentPending = errors.New("payment is still being processed")

	// ErrPaymentRetryable is returned when a payment attempt failed and a new
	// checkout may be started.
	ErrPaymentRetryable = errors.New("payment failed, please try again")

	// ErrAuthenticationRequired is returned when the card could not be authenticated.
	ErrAuthenticationRequired = errors.New("card authentication failed")

	// ErrInvalidSignature is returned when a webhook fails signature verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrMalformedWebhook is returned when a verified webhook cannot be decoded.
	ErrMalformedWebhook = errors.New("malformed webhook payload")

	// ErrCommissionBeforeConfirm is returned when creating a commission for an unconfirmed booking.
	ErrCommissionBeforeConfirm = errors.New("booking is not confirmed")

	// errFinalizeConflict rolls back a finalize whose payment row was not payable.
	errFinalizeConflict = errors.New("payment not in a payable state")
)

// ValidationError describes malformed caller input. Its message is safe to
// show to end users.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
