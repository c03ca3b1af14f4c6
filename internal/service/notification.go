package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"rental/internal/events"
	"rental/internal/metrics"
)

// NotificationKind identifies a settlement notification.
type NotificationKind string

const (
	NotificationPaymentPaid       NotificationKind = "payment_paid"
	NotificationPaymentFailed     NotificationKind = "payment_failed"
	NotificationBookingConfirmed  NotificationKind = "booking_confirmed"
	NotificationCommissionCreated NotificationKind = "commission_created"
	NotificationCommissionPaid    NotificationKind = "commission_paid"
)

var notificationTitles = map[NotificationKind]string{
	NotificationPaymentPaid:       "Payment Received",
	NotificationPaymentFailed:     "Payment Failed",
	NotificationBookingConfirmed:  "Booking Confirmed",
	NotificationCommissionCreated: "Commission Due",
	NotificationCommissionPaid:    "Commission Settled",
}

// Notifier sends settlement notifications. Implementations must not block
// the caller and must swallow delivery failures.
type Notifier interface {
	SendConfirmation(kind NotificationKind, recipientID string, data map[string]any)
}

// Notification represents a notification to be sent.
type Notification struct {
	ID          string
	Kind        NotificationKind
	RecipientID string
	Title       string
	Message     string
	Data        map[string]any
	CreatedAt   time.Time
}

// NotificationService handles notification delivery.
type NotificationService struct {
	publisher events.Publisher
	timeout   time.Duration
	wg        sync.WaitGroup
}

// NewNotificationService creates a new NotificationService. A nil publisher
// only logs.
func NewNotificationService(publisher events.Publisher) *NotificationService {
	return &NotificationService{
		publisher: publisher,
		timeout:   5 * time.Second,
	}
}

// SendConfirmation delivers a notification in the background.
func (s *NotificationService) SendConfirmation(kind NotificationKind, recipientID string, data map[string]any) {
	notification := Notification{
		ID:          uuid.New().String(),
		Kind:        kind,
		RecipientID: recipientID,
		Title:       notificationTitles[kind],
		Message:     notificationMessage(kind, data),
		Data:        data,
		CreatedAt:   time.Now(),
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if err := s.send(ctx, notification); err != nil {
			metrics.IncPartialFailure("notification")
			log.Printf("[NOTIFICATION] delivery failed: Type=%s, Recipient=%s, err=%v",
				notification.Kind, notification.RecipientID, err)
		}
	}()
}

// Wait blocks until in-flight notifications finish. Used on shutdown.
func (s *NotificationService) Wait() {
	s.wg.Wait()
}

func (s *NotificationService) send(ctx context.Context, notification Notification) error {
	log.Printf("[NOTIFICATION] Type=%s, Recipient=%s, Title=%s, Message=%s",
		notification.Kind, notification.RecipientID, notification.Title, notification.Message)

	if s.publisher == nil {
		return nil
	}

	key := notification.RecipientID
	if bookingID, ok := notification.Data["booking_id"].(string); ok && bookingID != "" {
		key = bookingID
	}

	return s.publisher.Publish(ctx, key, &events.SettlementEvent{
		ID:          notification.ID,
		Kind:        string(notification.Kind),
		RecipientID: notification.RecipientID,
		Title:       notification.Title,
		Message:     notification.Message,
		Data:        notification.Data,
		OccurredAt:  notification.CreatedAt,
	})
}

func notificationMessage(kind NotificationKind, data map[string]any) string {
	switch kind {
	case NotificationPaymentPaid:
		return fmt.Sprintf("Payment of %v for booking %v was successful", data["amount"], data["booking_id"])
	case NotificationPaymentFailed:
		return fmt.Sprintf("Payment for booking %v failed. Please try again.", data["booking_id"])
	case NotificationBookingConfirmed:
		return fmt.Sprintf("Booking %v has been confirmed by the owner", data["booking_id"])
	case NotificationCommissionCreated:
		return fmt.Sprintf("A commission of %v is due for booking %v", data["amount"], data["booking_id"])
	case NotificationCommissionPaid:
		return fmt.Sprintf("Commission %v has been marked paid", data["commission_id"])
	}
	return string(kind)
}
