package service_test

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"rental/internal/domain"
	"rental/internal/gateway"
	"rental/internal/redis"
	"rental/internal/repository"
	"rental/internal/service"
)

// ──────────────────────────────────────────────
// MOCK BOOKING REPOSITORY
// ──────────────────────────────────────────────

// MockBookingRepository is a mock implementation of BookingRepository.
type MockBookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]*domain.Booking

	// Counters for verification
	CreateCallCount       int32
	UpdateStatusCallCount int32

	// Error injection
	CreateError       error
	UpdateStatusError error
}

// NewMockBookingRepository creates a new mock booking repository.
func NewMockBookingRepository() *MockBookingRepository {
	return &MockBookingRepository{
		bookings: make(map[string]*domain.Booking),
	}
}

// AddBooking adds a booking to the mock repository.
func (m *MockBookingRepository) AddBooking(booking *domain.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[booking.ID] = booking
}

func (m *MockBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *booking
	m.bookings[booking.ID] = &copy
	return nil
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	booking, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *booking
	return &copy, nil
}

func (m *MockBookingRepository) UpdateStatusIf(ctx context.Context, id string, from, to domain.BookingStatus) (bool, error) {
	atomic.AddInt32(&m.UpdateStatusCallCount, 1)
	if m.UpdateStatusError != nil {
		return false, m.UpdateStatusError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.bookings[id]
	if !ok || booking.Status != from {
		return false, nil
	}
	booking.Status = to
	booking.UpdatedAt = time.Now()
	return true, nil
}

// Status returns the stored status for test assertions.
func (m *MockBookingRepository) Status(id string) domain.BookingStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.bookings[id]; ok {
		return b.Status
	}
	return ""
}

// ──────────────────────────────────────────────
// MOCK PAYMENT REPOSITORY
// ──────────────────────────────────────────────

// MockPaymentRepository is a mock implementation of PaymentRepository.
type MockPaymentRepository struct {
	mu       sync.RWMutex
	payments []*domain.Payment

	// Counters for verification
	CreateCallCount       int32
	UpdateStatusCallCount int32
	MarkCheckedCallCount  int32

	// Error injection
	CreateError error
}

// NewMockPaymentRepository creates a new mock payment repository.
func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{}
}

// AddPayment adds a payment to the mock repository.
func (m *MockPaymentRepository) AddPayment(payment *domain.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments = append(m.payments, payment)
}

func (m *MockPaymentRepository) find(id string) *domain.Payment {
	for _, p := range m.payments {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *payment
	m.payments = append(m.payments, &copy)
	return nil
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p := m.find(id)
	if p == nil {
		return nil, repository.ErrNotFound
	}
	copy := *p
	return &copy, nil
}

func (m *MockPaymentRepository) GetByGatewayRef(ctx context.Context, ref string) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.GatewayRef == ref {
			copy := *p
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockPaymentRepository) GetLatestByBookingID(ctx context.Context, bookingID string) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *domain.Payment
	for _, p := range m.payments {
		if p.BookingID != bookingID {
			continue
		}
		if latest == nil || !p.CreatedAt.Before(latest.CreatedAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	copy := *latest
	return &copy, nil
}

func (m *MockPaymentRepository) SetGatewayRef(ctx context.Context, id, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.find(id)
	if p == nil {
		return repository.ErrNotFound
	}
	p.GatewayRef = ref
	return nil
}

func (m *MockPaymentRepository) UpdateStatusIf(ctx context.Context, id string, from []domain.PaymentStatus, to domain.PaymentStatus, failureReason string) (bool, error) {
	atomic.AddInt32(&m.UpdateStatusCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.find(id)
	if p == nil {
		return false, nil
	}
	for _, status := range from {
		if p.Status == status {
			p.Status = to
			p.FailureReason = failureReason
			p.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (m *MockPaymentRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Payment
	for _, p := range m.payments {
		if p.Status != domain.PaymentStatusPending || !p.UpdatedAt.Before(cutoff) {
			continue
		}
		if !p.CheckedAt.IsZero() && !p.CheckedAt.Before(cutoff) {
			continue
		}
		copy := *p
		result = append(result, &copy)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return lastTouched(result[i]).Before(lastTouched(result[j]))
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func lastTouched(p *domain.Payment) time.Time {
	if p.CheckedAt.IsZero() {
		return p.UpdatedAt
	}
	return p.CheckedAt
}

func (m *MockPaymentRepository) MarkChecked(ctx context.Context, id string, at time.Time) error {
	atomic.AddInt32(&m.MarkCheckedCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if p := m.find(id); p != nil && p.Status == domain.PaymentStatusPending {
		p.CheckedAt = at
	}
	return nil
}

// Payment returns the stored payment for test assertions.
func (m *MockPaymentRepository) Payment(id string) domain.Payment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p := m.find(id); p != nil {
		return *p
	}
	return domain.Payment{}
}

// ForBooking returns every payment of a booking in insertion order.
func (m *MockPaymentRepository) ForBooking(bookingID string) []domain.Payment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []domain.Payment
	for _, p := range m.payments {
		if p.BookingID == bookingID {
			result = append(result, *p)
		}
	}
	return result
}

// ──────────────────────────────────────────────
// MOCK COMMISSION REPOSITORY
// ──────────────────────────────────────────────

// MockCommissionRepository is a mock implementation of CommissionRepository.
type MockCommissionRepository struct {
	mu          sync.RWMutex
	commissions map[string]*domain.Commission

	// Counters for verification
	CreateCallCount int32

	// Error injection
	CreateError error
}

// NewMockCommissionRepository creates a new mock commission repository.
func NewMockCommissionRepository() *MockCommissionRepository {
	return &MockCommissionRepository{
		commissions: make(map[string]*domain.Commission),
	}
}

// AddCommission adds a commission to the mock repository.
func (m *MockCommissionRepository) AddCommission(c *domain.Commission) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commissions[c.ID] = c
}

func (m *MockCommissionRepository) Create(ctx context.Context, c *domain.Commission) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.commissions {
		if existing.BookingID == c.BookingID {
			return repository.ErrDuplicate
		}
	}
	copy := *c
	m.commissions[c.ID] = &copy
	return nil
}

func (m *MockCommissionRepository) GetByID(ctx context.Context, id string) (*domain.Commission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.commissions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *c
	return &copy, nil
}

func (m *MockCommissionRepository) GetByBookingID(ctx context.Context, bookingID string) (*domain.Commission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.commissions {
		if c.BookingID == bookingID {
			copy := *c
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockCommissionRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Commission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Commission
	for _, c := range m.commissions {
		if c.OwnerID == ownerID {
			copy := *c
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *MockCommissionRepository) UpdateIf(ctx context.Context, c *domain.Commission, from domain.CommissionStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.commissions[c.ID]
	if !ok || stored.Status != from {
		return false, nil
	}
	copy := *c
	m.commissions[c.ID] = &copy
	return true, nil
}

// Count returns the number of stored commissions.
func (m *MockCommissionRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.commissions)
}

// ForBooking returns the booking's commission, or nil.
func (m *MockCommissionRepository) ForBooking(bookingID string) *domain.Commission {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.commissions {
		if c.BookingID == bookingID {
			copy := *c
			return &copy
		}
	}
	return nil
}

// ──────────────────────────────────────────────
// MOCK OWNER & VEHICLE REPOSITORIES
// ──────────────────────────────────────────────

// MockOwnerRepository is a mock implementation of OwnerRepository.
type MockOwnerRepository struct {
	mu     sync.RWMutex
	owners map[string]*domain.Owner

	UpdateCallCount int32
}

// NewMockOwnerRepository creates a new mock owner repository.
func NewMockOwnerRepository() *MockOwnerRepository {
	return &MockOwnerRepository{
		owners: make(map[string]*domain.Owner),
	}
}

// AddOwner adds an owner to the mock repository.
func (m *MockOwnerRepository) AddOwner(owner *domain.Owner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[owner.ID] = owner
}

func (m *MockOwnerRepository) GetByID(ctx context.Context, id string) (*domain.Owner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owner, ok := m.owners[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *owner
	return &copy, nil
}

func (m *MockOwnerRepository) UpdateSuspension(ctx context.Context, owner *domain.Owner) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.owners[owner.ID]; !ok {
		return repository.ErrNotFound
	}
	copy := *owner
	m.owners[owner.ID] = &copy
	return nil
}

// Owner returns the stored owner for test assertions.
func (m *MockOwnerRepository) Owner(id string) domain.Owner {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if o, ok := m.owners[id]; ok {
		return *o
	}
	return domain.Owner{}
}

// MockVehicleRepository is a mock implementation of VehicleRepository.
type MockVehicleRepository struct {
	mu       sync.RWMutex
	vehicles map[string]*domain.Vehicle
}

// NewMockVehicleRepository creates a new mock vehicle repository.
func NewMockVehicleRepository() *MockVehicleRepository {
	return &MockVehicleRepository{
		vehicles: make(map[string]*domain.Vehicle),
	}
}

// AddVehicle adds a vehicle to the mock repository.
func (m *MockVehicleRepository) AddVehicle(vehicle *domain.Vehicle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[vehicle.ID] = vehicle
}

func (m *MockVehicleRepository) GetByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	vehicle, ok := m.vehicles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *vehicle
	return &copy, nil
}

// ──────────────────────────────────────────────
// MOCK TRANSACTOR
// ──────────────────────────────────────────────

// MockTransactor runs callbacks one at a time against the plain mock
// repositories, standing in for serialized transactions. It does not roll
// back.
type MockTransactor struct {
	mu    sync.Mutex
	repos repository.Repositories

	CallCount int32
}

func (m *MockTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	atomic.AddInt32(&m.CallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, m.repos)
}

// ──────────────────────────────────────────────
// MOCK GATEWAY
// ──────────────────────────────────────────────

// MockGateway is an in-memory payment gateway.
type MockGateway struct {
	mu      sync.Mutex
	intents map[string]*gateway.PaymentIntent
	byKey   map[string]string
	seq     int

	// Counters for verification
	CreateIntentCallCount int32
	RetrieveCallCount     int32
	CreateMethodCallCount int32
	AttachCallCount       int32

	// Error injection. With CreateIntentLands set, CreateIntentError is
	// returned after the intent is stored, like a timeout on a request the
	// gateway processed.
	CreateIntentError error
	CreateIntentLands bool

	// RetrieveGate, when set, holds retrieves until closed. A retrieve whose
	// context ended meanwhile fails like a real request would.
	RetrieveGate chan struct{}
	RetrieveError     error
	CreateMethodError error
	AttachError       error

	// Attach outcome. An empty AttachStatus succeeds.
	AttachStatus      gateway.IntentStatus
	AttachRedirectURL string
	AttachLastError   string

	ReturnURLs  []string
	IntentCalls []gateway.CreateIntentParams
	IntentKeys  []string
}

// NewMockGateway creates a new mock gateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		intents: make(map[string]*gateway.PaymentIntent),
		byKey:   make(map[string]string),
	}
}

func (m *MockGateway) CreatePaymentIntent(ctx context.Context, params gateway.CreateIntentParams, idempotencyKey string) (*gateway.PaymentIntent, error) {
	atomic.AddInt32(&m.CreateIntentCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IntentKeys = append(m.IntentKeys, idempotencyKey)
	if m.CreateIntentError != nil && !m.CreateIntentLands {
		return nil, m.CreateIntentError
	}
	m.IntentCalls = append(m.IntentCalls, params)
	id, ok := m.byKey[idempotencyKey]
	if !ok {
		m.seq++
		id = fmt.Sprintf("pi_%d", m.seq)
		m.intents[id] = &gateway.PaymentIntent{
			ID:        id,
			Amount:    params.Amount,
			Currency:  params.Currency,
			Status:    gateway.IntentAwaitingPaymentMethod,
			ClientKey: fmt.Sprintf("pi_%d_client", m.seq),
			Metadata:  params.Metadata,
		}
		m.byKey[idempotencyKey] = id
	}
	if m.CreateIntentError != nil {
		return nil, m.CreateIntentError
	}
	copy := *m.intents[id]
	return &copy, nil
}

// IntentCount returns the number of distinct intents the gateway holds.
func (m *MockGateway) IntentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.intents)
}

func (m *MockGateway) RetrievePaymentIntent(ctx context.Context, intentID, clientKey string) (*gateway.PaymentIntent, error) {
	atomic.AddInt32(&m.RetrieveCallCount, 1)
	if m.RetrieveGate != nil {
		<-m.RetrieveGate
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	intent, ok := m.intents[intentID]
	if !ok {
		return nil, &gateway.GatewayError{Status: http.StatusNotFound, Code: "resource_not_found"}
	}
	copy := *intent
	return &copy, nil
}

func (m *MockGateway) CreatePaymentMethod(ctx context.Context, params gateway.CreatePaymentMethodParams) (string, error) {
	n := atomic.AddInt32(&m.CreateMethodCallCount, 1)
	if m.CreateMethodError != nil {
		return "", m.CreateMethodError
	}
	return fmt.Sprintf("pm_%d", n), nil
}

func (m *MockGateway) AttachPaymentIntent(ctx context.Context, intentID string, params gateway.AttachParams, idempotencyKey string) (*gateway.PaymentIntent, error) {
	atomic.AddInt32(&m.AttachCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReturnURLs = append(m.ReturnURLs, params.ReturnURL)
	if m.AttachError != nil {
		return nil, m.AttachError
	}
	intent, ok := m.intents[intentID]
	if !ok {
		return nil, &gateway.GatewayError{Status: http.StatusNotFound, Code: "resource_not_found"}
	}
	intent.Status = gateway.IntentSucceeded
	if m.AttachStatus != "" {
		intent.Status = m.AttachStatus
	}
	intent.RedirectURL = m.AttachRedirectURL
	intent.LastError = m.AttachLastError
	copy := *intent
	return &copy, nil
}

// SetIntent changes an intent's state as if the gateway moved it.
func (m *MockGateway) SetIntent(id string, status gateway.IntentStatus, lastError string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if intent, ok := m.intents[id]; ok {
		intent.Status = status
		intent.LastError = lastError
	}
}

// AddIntent registers an intent directly.
func (m *MockGateway) AddIntent(intent *gateway.PaymentIntent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intents[intent.ID] = intent
}

// TotalCalls returns the number of gateway calls of any kind.
func (m *MockGateway) TotalCalls() int32 {
	return atomic.LoadInt32(&m.CreateIntentCallCount) +
		atomic.LoadInt32(&m.RetrieveCallCount) +
		atomic.LoadInt32(&m.CreateMethodCallCount) +
		atomic.LoadInt32(&m.AttachCallCount)
}

// ──────────────────────────────────────────────
// MOCK NOTIFIER, CACHE & LOCKS
// ──────────────────────────────────────────────

// MockNotifier records notifications.
type MockNotifier struct {
	mu   sync.Mutex
	sent []service.Notification
}

func (m *MockNotifier) SendConfirmation(kind service.NotificationKind, recipientID string, data map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, service.Notification{Kind: kind, RecipientID: recipientID, Data: data})
}

// Count returns how many notifications of kind were sent.
func (m *MockNotifier) Count(kind service.NotificationKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sent {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

// MockCache is an in-memory payment status cache.
type MockCache struct {
	mu       sync.Mutex
	statuses map[string]*redis.CachedPaymentStatus

	SetCallCount int32
}

// NewMockCache creates a new mock cache.
func NewMockCache() *MockCache {
	return &MockCache{statuses: make(map[string]*redis.CachedPaymentStatus)}
}

func (m *MockCache) GetPaymentStatus(ctx context.Context, bookingID string) (*redis.CachedPaymentStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statuses[bookingID], nil
}

func (m *MockCache) SetPaymentStatus(ctx context.Context, status *redis.CachedPaymentStatus) error {
	atomic.AddInt32(&m.SetCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[status.BookingID] = status
	return nil
}

// MockLockStore is an in-memory lock store keyed by payment id and holding
// each lock's token.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]string
	seq   int

	AcquireCallCount int32
	ReleaseCallCount int32
	StaleReleases    int32
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{locks: make(map[string]string)}
}

func (m *MockLockStore) AcquirePaymentLock(ctx context.Context, paymentID string, ttl time.Duration) (string, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.locks[paymentID]; held {
		return "", nil
	}
	m.seq++
	token := fmt.Sprintf("token-%d", m.seq)
	m.locks[paymentID] = token
	return token, nil
}

func (m *MockLockStore) ReleasePaymentLock(ctx context.Context, paymentID, token string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[paymentID] != token {
		atomic.AddInt32(&m.StaleReleases, 1)
		return redis.ErrLockNotHeld
	}
	delete(m.locks, paymentID)
	return nil
}

// Hold marks a payment as locked by another instance, replacing any
// current owner as if its lock had expired.
func (m *MockLockStore) Hold(paymentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks[paymentID] = "held-elsewhere"
}

// Held reports whether a payment is locked.
func (m *MockLockStore) Held(paymentID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, held := m.locks[paymentID]
	return held
}

// ──────────────────────────────────────────────
// FIXTURE
// ──────────────────────────────────────────────

const testWebhookSecret = "sk_test_settlement"

// fixture wires every service against shared mocks.
type fixture struct {
	bookings    *MockBookingRepository
	payments    *MockPaymentRepository
	commissions *MockCommissionRepository
	owners      *MockOwnerRepository
	vehicles    *MockVehicleRepository
	tx          *MockTransactor
	gateway     *MockGateway
	notifier    *MockNotifier
	cache       *MockCache

	paymentSvc    *service.PaymentService
	bookingSvc    *service.BookingService
	commissionSvc *service.CommissionService
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	noTx bool
}

// withoutTx wires the services without a transactor.
func withoutTx() fixtureOption {
	return func(c *fixtureConfig) { c.noTx = true }
}

func newFixture(opts ...fixtureOption) *fixture {
	var cfg fixtureConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	f := &fixture{
		bookings:    NewMockBookingRepository(),
		payments:    NewMockPaymentRepository(),
		commissions: NewMockCommissionRepository(),
		owners:      NewMockOwnerRepository(),
		vehicles:    NewMockVehicleRepository(),
		gateway:     NewMockGateway(),
		notifier:    &MockNotifier{},
		cache:       NewMockCache(),
	}
	repos := repository.Repositories{
		Bookings:    f.bookings,
		Payments:    f.payments,
		Commissions: f.commissions,
		Owners:      f.owners,
	}

	var tx repository.Transactor
	if !cfg.noTx {
		f.tx = &MockTransactor{repos: repos}
		tx = f.tx
	}

	f.paymentSvc = service.NewPaymentService(repos, tx, f.gateway,
		gateway.NewWebhookVerifier(testWebhookSecret, 0), f.notifier, f.cache,
		service.PaymentConfig{
			Currency:      "PHP",
			ReturnBaseURL: "https://rent.example",
			QRExpiry:      30 * time.Minute,
		})
	f.commissionSvc = service.NewCommissionService(repos, tx,
		service.OwnerRateResolver{Default: decimal.RequireFromString("10.00")}, f.notifier)
	f.bookingSvc = service.NewBookingService(repos, tx, f.vehicles, f.commissionSvc, f.notifier)

	f.owners.AddOwner(&domain.Owner{ID: "owner-1", Name: "Ana"})
	f.vehicles.AddVehicle(&domain.Vehicle{ID: "vehicle-1", OwnerID: "owner-1", DailyRate: decimal.RequireFromString("500.00")})
	return f
}

// addPendingBooking stores the 1000.00 subtotal booking used across tests.
func (f *fixture) addPendingBooking(id string) *domain.Booking {
	start := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	booking := &domain.Booking{
		ID:             id,
		RenterID:       "renter-1",
		VehicleID:      "vehicle-1",
		OwnerID:        "owner-1",
		StartDate:      start,
		EndDate:        start.AddDate(0, 0, 2),
		RentalSubtotal: decimal.RequireFromString("1000.00"),
		ServiceFee:     decimal.RequireFromString("50.00"),
		TotalPrice:     decimal.RequireFromString("1050.00"),
		PaymentMethod:  domain.PaymentMethodCard,
		Status:         domain.BookingStatusPending,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	f.bookings.AddBooking(booking)
	return booking
}

// addPaidBooking stores a booking already settled by card.
func (f *fixture) addPaidBooking(id string) *domain.Booking {
	booking := f.addPendingBooking(id)
	f.bookings.mu.Lock()
	f.bookings.bookings[id].Status = domain.BookingStatusPaid
	f.bookings.mu.Unlock()
	f.payments.AddPayment(&domain.Payment{
		ID:            "pay-" + id,
		BookingID:     id,
		Amount:        decimal.RequireFromString("1101.75"),
		ProcessingFee: decimal.RequireFromString("51.75"),
		Method:        domain.PaymentMethodCard,
		Status:        domain.PaymentStatusPaid,
		GatewayRef:    "pi_paid_" + id,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	})
	booking.Status = domain.BookingStatusPaid
	return booking
}

// addPendingIntentPayment stores a pending payment bound to a gateway intent.
func (f *fixture) addPendingIntentPayment(bookingID string, method domain.PaymentMethod, status gateway.IntentStatus, age time.Duration) *domain.Payment {
	intentID := "pi_" + bookingID
	created := time.Now().Add(-age)
	payment := &domain.Payment{
		ID:            "pay-" + bookingID,
		BookingID:     bookingID,
		Amount:        decimal.RequireFromString("1076.25"),
		ProcessingFee: decimal.RequireFromString("26.25"),
		Method:        method,
		Status:        domain.PaymentStatusPending,
		GatewayRef:    intentID,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
	f.payments.AddPayment(payment)
	f.gateway.AddIntent(&gateway.PaymentIntent{
		ID:        intentID,
		Amount:    payment.Amount,
		Currency:  "PHP",
		Status:    status,
		ClientKey: intentID + "_client",
	})
	copy := *payment
	return &copy
}

func validCard() *service.CardInput {
	return &service.CardInput{
		Number:   "4343434343434345",
		ExpMonth: 12,
		ExpYear:  time.Now().Year() + 2,
		CVC:      "123",
	}
}

// webhookBody builds a gateway event for intentID.
func webhookBody(eventType, intentID, failedCode string) []byte {
	return []byte(`{"data":{"id":"evt_` + intentID + `","type":"event","attributes":{"type":"` + eventType +
		`","data":{"id":"pay_` + intentID + `","type":"payment","attributes":{"payment_intent_id":"` + intentID +
		`","failed_code":"` + failedCode + `"}}}}}`)
}

func signWebhook(body []byte) string {
	ts := time.Now().Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, gateway.ComputeSignature([]byte(testWebhookSecret), ts, body))
}

func hasQueryParam(rawURL, key, value string) bool {
	return strings.Contains(rawURL, key+"="+value)
}
