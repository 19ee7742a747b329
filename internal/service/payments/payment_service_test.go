package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/velmostra/stagegate/internal/domain"
	"github.com/velmostra/stagegate/internal/service/reservation"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreatePending(ctx context.Context, r *domain.Reservation) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockStore) GetByID(ctx context.Context, id string) (*domain.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockStore) GetBySessionID(ctx context.Context, sessionID string) (*domain.Reservation, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockStore) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Reservation, error) {
	args := m.Called(ctx, buyerID)
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

func (m *MockStore) ListAll(ctx context.Context) ([]domain.Reservation, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

func (m *MockStore) MarkPaid(ctx context.Context, id, paymentRef string) (*domain.Reservation, bool, error) {
	args := m.Called(ctx, id, paymentRef)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.Reservation), args.Bool(1), args.Error(2)
}

func (m *MockStore) MarkTerminal(ctx context.Context, id string, status domain.ReservationStatus) (*domain.Reservation, bool, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.Reservation), args.Bool(1), args.Error(2)
}

func (m *MockStore) SetPaymentSession(ctx context.Context, id, sessionID string) error {
	args := m.Called(ctx, id, sessionID)
	return args.Error(0)
}

func (m *MockStore) ExpirePendingBefore(ctx context.Context, deadline time.Time) ([]domain.Reservation, error) {
	args := m.Called(ctx, deadline)
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

type MockReservations struct {
	mock.Mock
}

func (m *MockReservations) ConfirmPaid(ctx context.Context, id, paymentRef string, source reservation.ConfirmationSource) (*domain.Reservation, error) {
	args := m.Called(ctx, id, paymentRef, source)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservations) Expire(ctx context.Context, id string) (*domain.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

type MockEvents struct {
	mock.Mock
}

func (m *MockEvents) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Event), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CheckoutSession), args.Error(1)
}

func (m *MockGateway) RetrieveSession(ctx context.Context, sessionID string) (*SessionStatus, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SessionStatus), args.Error(1)
}

func (m *MockGateway) VerifyCallback(payload []byte, signature string) (*CallbackEvent, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CallbackEvent), args.Error(1)
}

type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) AcquireCheckoutLock(ctx context.Context, reservationID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, reservationID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockLocker) ReleaseCheckoutLock(ctx context.Context, reservationID string) error {
	args := m.Called(ctx, reservationID)
	return args.Error(0)
}

func pendingReservation() *domain.Reservation {
	deadline := time.Now().Add(time.Hour)
	return &domain.Reservation{
		ID:             "res-1",
		TicketNumber:   "TKT-123456-ABC123",
		EventID:        "event-1",
		BuyerID:        "buyer-1",
		Quantity:       2,
		UnitPriceCents: 2500,
		TotalCents:     5000,
		Status:         domain.ReservationStatusPending,
		ExpiresAt:      &deadline,
	}
}

func TestPaymentService_OpenCheckout_Success(t *testing.T) {
	mockStore := &MockStore{}
	mockReservations := &MockReservations{}
	mockEvents := &MockEvents{}
	mockGateway := &MockGateway{}
	mockLocker := &MockLocker{}

	service := NewPaymentService(mockStore, mockReservations, mockEvents, mockGateway, mockLocker, 30*time.Second)

	ctx := context.Background()
	current := pendingReservation()

	mockStore.On("GetByID", ctx, "res-1").Return(current, nil).Once()
	mockEvents.On("GetByID", ctx, "event-1").Return(&domain.Event{ID: "event-1", Title: "Night Show"}, nil).Once()
	mockLocker.On("AcquireCheckoutLock", ctx, "res-1", 30*time.Second).Return(true, nil).Once()
	mockGateway.On("CreateSession", ctx, CheckoutRequest{
		ReservationID:  "res-1",
		TicketNumber:   "TKT-123456-ABC123",
		EventTitle:     "Night Show",
		Quantity:       2,
		UnitPriceCents: 2500,
	}).Return(&CheckoutSession{ID: "cs_test_1", RedirectURL: "https://pay.example/cs_test_1"}, nil).Once()
	mockStore.On("SetPaymentSession", ctx, "res-1", "cs_test_1").Return(nil).Once()

	checkout, err := service.OpenCheckout(ctx, "res-1", "buyer-1")

	assert.NoError(t, err)
	assert.Equal(t, "cs_test_1", checkout.SessionID)
	assert.Equal(t, "https://pay.example/cs_test_1", checkout.RedirectURL)
	mockStore.AssertExpectations(t)
	mockGateway.AssertExpectations(t)
	mockLocker.AssertExpectations(t)
}

func TestPaymentService_OpenCheckout_StateRules(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name        string
		reservation *domain.Reservation
		buyerID     string
		expectedErr error
	}{
		{
			name: "Paid reservation",
			reservation: &domain.Reservation{
				ID: "res-1", BuyerID: "buyer-1", Status: domain.ReservationStatusPaid,
			},
			buyerID:     "buyer-1",
			expectedErr: domain.ErrAlreadyPaid,
		},
		{
			name: "Cancelled reservation",
			reservation: &domain.Reservation{
				ID: "res-1", BuyerID: "buyer-1", Status: domain.ReservationStatusCancelled,
			},
			buyerID:     "buyer-1",
			expectedErr: domain.ErrAlreadyTerminal,
		},
		{
			name:        "Foreign buyer",
			reservation: pendingReservation(),
			buyerID:     "buyer-2",
			expectedErr: domain.ErrForbidden,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mockStore := &MockStore{}
			mockGateway := &MockGateway{}
			mockStore.On("GetByID", ctx, "res-1").Return(tc.reservation, nil).Once()

			service := NewPaymentService(mockStore, &MockReservations{}, &MockEvents{}, mockGateway, nil, 0)

			checkout, err := service.OpenCheckout(ctx, "res-1", tc.buyerID)
			assert.Nil(t, checkout)
			assert.ErrorIs(t, err, tc.expectedErr)
			mockGateway.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
		})
	}
}

func TestPaymentService_OpenCheckout_ExpiredHold(t *testing.T) {
	mockStore := &MockStore{}
	mockReservations := &MockReservations{}
	mockGateway := &MockGateway{}

	service := NewPaymentService(mockStore, mockReservations, &MockEvents{}, mockGateway, nil, 0)

	ctx := context.Background()
	deadline := time.Now().Add(-time.Minute)
	overdue := pendingReservation()
	overdue.ExpiresAt = &deadline

	mockStore.On("GetByID", ctx, "res-1").Return(overdue, nil).Once()
	mockReservations.On("Expire", ctx, "res-1").Return(&domain.Reservation{
		ID: "res-1", Status: domain.ReservationStatusExpired,
	}, nil).Once()

	checkout, err := service.OpenCheckout(ctx, "res-1", "buyer-1")

	assert.Nil(t, checkout)
	assert.ErrorIs(t, err, domain.ErrExpired)
	mockGateway.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
	mockReservations.AssertExpectations(t)
}

func TestPaymentService_OpenCheckout_LockContention(t *testing.T) {
	mockStore := &MockStore{}
	mockEvents := &MockEvents{}
	mockGateway := &MockGateway{}
	mockLocker := &MockLocker{}

	service := NewPaymentService(mockStore, &MockReservations{}, mockEvents, mockGateway, mockLocker, 30*time.Second)

	ctx := context.Background()
	mockStore.On("GetByID", ctx, "res-1").Return(pendingReservation(), nil).Once()
	mockEvents.On("GetByID", ctx, "event-1").Return(&domain.Event{ID: "event-1"}, nil).Once()
	mockLocker.On("AcquireCheckoutLock", ctx, "res-1", 30*time.Second).Return(false, nil).Once()

	checkout, err := service.OpenCheckout(ctx, "res-1", "buyer-1")

	assert.Nil(t, checkout)
	assert.ErrorIs(t, err, domain.ErrCheckoutInProgress)
	mockGateway.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
}

func TestPaymentService_OpenCheckout_GatewayFailureKeepsHold(t *testing.T) {
	mockStore := &MockStore{}
	mockEvents := &MockEvents{}
	mockGateway := &MockGateway{}
	mockLocker := &MockLocker{}

	service := NewPaymentService(mockStore, &MockReservations{}, mockEvents, mockGateway, mockLocker, 30*time.Second)

	ctx := context.Background()
	mockStore.On("GetByID", ctx, "res-1").Return(pendingReservation(), nil).Once()
	mockEvents.On("GetByID", ctx, "event-1").Return(&domain.Event{ID: "event-1"}, nil).Once()
	mockLocker.On("AcquireCheckoutLock", ctx, "res-1", 30*time.Second).Return(true, nil).Once()
	mockGateway.On("CreateSession", ctx, mock.AnythingOfType("payments.CheckoutRequest")).Return(nil, errors.New("stripe 503")).Once()
	mockLocker.On("ReleaseCheckoutLock", ctx, "res-1").Return(nil).Once()

	checkout, err := service.OpenCheckout(ctx, "res-1", "buyer-1")

	assert.Nil(t, checkout)
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	// The hold itself stays untouched for a retry.
	mockStore.AssertNotCalled(t, "SetPaymentSession", mock.Anything, mock.Anything, mock.Anything)
	mockLocker.AssertExpectations(t)
}

func TestPaymentService_OpenCheckout_SessionRecordFailureReleasesLock(t *testing.T) {
	mockStore := &MockStore{}
	mockEvents := &MockEvents{}
	mockGateway := &MockGateway{}
	mockLocker := &MockLocker{}

	service := NewPaymentService(mockStore, &MockReservations{}, mockEvents, mockGateway, mockLocker, 30*time.Second)

	ctx := context.Background()
	mockStore.On("GetByID", ctx, "res-1").Return(pendingReservation(), nil).Once()
	mockEvents.On("GetByID", ctx, "event-1").Return(&domain.Event{ID: "event-1"}, nil).Once()
	mockLocker.On("AcquireCheckoutLock", ctx, "res-1", 30*time.Second).Return(true, nil).Once()
	mockGateway.On("CreateSession", ctx, mock.AnythingOfType("payments.CheckoutRequest")).Return(&CheckoutSession{
		ID: "cs_test_1", RedirectURL: "https://pay.example/cs_test_1",
	}, nil).Once()
	mockStore.On("SetPaymentSession", ctx, "res-1", "cs_test_1").Return(errors.New("db down")).Once()
	// The buyer must be able to retry without waiting out the lock TTL.
	mockLocker.On("ReleaseCheckoutLock", ctx, "res-1").Return(nil).Once()

	checkout, err := service.OpenCheckout(ctx, "res-1", "buyer-1")

	assert.Nil(t, checkout)
	assert.Error(t, err)
	mockLocker.AssertExpectations(t)
}

func TestPaymentService_ConfirmByPoll_Paid(t *testing.T) {
	mockStore := &MockStore{}
	mockReservations := &MockReservations{}
	mockGateway := &MockGateway{}

	service := NewPaymentService(mockStore, mockReservations, &MockEvents{}, mockGateway, nil, 0)

	ctx := context.Background()
	current := pendingReservation()
	current.PaymentSessionID = "cs_test_1"
	paid := &domain.Reservation{ID: "res-1", BuyerID: "buyer-1", Status: domain.ReservationStatusPaid, PaymentRef: "pi_123"}

	mockStore.On("GetBySessionID", ctx, "cs_test_1").Return(current, nil).Once()
	mockGateway.On("RetrieveSession", ctx, "cs_test_1").Return(&SessionStatus{
		ID: "cs_test_1", Paid: true, PaymentRef: "pi_123", ReservationID: "res-1",
	}, nil).Once()
	mockReservations.On("ConfirmPaid", ctx, "res-1", "pi_123", reservation.SourcePoll).Return(paid, nil).Once()

	result, err := service.ConfirmByPoll(ctx, "cs_test_1", "buyer-1")

	assert.NoError(t, err)
	assert.True(t, result.Paid)
	assert.Equal(t, domain.ReservationStatusPaid, result.Reservation.Status)
	mockReservations.AssertExpectations(t)
}

func TestPaymentService_ConfirmByPoll_Unpaid(t *testing.T) {
	mockStore := &MockStore{}
	mockReservations := &MockReservations{}
	mockGateway := &MockGateway{}

	service := NewPaymentService(mockStore, mockReservations, &MockEvents{}, mockGateway, nil, 0)

	ctx := context.Background()
	mockStore.On("GetBySessionID", ctx, "cs_test_1").Return(pendingReservation(), nil).Once()
	mockGateway.On("RetrieveSession", ctx, "cs_test_1").Return(&SessionStatus{ID: "cs_test_1", Paid: false}, nil).Once()

	result, err := service.ConfirmByPoll(ctx, "cs_test_1", "buyer-1")

	assert.NoError(t, err)
	assert.False(t, result.Paid)
	assert.Equal(t, domain.ReservationStatusPending, result.Reservation.Status)
	mockReservations.AssertNotCalled(t, "ConfirmPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentService_ConfirmByPoll_GatewayDown(t *testing.T) {
	mockStore := &MockStore{}
	mockGateway := &MockGateway{}

	service := NewPaymentService(mockStore, &MockReservations{}, &MockEvents{}, mockGateway, nil, 0)

	ctx := context.Background()
	mockStore.On("GetBySessionID", ctx, "cs_test_1").Return(pendingReservation(), nil).Once()
	mockGateway.On("RetrieveSession", ctx, "cs_test_1").Return(nil, errors.New("timeout")).Once()

	result, err := service.ConfirmByPoll(ctx, "cs_test_1", "buyer-1")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}

func TestPaymentService_ConfirmByCallback_Valid(t *testing.T) {
	mockStore := &MockStore{}
	mockReservations := &MockReservations{}
	mockGateway := &MockGateway{}

	service := NewPaymentService(mockStore, mockReservations, &MockEvents{}, mockGateway, nil, 0)

	ctx := context.Background()
	payload := []byte(`{"type":"checkout.session.completed"}`)

	mockGateway.On("VerifyCallback", payload, "sig").Return(&CallbackEvent{
		Type: "checkout.session.completed",
		Session: SessionStatus{
			ID: "cs_test_1", Paid: true, PaymentRef: "pi_123", ReservationID: "res-1",
		},
	}, nil).Once()
	mockReservations.On("ConfirmPaid", ctx, "res-1", "pi_123", reservation.SourceCallback).Return(&domain.Reservation{
		ID: "res-1", Status: domain.ReservationStatusPaid,
	}, nil).Once()

	err := service.ConfirmByCallback(ctx, payload, "sig")

	assert.NoError(t, err)
	mockReservations.AssertExpectations(t)
}

func TestPaymentService_ConfirmByCallback_BadSignature(t *testing.T) {
	mockReservations := &MockReservations{}
	mockGateway := &MockGateway{}

	service := NewPaymentService(&MockStore{}, mockReservations, &MockEvents{}, mockGateway, nil, 0)

	ctx := context.Background()
	payload := []byte(`{}`)

	mockGateway.On("VerifyCallback", payload, "forged").Return(nil, domain.ErrInvalidSignature).Once()

	err := service.ConfirmByCallback(ctx, payload, "forged")

	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
	// A forged payload must mutate nothing.
	mockReservations.AssertNotCalled(t, "ConfirmPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentService_ConfirmByCallback_IgnoresOtherEvents(t *testing.T) {
	mockReservations := &MockReservations{}
	mockGateway := &MockGateway{}

	service := NewPaymentService(&MockStore{}, mockReservations, &MockEvents{}, mockGateway, nil, 0)

	ctx := context.Background()
	payload := []byte(`{"type":"payment_intent.created"}`)

	mockGateway.On("VerifyCallback", payload, "sig").Return(&CallbackEvent{Type: "payment_intent.created"}, nil).Once()

	err := service.ConfirmByCallback(ctx, payload, "sig")

	assert.NoError(t, err)
	mockReservations.AssertNotCalled(t, "ConfirmPaid", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentService_ConfirmByCallback_FallsBackToSessionLookup(t *testing.T) {
	mockStore := &MockStore{}
	mockReservations := &MockReservations{}
	mockGateway := &MockGateway{}

	service := NewPaymentService(mockStore, mockReservations, &MockEvents{}, mockGateway, nil, 0)

	ctx := context.Background()
	payload := []byte(`{"type":"checkout.session.completed"}`)

	mockGateway.On("VerifyCallback", payload, "sig").Return(&CallbackEvent{
		Type:    "checkout.session.completed",
		Session: SessionStatus{ID: "cs_test_1", Paid: true, PaymentRef: "pi_123"},
	}, nil).Once()
	mockStore.On("GetBySessionID", ctx, "cs_test_1").Return(pendingReservation(), nil).Once()
	mockReservations.On("ConfirmPaid", ctx, "res-1", "pi_123", reservation.SourceCallback).Return(&domain.Reservation{
		ID: "res-1", Status: domain.ReservationStatusPaid,
	}, nil).Once()

	err := service.ConfirmByCallback(ctx, payload, "sig")

	assert.NoError(t, err)
	mockStore.AssertExpectations(t)
	mockReservations.AssertExpectations(t)
}
