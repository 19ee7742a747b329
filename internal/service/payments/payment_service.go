package payments

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/velmostra/stagegate/internal/domain"
	"github.com/velmostra/stagegate/internal/repository"
	"github.com/velmostra/stagegate/internal/service/reservation"
)

// Gateway is the external payment provider. The service never trusts a
// callback payload before VerifyCallback authenticates it.
type Gateway interface {
	CreateSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	RetrieveSession(ctx context.Context, sessionID string) (*SessionStatus, error)
	VerifyCallback(payload []byte, signature string) (*CallbackEvent, error)
}

type CheckoutRequest struct {
	ReservationID  string
	TicketNumber   string
	EventTitle     string
	Quantity       int
	UnitPriceCents int64
	DiscountCents  int64
}

type CheckoutSession struct {
	ID          string
	RedirectURL string
}

type SessionStatus struct {
	ID            string
	Paid          bool
	PaymentRef    string
	ReservationID string
}

// CallbackEvent is a signature-verified gateway notification.
type CallbackEvent struct {
	Type    string
	Session SessionStatus
}

type PaymentUseCase interface {
	OpenCheckout(ctx context.Context, reservationID, buyerID string) (*Checkout, error)
	ConfirmByPoll(ctx context.Context, sessionID, buyerID string) (*PollResult, error)
	ConfirmByCallback(ctx context.Context, payload []byte, signature string) error
}

type Checkout struct {
	SessionID   string
	RedirectURL string
}

// PollResult is what the buyer's client sees after redirect. An unpaid
// session is a normal answer, not a failure; the client keeps polling.
type PollResult struct {
	Paid        bool
	Reservation *domain.Reservation
}

// Reservations is the slice of the reservation state machine this service
// drives. Both confirmation paths funnel into the same ConfirmPaid.
type Reservations interface {
	ConfirmPaid(ctx context.Context, id, paymentRef string, source reservation.ConfirmationSource) (*domain.Reservation, error)
	Expire(ctx context.Context, id string) (*domain.Reservation, error)
}

type Events interface {
	GetByID(ctx context.Context, id string) (*domain.Event, error)
}

// Locker dampens concurrent session creation for one reservation. It is
// optional; idempotent confirmation keeps duplicates harmless.
type Locker interface {
	AcquireCheckoutLock(ctx context.Context, reservationID string, ttl time.Duration) (bool, error)
	ReleaseCheckoutLock(ctx context.Context, reservationID string) error
}

type PaymentService struct {
	store        repository.ReservationRepository
	reservations Reservations
	events       Events
	gateway      Gateway
	locker       Locker
	lockTTL      time.Duration
}

func NewPaymentService(
	store repository.ReservationRepository,
	reservations Reservations,
	events Events,
	gateway Gateway,
	locker Locker,
	lockTTL time.Duration,
) *PaymentService {
	return &PaymentService{
		store:        store,
		reservations: reservations,
		events:       events,
		gateway:      gateway,
		locker:       locker,
		lockTTL:      lockTTL,
	}
}

// OpenCheckout asks the gateway for a checkout session built from the
// reservation's price snapshot and records the session reference for later
// correlation. While the reservation stays pending the call may be retried;
// a gateway failure leaves the hold in place.
func (s *PaymentService) OpenCheckout(ctx context.Context, reservationID, buyerID string) (*Checkout, error) {
	current, err := s.store.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if buyerID != "" && current.BuyerID != buyerID {
		return nil, domain.ErrForbidden
	}
	if current.Expired(time.Now()) {
		if _, err := s.reservations.Expire(ctx, current.ID); err != nil {
			log.Printf("WARNING: failed to expire overdue reservation %s: %v", current.ID, err)
		}
		return nil, domain.ErrExpired
	}
	if current.Status == domain.ReservationStatusPaid {
		return nil, domain.ErrAlreadyPaid
	}
	if current.Status != domain.ReservationStatusPending {
		return nil, domain.ErrAlreadyTerminal
	}

	event, err := s.events.GetByID(ctx, current.EventID)
	if err != nil {
		return nil, err
	}

	locked := false
	if s.locker != nil {
		ok, err := s.locker.AcquireCheckoutLock(ctx, current.ID, s.lockTTL)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.ErrCheckoutInProgress
		}
		locked = true
	}

	session, err := s.gateway.CreateSession(ctx, CheckoutRequest{
		ReservationID:  current.ID,
		TicketNumber:   current.TicketNumber,
		EventTitle:     event.Title,
		Quantity:       current.Quantity,
		UnitPriceCents: current.UnitPriceCents,
		DiscountCents:  current.DiscountCents,
	})
	if err != nil {
		if locked {
			_ = s.locker.ReleaseCheckoutLock(ctx, current.ID)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	if err := s.store.SetPaymentSession(ctx, current.ID, session.ID); err != nil {
		if locked {
			_ = s.locker.ReleaseCheckoutLock(ctx, current.ID)
		}
		return nil, err
	}
	return &Checkout{SessionID: session.ID, RedirectURL: session.RedirectURL}, nil
}

// ConfirmByPoll is the buyer-driven confirmation path, invoked after the
// gateway redirects the browser back.
func (s *PaymentService) ConfirmByPoll(ctx context.Context, sessionID, buyerID string) (*PollResult, error) {
	current, err := s.store.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if buyerID != "" && current.BuyerID != buyerID {
		return nil, domain.ErrForbidden
	}

	status, err := s.gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	if !status.Paid {
		return &PollResult{Paid: false, Reservation: current}, nil
	}

	updated, err := s.reservations.ConfirmPaid(ctx, current.ID, status.PaymentRef, reservation.SourcePoll)
	if err != nil {
		return nil, err
	}
	return &PollResult{Paid: true, Reservation: updated}, nil
}

// ConfirmByCallback is the gateway-driven confirmation path. The signature
// is verified before anything else; a forged payload mutates nothing.
func (s *PaymentService) ConfirmByCallback(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.VerifyCallback(payload, signature)
	if err != nil {
		return err
	}
	if event.Type != "checkout.session.completed" || !event.Session.Paid {
		return nil
	}

	reservationID := event.Session.ReservationID
	if reservationID == "" {
		current, err := s.store.GetBySessionID(ctx, event.Session.ID)
		if err != nil {
			return err
		}
		reservationID = current.ID
	}

	_, err = s.reservations.ConfirmPaid(ctx, reservationID, event.Session.PaymentRef, reservation.SourceCallback)
	return err
}

var _ PaymentUseCase = (*PaymentService)(nil)
