package reservation

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/velmostra/stagegate/internal/domain"
	"github.com/velmostra/stagegate/internal/kafka"
	"github.com/velmostra/stagegate/internal/repository"
	"github.com/velmostra/stagegate/internal/service/discount"
)

// ConfirmationSource tags which notification path reached ConfirmPaid
// first. It only affects logging; both paths run the same transition.
type ConfirmationSource string

const (
	SourcePoll     ConfirmationSource = "poll"
	SourceCallback ConfirmationSource = "callback"
)

const (
	minQuantity = 1
	maxQuantity = 10
)

type ReservationUseCase interface {
	Create(ctx context.Context, input CreateInput) (*domain.Reservation, error)
	Get(ctx context.Context, id, buyerID string) (*domain.Reservation, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]domain.Reservation, error)
	ListAll(ctx context.Context) ([]domain.Reservation, error)
	Cancel(ctx context.Context, id, buyerID string) (*domain.Reservation, error)
	ConfirmPaid(ctx context.Context, id, paymentRef string, source ConfirmationSource) (*domain.Reservation, error)
	Expire(ctx context.Context, id string) (*domain.Reservation, error)
	ExpirePendingReservations(ctx context.Context) ([]domain.Reservation, error)
}

// Discounts is the slice of the discount ledger this service needs.
type Discounts interface {
	Quote(ctx context.Context, code, buyerID string, subtotalCents int64) (*discount.Quote, error)
	Redeem(ctx context.Context, code, buyerID string) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type ReservationService struct {
	reservations       repository.ReservationRepository
	events             repository.EventRepository
	discounts          Discounts
	producer           Producer
	reservationTopic   string
	notificationsTopic string
	holdTTL            time.Duration
}

type CreateInput struct {
	EventID      string
	BuyerID      string
	Quantity     int
	Attendees    []domain.Attendee
	DiscountCode string
}

type ReservationServiceOption func(*ReservationService)

func WithNotificationsTopic(topic string) ReservationServiceOption {
	return func(s *ReservationService) {
		s.notificationsTopic = topic
	}
}

func NewReservationService(
	reservations repository.ReservationRepository,
	events repository.EventRepository,
	discounts Discounts,
	producer Producer,
	reservationTopic string,
	holdTTL time.Duration,
	opts ...ReservationServiceOption,
) *ReservationService {
	service := &ReservationService{
		reservations:     reservations,
		events:           events,
		discounts:        discounts,
		producer:         producer,
		reservationTopic: reservationTopic,
		holdTTL:          holdTTL,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *ReservationService) Create(ctx context.Context, input CreateInput) (*domain.Reservation, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	event, err := s.events.GetByID(ctx, input.EventID)
	if err != nil {
		return nil, err
	}
	if !event.Active {
		return nil, domain.ErrEventInactive
	}
	if !event.OccursAt.After(time.Now()) {
		return nil, domain.ErrEventPast
	}

	// Price is snapshotted here; a later admin price change never affects
	// an in-flight reservation or its checkout session.
	subtotal := event.UnitPriceCents * int64(input.Quantity)
	var discountCents int64
	total := subtotal
	if input.DiscountCode != "" {
		quote, err := s.discounts.Quote(ctx, input.DiscountCode, input.BuyerID, subtotal)
		if err != nil {
			return nil, err
		}
		discountCents = quote.DiscountCents
		total = quote.FinalCents
		input.DiscountCode = quote.Code
	}

	expiresAt := time.Now().Add(s.holdTTL)
	reservation := &domain.Reservation{
		ID:             uuid.NewString(),
		TicketNumber:   newTicketNumber(),
		EventID:        input.EventID,
		BuyerID:        input.BuyerID,
		Quantity:       input.Quantity,
		Attendees:      input.Attendees,
		UnitPriceCents: event.UnitPriceCents,
		DiscountCode:   input.DiscountCode,
		DiscountCents:  discountCents,
		TotalCents:     total,
		ExpiresAt:      &expiresAt,
	}

	// Capacity claim and record insert happen in one transaction; on a
	// capacity rejection nothing is persisted.
	if err := s.reservations.CreatePending(ctx, reservation); err != nil {
		return nil, err
	}

	if err := s.publish(ctx, "reservation_created", reservation); err != nil {
		log.Printf("WARNING: failed to publish reservation_created for %s: %v", reservation.ID, err)
	}
	return reservation, nil
}

func (s *ReservationService) Get(ctx context.Context, id, buyerID string) (*domain.Reservation, error) {
	current, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if buyerID != "" && current.BuyerID != buyerID {
		return nil, domain.ErrForbidden
	}
	// Lazy reclamation: a pending reservation past its deadline is expired
	// inline so a client never observes stale pending state, even if the
	// background sweep has not run yet.
	if current.Expired(time.Now()) {
		if expired, err := s.Expire(ctx, current.ID); err == nil {
			return expired, nil
		}
		return s.reservations.GetByID(ctx, id)
	}
	return current, nil
}

func (s *ReservationService) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Reservation, error) {
	list, err := s.reservations.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	return s.reclaimOverdue(ctx, list), nil
}

func (s *ReservationService) ListAll(ctx context.Context) ([]domain.Reservation, error) {
	list, err := s.reservations.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.reclaimOverdue(ctx, list), nil
}

// reclaimOverdue runs the lazy expiration check over listed reservations,
// same as the single-record read path, so a listing never shows a stale
// pending hold. Rows whose transition is lost to a concurrent caller are
// re-read for their settled state.
func (s *ReservationService) reclaimOverdue(ctx context.Context, list []domain.Reservation) []domain.Reservation {
	now := time.Now()
	for i := range list {
		if !list[i].Expired(now) {
			continue
		}
		expired, err := s.Expire(ctx, list[i].ID)
		if err != nil {
			if current, readErr := s.reservations.GetByID(ctx, list[i].ID); readErr == nil {
				list[i] = *current
			}
			continue
		}
		list[i] = *expired
	}
	return list
}

// ConfirmPaid is the single convergence point for both confirmation paths.
// It is idempotent: a reservation already paid returns success with no side
// effects, so whichever of poll and callback arrives second is a no-op.
func (s *ReservationService) ConfirmPaid(ctx context.Context, id, paymentRef string, source ConfirmationSource) (*domain.Reservation, error) {
	updated, transitioned, err := s.reservations.MarkPaid(ctx, id, paymentRef)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		return s.resolveConfirmConflict(ctx, id)
	}

	log.Printf("reservation %s confirmed paid via %s", id, source)

	// Redemption is recorded only now, so an abandoned checkout never
	// consumes the buyer's single-use right. The repository insert is
	// replay-safe, covering the dual-confirmation race. Payment truth from
	// the gateway outranks discount bookkeeping: a failure here is logged
	// and the reservation stays paid.
	if updated.DiscountCode != "" {
		if err := s.discounts.Redeem(ctx, updated.DiscountCode, updated.BuyerID); err != nil {
			log.Printf("WARNING: failed to redeem discount %s for buyer %s: %v", updated.DiscountCode, updated.BuyerID, err)
		}
	}

	if err := s.publish(ctx, "reservation_paid", updated); err != nil {
		log.Printf("WARNING: failed to publish reservation_paid for %s: %v", updated.ID, err)
	}
	return updated, nil
}

// resolveConfirmConflict classifies why the conditional paid transition
// matched nothing.
func (s *ReservationService) resolveConfirmConflict(ctx context.Context, id string) (*domain.Reservation, error) {
	current, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case current.Status == domain.ReservationStatusPaid:
		// The other confirmation path won the race. Success, no effects.
		return current, nil
	case current.Status == domain.ReservationStatusPending:
		// Pending but past the deadline. Expire it and reject; the captured
		// payment is left for manual reconciliation.
		if _, err := s.Expire(ctx, current.ID); err != nil {
			log.Printf("WARNING: failed to expire overdue reservation %s: %v", current.ID, err)
		}
		return nil, domain.ErrExpired
	default:
		return nil, domain.ErrAlreadyTerminal
	}
}

func (s *ReservationService) Cancel(ctx context.Context, id, buyerID string) (*domain.Reservation, error) {
	current, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if buyerID != "" && current.BuyerID != buyerID {
		return nil, domain.ErrForbidden
	}
	if current.Status == domain.ReservationStatusPaid {
		return nil, domain.ErrAlreadyPaid
	}
	if current.Status.Terminal() {
		return nil, domain.ErrAlreadyTerminal
	}
	if current.Expired(time.Now()) {
		if _, err := s.Expire(ctx, current.ID); err != nil {
			log.Printf("WARNING: failed to expire overdue reservation %s: %v", current.ID, err)
		}
		return nil, domain.ErrAlreadyTerminal
	}

	updated, transitioned, err := s.reservations.MarkTerminal(ctx, id, domain.ReservationStatusCancelled)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		// A concurrent transition beat us; the status guard means the
		// capacity accounting happened exactly once elsewhere.
		return nil, domain.ErrAlreadyTerminal
	}

	s.release(ctx, updated)
	if err := s.publish(ctx, "reservation_cancelled", updated); err != nil {
		log.Printf("WARNING: failed to publish reservation_cancelled for %s: %v", updated.ID, err)
	}
	return updated, nil
}

// Expire transitions a pending reservation to expired and releases its
// capacity. The conditional update makes concurrent invocations (lazy check
// racing the background sweep) single-fire: exactly one caller performs the
// release, the rest get ErrAlreadyTerminal.
func (s *ReservationService) Expire(ctx context.Context, id string) (*domain.Reservation, error) {
	updated, transitioned, err := s.reservations.MarkTerminal(ctx, id, domain.ReservationStatusExpired)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		return nil, domain.ErrAlreadyTerminal
	}

	s.release(ctx, updated)
	if err := s.publish(ctx, "reservation_expired", updated); err != nil {
		log.Printf("WARNING: failed to publish reservation_expired for %s: %v", updated.ID, err)
	}
	return updated, nil
}

// ExpirePendingReservations is the background sweep: every pending
// reservation past its deadline is flipped in one conditional batch update,
// then each released individually. Per-record release failures are logged
// and do not stop the sweep.
func (s *ReservationService) ExpirePendingReservations(ctx context.Context) ([]domain.Reservation, error) {
	expired, err := s.reservations.ExpirePendingBefore(ctx, time.Now())
	if err != nil {
		return nil, err
	}
	for i := range expired {
		r := &expired[i]
		s.release(ctx, r)
		if err := s.publish(ctx, "reservation_expired", r); err != nil {
			log.Printf("WARNING: failed to publish reservation_expired for %s: %v", r.ID, err)
		}
	}
	return expired, nil
}

func (s *ReservationService) release(ctx context.Context, r *domain.Reservation) {
	if err := s.events.Release(ctx, r.EventID, r.Quantity); err != nil {
		log.Printf("WARNING: failed to release %d tickets for event %s (reservation %s): %v", r.Quantity, r.EventID, r.ID, err)
	}
}

func (s *ReservationService) publish(ctx context.Context, eventType string, r *domain.Reservation) error {
	if s.producer == nil || s.reservationTopic == "" {
		return nil
	}
	event := kafka.TicketEvent{
		Type:          eventType,
		ReservationID: r.ID,
		TicketNumber:  r.TicketNumber,
		EventID:       r.EventID,
		BuyerID:       r.BuyerID,
		Quantity:      r.Quantity,
		TotalCents:    r.TotalCents,
		Status:        string(r.Status),
		ExpiresAt:     r.ExpiresAt,
	}
	if err := s.producer.Publish(ctx, s.reservationTopic, r.ID, event); err != nil {
		return err
	}
	if s.notificationsTopic != "" && eventType == "reservation_paid" {
		return s.producer.Publish(ctx, s.notificationsTopic, r.ID, event)
	}
	return nil
}

func validateCreateInput(input CreateInput) error {
	if input.EventID == "" {
		return fmt.Errorf("%w: event id is required", domain.ErrValidation)
	}
	if input.BuyerID == "" {
		return fmt.Errorf("%w: buyer id is required", domain.ErrValidation)
	}
	if input.Quantity < minQuantity || input.Quantity > maxQuantity {
		return fmt.Errorf("%w: quantity must be between %d and %d", domain.ErrValidation, minQuantity, maxQuantity)
	}
	if len(input.Attendees) != input.Quantity {
		return fmt.Errorf("%w: number of attendees must match quantity", domain.ErrValidation)
	}
	seen := make(map[string]struct{}, len(input.Attendees))
	for _, a := range input.Attendees {
		if strings.TrimSpace(a.FirstName) == "" || strings.TrimSpace(a.LastName) == "" {
			return fmt.Errorf("%w: attendee first and last name are required", domain.ErrValidation)
		}
		name := a.FullName()
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: attendee names must be unique", domain.ErrValidation)
		}
		seen[name] = struct{}{}
	}
	return nil
}

const ticketNumberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// newTicketNumber builds the human-facing reference printed on the ticket;
// the reservation UUID remains the API identity.
func newTicketNumber() string {
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = ticketNumberAlphabet[rand.Intn(len(ticketNumberAlphabet))]
	}
	ts := fmt.Sprintf("%d", time.Now().UnixMilli())
	return fmt.Sprintf("TKT-%s-%s", ts[len(ts)-6:], suffix)
}

var _ ReservationUseCase = (*ReservationService)(nil)
