package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/velmostra/stagegate/internal/domain"
)

type ReservationRepository interface {
	// CreatePending atomically claims capacity for the reservation's event
	// and inserts the pending record in one transaction.
	CreatePending(ctx context.Context, reservation *domain.Reservation) error
	GetByID(ctx context.Context, id string) (*domain.Reservation, error)
	GetBySessionID(ctx context.Context, sessionID string) (*domain.Reservation, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]domain.Reservation, error)
	ListAll(ctx context.Context) ([]domain.Reservation, error)
	// MarkPaid transitions pending->paid only while the hold deadline has
	// not passed. The returned bool reports whether this call performed the
	// transition; false with a nil error means the guard did not match.
	MarkPaid(ctx context.Context, id, paymentRef string) (*domain.Reservation, bool, error)
	// MarkTerminal transitions pending->cancelled or pending->expired with
	// the same conditional-update semantics as MarkPaid.
	MarkTerminal(ctx context.Context, id string, status domain.ReservationStatus) (*domain.Reservation, bool, error)
	// SetPaymentSession records the checkout session reference; allowed only
	// while the reservation is still pending.
	SetPaymentSession(ctx context.Context, id, sessionID string) error
	// ExpirePendingBefore flips every pending reservation whose deadline
	// passed to expired and returns the affected rows.
	ExpirePendingBefore(ctx context.Context, deadline time.Time) ([]domain.Reservation, error)
}

type PGReservationRepository struct {
	db *pgxpool.Pool
}

func NewReservationRepository(db *pgxpool.Pool) ReservationRepository {
	return &PGReservationRepository{db: db}
}

const reservationColumns = `id, ticket_number, event_id, buyer_id, quantity, attendees, unit_price_cents, discount_code, discount_cents, total_cents, status, expires_at, payment_session_id, payment_ref, created_at, updated_at`

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	var (
		r            domain.Reservation
		attendees    []byte
		discountCode *string
		sessionID    *string
		paymentRef   *string
	)
	if err := row.Scan(&r.ID, &r.TicketNumber, &r.EventID, &r.BuyerID, &r.Quantity, &attendees, &r.UnitPriceCents, &discountCode, &r.DiscountCents, &r.TotalCents, &r.Status, &r.ExpiresAt, &sessionID, &paymentRef, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(attendees, &r.Attendees); err != nil {
		return nil, err
	}
	if discountCode != nil {
		r.DiscountCode = *discountCode
	}
	if sessionID != nil {
		r.PaymentSessionID = *sessionID
	}
	if paymentRef != nil {
		r.PaymentRef = *paymentRef
	}
	return &r, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *PGReservationRepository) CreatePending(ctx context.Context, reservation *domain.Reservation) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := reserveTx(ctx, tx, reservation.EventID, reservation.Quantity); err != nil {
		return err
	}

	attendees, err := json.Marshal(reservation.Attendees)
	if err != nil {
		return err
	}

	reservation.Status = domain.ReservationStatusPending
	if err := tx.QueryRow(ctx, `INSERT INTO reservations (id, ticket_number, event_id, buyer_id, quantity, attendees, unit_price_cents, discount_code, discount_cents, total_cents, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`,
		reservation.ID, reservation.TicketNumber, reservation.EventID, reservation.BuyerID, reservation.Quantity, attendees,
		reservation.UnitPriceCents, nullable(reservation.DiscountCode), reservation.DiscountCents, reservation.TotalCents,
		reservation.Status, reservation.ExpiresAt).
		Scan(&reservation.CreatedAt, &reservation.UpdatedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PGReservationRepository) GetByID(ctx context.Context, id string) (*domain.Reservation, error) {
	res, err := scanReservation(r.db.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return res, nil
}

func (r *PGReservationRepository) GetBySessionID(ctx context.Context, sessionID string) (*domain.Reservation, error) {
	res, err := scanReservation(r.db.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE payment_session_id=$1`, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return res, nil
}

func (r *PGReservationRepository) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Reservation, error) {
	return r.list(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE buyer_id=$1 ORDER BY created_at DESC`, buyerID)
}

func (r *PGReservationRepository) ListAll(ctx context.Context) ([]domain.Reservation, error) {
	return r.list(ctx, `SELECT `+reservationColumns+` FROM reservations ORDER BY created_at DESC`)
}

func (r *PGReservationRepository) list(ctx context.Context, query string, args ...interface{}) ([]domain.Reservation, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reservations := make([]domain.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, *res)
	}
	return reservations, rows.Err()
}

func (r *PGReservationRepository) MarkPaid(ctx context.Context, id, paymentRef string) (*domain.Reservation, bool, error) {
	row := r.db.QueryRow(ctx, `UPDATE reservations SET status=$2, expires_at=NULL, payment_ref=$3, updated_at=now()
		WHERE id=$1 AND status=$4 AND expires_at > now()
		RETURNING `+reservationColumns,
		id, domain.ReservationStatusPaid, paymentRef, domain.ReservationStatusPending)
	res, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return res, true, nil
}

func (r *PGReservationRepository) MarkTerminal(ctx context.Context, id string, status domain.ReservationStatus) (*domain.Reservation, bool, error) {
	row := r.db.QueryRow(ctx, `UPDATE reservations SET status=$2, updated_at=now()
		WHERE id=$1 AND status=$3
		RETURNING `+reservationColumns,
		id, status, domain.ReservationStatusPending)
	res, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return res, true, nil
}

func (r *PGReservationRepository) SetPaymentSession(ctx context.Context, id, sessionID string) error {
	cmd, err := r.db.Exec(ctx, `UPDATE reservations SET payment_session_id=$2, updated_at=now() WHERE id=$1 AND status=$3`,
		id, sessionID, domain.ReservationStatusPending)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrAlreadyTerminal
	}
	return nil
}

func (r *PGReservationRepository) ExpirePendingBefore(ctx context.Context, deadline time.Time) ([]domain.Reservation, error) {
	rows, err := r.db.Query(ctx, `UPDATE reservations SET status=$1, updated_at=now()
		WHERE status=$2 AND expires_at <= $3
		RETURNING `+reservationColumns,
		domain.ReservationStatusExpired, domain.ReservationStatusPending, deadline)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		expired = append(expired, *res)
	}
	return expired, rows.Err()
}

var _ ReservationRepository = (*PGReservationRepository)(nil)
