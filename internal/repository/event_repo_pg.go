package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/velmostra/stagegate/internal/domain"
)

type EventRepository interface {
	List(ctx context.Context) ([]domain.Event, error)
	GetByID(ctx context.Context, id string) (*domain.Event, error)
	Create(ctx context.Context, event *domain.Event) error
	Update(ctx context.Context, event *domain.Event) (*domain.Event, error)
	Release(ctx context.Context, eventID string, quantity int) error
}

type PGEventRepository struct {
	db *pgxpool.Pool
}

func NewEventRepository(db *pgxpool.Pool) EventRepository {
	return &PGEventRepository{db: db}
}

const eventColumns = `id, title, description, occurs_at, unit_price_cents, capacity, reserved, active, created_at, updated_at`

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var e domain.Event
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &e.OccursAt, &e.UnitPriceCents, &e.Capacity, &e.Reserved, &e.Active, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *PGEventRepository) List(ctx context.Context) ([]domain.Event, error) {
	rows, err := r.db.Query(ctx, `SELECT `+eventColumns+` FROM events WHERE active AND occurs_at > now() ORDER BY occurs_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]domain.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (r *PGEventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (r *PGEventRepository) Create(ctx context.Context, event *domain.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	return r.db.QueryRow(ctx, `INSERT INTO events (id, title, description, occurs_at, unit_price_cents, capacity, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING reserved, created_at, updated_at`,
		event.ID, event.Title, event.Description, event.OccursAt, event.UnitPriceCents, event.Capacity, event.Active).
		Scan(&event.Reserved, &event.CreatedAt, &event.UpdatedAt)
}

func (r *PGEventRepository) Update(ctx context.Context, event *domain.Event) (*domain.Event, error) {
	row := r.db.QueryRow(ctx, `UPDATE events SET title=$2, description=$3, occurs_at=$4, unit_price_cents=$5, capacity=$6, active=$7, updated_at=now()
		WHERE id=$1 AND $6 >= reserved
		RETURNING `+eventColumns, event.ID, event.Title, event.Description, event.OccursAt, event.UnitPriceCents, event.Capacity, event.Active)
	updated, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: capacity below reserved count or event missing", domain.ErrValidation)
		}
		return nil, err
	}
	return updated, nil
}

// Release returns quantity tickets to the event's pool. The reservation
// status guard makes each reservation release at most once; the reserved
// floor here is a backstop so a replayed release can never drive the
// counter negative.
func (r *PGEventRepository) Release(ctx context.Context, eventID string, quantity int) error {
	cmd, err := r.db.Exec(ctx, `UPDATE events SET reserved = reserved - $2, updated_at = now() WHERE id=$1 AND reserved >= $2`, eventID, quantity)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("release %d tickets for event %s: %w", quantity, eventID, domain.ErrNotFound)
	}
	return nil
}

// reserveTx atomically claims quantity tickets inside tx. The increment,
// the capacity bound, the active flag, and the occurrence-time check are a
// single conditional UPDATE so concurrent reservations can never oversell.
func reserveTx(ctx context.Context, tx pgx.Tx, eventID string, quantity int) (*domain.Event, error) {
	row := tx.QueryRow(ctx, `UPDATE events SET reserved = reserved + $2, updated_at = now()
		WHERE id=$1 AND active AND occurs_at > now() AND reserved + $2 <= capacity
		RETURNING `+eventColumns, eventID, quantity)
	e, err := scanEvent(row)
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	return nil, classifyReserveFailure(ctx, tx, eventID)
}

// classifyReserveFailure re-reads the event to say why the conditional
// reserve matched no row.
func classifyReserveFailure(ctx context.Context, tx pgx.Tx, eventID string) error {
	var (
		capacity, reserved int
		active             bool
		occursAt           time.Time
	)
	err := tx.QueryRow(ctx, `SELECT capacity, reserved, active, occurs_at FROM events WHERE id=$1`, eventID).
		Scan(&capacity, &reserved, &active, &occursAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}
	switch {
	case !active:
		return domain.ErrEventInactive
	case !occursAt.After(time.Now()):
		return domain.ErrEventPast
	default:
		return domain.ErrSoldOut
	}
}

var _ EventRepository = (*PGEventRepository)(nil)
