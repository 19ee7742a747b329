package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/velmostra/stagegate/internal/domain"
)

type DiscountRepository interface {
	GetByCode(ctx context.Context, code string) (*domain.Discount, error)
	HasRedeemed(ctx context.Context, discountID, buyerID string) (bool, error)
	// Redeem records that buyerID used the discount. Re-recording the same
	// pair is a no-op, which makes redemption safe to replay.
	Redeem(ctx context.Context, discountID, buyerID string) error
	Create(ctx context.Context, discount *domain.Discount) error
	Update(ctx context.Context, discount *domain.Discount) (*domain.Discount, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]domain.Discount, error)
}

type PGDiscountRepository struct {
	db *pgxpool.Pool
}

func NewDiscountRepository(db *pgxpool.Pool) DiscountRepository {
	return &PGDiscountRepository{db: db}
}

const discountColumns = `d.id, d.code, d.kind, d.value, d.active, d.valid_from, d.valid_until, d.description, d.created_at, d.updated_at`

func scanDiscount(row pgx.Row, withRedemptions bool) (*domain.Discount, error) {
	var d domain.Discount
	dest := []interface{}{&d.ID, &d.Code, &d.Kind, &d.Value, &d.Active, &d.ValidFrom, &d.ValidUntil, &d.Description, &d.CreatedAt, &d.UpdatedAt}
	if withRedemptions {
		dest = append(dest, &d.Redemptions)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *PGDiscountRepository) GetByCode(ctx context.Context, code string) (*domain.Discount, error) {
	row := r.db.QueryRow(ctx, `SELECT `+discountColumns+` FROM discounts d WHERE d.code=$1`, strings.ToUpper(strings.TrimSpace(code)))
	d, err := scanDiscount(row, false)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

func (r *PGDiscountRepository) HasRedeemed(ctx context.Context, discountID, buyerID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM discount_redemptions WHERE discount_id=$1 AND buyer_id=$2)`, discountID, buyerID).Scan(&exists)
	return exists, err
}

func (r *PGDiscountRepository) Redeem(ctx context.Context, discountID, buyerID string) error {
	// Add-if-absent in a single statement; the primary key on
	// (discount_id, buyer_id) enforces single use per buyer.
	_, err := r.db.Exec(ctx, `INSERT INTO discount_redemptions (discount_id, buyer_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, discountID, buyerID)
	return err
}

func (r *PGDiscountRepository) Create(ctx context.Context, discount *domain.Discount) error {
	if discount.ID == "" {
		discount.ID = uuid.NewString()
	}
	discount.Code = strings.ToUpper(strings.TrimSpace(discount.Code))
	return r.db.QueryRow(ctx, `INSERT INTO discounts (id, code, kind, value, active, valid_from, valid_until, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		discount.ID, discount.Code, discount.Kind, discount.Value, discount.Active, discount.ValidFrom, discount.ValidUntil, discount.Description).
		Scan(&discount.CreatedAt, &discount.UpdatedAt)
}

func (r *PGDiscountRepository) Update(ctx context.Context, discount *domain.Discount) (*domain.Discount, error) {
	row := r.db.QueryRow(ctx, `UPDATE discounts d SET kind=$2, value=$3, active=$4, valid_from=$5, valid_until=$6, description=$7, updated_at=now()
		WHERE d.id=$1
		RETURNING `+discountColumns,
		discount.ID, discount.Kind, discount.Value, discount.Active, discount.ValidFrom, discount.ValidUntil, discount.Description)
	updated, err := scanDiscount(row, false)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return updated, nil
}

func (r *PGDiscountRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM discounts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PGDiscountRepository) List(ctx context.Context) ([]domain.Discount, error) {
	rows, err := r.db.Query(ctx, `SELECT `+discountColumns+`,
		(SELECT count(*) FROM discount_redemptions dr WHERE dr.discount_id = d.id) AS redemptions
		FROM discounts d ORDER BY d.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	discounts := make([]domain.Discount, 0)
	for rows.Next() {
		d, err := scanDiscount(rows, true)
		if err != nil {
			return nil, err
		}
		discounts = append(discounts, *d)
	}
	return discounts, rows.Err()
}

var _ DiscountRepository = (*PGDiscountRepository)(nil)
