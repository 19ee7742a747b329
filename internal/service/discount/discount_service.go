package discount

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/velmostra/stagegate/internal/domain"
	"github.com/velmostra/stagegate/internal/repository"
)

type DiscountUseCase interface {
	Quote(ctx context.Context, code, buyerID string, subtotalCents int64) (*Quote, error)
	Redeem(ctx context.Context, code, buyerID string) error
	CreateDiscount(ctx context.Context, input CreateDiscountInput) (*domain.Discount, error)
	UpdateDiscount(ctx context.Context, input UpdateDiscountInput) (*domain.Discount, error)
	DeleteDiscount(ctx context.Context, id string) error
	ListDiscounts(ctx context.Context) ([]domain.Discount, error)
}

// Quote is the computed effect of a discount on a subtotal. Producing a
// quote never consumes the buyer's single-use right; that happens only when
// the reservation is confirmed paid.
type Quote struct {
	Code          string
	Kind          domain.DiscountKind
	Value         float64
	DiscountCents int64
	FinalCents    int64
}

type CreateDiscountInput struct {
	Code        string
	Kind        domain.DiscountKind
	Value       float64
	Active      bool
	ValidFrom   time.Time
	ValidUntil  *time.Time
	Description string
}

type UpdateDiscountInput struct {
	ID          string
	Kind        domain.DiscountKind
	Value       float64
	Active      bool
	ValidFrom   time.Time
	ValidUntil  *time.Time
	Description string
}

type DiscountService struct {
	discounts repository.DiscountRepository
}

func NewDiscountService(discounts repository.DiscountRepository) *DiscountService {
	return &DiscountService{discounts: discounts}
}

func (s *DiscountService) Quote(ctx context.Context, code, buyerID string, subtotalCents int64) (*Quote, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: discount code is required", domain.ErrValidation)
	}
	if subtotalCents < 0 {
		return nil, fmt.Errorf("%w: subtotal must not be negative", domain.ErrValidation)
	}

	d, err := s.discounts.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !d.Active {
		return nil, domain.ErrDiscountDisabled
	}
	if !d.WithinWindow(time.Now()) {
		return nil, domain.ErrDiscountNotActive
	}

	used, err := s.discounts.HasRedeemed(ctx, d.ID, buyerID)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, domain.ErrDiscountUsed
	}

	discountCents, finalCents := d.Apply(subtotalCents)
	return &Quote{
		Code:          d.Code,
		Kind:          d.Kind,
		Value:         d.Value,
		DiscountCents: discountCents,
		FinalCents:    finalCents,
	}, nil
}

// Redeem marks the discount used by the buyer. Replaying the call for the
// same pair is a no-op, which keeps the poll/callback confirmation race
// from double-counting a redemption.
func (s *DiscountService) Redeem(ctx context.Context, code, buyerID string) error {
	d, err := s.discounts.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	return s.discounts.Redeem(ctx, d.ID, buyerID)
}

func (s *DiscountService) CreateDiscount(ctx context.Context, input CreateDiscountInput) (*domain.Discount, error) {
	if err := validateDiscountValue(input.Kind, input.Value); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Code) == "" {
		return nil, fmt.Errorf("%w: discount code is required", domain.ErrValidation)
	}

	validFrom := input.ValidFrom
	if validFrom.IsZero() {
		validFrom = time.Now()
	}

	d := &domain.Discount{
		Code:        input.Code,
		Kind:        input.Kind,
		Value:       input.Value,
		Active:      input.Active,
		ValidFrom:   validFrom,
		ValidUntil:  input.ValidUntil,
		Description: input.Description,
	}
	if err := s.discounts.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *DiscountService) UpdateDiscount(ctx context.Context, input UpdateDiscountInput) (*domain.Discount, error) {
	if err := validateDiscountValue(input.Kind, input.Value); err != nil {
		return nil, err
	}
	return s.discounts.Update(ctx, &domain.Discount{
		ID:          input.ID,
		Kind:        input.Kind,
		Value:       input.Value,
		Active:      input.Active,
		ValidFrom:   input.ValidFrom,
		ValidUntil:  input.ValidUntil,
		Description: input.Description,
	})
}

func (s *DiscountService) DeleteDiscount(ctx context.Context, id string) error {
	return s.discounts.Delete(ctx, id)
}

func (s *DiscountService) ListDiscounts(ctx context.Context) ([]domain.Discount, error) {
	return s.discounts.List(ctx)
}

func validateDiscountValue(kind domain.DiscountKind, value float64) error {
	switch kind {
	case domain.DiscountKindPercentage:
		if value < 0 || value > 100 {
			return fmt.Errorf("%w: percentage value must be between 0 and 100", domain.ErrValidation)
		}
	case domain.DiscountKindFixed:
		if value < 0 {
			return fmt.Errorf("%w: fixed value must not be negative", domain.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: discount kind must be percentage or fixed", domain.ErrValidation)
	}
	return nil
}

var _ DiscountUseCase = (*DiscountService)(nil)
