package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/velmostra/stagegate/internal/domain"
	"github.com/velmostra/stagegate/internal/repository"
)

type EventUseCase interface {
	List(ctx context.Context) ([]domain.Event, error)
	GetByID(ctx context.Context, id string) (*domain.Event, error)
	CreateEvent(ctx context.Context, input EventInput) (*domain.Event, error)
	UpdateEvent(ctx context.Context, id string, input EventInput) (*domain.Event, error)
}

type Cache interface {
	GetEvents(ctx context.Context) ([]domain.Event, error)
	SetEvents(ctx context.Context, events []domain.Event) error
	InvalidateEvents(ctx context.Context) error
}

type EventInput struct {
	Title          string
	Description    string
	OccursAt       time.Time
	UnitPriceCents int64
	Capacity       int
	Active         bool
}

type EventService struct {
	repo  repository.EventRepository
	cache Cache
}

func NewEventService(repo repository.EventRepository, cache Cache) *EventService {
	return &EventService{repo: repo, cache: cache}
}

func (s *EventService) List(ctx context.Context) ([]domain.Event, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetEvents(ctx); err == nil && cached != nil {
			return cached, nil
		}
	}

	events, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.SetEvents(ctx, events)
	}
	return events, nil
}

func (s *EventService) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *EventService) CreateEvent(ctx context.Context, input EventInput) (*domain.Event, error) {
	if err := validateEventInput(input); err != nil {
		return nil, err
	}
	event := &domain.Event{
		Title:          strings.TrimSpace(input.Title),
		Description:    input.Description,
		OccursAt:       input.OccursAt,
		UnitPriceCents: input.UnitPriceCents,
		Capacity:       input.Capacity,
		Active:         input.Active,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return event, nil
}

func (s *EventService) UpdateEvent(ctx context.Context, id string, input EventInput) (*domain.Event, error) {
	if err := validateEventInput(input); err != nil {
		return nil, err
	}
	updated, err := s.repo.Update(ctx, &domain.Event{
		ID:             id,
		Title:          strings.TrimSpace(input.Title),
		Description:    input.Description,
		OccursAt:       input.OccursAt,
		UnitPriceCents: input.UnitPriceCents,
		Capacity:       input.Capacity,
		Active:         input.Active,
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return updated, nil
}

func (s *EventService) invalidate(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.InvalidateEvents(ctx)
	}
}

func validateEventInput(input EventInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return fmt.Errorf("%w: event title is required", domain.ErrValidation)
	}
	if input.Capacity < 1 {
		return fmt.Errorf("%w: capacity must be at least 1", domain.ErrValidation)
	}
	if input.UnitPriceCents < 0 {
		return fmt.Errorf("%w: ticket price must not be negative", domain.ErrValidation)
	}
	if input.OccursAt.IsZero() {
		return fmt.Errorf("%w: event date is required", domain.ErrValidation)
	}
	return nil
}

var _ EventUseCase = (*EventService)(nil)
