package service

import (
	"context"
	"fmt"
	"strings"

	"festival-booking/internal/model"
	"festival-booking/internal/queue"
	"festival-booking/internal/repository"
	apperrors "festival-booking/pkg/app_errors"

	"github.com/google/uuid"
)

type EventService interface {
	Create(ctx context.Context, params model.CreateEventParams) (*model.Event, error)
	// List 依開始時間排序，附帶即時狀態
	List(ctx context.Context, filter model.EventFilter) ([]model.EventView, error)
	Countries(ctx context.Context) ([]string, error)
	Get(ctx context.Context, eventID string) (*model.EventDetail, error)
	// Update 部分更新；容量不能低於已售出
	Update(ctx context.Context, eventID, userRef string, params model.UpdateEventParams) (*model.Event, error)
	// Cancel 單向取消，已有的訂票保留
	Cancel(ctx context.Context, eventID, userRef string) (*model.Event, error)
}

type EventServiceImpl struct {
	store     repository.Store
	inventory InventoryService
	publisher publisher
	now       Clock
}

func NewEventService(store repository.Store, inventory InventoryService, eventQueue queue.BookingEventQueue) EventService {
	return &EventServiceImpl{
		store:     store,
		inventory: inventory,
		publisher: publisher{queue: eventQueue},
		now:       systemClock,
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrInvalidInput, fmt.Sprintf(format, args...))
}

func cleanCuisines(cuisines []string) []string {
	cleaned := make([]string, 0, len(cuisines))
	for _, c := range cuisines {
		if c = strings.TrimSpace(c); c != "" {
			cleaned = append(cleaned, c)
		}
	}
	return cleaned
}

func (s *EventServiceImpl) Create(ctx context.Context, params model.CreateEventParams) (*model.Event, error) {
	required := []struct {
		name  string
		value string
	}{
		{"title", params.Title},
		{"description", params.Description},
		{"venue", params.Venue},
		{"country", params.Country},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return nil, invalid("%s is required", f.name)
		}
	}
	if params.Capacity < 0 {
		return nil, invalid("capacity must not be negative")
	}
	if params.StartAt.IsZero() {
		return nil, invalid("start_at is required")
	}

	now := stamp(s.now())
	event := &model.Event{
		ID:          uuid.New().String(),
		Title:       strings.TrimSpace(params.Title),
		Description: strings.TrimSpace(params.Description),
		Venue:       strings.TrimSpace(params.Venue),
		Country:     strings.TrimSpace(params.Country),
		Cuisines:    cleanCuisines(params.Cuisines),
		ImageURL:    strings.TrimSpace(params.ImageURL),
		OwnerRef:    strings.TrimSpace(params.OwnerRef),
		Capacity:    params.Capacity,
		Sold:        0,
		StartAt:     stamp(params.StartAt),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	return s.store.CreateEvent(ctx, event)
}

func (s *EventServiceImpl) List(ctx context.Context, filter model.EventFilter) ([]model.EventView, error) {
	filter.Country = strings.TrimSpace(filter.Country)
	filter.Query = strings.TrimSpace(filter.Query)

	events, err := s.store.ListEvents(ctx, filter)
	if err != nil {
		return nil, err
	}

	now := s.now()
	views := make([]model.EventView, 0, len(events))
	for _, e := range events {
		views = append(views, model.NewEventView(e, now))
	}
	return views, nil
}

func (s *EventServiceImpl) Countries(ctx context.Context) ([]string, error) {
	return s.store.ListCountries(ctx)
}

func (s *EventServiceImpl) Get(ctx context.Context, eventID string) (*model.EventDetail, error) {
	event, err := s.store.FindEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.IntegrityViolated() && s.inventory != nil {
		if event, err = s.inventory.Reconcile(ctx, eventID); err != nil {
			return nil, err
		}
	}

	comments, err := s.store.ListCommentsForEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	return &model.EventDetail{
		EventView: model.NewEventView(event, s.now()),
		Comments:  comments,
	}, nil
}

func validateUpdate(params model.UpdateEventParams) error {
	if params.IsEmpty() {
		return invalid("nothing to update")
	}
	fields := []struct {
		name  string
		value *string
	}{
		{"title", params.Title},
		{"description", params.Description},
		{"venue", params.Venue},
		{"country", params.Country},
	}
	for _, f := range fields {
		if f.value != nil && strings.TrimSpace(*f.value) == "" {
			return invalid("%s must not be empty", f.name)
		}
	}
	if params.Capacity != nil && *params.Capacity < 0 {
		return invalid("capacity must not be negative")
	}
	if params.StartAt != nil && params.StartAt.IsZero() {
		return invalid("start_at must not be empty")
	}
	return nil
}

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}

func (s *EventServiceImpl) Update(ctx context.Context, eventID, userRef string, params model.UpdateEventParams) (*model.Event, error) {
	if err := validateUpdate(params); err != nil {
		return nil, err
	}
	params.Title = trimPtr(params.Title)
	params.Description = trimPtr(params.Description)
	params.Venue = trimPtr(params.Venue)
	params.Country = trimPtr(params.Country)
	params.ImageURL = trimPtr(params.ImageURL)
	if params.Cuisines != nil {
		params.Cuisines = cleanCuisines(params.Cuisines)
	}
	if params.StartAt != nil {
		startAt := stamp(*params.StartAt)
		params.StartAt = &startAt
	}

	var updated *model.Event
	err := s.store.WithEventLock(ctx, eventID, func(tx repository.EventTx) error {
		event, err := tx.LoadEvent(ctx)
		if err != nil {
			return err
		}
		if !event.IsOwnedBy(userRef) {
			return apperrors.ErrForbidden
		}
		// 容量低於已售出直接拒絕，不做自動調整
		if params.Capacity != nil && *params.Capacity < event.Sold {
			return fmt.Errorf("%w: capacity %d, sold %d", apperrors.ErrCapacityBelowSold, *params.Capacity, event.Sold)
		}

		params.Apply(event)
		touch(event, s.now())
		if err := tx.SaveEvent(ctx, event); err != nil {
			return err
		}
		updated = event
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.publish(ctx, &model.BookingEvent{
		Type:       model.BookingEventInventory,
		EventID:    updated.ID,
		UserRef:    userRef,
		OccurredAt: updated.UpdatedAt,
	})
	return updated, nil
}

func (s *EventServiceImpl) Cancel(ctx context.Context, eventID, userRef string) (*model.Event, error) {
	var (
		event   *model.Event
		changed bool
	)
	err := s.store.WithEventLock(ctx, eventID, func(tx repository.EventTx) error {
		e, err := tx.LoadEvent(ctx)
		if err != nil {
			return err
		}
		if !e.IsOwnedBy(userRef) {
			return apperrors.ErrForbidden
		}
		event = e
		if event.Cancelled {
			return nil
		}

		event.Cancelled = true
		touch(event, s.now())
		changed = true
		return tx.SaveEvent(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.publisher.publish(ctx, &model.BookingEvent{
			Type:       model.BookingEventInventory,
			EventID:    event.ID,
			UserRef:    userRef,
			OccurredAt: event.UpdatedAt,
		})
	}
	return event, nil
}
