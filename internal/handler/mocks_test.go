package handler

import (
	"context"

	"festival-booking/internal/model"

	"github.com/stretchr/testify/mock"
)

type eventServiceMock struct {
	mock.Mock
}

func (m *eventServiceMock) Create(ctx context.Context, params model.CreateEventParams) (*model.Event, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Event), args.Error(1)
}

func (m *eventServiceMock) List(ctx context.Context, filter model.EventFilter) ([]model.EventView, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.EventView), args.Error(1)
}

func (m *eventServiceMock) Countries(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *eventServiceMock) Get(ctx context.Context, eventID string) (*model.EventDetail, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.EventDetail), args.Error(1)
}

func (m *eventServiceMock) Update(ctx context.Context, eventID, userRef string, params model.UpdateEventParams) (*model.Event, error) {
	args := m.Called(ctx, eventID, userRef, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Event), args.Error(1)
}

func (m *eventServiceMock) Cancel(ctx context.Context, eventID, userRef string) (*model.Event, error) {
	args := m.Called(ctx, eventID, userRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Event), args.Error(1)
}

type inventoryServiceMock struct {
	mock.Mock
}

func (m *inventoryServiceMock) Status(ctx context.Context, eventID string) (model.StatusResponse, error) {
	args := m.Called(ctx, eventID)
	return args.Get(0).(model.StatusResponse), args.Error(1)
}

func (m *inventoryServiceMock) DisplayStatus(ctx context.Context, eventID string) (model.StatusResponse, error) {
	args := m.Called(ctx, eventID)
	return args.Get(0).(model.StatusResponse), args.Error(1)
}

func (m *inventoryServiceMock) CanBook(ctx context.Context, eventID string, quantity int) (bool, error) {
	args := m.Called(ctx, eventID, quantity)
	return args.Bool(0), args.Error(1)
}

func (m *inventoryServiceMock) ApplyBooking(ctx context.Context, eventID, userRef string, quantity int) (*model.Booking, error) {
	args := m.Called(ctx, eventID, userRef, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *inventoryServiceMock) CancelBooking(ctx context.Context, bookingID, userRef string) (*model.Booking, error) {
	args := m.Called(ctx, bookingID, userRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Booking), args.Error(1)
}

func (m *inventoryServiceMock) DeleteEvent(ctx context.Context, eventID, userRef string) error {
	args := m.Called(ctx, eventID, userRef)
	return args.Error(0)
}

func (m *inventoryServiceMock) Reconcile(ctx context.Context, eventID string) (*model.Event, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Event), args.Error(1)
}

func (m *inventoryServiceMock) ReconcileAll(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *inventoryServiceMock) ListForEvent(ctx context.Context, eventID string) ([]*model.Booking, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Booking), args.Error(1)
}

func (m *inventoryServiceMock) ListForUser(ctx context.Context, userRef string) ([]*model.Booking, error) {
	args := m.Called(ctx, userRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Booking), args.Error(1)
}

func (m *inventoryServiceMock) HandleBookingEvent(ctx context.Context, event *model.BookingEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type commentServiceMock struct {
	mock.Mock
}

func (m *commentServiceMock) Post(ctx context.Context, eventID, userRef, authorName, text string) (*model.Comment, error) {
	args := m.Called(ctx, eventID, userRef, authorName, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Comment), args.Error(1)
}

func (m *commentServiceMock) ListForEvent(ctx context.Context, eventID string) ([]*model.Comment, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Comment), args.Error(1)
}
