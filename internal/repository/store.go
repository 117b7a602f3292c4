package repository

import (
	"context"

	"festival-booking/internal/model"
)

// Store 是活動、訂票紀錄與留言的持久化協作者。
// 讀取方法不上鎖，可能讀到稍舊的資料；所有庫存異動都必須透過 WithEventLock。
type Store interface {
	CreateEvent(ctx context.Context, event *model.Event) (*model.Event, error)
	FindEvent(ctx context.Context, id string) (*model.Event, error)
	ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, error)
	ListCountries(ctx context.Context) ([]string, error)

	FindBooking(ctx context.Context, id string) (*model.Booking, error)
	ListBookingsForEvent(ctx context.Context, eventID string) ([]*model.Booking, error)
	ListBookingsForUser(ctx context.Context, userRef string) ([]*model.Booking, error)
	SumConfirmedQuantity(ctx context.Context, eventID string) (int, error)

	CreateComment(ctx context.Context, comment *model.Comment) (*model.Comment, error)
	ListCommentsForEvent(ctx context.Context, eventID string) ([]*model.Comment, error)

	// WithEventLock runs fn inside the exclusive write scope of eventID.
	// Writes made through tx are applied together when fn returns nil and
	// discarded otherwise. Returns ErrEventNotFound if the event does not exist.
	WithEventLock(ctx context.Context, eventID string, fn func(tx EventTx) error) error

	Close() error
}

// EventTx 單一活動的寫入範圍，只能在 WithEventLock 的 fn 內使用
type EventTx interface {
	// LoadEvent 鎖內讀取活動最新狀態
	LoadEvent(ctx context.Context) (*model.Event, error)
	SaveEvent(ctx context.Context, event *model.Event) error
	LoadBookings(ctx context.Context) ([]*model.Booking, error)
	FindBooking(ctx context.Context, bookingID string) (*model.Booking, error)
	AppendBooking(ctx context.Context, booking *model.Booking) error
	UpdateBooking(ctx context.Context, booking *model.Booking) error
	SumConfirmedQuantity(ctx context.Context) (int, error)
	// DeleteEvent 連同訂票紀錄與留言一起刪除
	DeleteEvent(ctx context.Context) error
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*JSONFileStore)(nil)
)
