package repository

import (
	"context"
	"fmt"

	"festival-booking/internal/model"
	apperrors "festival-booking/pkg/app_errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore 以 PostgreSQL 實作 Store，單一活動的寫入範圍是一個 SELECT ... FOR UPDATE 交易
type PostgresStore struct {
	pool     *pgxpool.Pool
	events   EventRepository
	bookings BookingRepository
	comments CommentRepository
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		pool:     pool,
		events:   NewEventRepository(pool),
		bookings: NewBookingRepository(pool),
		comments: NewCommentRepository(pool),
	}
}

func (s *PostgresStore) CreateEvent(ctx context.Context, event *model.Event) (*model.Event, error) {
	return s.events.Create(ctx, event)
}

func (s *PostgresStore) FindEvent(ctx context.Context, id string) (*model.Event, error) {
	return s.events.FindByID(ctx, id)
}

func (s *PostgresStore) ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, error) {
	return s.events.List(ctx, filter)
}

func (s *PostgresStore) ListCountries(ctx context.Context) ([]string, error) {
	return s.events.Countries(ctx)
}

func (s *PostgresStore) FindBooking(ctx context.Context, id string) (*model.Booking, error) {
	return s.bookings.FindByID(ctx, id)
}

func (s *PostgresStore) ListBookingsForEvent(ctx context.Context, eventID string) ([]*model.Booking, error) {
	return s.bookings.FindByEventID(ctx, s.pool, eventID)
}

func (s *PostgresStore) ListBookingsForUser(ctx context.Context, userRef string) ([]*model.Booking, error) {
	return s.bookings.FindByUserRef(ctx, userRef)
}

func (s *PostgresStore) SumConfirmedQuantity(ctx context.Context, eventID string) (int, error) {
	return s.bookings.SumConfirmedQuantity(ctx, s.pool, eventID)
}

func (s *PostgresStore) CreateComment(ctx context.Context, comment *model.Comment) (*model.Comment, error) {
	return s.comments.Create(ctx, comment)
}

func (s *PostgresStore) ListCommentsForEvent(ctx context.Context, eventID string) ([]*model.Comment, error) {
	return s.comments.FindByEventID(ctx, eventID)
}

func (s *PostgresStore) WithEventLock(ctx context.Context, eventID string, fn func(tx EventTx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// 先鎖住活動列，同一活動的其他寫入會在這裡排隊
	event, err := s.events.FindByIDWithLock(ctx, tx, eventID)
	if err != nil {
		return err
	}

	etx := &postgresEventTx{store: s, tx: tx, eventID: eventID, event: event}
	if err := fn(etx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

type postgresEventTx struct {
	store   *PostgresStore
	tx      pgx.Tx
	eventID string
	event   *model.Event
	deleted bool
}

func (t *postgresEventTx) LoadEvent(ctx context.Context) (*model.Event, error) {
	if t.deleted {
		return nil, apperrors.ErrEventNotFound
	}
	return t.event.Clone(), nil
}

func (t *postgresEventTx) SaveEvent(ctx context.Context, event *model.Event) error {
	if t.deleted || event.ID != t.eventID {
		return apperrors.ErrEventNotFound
	}
	if err := t.store.events.Save(ctx, t.tx, event); err != nil {
		return err
	}
	t.event = event.Clone()
	return nil
}

func (t *postgresEventTx) LoadBookings(ctx context.Context) ([]*model.Booking, error) {
	return t.store.bookings.FindByEventID(ctx, t.tx, t.eventID)
}

func (t *postgresEventTx) FindBooking(ctx context.Context, bookingID string) (*model.Booking, error) {
	booking, err := t.store.bookings.FindByIDWithLock(ctx, t.tx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.EventID != t.eventID {
		return nil, apperrors.ErrBookingNotFound
	}
	return booking, nil
}

func (t *postgresEventTx) AppendBooking(ctx context.Context, booking *model.Booking) error {
	if booking.EventID != t.eventID {
		return fmt.Errorf("booking belongs to event %s: %w", booking.EventID, apperrors.ErrInvalidInput)
	}
	return t.store.bookings.Create(ctx, t.tx, booking)
}

func (t *postgresEventTx) UpdateBooking(ctx context.Context, booking *model.Booking) error {
	return t.store.bookings.UpdateStatus(ctx, t.tx, booking)
}

func (t *postgresEventTx) SumConfirmedQuantity(ctx context.Context) (int, error) {
	return t.store.bookings.SumConfirmedQuantity(ctx, t.tx, t.eventID)
}

func (t *postgresEventTx) DeleteEvent(ctx context.Context) error {
	if err := t.store.comments.DeleteByEventID(ctx, t.tx, t.eventID); err != nil {
		return fmt.Errorf("failed to delete comments: %w", err)
	}
	if err := t.store.bookings.DeleteByEventID(ctx, t.tx, t.eventID); err != nil {
		return fmt.Errorf("failed to delete bookings: %w", err)
	}
	if err := t.store.events.Delete(ctx, t.tx, t.eventID); err != nil {
		return err
	}
	t.deleted = true
	return nil
}
