package repository

import (
	"context"
	"errors"
	"fmt"

	"festival-booking/internal/model"
	apperrors "festival-booking/pkg/app_errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BookingRepository 訂票帳本：只新增與改狀態，除了刪除活動以外不會刪資料
type BookingRepository interface {
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindByEventID(ctx context.Context, q Querier, eventID string) ([]*model.Booking, error)
	FindByUserRef(ctx context.Context, userRef string) ([]*model.Booking, error)
	SumConfirmedQuantity(ctx context.Context, q Querier, eventID string) (int, error)

	// Transaction methods
	Create(ctx context.Context, tx pgx.Tx, booking *model.Booking) error
	FindByIDWithLock(ctx context.Context, tx pgx.Tx, id string) (*model.Booking, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, booking *model.Booking) error
	DeleteByEventID(ctx context.Context, tx pgx.Tx, eventID string) error
}

type BookingRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) BookingRepository {
	return &BookingRepositoryImpl{
		pool: pool,
	}
}

const bookingColumns = `id, event_id, user_ref, quantity, status, created_at, cancelled_at`

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var booking model.Booking
	err := row.Scan(
		&booking.ID,
		&booking.EventID,
		&booking.UserRef,
		&booking.Quantity,
		&booking.Status,
		&booking.CreatedAt,
		&booking.CancelledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func collectBookings(rows pgx.Rows) ([]*model.Booking, error) {
	defer rows.Close()

	bookings := make([]*model.Booking, 0)
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return bookings, nil
}

func (r *BookingRepositoryImpl) Create(ctx context.Context, tx pgx.Tx, booking *model.Booking) error {
	query := `
		INSERT INTO bookings (id, event_id, user_ref, quantity, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := tx.Exec(ctx, query,
		booking.ID, booking.EventID, booking.UserRef, booking.Quantity, booking.Status, booking.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	return nil
}

func (r *BookingRepositoryImpl) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE id = $1
	`
	return scanBooking(r.pool.QueryRow(ctx, query, id))
}

func (r *BookingRepositoryImpl) FindByIDWithLock(ctx context.Context, tx pgx.Tx, id string) (*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE id = $1
		FOR UPDATE
	`
	return scanBooking(tx.QueryRow(ctx, query, id))
}

func (r *BookingRepositoryImpl) FindByEventID(ctx context.Context, q Querier, eventID string) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE event_id = $1
		ORDER BY created_at ASC, seq ASC
	`

	rows, err := q.Query(ctx, query, eventID)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (r *BookingRepositoryImpl) FindByUserRef(ctx context.Context, userRef string) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE user_ref = $1
		ORDER BY created_at DESC, seq DESC
	`

	rows, err := r.pool.Query(ctx, query, userRef)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (r *BookingRepositoryImpl) UpdateStatus(ctx context.Context, tx pgx.Tx, booking *model.Booking) error {
	query := `
		UPDATE bookings
		SET status = $1, cancelled_at = $2
		WHERE id = $3
	`

	result, err := tx.Exec(ctx, query, booking.Status, booking.CancelledAt, booking.ID)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrBookingNotFound
	}

	return nil
}

func (r *BookingRepositoryImpl) SumConfirmedQuantity(ctx context.Context, q Querier, eventID string) (int, error) {
	query := `
		SELECT COALESCE(SUM(quantity), 0)
		FROM bookings
		WHERE event_id = $1
		  AND status = $2
	`

	var totalQuantity int
	err := q.QueryRow(ctx, query, eventID, model.BookingStatusConfirmed).Scan(&totalQuantity)
	if err != nil {
		return 0, err
	}

	return totalQuantity, nil
}

func (r *BookingRepositoryImpl) DeleteByEventID(ctx context.Context, tx pgx.Tx, eventID string) error {
	_, err := tx.Exec(ctx, `DELETE FROM bookings WHERE event_id = $1`, eventID)
	return err
}
