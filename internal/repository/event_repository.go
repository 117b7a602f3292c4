package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"festival-booking/internal/model"
	apperrors "festival-booking/pkg/app_errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier 同時由 *pgxpool.Pool 與 pgx.Tx 實作，讓同一個查詢可以在交易內外使用
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type EventRepository interface {
	Create(ctx context.Context, event *model.Event) (*model.Event, error)
	List(ctx context.Context, filter model.EventFilter) ([]*model.Event, error)
	Countries(ctx context.Context) ([]string, error)
	FindByID(ctx context.Context, id string) (*model.Event, error)

	// Transaction methods
	FindByIDWithLock(ctx context.Context, tx pgx.Tx, id string) (*model.Event, error)
	Save(ctx context.Context, tx pgx.Tx, event *model.Event) error
	Delete(ctx context.Context, tx pgx.Tx, id string) error
}

type EventRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) EventRepository {
	return &EventRepositoryImpl{
		pool: pool,
	}
}

const eventColumns = `id, title, description, venue, country, cuisines, image_url, owner_ref,
		capacity, sold, start_at, cancelled, created_at, updated_at`

func scanEvent(row pgx.Row) (*model.Event, error) {
	var event model.Event
	err := row.Scan(
		&event.ID,
		&event.Title,
		&event.Description,
		&event.Venue,
		&event.Country,
		&event.Cuisines,
		&event.ImageURL,
		&event.OwnerRef,
		&event.Capacity,
		&event.Sold,
		&event.StartAt,
		&event.Cancelled,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrEventNotFound
		}
		return nil, err
	}
	return &event, nil
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func (r *EventRepositoryImpl) Create(ctx context.Context, event *model.Event) (*model.Event, error) {
	query := `
		INSERT INTO events (id, title, description, venue, country, cuisines, image_url, owner_ref,
			capacity, sold, start_at, cancelled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING ` + eventColumns

	created, err := scanEvent(r.pool.QueryRow(ctx, query,
		event.ID, event.Title, event.Description, event.Venue, event.Country,
		nonNilStrings(event.Cuisines), event.ImageURL, event.OwnerRef,
		event.Capacity, event.Sold, event.StartAt, event.Cancelled,
		event.CreatedAt, event.UpdatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return created, nil
}

func (r *EventRepositoryImpl) List(ctx context.Context, filter model.EventFilter) ([]*model.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE ($1 = '' OR country = $1)
		  AND ($2 = '' OR position(lower($2) IN lower(
				title || ' ' || description || ' ' || array_to_string(cuisines, ',') || ' ' ||
				venue || ' ' || country)) > 0)
		ORDER BY start_at ASC, created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, filter.Country, filter.Query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]*model.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *EventRepositoryImpl) Countries(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT country
		FROM events
		WHERE country <> ''
		ORDER BY country
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	countries := make([]string, 0)
	for rows.Next() {
		var country string
		if err := rows.Scan(&country); err != nil {
			return nil, err
		}
		countries = append(countries, country)
	}
	return countries, rows.Err()
}

func (r *EventRepositoryImpl) FindByID(ctx context.Context, id string) (*model.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE id = $1
	`
	return scanEvent(r.pool.QueryRow(ctx, query, id))
}

func (r *EventRepositoryImpl) FindByIDWithLock(ctx context.Context, tx pgx.Tx, id string) (*model.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE id = $1
		FOR UPDATE
	`
	return scanEvent(tx.QueryRow(ctx, query, id))
}

func (r *EventRepositoryImpl) Save(ctx context.Context, tx pgx.Tx, event *model.Event) error {
	query := `
		UPDATE events
		SET title = $1, description = $2, venue = $3, country = $4, cuisines = $5,
			image_url = $6, capacity = $7, sold = $8, start_at = $9, cancelled = $10,
			updated_at = $11
		WHERE id = $12
	`

	if event.UpdatedAt.IsZero() {
		event.UpdatedAt = time.Now().UTC()
	}

	result, err := tx.Exec(ctx, query,
		event.Title, event.Description, event.Venue, event.Country, nonNilStrings(event.Cuisines),
		event.ImageURL, event.Capacity, event.Sold, event.StartAt, event.Cancelled,
		event.UpdatedAt, event.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrEventNotFound
	}

	return nil
}

func (r *EventRepositoryImpl) Delete(ctx context.Context, tx pgx.Tx, id string) error {
	result, err := tx.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return apperrors.ErrEventNotFound
	}

	return nil
}
