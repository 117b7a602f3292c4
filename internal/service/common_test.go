package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"festival-booking/internal/cache"
	"festival-booking/internal/model"
	"festival-booking/internal/queue"
	"festival-booking/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// recordingQueue 記錄發出的事件，不實際投遞
type recordingQueue struct {
	mu     sync.Mutex
	events []*model.BookingEvent
}

func (q *recordingQueue) Publish(ctx context.Context, event *model.BookingEvent) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, event)
	return nil
}

func (q *recordingQueue) Subscribe(ctx context.Context) (<-chan queue.Delivery, error) {
	return nil, errors.New("recording queue cannot be consumed")
}

func (q *recordingQueue) Close() error { return nil }

func (q *recordingQueue) published() []*model.BookingEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*model.BookingEvent(nil), q.events...)
}

func (q *recordingQueue) ofType(t model.BookingEventType) []*model.BookingEvent {
	var out []*model.BookingEvent
	for _, e := range q.published() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	store     *repository.JSONFileStore
	queue     *recordingQueue
	inventory *InventoryServiceImpl
	events    *EventServiceImpl
	comments  *CommentServiceImpl
}

func newTestEnv(t *testing.T, inventoryCache cache.InventoryCache) *testEnv {
	t.Helper()
	store := repository.NewMemoryStore()
	q := &recordingQueue{}

	inventory := NewInventoryService(store, inventoryCache, q).(*InventoryServiceImpl)
	inventory.now = fixedClock
	events := NewEventService(store, inventory, q).(*EventServiceImpl)
	events.now = fixedClock
	comments := NewCommentService(store).(*CommentServiceImpl)
	comments.now = fixedClock

	return &testEnv{store: store, queue: q, inventory: inventory, events: events, comments: comments}
}

// seedEvent 直接寫入 store 的活動
func (e *testEnv) seedEvent(t *testing.T, capacity int, startAt time.Time, owner string) *model.Event {
	t.Helper()
	event, err := e.store.CreateEvent(context.Background(), &model.Event{
		ID:          uuid.New().String(),
		Title:       "Street Food Night",
		Description: "Open-air food market",
		Venue:       "Harbour Square",
		Country:     "Taiwan",
		Cuisines:    []string{"Taiwanese"},
		OwnerRef:    owner,
		Capacity:    capacity,
		StartAt:     startAt,
		CreatedAt:   testNow.Add(-time.Hour),
		UpdatedAt:   testNow.Add(-time.Hour),
	})
	require.NoError(t, err)
	return event
}

// corruptSold 模擬資料不一致
func (e *testEnv) corruptSold(t *testing.T, eventID string, sold int) {
	t.Helper()
	ctx := context.Background()
	err := e.store.WithEventLock(ctx, eventID, func(tx repository.EventTx) error {
		event, err := tx.LoadEvent(ctx)
		if err != nil {
			return err
		}
		event.Sold = sold
		return tx.SaveEvent(ctx, event)
	})
	require.NoError(t, err)
}

func (e *testEnv) currentEvent(t *testing.T, eventID string) *model.Event {
	t.Helper()
	event, err := e.store.FindEvent(context.Background(), eventID)
	require.NoError(t, err)
	return event
}
