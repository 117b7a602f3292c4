package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"festival-booking/internal/model"
	apperrors "festival-booking/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestEvent(title, country string, capacity int, startAt time.Time) *model.Event {
	return &model.Event{
		ID:        uuid.NewString(),
		Title:     title,
		Venue:     "Riverside Park",
		Country:   country,
		Capacity:  capacity,
		StartAt:   startAt,
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}
}

func newTestBooking(eventID, userRef string, qty int, at time.Time) *model.Booking {
	return &model.Booking{
		ID:        uuid.NewString(),
		EventID:   eventID,
		UserRef:   userRef,
		Quantity:  qty,
		Status:    model.BookingStatusConfirmed,
		CreatedAt: at,
	}
}

// book 模擬 ApplyBooking 的最小流程
func book(s Store, booking *model.Booking) error {
	ctx := context.Background()
	return s.WithEventLock(ctx, booking.EventID, func(tx EventTx) error {
		event, err := tx.LoadEvent(ctx)
		if err != nil {
			return err
		}
		if err := tx.AppendBooking(ctx, booking); err != nil {
			return err
		}
		event.Sold += booking.Quantity
		return tx.SaveEvent(ctx, event)
	})
}

func bookInStore(t *testing.T, s Store, booking *model.Booking) {
	t.Helper()
	require.NoError(t, book(s, booking))
}

func TestJSONFileStore_CreateAndFindEvent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		event := newTestEvent("Taco Fest", "Mexico", 100, baseTime.Add(48*time.Hour))

		created, err := s.CreateEvent(ctx, event)
		require.NoError(t, err)
		assert.Equal(t, event.ID, created.ID)
		assert.NotNil(t, created.Cuisines)

		found, err := s.FindEvent(ctx, event.ID)
		require.NoError(t, err)
		assert.Equal(t, "Taco Fest", found.Title)

		// 回傳的是拷貝
		found.Title = "changed"
		again, _ := s.FindEvent(ctx, event.ID)
		assert.Equal(t, "Taco Fest", again.Title)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := s.FindEvent(ctx, "missing")
		assert.ErrorIs(t, err, apperrors.ErrEventNotFound)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("DuplicateID", func(t *testing.T) {
		event := newTestEvent("Dup", "Japan", 1, baseTime)
		_, err := s.CreateEvent(ctx, event)
		require.NoError(t, err)
		_, err = s.CreateEvent(ctx, event)
		assert.Error(t, err)
	})
}

func TestJSONFileStore_ListEvents(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	late := newTestEvent("Ramen Night", "Japan", 50, baseTime.Add(72*time.Hour))
	late.Cuisines = []string{"Japanese", "Noodles"}
	early := newTestEvent("Sushi Day", "Japan", 50, baseTime.Add(24*time.Hour))
	other := newTestEvent("Paella Party", "Spain", 50, baseTime.Add(48*time.Hour))
	other.Description = "Seafood rice by the sea"

	for _, e := range []*model.Event{late, early, other} {
		_, err := s.CreateEvent(ctx, e)
		require.NoError(t, err)
	}

	t.Run("OrderedByStartAt", func(t *testing.T) {
		events, err := s.ListEvents(ctx, model.EventFilter{})
		require.NoError(t, err)
		require.Len(t, events, 3)
		assert.Equal(t, early.ID, events[0].ID)
		assert.Equal(t, other.ID, events[1].ID)
		assert.Equal(t, late.ID, events[2].ID)
	})

	t.Run("CountryFilter", func(t *testing.T) {
		events, err := s.ListEvents(ctx, model.EventFilter{Country: "Japan"})
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("QueryMatchesCuisineCaseInsensitive", func(t *testing.T) {
		events, err := s.ListEvents(ctx, model.EventFilter{Query: "noodles"})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, late.ID, events[0].ID)
	})

	t.Run("QueryMatchesDescription", func(t *testing.T) {
		events, err := s.ListEvents(ctx, model.EventFilter{Query: "SEAFOOD"})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, other.ID, events[0].ID)
	})

	t.Run("Countries", func(t *testing.T) {
		countries, err := s.ListCountries(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Japan", "Spain"}, countries)
	})
}

func TestJSONFileStore_BookingOrdering(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	event := newTestEvent("BBQ", "USA", 100, baseTime.Add(time.Hour))
	_, err := s.CreateEvent(ctx, event)
	require.NoError(t, err)

	// 同一時間的兩筆以寫入順序決定先後
	first := newTestBooking(event.ID, "alice", 1, baseTime)
	second := newTestBooking(event.ID, "alice", 2, baseTime)
	third := newTestBooking(event.ID, "bob", 3, baseTime.Add(time.Minute))
	for _, b := range []*model.Booking{first, second, third} {
		bookInStore(t, s, b)
	}

	t.Run("ForEventAscending", func(t *testing.T) {
		bookings, err := s.ListBookingsForEvent(ctx, event.ID)
		require.NoError(t, err)
		require.Len(t, bookings, 3)
		assert.Equal(t, []string{first.ID, second.ID, third.ID},
			[]string{bookings[0].ID, bookings[1].ID, bookings[2].ID})
	})

	t.Run("ForUserDescending", func(t *testing.T) {
		bookings, err := s.ListBookingsForUser(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, bookings, 2)
		assert.Equal(t, second.ID, bookings[0].ID)
		assert.Equal(t, first.ID, bookings[1].ID)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		bookings, err := s.ListBookingsForUser(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, bookings)
	})

	t.Run("SumConfirmed", func(t *testing.T) {
		sum, err := s.SumConfirmedQuantity(ctx, event.ID)
		require.NoError(t, err)
		assert.Equal(t, 6, sum)

		found, err := s.FindEvent(ctx, event.ID)
		require.NoError(t, err)
		assert.Equal(t, 6, found.Sold)
	})
}

func TestJSONFileStore_WithEventLock(t *testing.T) {
	ctx := context.Background()

	t.Run("UnknownEvent", func(t *testing.T) {
		s := NewMemoryStore()
		called := false
		err := s.WithEventLock(ctx, "missing", func(tx EventTx) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, apperrors.ErrEventNotFound)
		assert.False(t, called)
	})

	t.Run("RollbackOnError", func(t *testing.T) {
		s := NewMemoryStore()
		event := newTestEvent("Curry", "India", 10, baseTime.Add(time.Hour))
		_, err := s.CreateEvent(ctx, event)
		require.NoError(t, err)

		boom := errors.New("boom")
		err = s.WithEventLock(ctx, event.ID, func(tx EventTx) error {
			e, _ := tx.LoadEvent(ctx)
			e.Sold = 5
			require.NoError(t, tx.SaveEvent(ctx, e))
			require.NoError(t, tx.AppendBooking(ctx, newTestBooking(event.ID, "alice", 5, baseTime)))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		found, _ := s.FindEvent(ctx, event.ID)
		assert.Equal(t, 0, found.Sold)
		bookings, _ := s.ListBookingsForEvent(ctx, event.ID)
		assert.Empty(t, bookings)
	})

	t.Run("StagedWritesVisibleInsideScope", func(t *testing.T) {
		s := NewMemoryStore()
		event := newTestEvent("Dumplings", "China", 10, baseTime.Add(time.Hour))
		_, err := s.CreateEvent(ctx, event)
		require.NoError(t, err)
		existing := newTestBooking(event.ID, "alice", 2, baseTime)
		bookInStore(t, s, existing)

		err = s.WithEventLock(ctx, event.ID, func(tx EventTx) error {
			added := newTestBooking(event.ID, "bob", 3, baseTime.Add(time.Second))
			require.NoError(t, tx.AppendBooking(ctx, added))

			b, err := tx.FindBooking(ctx, existing.ID)
			require.NoError(t, err)
			b.Cancel(baseTime)
			require.NoError(t, tx.UpdateBooking(ctx, b))

			sum, err := tx.SumConfirmedQuantity(ctx)
			require.NoError(t, err)
			assert.Equal(t, 3, sum)

			bookings, err := tx.LoadBookings(ctx)
			require.NoError(t, err)
			assert.Len(t, bookings, 2)

			// 提交前外部看不到
			outside, _ := s.SumConfirmedQuantity(ctx, event.ID)
			assert.Equal(t, 2, outside)
			return nil
		})
		require.NoError(t, err)

		sum, _ := s.SumConfirmedQuantity(ctx, event.ID)
		assert.Equal(t, 3, sum)
	})

	t.Run("BookingOfOtherEvent", func(t *testing.T) {
		s := NewMemoryStore()
		a := newTestEvent("A", "Italy", 10, baseTime.Add(time.Hour))
		b := newTestEvent("B", "Italy", 10, baseTime.Add(time.Hour))
		_, _ = s.CreateEvent(ctx, a)
		_, _ = s.CreateEvent(ctx, b)
		booking := newTestBooking(a.ID, "alice", 1, baseTime)
		bookInStore(t, s, booking)

		err := s.WithEventLock(ctx, b.ID, func(tx EventTx) error {
			_, err := tx.FindBooking(ctx, booking.ID)
			return err
		})
		assert.ErrorIs(t, err, apperrors.ErrBookingNotFound)

		err = s.WithEventLock(ctx, b.ID, func(tx EventTx) error {
			return tx.AppendBooking(ctx, newTestBooking(a.ID, "alice", 1, baseTime))
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("DeleteCascades", func(t *testing.T) {
		s := NewMemoryStore()
		keep := newTestEvent("Keep", "France", 10, baseTime.Add(time.Hour))
		drop := newTestEvent("Drop", "France", 10, baseTime.Add(time.Hour))
		_, _ = s.CreateEvent(ctx, keep)
		_, _ = s.CreateEvent(ctx, drop)
		kept := newTestBooking(keep.ID, "alice", 1, baseTime)
		dropped := newTestBooking(drop.ID, "alice", 1, baseTime)
		bookInStore(t, s, kept)
		bookInStore(t, s, dropped)
		_, err := s.CreateComment(ctx, &model.Comment{ID: uuid.NewString(), EventID: drop.ID, Text: "yum"})
		require.NoError(t, err)

		err = s.WithEventLock(ctx, drop.ID, func(tx EventTx) error {
			return tx.DeleteEvent(ctx)
		})
		require.NoError(t, err)

		_, err = s.FindEvent(ctx, drop.ID)
		assert.ErrorIs(t, err, apperrors.ErrEventNotFound)
		_, err = s.FindBooking(ctx, dropped.ID)
		assert.ErrorIs(t, err, apperrors.ErrBookingNotFound)
		comments, _ := s.ListCommentsForEvent(ctx, drop.ID)
		assert.Empty(t, comments)

		_, err = s.FindBooking(ctx, kept.ID)
		assert.NoError(t, err)
	})

	t.Run("ConcurrentIncrementsSerialized", func(t *testing.T) {
		s := NewMemoryStore()
		event := newTestEvent("Crowded", "Korea", 1000, baseTime.Add(time.Hour))
		_, err := s.CreateEvent(ctx, event)
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, book(s, newTestBooking(event.ID, "user", 1, baseTime)))
			}()
		}
		wg.Wait()

		found, _ := s.FindEvent(ctx, event.ID)
		assert.Equal(t, 50, found.Sold)
		sum, _ := s.SumConfirmedQuantity(ctx, event.ID)
		assert.Equal(t, 50, sum)
		assert.Equal(t, 0, s.locks.size())
	})
}

func TestJSONFileStore_Comments(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	event := newTestEvent("Pho", "Vietnam", 10, baseTime.Add(time.Hour))
	_, err := s.CreateEvent(ctx, event)
	require.NoError(t, err)

	t.Run("UnknownEvent", func(t *testing.T) {
		_, err := s.CreateComment(ctx, &model.Comment{ID: uuid.NewString(), EventID: "missing", Text: "hi"})
		assert.ErrorIs(t, err, apperrors.ErrEventNotFound)
	})

	t.Run("Ascending", func(t *testing.T) {
		later := &model.Comment{ID: uuid.NewString(), EventID: event.ID, Text: "second", CreatedAt: baseTime.Add(time.Minute)}
		earlier := &model.Comment{ID: uuid.NewString(), EventID: event.ID, Text: "first", CreatedAt: baseTime}
		_, err := s.CreateComment(ctx, later)
		require.NoError(t, err)
		_, err = s.CreateComment(ctx, earlier)
		require.NoError(t, err)

		comments, err := s.ListCommentsForEvent(ctx, event.ID)
		require.NoError(t, err)
		require.Len(t, comments, 2)
		assert.Equal(t, "first", comments[0].Text)
		assert.Equal(t, "second", comments[1].Text)
	})
}

func TestJSONFileStore_Persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewJSONFileStore(dir)
	require.NoError(t, err)

	event := newTestEvent("Persisted", "Peru", 20, baseTime.Add(time.Hour))
	_, err = s.CreateEvent(ctx, event)
	require.NoError(t, err)
	booking := newTestBooking(event.ID, "alice", 4, baseTime)
	bookInStore(t, s, booking)
	_, err = s.CreateComment(ctx, &model.Comment{ID: uuid.NewString(), EventID: event.ID, Text: "ceviche!"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reloaded, err := NewJSONFileStore(dir)
	require.NoError(t, err)

	found, err := reloaded.FindEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, found.Sold)
	assert.True(t, found.StartAt.Equal(event.StartAt))

	b, err := reloaded.FindBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, b.Status)

	comments, err := reloaded.ListCommentsForEvent(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "ceviche!", comments[0].Text)
}
