package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBookingStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, BookingStatusConfirmed.CanTransitionTo(BookingStatusCancelled))
	assert.False(t, BookingStatusCancelled.CanTransitionTo(BookingStatusConfirmed))
	assert.False(t, BookingStatusCancelled.CanTransitionTo(BookingStatusCancelled))
	assert.False(t, BookingStatus("pending").CanTransitionTo(BookingStatusCancelled))
	assert.False(t, BookingStatus("pending").IsValid())
}

func TestBooking_Cancel(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b := &Booking{ID: "b-1", Quantity: 2, Status: BookingStatusConfirmed}

	assert.True(t, b.Cancel(at))
	assert.Equal(t, BookingStatusCancelled, b.Status)
	assert.Equal(t, at, *b.CancelledAt)
	assert.False(t, b.IsConfirmed())

	// second cancel changes nothing
	later := at.Add(time.Hour)
	assert.False(t, b.Cancel(later))
	assert.Equal(t, at, *b.CancelledAt)
}

func TestBooking_Clone(t *testing.T) {
	at := time.Now()
	b := &Booking{ID: "b-1", CancelledAt: &at}
	c := b.Clone()

	assert.Equal(t, b, c)
	assert.NotSame(t, b.CancelledAt, c.CancelledAt)
}
