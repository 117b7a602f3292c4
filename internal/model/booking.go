package model

import "time"

// BookingStatus 訂票狀態類型
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// IsValid 驗證狀態是否有效
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusConfirmed, BookingStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo 檢查是否可以轉換到目標狀態
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	transitions := map[BookingStatus][]BookingStatus{
		BookingStatusConfirmed: {BookingStatusCancelled},
		BookingStatusCancelled: {}, // 不能轉換到任何狀態
	}

	allowed, ok := transitions[s]
	if !ok {
		return false
	}

	for _, status := range allowed {
		if status == target {
			return true
		}
	}
	return false
}

// Booking 訂票紀錄，取消只改狀態不刪除
type Booking struct {
	ID          string        `json:"id" db:"id"`
	EventID     string        `json:"event_id" db:"event_id"`
	UserRef     string        `json:"user_ref" db:"user_ref"`
	Quantity    int           `json:"quantity" db:"quantity"`
	Status      BookingStatus `json:"status" db:"status"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	CancelledAt *time.Time    `json:"cancelled_at,omitempty" db:"cancelled_at"`
}

// IsConfirmed 是否仍佔用庫存
func (b *Booking) IsConfirmed() bool {
	return b.Status == BookingStatusConfirmed
}

// Cancel flips a confirmed booking to cancelled. It reports false when the
// booking was already cancelled and nothing changed.
func (b *Booking) Cancel(at time.Time) bool {
	if !b.Status.CanTransitionTo(BookingStatusCancelled) {
		return false
	}
	b.Status = BookingStatusCancelled
	b.CancelledAt = &at
	return true
}

// Clone 回傳拷貝
func (b *Booking) Clone() *Booking {
	c := *b
	if b.CancelledAt != nil {
		at := *b.CancelledAt
		c.CancelledAt = &at
	}
	return &c
}

// CreateBookingRequest 訂票請求
type CreateBookingRequest struct {
	Quantity int `json:"quantity"`
}

// BookingResponse 訂票響應
type BookingResponse struct {
	ID        string `json:"id"`
	EventID   string `json:"event_id"`
	Quantity  int    `json:"quantity"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

func NewBookingResponse(b *Booking) BookingResponse {
	return BookingResponse{
		ID:        b.ID,
		EventID:   b.EventID,
		Quantity:  b.Quantity,
		Status:    string(b.Status),
		CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// BookingEventType 訂票事件種類（送進 queue）
type BookingEventType string

const (
	BookingEventConfirmed    BookingEventType = "booking_confirmed"
	BookingEventCancelled    BookingEventType = "booking_cancelled"
	BookingEventEventDeleted BookingEventType = "event_deleted"
	BookingEventInventory    BookingEventType = "inventory_changed"
)

// BookingEvent 庫存異動後發出的事件，worker 用來刷新快取並寫稽核紀錄
type BookingEvent struct {
	Type       BookingEventType `json:"type"`
	EventID    string           `json:"event_id"`
	BookingID  string           `json:"booking_id,omitempty"`
	UserRef    string           `json:"user_ref,omitempty"`
	Quantity   int              `json:"quantity,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}
