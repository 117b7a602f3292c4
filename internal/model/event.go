package model

import (
	"fmt"
	"math"
	"time"

	apperrors "festival-booking/pkg/app_errors"
)

// EventStatus 活動顯示狀態，永遠由目前欄位即時計算，不寫入資料庫
type EventStatus string

const (
	EventStatusOpen      EventStatus = "Open"
	EventStatusLimited   EventStatus = "Limited"
	EventStatusSoldOut   EventStatus = "Sold Out"
	EventStatusInactive  EventStatus = "Inactive"
	EventStatusCancelled EventStatus = "Cancelled"
)

// Bookable reports whether the status still accepts new bookings.
func (s EventStatus) Bookable() bool {
	switch s {
	case EventStatusOpen, EventStatusLimited:
		return true
	}
	return false
}

// Event 活動模型
type Event struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Venue       string    `json:"venue" db:"venue"`
	Country     string    `json:"country" db:"country"`
	Cuisines    []string  `json:"cuisines" db:"cuisines"`
	ImageURL    string    `json:"image_url,omitempty" db:"image_url"`
	OwnerRef    string    `json:"owner_ref,omitempty" db:"owner_ref"`
	Capacity    int       `json:"capacity" db:"capacity"`
	Sold        int       `json:"sold" db:"sold"`
	StartAt     time.Time `json:"start_at" db:"start_at"`
	Cancelled   bool      `json:"cancelled" db:"cancelled"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// LimitedThreshold 剩餘票數低於此值顯示 Limited：容量的 20%，最少 1 張、最多 10 張
func LimitedThreshold(capacity int) int {
	cut := int(math.Round(float64(capacity) * 0.2))
	return max(1, min(10, cut))
}

// Remaining 剩餘票數，永不為負
func (e *Event) Remaining() int {
	return max(0, e.Capacity-e.Sold)
}

// Status derives the display status at now. First match wins:
// cancelled, started, sold out, limited, open.
func (e *Event) Status(now time.Time) EventStatus {
	remaining := e.Remaining()
	switch {
	case e.Cancelled:
		return EventStatusCancelled
	case e.StartAt.Before(now):
		return EventStatusInactive
	case e.Capacity > 0 && remaining == 0:
		return EventStatusSoldOut
	case e.Capacity > 0 && remaining <= LimitedThreshold(e.Capacity):
		return EventStatusLimited
	}
	return EventStatusOpen
}

// CheckBooking 檢查能否訂 quantity 張票，回傳對應的錯誤種類
func (e *Event) CheckBooking(quantity int, now time.Time) error {
	if quantity <= 0 {
		return apperrors.ErrInvalidQuantity
	}
	if status := e.Status(now); !status.Bookable() {
		return fmt.Errorf("%w: event is %s", apperrors.ErrUnavailable, status)
	}
	if remaining := e.Remaining(); quantity > remaining {
		return fmt.Errorf("%w: only %d tickets remaining", apperrors.ErrOverbook, remaining)
	}
	return nil
}

// CanBook 是否可以訂 quantity 張票
func (e *Event) CanBook(quantity int, now time.Time) bool {
	return e.CheckBooking(quantity, now) == nil
}

// IntegrityViolated sold 超過容量或為負，代表資料不一致需要重算
func (e *Event) IntegrityViolated() bool {
	return e.Sold < 0 || e.Sold > e.Capacity
}

// IsOwnedBy 沒有 owner 的活動任何人都可以管理
func (e *Event) IsOwnedBy(userRef string) bool {
	return e.OwnerRef == "" || e.OwnerRef == userRef
}

// Clone 回傳深拷貝，store 間傳遞時避免共用 slice
func (e *Event) Clone() *Event {
	c := *e
	if e.Cuisines != nil {
		c.Cuisines = append([]string(nil), e.Cuisines...)
	}
	return &c
}

// EventFilter 列表查詢條件，Country 空字串代表全部
type EventFilter struct {
	Country string
	Query   string
}

type CreateEventParams struct {
	Title       string
	Description string
	Venue       string
	Country     string
	Cuisines    []string
	ImageURL    string
	OwnerRef    string
	Capacity    int
	StartAt     time.Time
}

type UpdateEventParams struct {
	Title       *string
	Description *string
	Venue       *string
	Country     *string
	Cuisines    []string
	ImageURL    *string
	Capacity    *int
	StartAt     *time.Time
}

// IsEmpty 沒有任何欄位要更新
func (p UpdateEventParams) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Venue == nil && p.Country == nil &&
		p.Cuisines == nil && p.ImageURL == nil && p.Capacity == nil && p.StartAt == nil
}

// Apply 將更新套用到 event（不含容量檢查，由呼叫端在鎖內處理）
func (p UpdateEventParams) Apply(e *Event) {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Venue != nil {
		e.Venue = *p.Venue
	}
	if p.Country != nil {
		e.Country = *p.Country
	}
	if p.Cuisines != nil {
		e.Cuisines = append([]string(nil), p.Cuisines...)
	}
	if p.ImageURL != nil {
		e.ImageURL = *p.ImageURL
	}
	if p.Capacity != nil {
		e.Capacity = *p.Capacity
	}
	if p.StartAt != nil {
		e.StartAt = *p.StartAt
	}
}

// EventView 給前端顯示用，附帶即時計算的剩餘票數與狀態
type EventView struct {
	*Event
	Remaining int         `json:"remaining"`
	Status    EventStatus `json:"status"`
}

func NewEventView(e *Event, now time.Time) EventView {
	return EventView{Event: e, Remaining: e.Remaining(), Status: e.Status(now)}
}

// EventDetail 活動詳細頁資料
type EventDetail struct {
	EventView
	Comments []*Comment `json:"comments"`
}

// InventorySnapshot 顯示用的庫存快照（Redis），只存原始欄位，狀態讀取時重算
type InventorySnapshot struct {
	EventID   string    `json:"event_id"`
	Capacity  int       `json:"capacity"`
	Sold      int       `json:"sold"`
	StartAt   time.Time `json:"start_at"`
	Cancelled bool      `json:"cancelled"`
	Version   int64     `json:"version"`
}

func NewInventorySnapshot(e *Event) InventorySnapshot {
	return InventorySnapshot{
		EventID:   e.ID,
		Capacity:  e.Capacity,
		Sold:      e.Sold,
		StartAt:   e.StartAt,
		Cancelled: e.Cancelled,
		Version:   e.UpdatedAt.UnixNano(),
	}
}

// Event rebuilds the inventory-relevant part of an event from the snapshot.
func (s InventorySnapshot) Event() *Event {
	return &Event{
		ID:        s.EventID,
		Capacity:  s.Capacity,
		Sold:      s.Sold,
		StartAt:   s.StartAt,
		Cancelled: s.Cancelled,
	}
}

// StatusResponse 輕量狀態查詢回應
type StatusResponse struct {
	EventID   string      `json:"event_id"`
	Status    EventStatus `json:"status"`
	Remaining int         `json:"remaining"`
	Capacity  int         `json:"capacity"`
}
