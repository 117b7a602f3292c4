package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"festival-booking/internal/model"
	apperrors "festival-booking/pkg/app_errors"
)

const (
	eventsFile   = "events.json"
	bookingsFile = "bookings.json"
	commentsFile = "comments.json"
)

// JSONFileStore 以記憶體資料加 JSON 檔案實作 Store。
// dataDir 為空字串時只存在記憶體（測試用）。
// 切片保持寫入順序，排序時以此作為同時間的決勝條件。
type JSONFileStore struct {
	dataDir string
	locks   *keyedMutex

	mu       sync.RWMutex
	events   []*model.Event
	bookings []*model.Booking
	comments []*model.Comment
}

// NewJSONFileStore loads existing files from dataDir, creating it if needed.
func NewJSONFileStore(dataDir string) (*JSONFileStore, error) {
	s := &JSONFileStore{
		dataDir:  dataDir,
		locks:    newKeyedMutex(),
		events:   make([]*model.Event, 0),
		bookings: make([]*model.Booking, 0),
		comments: make([]*model.Comment, 0),
	}
	if dataDir == "" {
		return s, nil
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := readJSONFile(filepath.Join(dataDir, eventsFile), &s.events); err != nil {
		return nil, err
	}
	if err := readJSONFile(filepath.Join(dataDir, bookingsFile), &s.bookings); err != nil {
		return nil, err
	}
	if err := readJSONFile(filepath.Join(dataDir, commentsFile), &s.comments); err != nil {
		return nil, err
	}
	return s, nil
}

// NewMemoryStore 不落地的 store
func NewMemoryStore() *JSONFileStore {
	s, _ := NewJSONFileStore("")
	return s
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeJSONFile 先寫暫存檔再 rename，讀取端不會看到寫一半的檔案
func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// persist 呼叫端必須持有 s.mu 寫鎖；nil 代表該份資料沒變
func (s *JSONFileStore) persist(events []*model.Event, bookings []*model.Booking, comments []*model.Comment) error {
	if s.dataDir == "" {
		return nil
	}
	if events != nil {
		if err := writeJSONFile(filepath.Join(s.dataDir, eventsFile), events); err != nil {
			return fmt.Errorf("failed to write events: %w", err)
		}
	}
	if bookings != nil {
		if err := writeJSONFile(filepath.Join(s.dataDir, bookingsFile), bookings); err != nil {
			return fmt.Errorf("failed to write bookings: %w", err)
		}
	}
	if comments != nil {
		if err := writeJSONFile(filepath.Join(s.dataDir, commentsFile), comments); err != nil {
			return fmt.Errorf("failed to write comments: %w", err)
		}
	}
	return nil
}

func (s *JSONFileStore) findEventLocked(id string) (int, *model.Event) {
	for i, e := range s.events {
		if e.ID == id {
			return i, e
		}
	}
	return -1, nil
}

func (s *JSONFileStore) CreateEvent(ctx context.Context, event *model.Event) (*model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, existing := s.findEventLocked(event.ID); existing != nil {
		return nil, fmt.Errorf("failed to create event: duplicate id %s", event.ID)
	}

	stored := event.Clone()
	if stored.Cuisines == nil {
		stored.Cuisines = []string{}
	}

	events := append(append(make([]*model.Event, 0, len(s.events)+1), s.events...), stored)
	if err := s.persist(events, nil, nil); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	s.events = events

	return stored.Clone(), nil
}

func (s *JSONFileStore) FindEvent(ctx context.Context, id string) (*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, event := s.findEventLocked(id)
	if event == nil {
		return nil, apperrors.ErrEventNotFound
	}
	return event.Clone(), nil
}

func matchesQuery(e *model.Event, query string) bool {
	if query == "" {
		return true
	}
	haystack := strings.Join([]string{
		e.Title, e.Description, strings.Join(e.Cuisines, ","), e.Venue, e.Country,
	}, " ")
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(query))
}

func (s *JSONFileStore) ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, error) {
	s.mu.RLock()
	events := make([]*model.Event, 0, len(s.events))
	for _, e := range s.events {
		if filter.Country != "" && e.Country != filter.Country {
			continue
		}
		if !matchesQuery(e, filter.Query) {
			continue
		}
		events = append(events, e.Clone())
	}
	s.mu.RUnlock()

	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].StartAt.Equal(events[j].StartAt) {
			return events[i].StartAt.Before(events[j].StartAt)
		}
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	return events, nil
}

func (s *JSONFileStore) ListCountries(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	seen := make(map[string]struct{})
	for _, e := range s.events {
		if e.Country != "" {
			seen[e.Country] = struct{}{}
		}
	}
	s.mu.RUnlock()

	countries := make([]string, 0, len(seen))
	for c := range seen {
		countries = append(countries, c)
	}
	sort.Strings(countries)
	return countries, nil
}

func (s *JSONFileStore) FindBooking(ctx context.Context, id string) (*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, b := range s.bookings {
		if b.ID == id {
			return b.Clone(), nil
		}
	}
	return nil, apperrors.ErrBookingNotFound
}

func (s *JSONFileStore) ListBookingsForEvent(ctx context.Context, eventID string) ([]*model.Booking, error) {
	s.mu.RLock()
	bookings := s.bookingsForEventLocked(eventID)
	s.mu.RUnlock()

	sortBookingsAsc(bookings)
	return bookings, nil
}

func (s *JSONFileStore) bookingsForEventLocked(eventID string) []*model.Booking {
	bookings := make([]*model.Booking, 0)
	for _, b := range s.bookings {
		if b.EventID == eventID {
			bookings = append(bookings, b.Clone())
		}
	}
	return bookings
}

func sortBookingsAsc(bookings []*model.Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		return bookings[i].CreatedAt.Before(bookings[j].CreatedAt)
	})
}

func (s *JSONFileStore) ListBookingsForUser(ctx context.Context, userRef string) ([]*model.Booking, error) {
	s.mu.RLock()
	bookings := make([]*model.Booking, 0)
	for _, b := range s.bookings {
		if b.UserRef == userRef {
			bookings = append(bookings, b.Clone())
		}
	}
	s.mu.RUnlock()

	// 新的在前；同時間時後寫入的在前
	sortBookingsAsc(bookings)
	for i, j := 0, len(bookings)-1; i < j; i, j = i+1, j-1 {
		bookings[i], bookings[j] = bookings[j], bookings[i]
	}
	return bookings, nil
}

func (s *JSONFileStore) SumConfirmedQuantity(ctx context.Context, eventID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, b := range s.bookings {
		if b.EventID == eventID && b.IsConfirmed() {
			total += b.Quantity
		}
	}
	return total, nil
}

func (s *JSONFileStore) CreateComment(ctx context.Context, comment *model.Comment) (*model.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, event := s.findEventLocked(comment.EventID); event == nil {
		return nil, apperrors.ErrEventNotFound
	}

	stored := *comment
	comments := append(append(make([]*model.Comment, 0, len(s.comments)+1), s.comments...), &stored)
	if err := s.persist(nil, nil, comments); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	s.comments = comments

	c := stored
	return &c, nil
}

func (s *JSONFileStore) ListCommentsForEvent(ctx context.Context, eventID string) ([]*model.Comment, error) {
	s.mu.RLock()
	comments := make([]*model.Comment, 0)
	for _, c := range s.comments {
		if c.EventID == eventID {
			cp := *c
			comments = append(comments, &cp)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	return comments, nil
}

func (s *JSONFileStore) WithEventLock(ctx context.Context, eventID string, fn func(tx EventTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	unlock := s.locks.Lock(eventID)
	defer unlock()

	event, err := s.FindEvent(ctx, eventID)
	if err != nil {
		return err
	}

	tx := &jsonEventTx{
		store:   s,
		eventID: eventID,
		event:   event,
		updated: make(map[string]*model.Booking),
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

func (s *JSONFileStore) Close() error {
	return nil
}

// jsonEventTx 暫存鎖內的寫入，fn 成功後才一次套用
type jsonEventTx struct {
	store   *JSONFileStore
	eventID string

	event      *model.Event
	eventDirty bool
	updated    map[string]*model.Booking
	appended   []*model.Booking
	deleted    bool
}

func (t *jsonEventTx) LoadEvent(ctx context.Context) (*model.Event, error) {
	if t.deleted {
		return nil, apperrors.ErrEventNotFound
	}
	return t.event.Clone(), nil
}

func (t *jsonEventTx) SaveEvent(ctx context.Context, event *model.Event) error {
	if t.deleted || event.ID != t.eventID {
		return apperrors.ErrEventNotFound
	}
	t.event = event.Clone()
	t.eventDirty = true
	return nil
}

func (t *jsonEventTx) LoadBookings(ctx context.Context) ([]*model.Booking, error) {
	if t.deleted {
		return []*model.Booking{}, nil
	}

	t.store.mu.RLock()
	bookings := t.store.bookingsForEventLocked(t.eventID)
	t.store.mu.RUnlock()

	for i, b := range bookings {
		if staged, ok := t.updated[b.ID]; ok {
			bookings[i] = staged.Clone()
		}
	}
	for _, b := range t.appended {
		bookings = append(bookings, b.Clone())
	}

	sortBookingsAsc(bookings)
	return bookings, nil
}

func (t *jsonEventTx) FindBooking(ctx context.Context, bookingID string) (*model.Booking, error) {
	if t.deleted {
		return nil, apperrors.ErrBookingNotFound
	}
	for _, b := range t.appended {
		if b.ID == bookingID {
			return b.Clone(), nil
		}
	}
	if staged, ok := t.updated[bookingID]; ok {
		return staged.Clone(), nil
	}

	booking, err := t.store.FindBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.EventID != t.eventID {
		return nil, apperrors.ErrBookingNotFound
	}
	return booking, nil
}

func (t *jsonEventTx) AppendBooking(ctx context.Context, booking *model.Booking) error {
	if t.deleted {
		return apperrors.ErrEventNotFound
	}
	if booking.EventID != t.eventID {
		return fmt.Errorf("booking belongs to event %s: %w", booking.EventID, apperrors.ErrInvalidInput)
	}
	if _, err := t.FindBooking(ctx, booking.ID); err == nil {
		return fmt.Errorf("failed to create booking: duplicate id %s", booking.ID)
	}
	t.appended = append(t.appended, booking.Clone())
	return nil
}

func (t *jsonEventTx) UpdateBooking(ctx context.Context, booking *model.Booking) error {
	if t.deleted {
		return apperrors.ErrBookingNotFound
	}
	for i, b := range t.appended {
		if b.ID == booking.ID {
			t.appended[i] = booking.Clone()
			return nil
		}
	}
	if _, err := t.FindBooking(ctx, booking.ID); err != nil {
		return err
	}
	t.updated[booking.ID] = booking.Clone()
	return nil
}

func (t *jsonEventTx) SumConfirmedQuantity(ctx context.Context) (int, error) {
	bookings, err := t.LoadBookings(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, b := range bookings {
		if b.IsConfirmed() {
			total += b.Quantity
		}
	}
	return total, nil
}

func (t *jsonEventTx) DeleteEvent(ctx context.Context) error {
	if t.deleted {
		return apperrors.ErrEventNotFound
	}
	t.deleted = true
	return nil
}

func (t *jsonEventTx) dirty() bool {
	return t.deleted || t.eventDirty || len(t.updated) > 0 || len(t.appended) > 0
}

// commit 先組出新的切片並寫檔，成功後才換掉記憶體內容
func (t *jsonEventTx) commit() error {
	if !t.dirty() {
		return nil
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.deleted {
		events := make([]*model.Event, 0, len(s.events))
		for _, e := range s.events {
			if e.ID != t.eventID {
				events = append(events, e)
			}
		}
		bookings := make([]*model.Booking, 0, len(s.bookings))
		for _, b := range s.bookings {
			if b.EventID != t.eventID {
				bookings = append(bookings, b)
			}
		}
		comments := make([]*model.Comment, 0, len(s.comments))
		for _, c := range s.comments {
			if c.EventID != t.eventID {
				comments = append(comments, c)
			}
		}
		if err := s.persist(events, bookings, comments); err != nil {
			return err
		}
		s.events, s.bookings, s.comments = events, bookings, comments
		return nil
	}

	var events []*model.Event
	if t.eventDirty {
		events = make([]*model.Event, len(s.events))
		copy(events, s.events)
		idx, _ := s.findEventLocked(t.eventID)
		if idx < 0 {
			return apperrors.ErrEventNotFound
		}
		events[idx] = t.event.Clone()
	}

	var bookings []*model.Booking
	if len(t.updated) > 0 || len(t.appended) > 0 {
		bookings = make([]*model.Booking, 0, len(s.bookings)+len(t.appended))
		for _, b := range s.bookings {
			if staged, ok := t.updated[b.ID]; ok {
				bookings = append(bookings, staged.Clone())
				continue
			}
			bookings = append(bookings, b)
		}
		for _, b := range t.appended {
			bookings = append(bookings, b.Clone())
		}
	}

	if err := s.persist(events, bookings, nil); err != nil {
		return err
	}
	if events != nil {
		s.events = events
	}
	if bookings != nil {
		s.bookings = bookings
	}
	return nil
}
