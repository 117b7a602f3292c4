package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"festival-booking/internal/cache"
	"festival-booking/internal/model"
	"festival-booking/internal/queue"
	"festival-booking/internal/repository"
	apperrors "festival-booking/pkg/app_errors"
	"festival-booking/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type InventoryService interface {
	// Status 以 store 為準的即時狀態，偵測到 sold 不一致時先自動修復
	Status(ctx context.Context, eventID string) (model.StatusResponse, error)
	// DisplayStatus 先讀 Redis 快照，miss 時回到 store 並預熱快取
	DisplayStatus(ctx context.Context, eventID string) (model.StatusResponse, error)
	CanBook(ctx context.Context, eventID string, quantity int) (bool, error)

	// 訂票：鎖內重新檢查後新增 confirmed 訂票並增加 sold
	ApplyBooking(ctx context.Context, eventID, userRef string, quantity int) (*model.Booking, error)
	// 取消訂票：已取消時直接回傳，不重複扣 sold
	CancelBooking(ctx context.Context, bookingID, userRef string) (*model.Booking, error)
	// 刪除活動：連同訂票與留言
	DeleteEvent(ctx context.Context, eventID, userRef string) error

	// Reconcile 依 confirmed 訂票重算 sold
	Reconcile(ctx context.Context, eventID string) (*model.Event, error)
	// ReconcileAll 啟動時掃過所有活動，回傳修正的數量
	ReconcileAll(ctx context.Context) (int, error)

	ListForEvent(ctx context.Context, eventID string) ([]*model.Booking, error)
	ListForUser(ctx context.Context, userRef string) ([]*model.Booking, error)

	// HandleBookingEvent worker 用：刷新或移除快照
	HandleBookingEvent(ctx context.Context, event *model.BookingEvent) error
}

type InventoryServiceImpl struct {
	store     repository.Store
	inventory cache.InventoryCache
	publisher publisher
	now       Clock
}

func NewInventoryService(store repository.Store, inventory cache.InventoryCache, eventQueue queue.BookingEventQueue) InventoryService {
	if inventory == nil {
		inventory = cache.NewNopInventoryCache()
	}
	return &InventoryServiceImpl{
		store:     store,
		inventory: inventory,
		publisher: publisher{queue: eventQueue},
		now:       systemClock,
	}
}

func newStatusResponse(event *model.Event, status model.EventStatus) model.StatusResponse {
	return model.StatusResponse{
		EventID:   event.ID,
		Status:    status,
		Remaining: event.Remaining(),
		Capacity:  event.Capacity,
	}
}

// loadEvent 讀取活動；sold 不合理時記錄資料錯誤並重算
func (s *InventoryServiceImpl) loadEvent(ctx context.Context, eventID string) (*model.Event, error) {
	event, err := s.store.FindEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.IntegrityViolated() {
		return event, nil
	}

	logger.WithComponent("inventory").Error("data integrity violation, reconciling",
		zap.String("event_id", event.ID),
		zap.Int("sold", event.Sold),
		zap.Int("capacity", event.Capacity))

	return s.Reconcile(ctx, eventID)
}

func (s *InventoryServiceImpl) Status(ctx context.Context, eventID string) (model.StatusResponse, error) {
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return model.StatusResponse{}, err
	}
	return newStatusResponse(event, event.Status(s.now())), nil
}

func (s *InventoryServiceImpl) DisplayStatus(ctx context.Context, eventID string) (model.StatusResponse, error) {
	log := logger.WithComponent("inventory")

	snapshot, err := s.inventory.Get(ctx, eventID)
	if err == nil {
		event := snapshot.Event()
		if !event.IntegrityViolated() {
			return newStatusResponse(event, event.Status(s.now())), nil
		}
	} else if !errors.Is(err, cache.ErrSnapshotMiss) {
		log.Warn("read inventory snapshot failed", zap.String("event_id", eventID), zap.Error(err))
	}

	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return model.StatusResponse{}, err
	}

	if _, err := s.inventory.Sync(ctx, model.NewInventorySnapshot(event)); err != nil {
		log.Warn("warm inventory snapshot failed", zap.String("event_id", eventID), zap.Error(err))
	}

	return newStatusResponse(event, event.Status(s.now())), nil
}

func (s *InventoryServiceImpl) CanBook(ctx context.Context, eventID string, quantity int) (bool, error) {
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return false, err
	}
	return event.CanBook(quantity, s.now()), nil
}

// healInTx 鎖內重算 sold，回傳是否有修正
func healInTx(ctx context.Context, tx repository.EventTx, event *model.Event, now Clock) (bool, error) {
	sum, err := tx.SumConfirmedQuantity(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to sum confirmed bookings: %w", err)
	}
	if sum == event.Sold {
		return false, nil
	}

	logger.WithComponent("inventory").Warn("sold counter corrected",
		zap.String("event_id", event.ID),
		zap.Int("sold_before", event.Sold),
		zap.Int("sold_after", sum))

	event.Sold = sum
	touch(event, now())
	if err := tx.SaveEvent(ctx, event); err != nil {
		return false, err
	}
	return true, nil
}

func (s *InventoryServiceImpl) ApplyBooking(ctx context.Context, eventID, userRef string, quantity int) (*model.Booking, error) {
	if quantity <= 0 {
		return nil, apperrors.ErrInvalidQuantity
	}
	userRef = strings.TrimSpace(userRef)
	if userRef == "" {
		return nil, apperrors.ErrUnauthorized
	}

	var booking *model.Booking
	err := s.store.WithEventLock(ctx, eventID, func(tx repository.EventTx) error {
		event, err := tx.LoadEvent(ctx)
		if err != nil {
			return err
		}

		if event.IntegrityViolated() {
			logger.WithComponent("inventory").Error("data integrity violation, reconciling",
				zap.String("event_id", event.ID),
				zap.Int("sold", event.Sold),
				zap.Int("capacity", event.Capacity))
			if _, err := healInTx(ctx, tx, event, s.now); err != nil {
				return err
			}
		}

		now := s.now()
		// 鎖內再檢查一次，其他請求可能已經買走
		if err := event.CheckBooking(quantity, now); err != nil {
			return err
		}

		booking = &model.Booking{
			ID:        uuid.New().String(),
			EventID:   event.ID,
			UserRef:   userRef,
			Quantity:  quantity,
			Status:    model.BookingStatusConfirmed,
			CreatedAt: stamp(now),
		}
		if err := tx.AppendBooking(ctx, booking); err != nil {
			return err
		}

		event.Sold += quantity
		touch(event, now)
		return tx.SaveEvent(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.publish(ctx, &model.BookingEvent{
		Type:       model.BookingEventConfirmed,
		EventID:    booking.EventID,
		BookingID:  booking.ID,
		UserRef:    booking.UserRef,
		Quantity:   booking.Quantity,
		OccurredAt: booking.CreatedAt,
	})

	return booking, nil
}

func (s *InventoryServiceImpl) CancelBooking(ctx context.Context, bookingID, userRef string) (*model.Booking, error) {
	found, err := s.store.FindBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if found.UserRef != userRef {
		return nil, apperrors.ErrForbidden
	}

	var (
		booking   *model.Booking
		cancelled bool
	)
	err = s.store.WithEventLock(ctx, found.EventID, func(tx repository.EventTx) error {
		b, err := tx.FindBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		booking = b

		now := s.now()
		if !booking.Cancel(stamp(now)) {
			// 已經取消過，不再動 sold
			return nil
		}
		cancelled = true

		if err := tx.UpdateBooking(ctx, booking); err != nil {
			return err
		}

		event, err := tx.LoadEvent(ctx)
		if err != nil {
			return err
		}
		event.Sold = max(0, event.Sold-booking.Quantity)
		touch(event, now)
		return tx.SaveEvent(ctx, event)
	})
	if err != nil {
		// 活動在中途被刪掉，訂票也隨之消失
		if errors.Is(err, apperrors.ErrEventNotFound) {
			return nil, apperrors.ErrBookingNotFound
		}
		return nil, err
	}

	if cancelled {
		s.publisher.publish(ctx, &model.BookingEvent{
			Type:       model.BookingEventCancelled,
			EventID:    booking.EventID,
			BookingID:  booking.ID,
			UserRef:    booking.UserRef,
			Quantity:   booking.Quantity,
			OccurredAt: *booking.CancelledAt,
		})
	}

	return booking, nil
}

func (s *InventoryServiceImpl) DeleteEvent(ctx context.Context, eventID, userRef string) error {
	err := s.store.WithEventLock(ctx, eventID, func(tx repository.EventTx) error {
		event, err := tx.LoadEvent(ctx)
		if err != nil {
			return err
		}
		if !event.IsOwnedBy(userRef) {
			return apperrors.ErrForbidden
		}
		return tx.DeleteEvent(ctx)
	})
	if err != nil {
		return err
	}

	s.publisher.publish(ctx, &model.BookingEvent{
		Type:       model.BookingEventEventDeleted,
		EventID:    eventID,
		UserRef:    userRef,
		OccurredAt: stamp(s.now()),
	})
	return nil
}

func (s *InventoryServiceImpl) Reconcile(ctx context.Context, eventID string) (*model.Event, error) {
	var (
		event   *model.Event
		changed bool
	)
	err := s.store.WithEventLock(ctx, eventID, func(tx repository.EventTx) error {
		e, err := tx.LoadEvent(ctx)
		if err != nil {
			return err
		}
		event = e

		changed, err = healInTx(ctx, tx, event, s.now)
		return err
	})
	if err != nil {
		return nil, err
	}

	if event.IntegrityViolated() {
		// confirmed 訂票本身就超過容量，重算也修不好，只能人工處理
		logger.WithComponent("inventory").Error("confirmed bookings exceed capacity",
			zap.String("event_id", event.ID),
			zap.Int("sold", event.Sold),
			zap.Int("capacity", event.Capacity))
	}

	if changed {
		s.publisher.publish(ctx, &model.BookingEvent{
			Type:       model.BookingEventInventory,
			EventID:    event.ID,
			OccurredAt: event.UpdatedAt,
		})
	}

	return event, nil
}

func (s *InventoryServiceImpl) ReconcileAll(ctx context.Context) (int, error) {
	events, err := s.store.ListEvents(ctx, model.EventFilter{})
	if err != nil {
		return 0, err
	}

	fixed := 0
	for _, e := range events {
		sum, err := s.store.SumConfirmedQuantity(ctx, e.ID)
		if err != nil {
			return fixed, err
		}
		if sum == e.Sold {
			continue
		}
		if _, err := s.Reconcile(ctx, e.ID); err != nil {
			if errors.Is(err, apperrors.ErrEventNotFound) {
				continue
			}
			return fixed, err
		}
		fixed++
	}
	return fixed, nil
}

func (s *InventoryServiceImpl) ListForEvent(ctx context.Context, eventID string) ([]*model.Booking, error) {
	if _, err := s.store.FindEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.store.ListBookingsForEvent(ctx, eventID)
}

func (s *InventoryServiceImpl) ListForUser(ctx context.Context, userRef string) ([]*model.Booking, error) {
	return s.store.ListBookingsForUser(ctx, userRef)
}

func (s *InventoryServiceImpl) HandleBookingEvent(ctx context.Context, event *model.BookingEvent) error {
	if event.Type == model.BookingEventEventDeleted {
		return s.inventory.Evict(ctx, event.EventID)
	}

	current, err := s.store.FindEvent(ctx, event.EventID)
	if errors.Is(err, apperrors.ErrEventNotFound) {
		// 事件晚到，活動已經刪除
		return s.inventory.Evict(ctx, event.EventID)
	}
	if err != nil {
		return err
	}

	_, err = s.inventory.Sync(ctx, model.NewInventorySnapshot(current))
	return err
}
