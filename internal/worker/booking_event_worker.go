package worker

import (
	"context"

	"festival-booking/internal/model"
	"festival-booking/internal/queue"
	"festival-booking/internal/service"
	"festival-booking/pkg/logger"

	"go.uber.org/zap"
)

type BookingEventWorker interface {
	// 訂閱庫存事件隊列，ctx 結束時停止
	Start(ctx context.Context) error
	// Done 在 delivery channel 關閉、最後一筆處理完後關閉
	Done() <-chan struct{}
}

type BookingEventWorkerImpl struct {
	service service.InventoryService
	queue   queue.BookingEventQueue
	done    chan struct{}
}

func NewBookingEventWorker(service service.InventoryService, queue queue.BookingEventQueue) BookingEventWorker {
	return &BookingEventWorkerImpl{
		service: service,
		queue:   queue,
		done:    make(chan struct{}),
	}
}

func (w *BookingEventWorkerImpl) Start(ctx context.Context) error {
	msgs, err := w.queue.Subscribe(ctx)
	if err != nil {
		close(w.done)
		return err
	}

	go func() {
		defer close(w.done)
		for msg := range msgs {
			w.handle(ctx, msg)
		}
	}()
	return nil
}

func (w *BookingEventWorkerImpl) Done() <-chan struct{} {
	return w.done
}

func (w *BookingEventWorkerImpl) handle(ctx context.Context, msg queue.Delivery) {
	event := msg.Data

	// 快照刷新失敗（例如 Redis 暫時連不上）就放回隊列重試
	if err := w.service.HandleBookingEvent(ctx, event); err != nil {
		logger.WithComponent("worker").Warn("handle booking event failed, requeue",
			zap.String("type", string(event.Type)),
			zap.String("event_id", event.EventID),
			zap.Error(err))
		msg.Nack(true)
		return
	}
	audit(event)
	msg.Ack()
}

// audit 每筆庫存異動留一行稽核紀錄
func audit(event *model.BookingEvent) {
	logger.WithComponent("audit").Info("booking event",
		zap.String("type", string(event.Type)),
		zap.String("event_id", event.EventID),
		zap.String("booking_id", event.BookingID),
		zap.String("user_ref", event.UserRef),
		zap.Int("quantity", event.Quantity),
		zap.Time("occurred_at", event.OccurredAt))
}
