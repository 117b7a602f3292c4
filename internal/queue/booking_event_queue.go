package queue

import (
	"context"

	"festival-booking/internal/model"
	"festival-booking/pkg/logger"

	"go.uber.org/zap"
)

type Delivery struct {
	Data *model.BookingEvent
	Ack  func()
	Nack func(requeue bool)
}

// BookingEventQueue 庫存異動事件的佇列，發送在交易提交之後
type BookingEventQueue interface {
	// 發送事件到隊列
	Publish(ctx context.Context, event *model.BookingEvent) error
	// 訂閱事件隊列，ctx 結束時關閉 channel
	Subscribe(ctx context.Context) (<-chan Delivery, error)
	Close() error
}

type BookingEventQueueImpl struct {
	// 使用 Go channel 來模擬 MQ 隊列
	ch chan *model.BookingEvent
}

func NewBookingEventQueue(bufferSize int) BookingEventQueue {
	return &BookingEventQueueImpl{
		ch: make(chan *model.BookingEvent, bufferSize),
	}
}

func (q *BookingEventQueueImpl) Publish(ctx context.Context, event *model.BookingEvent) error {
	select {
	case q.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *BookingEventQueueImpl) Subscribe(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-q.ch:
				if !ok {
					return
				}

				d := Delivery{
					Data: event,
					Ack:  func() { /* 記憶體版不用做特別動作 */ },
					Nack: func(requeue bool) {
						if !requeue {
							return
						}
						// buffer 滿了就丟掉，避免 worker 卡在自己的 Nack
						select {
						case q.ch <- event:
						default:
							logger.WithComponent("mq").Warn("requeue dropped, buffer full",
								zap.String("event_id", event.EventID),
								zap.String("type", string(event.Type)))
						}
					},
				}

				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (q *BookingEventQueueImpl) Close() error {
	return nil
}
