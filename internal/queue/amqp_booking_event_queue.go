package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"festival-booking/internal/model"
	"festival-booking/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const amqpPrefetch = 50

// AMQPQueueImpl RabbitMQ 版 BookingEventQueue：durable queue、persistent 訊息、手動 ack
type AMQPQueueImpl struct {
	conn      *amqp.Connection
	queueName string

	mu      sync.Mutex // amqp channel 發送時不是併發安全
	pubChan *amqp.Channel
}

func NewAMQPQueue(url, queueName string) (BookingEventQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}

	if _, err := declareQueue(ch, queueName); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &AMQPQueueImpl{
		conn:      conn,
		queueName: queueName,
		pubChan:   ch,
	}, nil
}

func declareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("queue declare: %w", err)
	}
	return q, nil
}

func (q *AMQPQueueImpl) Publish(ctx context.Context, event *model.BookingEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal booking event: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         string(event.Type),
		Body:         body,
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	// default exchange，routing key = queue name
	if err := q.pubChan.PublishWithContext(ctx, "", q.queueName, false, false, pub); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (q *AMQPQueueImpl) Subscribe(ctx context.Context) (<-chan Delivery, error) {
	ch, err := q.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("channel open: %w", err)
	}

	if err := ch.Qos(amqpPrefetch, 0, false); err != nil {
		logger.WithComponent("mq").Warn("set QoS failed", zap.Error(err))
	}

	if _, err := declareQueue(ch, q.queueName); err != nil {
		_ = ch.Close()
		return nil, err
	}

	msgs, err := ch.Consume(q.queueName, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("queue consume: %w", err)
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		defer func() { _ = ch.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.WithComponent("mq").Warn("amqp deliveries channel closed")
					return
				}
				d := newAMQPDelivery(msg)
				if d == nil {
					continue
				}
				select {
				case out <- *d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// newAMQPDelivery 解不開的訊息直接 reject 不重送，避免無限循環
func newAMQPDelivery(msg amqp.Delivery) *Delivery {
	var event model.BookingEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		logger.WithComponent("mq").Warn("unmarshal booking event failed",
			zap.Uint64("delivery_tag", msg.DeliveryTag), zap.Error(err))
		_ = msg.Nack(false, false)
		return nil
	}

	return &Delivery{
		Data: &event,
		Ack: func() {
			if err := msg.Ack(false); err != nil {
				logger.WithComponent("mq").Error("amqp ack failed", zap.Error(err))
			}
		},
		Nack: func(requeue bool) {
			if err := msg.Nack(false, requeue); err != nil {
				logger.WithComponent("mq").Error("amqp nack failed", zap.Error(err))
			}
		},
	}
}

func (q *AMQPQueueImpl) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.pubChan.Close(); err != nil {
		logger.WithComponent("mq").Warn("close amqp channel failed", zap.Error(err))
	}
	return q.conn.Close()
}
