package service

import (
	"context"
	"time"

	"festival-booking/internal/model"
	"festival-booking/internal/queue"
	"festival-booking/pkg/logger"

	"go.uber.org/zap"
)

const publishTimeout = 2 * time.Second

// Clock 可替換的時間來源，測試時固定時間
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// stamp 資料庫 timestamptz 只到微秒，先截斷才不會在存取後變成不同的值
func stamp(now time.Time) time.Time {
	return now.UTC().Truncate(time.Microsecond)
}

// touch 更新 UpdatedAt，保證嚴格遞增（快照版本靠它比較新舊）
func touch(event *model.Event, now time.Time) {
	next := stamp(now)
	if !next.After(event.UpdatedAt) {
		next = event.UpdatedAt.Add(time.Microsecond)
	}
	event.UpdatedAt = next
}

// publisher 交易提交後才發事件，失敗只記 log，不影響已提交的結果
type publisher struct {
	queue queue.BookingEventQueue
}

func (p publisher) publish(ctx context.Context, event *model.BookingEvent) {
	if p.queue == nil {
		return
	}

	// 請求結束不應該取消已提交交易的通知
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := p.queue.Publish(pubCtx, event); err != nil {
		logger.WithComponent("service").Warn("publish booking event failed",
			zap.String("type", string(event.Type)),
			zap.String("event_id", event.EventID),
			zap.String("booking_id", event.BookingID),
			zap.Error(err))
	}
}
