package service

import (
	"context"
	"strconv"

	"github.com/bitfantasy/cargotrack/internal/ledger/entity"
	"github.com/bitfantasy/cargotrack/internal/shared/events"
)

// PublisherSink 把账本事件转发到消息总线，按订单号分区保证同一订单有序
type PublisherSink struct {
	publisher events.Publisher
}

func NewPublisherSink(publisher events.Publisher) *PublisherSink {
	return &PublisherSink{publisher: publisher}
}

func (s *PublisherSink) Publish(ctx context.Context, e *entity.LedgerEvent) error {
	return s.publisher.Publish(ctx, EventKey(e), e.Name, e)
}

// EventKey 分区键：订单事件用订单号，注册类事件用参与方地址
func EventKey(e *entity.LedgerEvent) string {
	if e.OrderID != nil {
		return "order-" + strconv.FormatUint(*e.OrderID, 10)
	}
	return e.Subject
}
