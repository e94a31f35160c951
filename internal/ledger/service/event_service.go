package service

import (
	"context"

	"github.com/bitfantasy/cargotrack/internal/ledger/entity"
)

// EventService 账本事件查询
type EventService struct {
	ledger *Ledger
}

func NewEventService(ledger *Ledger) *EventService {
	return &EventService{ledger: ledger}
}

// ListEvents 按序号升序列出事件
func (s *EventService) ListEvents(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.LedgerEvent, int64, error) {
	return s.ledger.repos.Event.FindAll(ctx, page, pageSize, filters)
}
