package service

import (
	"context"
	"errors"
	"time"

	"github.com/bitfantasy/cargotrack/internal/ledger/entity"
	"github.com/bitfantasy/cargotrack/internal/ledger/repository"
	"github.com/shopspring/decimal"
)

// PenaltyService 制造商延迟罚金计算（只读）
type PenaltyService struct {
	ledger *Ledger
}

func NewPenaltyService(ledger *Ledger) *PenaltyService {
	return &PenaltyService{ledger: ledger}
}

// PenaltyQuote 罚金计算结果
type PenaltyQuote struct {
	OrderID            uint64          `json:"order_id"`
	ElapsedSeconds     int64           `json:"elapsed_seconds"`
	GracePeriodSeconds int64           `json:"grace_period_seconds"`
	OverdueSeconds     int64           `json:"overdue_seconds"`
	RatePerDay         decimal.Decimal `json:"rate_per_day"`
	Penalty            decimal.Decimal `json:"penalty"`
	Final              bool            `json:"final"`
}

// CalculateManufacturerPenalty 罚金 = max(0, 耗时-宽限期) × 日费率 / 1天，截断到最小单位。
// 质检未通过时按当前时间计算，结果不是最终值。
func (s *PenaltyService) CalculateManufacturerPenalty(ctx context.Context, orderID uint64) (*PenaltyQuote, error) {
	order, err := s.ledger.repos.Order.FindByID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrOrderNotFound.With("order %d", orderID)
	}
	if err != nil {
		return nil, err
	}
	return s.quote(order, s.ledger.now()), nil
}

func (s *PenaltyService) quote(order *entity.Order, now time.Time) *PenaltyQuote {
	cfg := s.ledger.cfg
	end := now
	final := false
	if order.QualityCheck == entity.QualityPassed && order.QualityCheckedAt != nil {
		end = *order.QualityCheckedAt
		final = true
	}
	elapsed := end.Sub(order.CreatedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	overdue := elapsed - cfg.GracePeriod
	if overdue < 0 {
		overdue = 0
	}
	seconds := int64(overdue / time.Second)
	penalty := cfg.PenaltyRatePerDay.
		Mul(decimal.NewFromInt(seconds)).
		Div(decimal.NewFromInt(int64(24 * time.Hour / time.Second))).
		Truncate(0)

	return &PenaltyQuote{
		OrderID:            order.ID,
		ElapsedSeconds:     int64(elapsed / time.Second),
		GracePeriodSeconds: int64(cfg.GracePeriod / time.Second),
		OverdueSeconds:     seconds,
		RatePerDay:         cfg.PenaltyRatePerDay,
		Penalty:            penalty,
		Final:              final,
	}
}
