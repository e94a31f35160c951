package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bitfantasy/cargotrack/internal/ledger/entity"
	"github.com/bitfantasy/cargotrack/internal/ledger/repository"
)

// MilestoneService 订单里程碑服务
type MilestoneService struct {
	ledger *Ledger
}

func NewMilestoneService(ledger *Ledger) *MilestoneService {
	return &MilestoneService{ledger: ledger}
}

// UpdateMilestoneRequest 更新里程碑请求
type UpdateMilestoneRequest struct {
	Status entity.MilestoneStatus `json:"status"`
	Note   string                 `json:"note"`
}

// UpdateOrderMilestone 仅该订单运单的承运商可写
func (s *MilestoneService) UpdateOrderMilestone(ctx context.Context, caller string, orderID uint64, milestoneType entity.MilestoneType, req *UpdateMilestoneRequest) (*entity.Milestone, error) {
	if !milestoneType.Valid() {
		return nil, ErrInvalidArgument.With("milestone type %d", milestoneType)
	}
	if !req.Status.Valid() {
		return nil, ErrInvalidArgument.With("milestone status %d", req.Status)
	}

	var m *entity.Milestone
	err := s.ledger.apply(ctx, "updateOrderMilestone", caller, func(tx *Tx) error {
		shipment, err := tx.Shipment(orderID)
		if err != nil {
			return err
		}
		if shipment.Carrier != caller {
			return ErrUnauthorized.With("only the carrier of order %d may update milestones", orderID)
		}
		m = &entity.Milestone{
			OrderID:   orderID,
			Type:      milestoneType,
			Status:    req.Status,
			Note:      strings.TrimSpace(req.Note),
			UpdatedBy: caller,
			UpdatedAt: tx.Now,
		}
		if err := tx.Repos.Milestone.Upsert(tx.Ctx, m); err != nil {
			return fmt.Errorf("upsert milestone: %w", err)
		}
		tx.Emit(entity.EventMilestoneUpdated, orderRef(orderID), caller, entity.JSONB{
			"order_id":       orderID,
			"milestone_type": milestoneType.String(),
			"status":         int(req.Status),
			"note":           m.Note,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetOrderMilestone 未写入过的里程碑返回零值
func (s *MilestoneService) GetOrderMilestone(ctx context.Context, orderID uint64, milestoneType entity.MilestoneType) (*entity.Milestone, error) {
	if !milestoneType.Valid() {
		return nil, ErrInvalidArgument.With("milestone type %d", milestoneType)
	}
	m, err := s.ledger.repos.Milestone.Find(ctx, orderID, milestoneType)
	if errors.Is(err, repository.ErrNotFound) {
		return &entity.Milestone{OrderID: orderID, Type: milestoneType, Status: entity.MilestonePending}, nil
	}
	return m, err
}

// ListOrderMilestones 订单已写入的里程碑
func (s *MilestoneService) ListOrderMilestones(ctx context.Context, orderID uint64) ([]entity.Milestone, error) {
	return s.ledger.repos.Milestone.ListByOrder(ctx, orderID)
}
