package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bitfantasy/cargotrack/internal/ledger/entity"
	"github.com/bitfantasy/cargotrack/internal/ledger/repository"
)

// ShipmentService 运单跟踪服务
type ShipmentService struct {
	ledger *Ledger
}

func NewShipmentService(ledger *Ledger) *ShipmentService {
	return &ShipmentService{ledger: ledger}
}

// CreateShipmentRequest 创建运单请求
type CreateShipmentRequest struct {
	OrderID         uint64               `json:"order_id" binding:"required"`
	Carrier         string               `json:"carrier" binding:"required"`
	PartType        entity.PartType      `json:"part_type"`
	TransportMode   entity.TransportMode `json:"transport_mode"`
	InitialLocation string               `json:"initial_location"`
	FinalLocation   string               `json:"final_location"`
}

// CreateShipment 为已完成质检且待发货的订单创建运单，运单号即订单号
func (s *ShipmentService) CreateShipment(ctx context.Context, caller string, req *CreateShipmentRequest) (*entity.Shipment, error) {
	carrier, err := NormalizeAddress(req.Carrier)
	if err != nil {
		return nil, err
	}
	if !req.TransportMode.Valid() {
		return nil, ErrInvalidArgument.With("transport mode %d", req.TransportMode)
	}

	var shipment *entity.Shipment
	err = s.ledger.apply(ctx, "createShipment", caller, func(tx *Tx) error {
		order, err := tx.Order(req.OrderID)
		if err != nil {
			return err
		}
		if caller != order.Supplier && caller != order.Manufacturer && !s.ledger.IsAdmin(caller) {
			return ErrUnauthorized.With("caller is not a party of order %d", order.ID)
		}
		if !order.IsCompleted {
			return ErrOrderNotCompleted
		}
		if order.Status != entity.OrderReadyForShipment {
			return ErrInvalidState.With("order %d is %s", order.ID, order.Status)
		}
		c, err := tx.Repos.Participant.FindCarrier(tx.Ctx, carrier)
		if errors.Is(err, repository.ErrNotFound) || (err == nil && !c.IsRegistered) {
			return ErrParticipantMissing.With("carrier %s", carrier)
		}
		if err != nil {
			return err
		}
		if req.PartType != order.PartType {
			return ErrInvalidPart.With("order %d is for %s", order.ID, order.PartType)
		}
		if _, err := tx.Repos.Shipment.FindByID(tx.Ctx, order.ID); err == nil {
			return ErrShipmentExists.With("order %d", order.ID)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		shipment = &entity.Shipment{
			ID:              order.ID,
			OrderID:         order.ID,
			Carrier:         c.Address,
			PartType:        order.PartType,
			TransportMode:   req.TransportMode,
			InitialLocation: strings.TrimSpace(req.InitialLocation),
			CurrentLocation: strings.TrimSpace(req.InitialLocation),
			FinalLocation:   strings.TrimSpace(req.FinalLocation),
			Status:          entity.ShipmentCreated,
			CreatedAt:       tx.Now,
			UpdatedAt:       tx.Now,
		}
		if err := tx.Repos.Shipment.Create(tx.Ctx, shipment); err != nil {
			return fmt.Errorf("create shipment: %w", err)
		}
		tx.Emit(entity.EventShipmentCreated, orderRef(order.ID), c.Address, entity.JSONB{
			"shipment_id":    shipment.ID,
			"carrier":        c.Address,
			"part_type":      shipment.PartType.String(),
			"transport_mode": shipment.TransportMode.String(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return shipment, nil
}

// UpdateStatusRequest 更新运单状态请求
type UpdateStatusRequest struct {
	Status   entity.ShipmentStatus `json:"status"`
	Location string                `json:"location"`
}

// UpdateShipmentStatus 承运商推进运单状态，只能前进，允许跳级
func (s *ShipmentService) UpdateShipmentStatus(ctx context.Context, caller string, id uint64, req *UpdateStatusRequest) (*entity.Shipment, error) {
	if !req.Status.Valid() {
		return nil, ErrInvalidArgument.With("shipment status %d", req.Status)
	}

	var shipment *entity.Shipment
	err := s.ledger.apply(ctx, "updateShipmentStatus", caller, func(tx *Tx) error {
		var err error
		shipment, err = tx.Shipment(id)
		if err != nil {
			return err
		}
		if shipment.Carrier != caller {
			return ErrUnauthorized.With("only the carrier of shipment %d may update it", id)
		}
		if req.Status <= shipment.Status {
			return ErrInvalidStatus.With("shipment %d is already %s", id, shipment.Status)
		}
		shipment.Status = req.Status
		if loc := strings.TrimSpace(req.Location); loc != "" {
			shipment.CurrentLocation = loc
		}
		shipment.UpdatedAt = tx.Now
		if err := tx.Repos.Shipment.Update(tx.Ctx, shipment); err != nil {
			return fmt.Errorf("update shipment: %w", err)
		}
		tx.Emit(entity.EventShipmentStatusUpdated, orderRef(shipment.OrderID), shipment.Carrier, entity.JSONB{
			"shipment_id": id,
			"status":      shipment.Status.String(),
			"location":    shipment.CurrentLocation,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return shipment, nil
}

// UpdateCustomsRequest 更新清关状态请求
type UpdateCustomsRequest struct {
	IsCleared bool   `json:"is_cleared"`
	Note      string `json:"note"`
}

// UpdateCustomsStatus 承运商更新清关标记，不改变运单状态；送达后不可再变更
func (s *ShipmentService) UpdateCustomsStatus(ctx context.Context, caller string, id uint64, req *UpdateCustomsRequest) (*entity.Shipment, error) {
	var shipment *entity.Shipment
	err := s.ledger.apply(ctx, "updateCustomsStatus", caller, func(tx *Tx) error {
		var err error
		shipment, err = tx.Shipment(id)
		if err != nil {
			return err
		}
		if shipment.Carrier != caller {
			return ErrUnauthorized.With("only the carrier of shipment %d may update customs", id)
		}
		if shipment.Status == entity.ShipmentDelivered {
			if shipment.IsCustomsCleared == req.IsCleared {
				return nil
			}
			return ErrCustomsFrozen.With("shipment %d already delivered", id)
		}
		shipment.IsCustomsCleared = req.IsCleared
		shipment.CustomsNote = strings.TrimSpace(req.Note)
		shipment.UpdatedAt = tx.Now
		if err := tx.Repos.Shipment.Update(tx.Ctx, shipment); err != nil {
			return fmt.Errorf("update shipment: %w", err)
		}
		tx.Emit(entity.EventCustomsStatusUpdated, orderRef(shipment.OrderID), shipment.Carrier, entity.JSONB{
			"shipment_id": id,
			"is_cleared":  shipment.IsCustomsCleared,
			"note":        shipment.CustomsNote,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return shipment, nil
}

// GetShipment 获取运单
func (s *ShipmentService) GetShipment(ctx context.Context, id uint64) (*entity.Shipment, error) {
	shipment, err := s.ledger.repos.Shipment.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrShipmentNotFound.With("shipment %d", id)
	}
	return shipment, err
}

// GetShipmentCount 运单总数
func (s *ShipmentService) GetShipmentCount(ctx context.Context) (int64, error) {
	return s.ledger.repos.Shipment.Count(ctx)
}

// ListShipments 运单列表
func (s *ShipmentService) ListShipments(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Shipment, int64, error) {
	return s.ledger.repos.Shipment.FindAll(ctx, page, pageSize, filters)
}
