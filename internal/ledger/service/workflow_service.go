package service

import (
	"context"
	"errors"

	"github.com/bitfantasy/cargotrack/internal/ledger/entity"
	"github.com/bitfantasy/cargotrack/internal/ledger/repository"
)

// 工作流步骤结果
const (
	StepApplied = "applied"
	StepSkipped = "skipped"
)

// WorkflowStep 单个步骤的执行情况
type WorkflowStep struct {
	Name   string `json:"name"`
	Result string `json:"result"`
}

// WorkflowResult 工作流执行结果
type WorkflowResult struct {
	Steps    []WorkflowStep   `json:"steps"`
	Order    *entity.Order    `json:"order,omitempty"`
	Shipment *entity.Shipment `json:"shipment,omitempty"`
}

func (r *WorkflowResult) record(name string, applied bool) {
	result := StepSkipped
	if applied {
		result = StepApplied
	}
	r.Steps = append(r.Steps, WorkflowStep{Name: name, Result: result})
}

// WorkflowService 多步骤流程。每步独立提交且先检查当前状态，
// 中途失败后可从任意中间状态重试。
type WorkflowService struct {
	ledger    *Ledger
	orders    *OrderService
	shipments *ShipmentService
}

func NewWorkflowService(ledger *Ledger, orders *OrderService, shipments *ShipmentService) *WorkflowService {
	return &WorkflowService{
		ledger:    ledger,
		orders:    orders,
		shipments: shipments,
	}
}

// DispatchRequest 发货流程请求
type DispatchRequest struct {
	Carrier         string               `json:"carrier" binding:"required"`
	TransportMode   entity.TransportMode `json:"transport_mode"`
	InitialLocation string               `json:"initial_location"`
	FinalLocation   string               `json:"final_location"`
}

// DispatchOrder 制造商发货：initiateShipment -> createShipment
func (s *WorkflowService) DispatchOrder(ctx context.Context, caller string, orderID uint64, req *DispatchRequest) (*WorkflowResult, error) {
	carrier, err := NormalizeAddress(req.Carrier)
	if err != nil {
		return nil, err
	}
	result := &WorkflowResult{}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return result, err
	}
	if order.Manufacturer != caller {
		return result, ErrUnauthorized.With("only the manufacturer of order %d may dispatch it", orderID)
	}

	if order.Status == entity.OrderReadyForShipment {
		result.record("initiateShipment", false)
	} else {
		if order, err = s.orders.InitiateShipment(ctx, caller, orderID); err != nil {
			return result, err
		}
		result.record("initiateShipment", true)
	}
	result.Order = order

	existing, err := s.ledger.repos.Shipment.FindByID(ctx, orderID)
	switch {
	case err == nil && existing.Carrier == carrier:
		result.Shipment = existing
		result.record("createShipment", false)
		return result, nil
	case err == nil:
		return result, ErrShipmentExists.With("order %d is assigned to %s", orderID, existing.Carrier)
	case !errors.Is(err, repository.ErrNotFound):
		return result, err
	}

	shipment, err := s.shipments.CreateShipment(ctx, caller, &CreateShipmentRequest{
		OrderID:         orderID,
		Carrier:         carrier,
		PartType:        order.PartType,
		TransportMode:   req.TransportMode,
		InitialLocation: req.InitialLocation,
		FinalLocation:   req.FinalLocation,
	})
	if err != nil {
		return result, err
	}
	result.Shipment = shipment
	result.record("createShipment", true)
	return result, nil
}

// ClearCustomsRequest 清关流程请求，目标状态为 CustomsCleared 或 Delivered
type ClearCustomsRequest struct {
	TargetStatus entity.ShipmentStatus `json:"target_status"`
	Location     string                `json:"location"`
	Note         string                `json:"note"`
}

// ClearCustoms 承运商清关：updateCustomsStatus -> updateShipmentStatus
func (s *WorkflowService) ClearCustoms(ctx context.Context, caller string, shipmentID uint64, req *ClearCustomsRequest) (*WorkflowResult, error) {
	if req.TargetStatus != entity.ShipmentCustomsCleared && req.TargetStatus != entity.ShipmentDelivered {
		return nil, ErrInvalidArgument.With("target status must be CustomsCleared or Delivered")
	}
	result := &WorkflowResult{}

	shipment, err := s.shipments.GetShipment(ctx, shipmentID)
	if err != nil {
		return result, err
	}
	if shipment.Carrier != caller {
		return result, ErrUnauthorized.With("only the carrier of shipment %d may clear customs", shipmentID)
	}

	if shipment.IsCustomsCleared {
		result.record("updateCustomsStatus", false)
	} else {
		shipment, err = s.shipments.UpdateCustomsStatus(ctx, caller, shipmentID, &UpdateCustomsRequest{IsCleared: true, Note: req.Note})
		if err != nil {
			return result, err
		}
		result.record("updateCustomsStatus", true)
	}
	result.Shipment = shipment

	if shipment.Status >= req.TargetStatus {
		result.record("updateShipmentStatus", false)
		return result, nil
	}
	shipment, err = s.shipments.UpdateShipmentStatus(ctx, caller, shipmentID, &UpdateStatusRequest{Status: req.TargetStatus, Location: req.Location})
	if err != nil {
		return result, err
	}
	result.Shipment = shipment
	result.record("updateShipmentStatus", true)
	return result, nil
}
