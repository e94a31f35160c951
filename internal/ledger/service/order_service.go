package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/bitfantasy/cargotrack/internal/ledger/entity"
	"github.com/bitfantasy/cargotrack/internal/ledger/repository"
	"github.com/bitfantasy/cargotrack/internal/shared/units"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// OrderService 采购订单服务
type OrderService struct {
	ledger *Ledger
}

func NewOrderService(ledger *Ledger) *OrderService {
	return &OrderService{ledger: ledger}
}

// CreateOrderRequest 创建订单请求
type CreateOrderRequest struct {
	Supplier string          `json:"supplier" binding:"required"`
	PartType entity.PartType `json:"part_type"`
	Quantity uint64          `json:"quantity"`
}

// CreateOrder 制造商向供应商下单，单价按当前价格表冻结
func (s *OrderService) CreateOrder(ctx context.Context, caller string, req *CreateOrderRequest) (*entity.Order, error) {
	supplier, err := NormalizeAddress(req.Supplier)
	if err != nil {
		return nil, err
	}

	var order *entity.Order
	err = s.ledger.apply(ctx, "createOrder", caller, func(tx *Tx) error {
		m, err := tx.Repos.Participant.FindManufacturer(tx.Ctx, caller)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		if m == nil || !m.IsAuthorizedFor(req.PartType) {
			return ErrNotAuthorized.With("manufacturer %s is not authorized for %s", caller, req.PartType)
		}

		sup, err := tx.Repos.Participant.FindSupplier(tx.Ctx, supplier)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidPart.With("supplier %s is not registered", supplier)
		}
		if err != nil {
			return err
		}
		price := sup.PriceFor(req.PartType)
		if !price.IsPositive() {
			return ErrInvalidPart.With("supplier %s has no price for %s", supplier, req.PartType)
		}
		if req.Quantity == 0 {
			return ErrInvalidQuantity.With("quantity must be positive")
		}
		if req.Quantity > math.MaxInt64 {
			return ErrInvalidQuantity.With("quantity %d exceeds %d", req.Quantity, int64(math.MaxInt64))
		}
		total := price.Mul(decimal.NewFromInt(int64(req.Quantity)))
		if !entity.FitsAmountColumn(total.Add(s.ledger.carrierFee(total))) {
			return ErrInvalidQuantity.With("order total for %d x %s is too large", req.Quantity, price)
		}

		id, err := tx.Repos.Order.NextID(tx.Ctx)
		if err != nil {
			return fmt.Errorf("next order id: %w", err)
		}
		order = &entity.Order{
			ID:           id,
			Manufacturer: m.Address,
			Supplier:     sup.Address,
			PartType:     req.PartType,
			Quantity:     req.Quantity,
			PricePerUnit: price,
			Status:       entity.OrderPending,
			QualityCheck: entity.QualityPending,
			CreatedAt:    tx.Now,
			UpdatedAt:    tx.Now,
		}
		if err := tx.Repos.Order.Create(tx.Ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		tx.Emit(entity.EventOrderCreated, orderRef(id), m.Address, entity.JSONB{
			"order_id":       id,
			"manufacturer":   m.Address,
			"supplier":       sup.Address,
			"part_type":      req.PartType.String(),
			"quantity":       req.Quantity,
			"price_per_unit": price.String(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// AcceptOrder 供应商接单
func (s *OrderService) AcceptOrder(ctx context.Context, caller string, id uint64) (*entity.Order, error) {
	return s.decide(ctx, caller, id, entity.OrderAccepted, entity.EventOrderAccepted)
}

// RejectOrder 供应商拒单
func (s *OrderService) RejectOrder(ctx context.Context, caller string, id uint64) (*entity.Order, error) {
	return s.decide(ctx, caller, id, entity.OrderRejected, entity.EventOrderRejected)
}

func (s *OrderService) decide(ctx context.Context, caller string, id uint64, next entity.OrderStatus, event string) (*entity.Order, error) {
	var order *entity.Order
	err := s.ledger.apply(ctx, event, caller, func(tx *Tx) error {
		var err error
		order, err = tx.Order(id)
		if err != nil {
			return err
		}
		if order.Supplier != caller {
			return ErrUnauthorized.With("only the supplier of order %d may decide it", id)
		}
		if order.Status != entity.OrderPending {
			return ErrInvalidState.With("order %d is %s", id, order.Status)
		}
		order.Status = next
		order.UpdatedAt = tx.Now
		if err := tx.Repos.Order.Update(tx.Ctx, order); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		tx.Emit(event, orderRef(id), order.Supplier, entity.JSONB{
			"order_id": id,
			"status":   next.String(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// QualityCheckRequest 质检请求
type QualityCheckRequest struct {
	Result entity.QualityCheck `json:"result"`
}

// UpdateQualityCheck 供应商提交质检结果，只能提交一次
func (s *OrderService) UpdateQualityCheck(ctx context.Context, caller string, id uint64, result entity.QualityCheck) (*entity.Order, error) {
	if result != entity.QualityPassed && result != entity.QualityFailed {
		return nil, ErrInvalidArgument.With("quality check result must be Passed or Failed")
	}

	var order *entity.Order
	err := s.ledger.apply(ctx, "updateQualityCheck", caller, func(tx *Tx) error {
		var err error
		order, err = tx.Order(id)
		if err != nil {
			return err
		}
		if order.Supplier != caller {
			return ErrUnauthorized.With("only the supplier of order %d may record quality", id)
		}
		if order.QualityCheck != entity.QualityPending || order.Status == entity.OrderRejected {
			return ErrInvalidState.With("quality of order %d already settled", id)
		}

		order.QualityCheck = result
		if result == entity.QualityPassed {
			now := tx.Now
			order.IsCompleted = true
			order.QualityCheckedAt = &now
			if order.Status == entity.OrderAccepted {
				order.Status = entity.OrderReadyForShipment
			}
		}
		order.UpdatedAt = tx.Now
		if err := tx.Repos.Order.Update(tx.Ctx, order); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		tx.Emit(entity.EventQualityCheckUpdated, orderRef(id), order.Supplier, entity.JSONB{
			"order_id": id,
			"result":   result.String(),
			"status":   order.Status.String(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// InitiateShipment 制造商发起发货：Accepted -> ReadyForShipment，已是 ReadyForShipment 时无操作
func (s *OrderService) InitiateShipment(ctx context.Context, caller string, id uint64) (*entity.Order, error) {
	var order *entity.Order
	err := s.ledger.apply(ctx, "initiateShipment", caller, func(tx *Tx) error {
		var err error
		order, err = tx.Order(id)
		if err != nil {
			return err
		}
		if order.Manufacturer != caller {
			return ErrUnauthorized.With("only the manufacturer of order %d may initiate shipment", id)
		}
		switch order.Status {
		case entity.OrderReadyForShipment:
			return nil
		case entity.OrderAccepted:
		default:
			return ErrInvalidStatus.With("order %d is %s", id, order.Status)
		}
		order.Status = entity.OrderReadyForShipment
		order.UpdatedAt = tx.Now
		if err := tx.Repos.Order.Update(tx.Ctx, order); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		tx.Emit(entity.EventShipmentInitiated, orderRef(id), order.Manufacturer, entity.JSONB{
			"order_id": id,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrder 获取订单
func (s *OrderService) GetOrder(ctx context.Context, id uint64) (*entity.Order, error) {
	order, err := s.ledger.repos.Order.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrOrderNotFound.With("order %d", id)
	}
	return order, err
}

// GetOrderCount 订单总数（即最大订单号）
func (s *OrderService) GetOrderCount(ctx context.Context) (int64, error) {
	return s.ledger.repos.Order.Count(ctx)
}

// ListOrders 订单列表
func (s *OrderService) ListOrders(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Order, int64, error) {
	return s.ledger.repos.Order.FindAll(ctx, page, pageSize, filters)
}

var orderExportHeaders = []string{
	"订单号", "制造商", "供应商", "零件", "数量", "单价(ETH)", "总额(ETH)", "状态", "质检", "下单时间", "质检时间",
}

// ExportOrders 导出订单为xlsx
func (s *OrderService) ExportOrders(ctx context.Context, filters map[string]string) (*excelize.File, string, error) {
	orders, err := s.ledger.repos.Order.ListAll(ctx, filters)
	if err != nil {
		return nil, "", fmt.Errorf("list orders: %w", err)
	}

	f := excelize.NewFile()
	sheet := "Orders"
	f.SetSheetName("Sheet1", sheet)

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, h := range orderExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	for rowIdx, o := range orders {
		row := rowIdx + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), o.ID)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), o.Manufacturer)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), o.Supplier)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), o.PartType.String())
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), o.Quantity)
		// 金额以字符串写入，避免浮点精度损失
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), units.FormatEther(o.PricePerUnit))
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), units.FormatEther(o.TotalPrice()))
		f.SetCellValue(sheet, fmt.Sprintf("H%d", row), o.Status.String())
		f.SetCellValue(sheet, fmt.Sprintf("I%d", row), o.QualityCheck.String())
		f.SetCellValue(sheet, fmt.Sprintf("J%d", row), o.CreatedAt.Format("2006-01-02 15:04:05"))
		if o.QualityCheckedAt != nil {
			f.SetCellValue(sheet, fmt.Sprintf("K%d", row), o.QualityCheckedAt.Format("2006-01-02 15:04:05"))
		}
	}

	colWidths := []float64{8, 44, 44, 14, 8, 14, 14, 18, 10, 20, 20}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	filename := fmt.Sprintf("orders_%s.xlsx", s.ledger.now().Format("20060102"))
	return f, filename, nil
}
