package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bitfantasy/cargotrack/internal/ledger/entity"
	"github.com/bitfantasy/cargotrack/internal/ledger/repository"
	"github.com/shopspring/decimal"
)

// EscrowService 托管付款服务
type EscrowService struct {
	ledger *Ledger
}

func NewEscrowService(ledger *Ledger) *EscrowService {
	return &EscrowService{ledger: ledger}
}

// PaymentQuote 订单应付金额
type PaymentQuote struct {
	OrderID    uint64          `json:"order_id"`
	Amount     decimal.Decimal `json:"amount"`
	CarrierFee decimal.Decimal `json:"carrier_fee"`
	Total      decimal.Decimal `json:"total"`
}

// CarrierFee 运费 = 货款 × 费率，截断到最小单位
func (s *EscrowService) CarrierFee(amount decimal.Decimal) decimal.Decimal {
	return s.ledger.carrierFee(amount)
}

func (s *EscrowService) quote(order *entity.Order) *PaymentQuote {
	amount := order.TotalPrice()
	fee := s.CarrierFee(amount)
	return &PaymentQuote{
		OrderID:    order.ID,
		Amount:     amount,
		CarrierFee: fee,
		Total:      amount.Add(fee),
	}
}

// QuotePayment 查询订单需存入的托管金额
func (s *EscrowService) QuotePayment(ctx context.Context, orderID uint64) (*PaymentQuote, error) {
	order, err := s.ledger.repos.Order.FindByID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrOrderNotFound.With("order %d", orderID)
	}
	if err != nil {
		return nil, err
	}
	return s.quote(order), nil
}

// CreatePaymentRequest 存入托管请求，value 为随调用附带的金额(wei)
type CreatePaymentRequest struct {
	OrderID uint64          `json:"order_id" binding:"required"`
	Value   decimal.Decimal `json:"value"`
}

// CreateOrderPayment 制造商存入 货款+运费，金额必须精确相等
func (s *EscrowService) CreateOrderPayment(ctx context.Context, caller string, req *CreatePaymentRequest) (*entity.Payment, error) {
	var payment *entity.Payment
	err := s.ledger.apply(ctx, "createOrderPayment", caller, func(tx *Tx) error {
		order, err := tx.Order(req.OrderID)
		if err != nil {
			return err
		}
		if order.Manufacturer != caller {
			return ErrUnauthorized.With("only the manufacturer of order %d may pay", order.ID)
		}
		if order.Status != entity.OrderPending && order.Status != entity.OrderReadyForShipment {
			return ErrInvalidState.With("order %d is %s", order.ID, order.Status)
		}
		if _, err := tx.Repos.Payment.FindByOrderID(tx.Ctx, order.ID); err == nil {
			return ErrPaymentExists.With("order %d", order.ID)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		q := s.quote(order)
		if !req.Value.Equal(q.Total) {
			return ErrIncorrectPayment.With("expected %s wei, got %s", q.Total, req.Value)
		}

		payment = &entity.Payment{
			OrderID:    order.ID,
			Payer:      caller,
			Amount:     q.Amount,
			CarrierFee: q.CarrierFee,
			CreatedAt:  tx.Now,
			UpdatedAt:  tx.Now,
		}
		if err := tx.Repos.Payment.Create(tx.Ctx, payment); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		if err := tx.Transfer(order.ID, entity.TransferDeposit, caller, entity.EscrowAccount, q.Total); err != nil {
			return fmt.Errorf("record deposit: %w", err)
		}
		tx.Emit(entity.EventPaymentCreated, orderRef(order.ID), caller, entity.JSONB{
			"order_id":    order.ID,
			"amount":      q.Amount.String(),
			"carrier_fee": q.CarrierFee.String(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// ReleasePayment 送达且清关后放款：货款给供应商，运费给承运商
func (s *EscrowService) ReleasePayment(ctx context.Context, caller string, orderID uint64) (*entity.Payment, error) {
	var payment *entity.Payment
	err := s.ledger.apply(ctx, "releasePayment", caller, func(tx *Tx) error {
		order, err := tx.Order(orderID)
		if err != nil {
			return err
		}
		shipment, err := tx.Shipment(orderID)
		if err != nil {
			return err
		}
		if caller != order.Manufacturer && caller != order.Supplier && caller != shipment.Carrier && !s.ledger.IsAdmin(caller) {
			return ErrUnauthorized.With("caller is not a party of order %d", orderID)
		}
		if shipment.Status != entity.ShipmentDelivered {
			return ErrNotDelivered.With("shipment %d is %s", orderID, shipment.Status)
		}
		if !shipment.IsCustomsCleared {
			return ErrNotCleared.With("shipment %d", orderID)
		}
		payment, err = tx.Payment(orderID)
		if err != nil {
			return err
		}
		if payment.Settled() {
			return settledError(payment)
		}

		now := tx.Now
		payment.Released = true
		payment.ReleasedAt = &now
		payment.UpdatedAt = now
		if err := tx.Repos.Payment.Update(tx.Ctx, payment); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		if err := tx.Transfer(orderID, entity.TransferPayout, entity.EscrowAccount, order.Supplier, payment.Amount); err != nil {
			return fmt.Errorf("record payout: %w", err)
		}
		if err := tx.Transfer(orderID, entity.TransferCarrierFee, entity.EscrowAccount, shipment.Carrier, payment.CarrierFee); err != nil {
			return fmt.Errorf("record carrier fee: %w", err)
		}
		tx.Emit(entity.EventPaymentReleased, orderRef(orderID), caller, entity.JSONB{
			"order_id":    orderID,
			"supplier":    order.Supplier,
			"carrier":     shipment.Carrier,
			"amount":      payment.Amount.String(),
			"carrier_fee": payment.CarrierFee.String(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func settledError(p *entity.Payment) error {
	if p.Released {
		return ErrAlreadyReleased.With("order %d", p.OrderID)
	}
	return ErrAlreadyRefunded.With("order %d", p.OrderID)
}

// RefundPayment 订单被拒或质检失败时，向制造商退还全部托管金额
func (s *EscrowService) RefundPayment(ctx context.Context, caller string, orderID uint64) (*entity.Payment, error) {
	var payment *entity.Payment
	err := s.ledger.apply(ctx, "refundPayment", caller, func(tx *Tx) error {
		order, err := tx.Order(orderID)
		if err != nil {
			return err
		}
		if caller != order.Manufacturer && !s.ledger.IsAdmin(caller) {
			return ErrUnauthorized.With("only the manufacturer of order %d may request a refund", orderID)
		}
		if order.Status != entity.OrderRejected && order.QualityCheck != entity.QualityFailed {
			return ErrNotRefundable.With("order %d is %s with quality %s", orderID, order.Status, order.QualityCheck)
		}
		payment, err = tx.Payment(orderID)
		if err != nil {
			return err
		}
		if payment.Settled() {
			return settledError(payment)
		}

		now := tx.Now
		payment.Refunded = true
		payment.RefundedAt = &now
		payment.UpdatedAt = now
		if err := tx.Repos.Payment.Update(tx.Ctx, payment); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		if err := tx.Transfer(orderID, entity.TransferRefund, entity.EscrowAccount, payment.Payer, payment.Deposit()); err != nil {
			return fmt.Errorf("record refund: %w", err)
		}
		tx.Emit(entity.EventPaymentRefunded, orderRef(orderID), caller, entity.JSONB{
			"order_id": orderID,
			"payer":    payment.Payer,
			"amount":   payment.Deposit().String(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// GetPayment 获取订单付款
func (s *EscrowService) GetPayment(ctx context.Context, orderID uint64) (*entity.Payment, error) {
	payment, err := s.ledger.repos.Payment.FindByOrderID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrPaymentNotFound.With("order %d", orderID)
	}
	return payment, err
}

// ListTransfers 某账户的资金流水
func (s *EscrowService) ListTransfers(ctx context.Context, account string, page, pageSize int) ([]entity.Transfer, int64, error) {
	if account != entity.EscrowAccount {
		addr, err := NormalizeAddress(account)
		if err != nil {
			return nil, 0, err
		}
		account = addr
	}
	return s.ledger.repos.Payment.ListTransfersByAccount(ctx, account, page, pageSize)
}

// ListOrderTransfers 订单的资金流水
func (s *EscrowService) ListOrderTransfers(ctx context.Context, orderID uint64) ([]entity.Transfer, error) {
	return s.ledger.repos.Payment.ListTransfersByOrder(ctx, orderID)
}
