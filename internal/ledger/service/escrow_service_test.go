package service

import (
	"testing"
	"time"

	"github.com/bitfantasy/cargotrack/internal/ledger/entity"
	"github.com/bitfantasy/cargotrack/internal/shared/units"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscrow_CarrierFeeTruncates(t *testing.T) {
	f := newFixture(t)
	assert.True(t, f.svc.Escrow.CarrierFee(units.Ether(10)).Equal(units.Ether(10).Div(decimal.NewFromInt(20))))
	assert.True(t, f.svc.Escrow.CarrierFee(decimal.NewFromInt(39)).Equal(decimal.NewFromInt(1)))
	assert.True(t, f.svc.Escrow.CarrierFee(decimal.NewFromInt(19)).IsZero())
}

func TestEscrow_ExactPaymentRequired(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(entity.PartEngine, 10)

	quote, err := f.svc.Escrow.QuotePayment(f.ctx, order.ID)
	require.NoError(t, err)
	tenAndAHalf, err := units.ParseEther("10.5")
	require.NoError(t, err)
	assert.True(t, quote.Total.Equal(tenAndAHalf), "got %s", quote.Total)

	_, err = f.svc.Escrow.CreateOrderPayment(f.ctx, manufacturerAddr, &CreatePaymentRequest{OrderID: order.ID, Value: units.Ether(10)})
	assert.ErrorIs(t, err, ErrIncorrectPayment)

	_, err = f.svc.Escrow.CreateOrderPayment(f.ctx, manufacturerAddr, &CreatePaymentRequest{OrderID: order.ID, Value: tenAndAHalf.Add(decimal.NewFromInt(1))})
	assert.ErrorIs(t, err, ErrIncorrectPayment)

	_, err = f.svc.Escrow.CreateOrderPayment(f.ctx, supplierAddr, &CreatePaymentRequest{OrderID: order.ID, Value: tenAndAHalf})
	assert.ErrorIs(t, err, ErrUnauthorized)

	payment, err := f.svc.Escrow.CreateOrderPayment(f.ctx, manufacturerAddr, &CreatePaymentRequest{OrderID: order.ID, Value: tenAndAHalf})
	require.NoError(t, err)
	assert.True(t, payment.Amount.Equal(units.Ether(10)))
	assert.True(t, payment.CarrierFee.Equal(units.Ether(10).Div(decimal.NewFromInt(20))))
	assert.False(t, payment.Released)
	assert.False(t, payment.Refunded)

	_, err = f.svc.Escrow.CreateOrderPayment(f.ctx, manufacturerAddr, &CreatePaymentRequest{OrderID: order.ID, Value: tenAndAHalf})
	assert.ErrorIs(t, err, ErrPaymentExists)

	transfers, _, err := f.svc.Escrow.ListTransfers(f.ctx, entity.EscrowAccount, 1, 20)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, entity.TransferDeposit, transfers[0].Kind)
	assert.Equal(t, manufacturerAddr, transfers[0].From)
	assert.True(t, transfers[0].Amount.Equal(tenAndAHalf))
}

func TestEscrow_PaymentRequiresPendingOrReady(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(entity.PartEngine, 1)
	_, err := f.svc.Order.AcceptOrder(f.ctx, supplierAddr, order.ID)
	require.NoError(t, err)

	quote, err := f.svc.Escrow.QuotePayment(f.ctx, order.ID)
	require.NoError(t, err)
	_, err = f.svc.Escrow.CreateOrderPayment(f.ctx, manufacturerAddr, &CreatePaymentRequest{OrderID: order.ID, Value: quote.Total})
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = f.svc.Escrow.QuotePayment(f.ctx, 42)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestEscrow_ReleaseAfterDeliveryAndClearance(t *testing.T) {
	f := newFixture(t)
	order := f.readyOrder(10)
	f.pay(order)
	shipment := f.ship(order)

	_, err := f.svc.Escrow.ReleasePayment(f.ctx, supplierAddr, order.ID)
	assert.ErrorIs(t, err, ErrNotDelivered)

	_, err = f.svc.Shipment.UpdateShipmentStatus(f.ctx, carrierAddr, shipment.ID, &UpdateStatusRequest{Status: entity.ShipmentDelivered})
	require.NoError(t, err)
	_, err = f.svc.Escrow.ReleasePayment(f.ctx, supplierAddr, order.ID)
	assert.ErrorIs(t, err, ErrNotCleared)

	_, err = f.svc.Escrow.ReleasePayment(f.ctx, strangerAddr, order.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestEscrow_FullLifecycle(t *testing.T) {
	f := newFixture(t)
	order := f.readyOrder(10)
	f.pay(order)
	f.deliver(f.ship(order))

	f.clock.Advance(time.Hour)
	payment, err := f.svc.Escrow.ReleasePayment(f.ctx, supplierAddr, order.ID)
	require.NoError(t, err)
	assert.True(t, payment.Released)
	assert.False(t, payment.Refunded)
	assert.True(t, payment.Settled())
	require.NotNil(t, payment.ReleasedAt)

	stored, err := f.svc.Escrow.GetPayment(f.ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.UpdatedAt.Equal(f.clock.Now()), "updated_at %s", stored.UpdatedAt)

	_, err = f.svc.Escrow.ReleasePayment(f.ctx, supplierAddr, order.ID)
	assert.ErrorIs(t, err, ErrAlreadyReleased)
	_, err = f.svc.Escrow.RefundPayment(f.ctx, manufacturerAddr, order.ID)
	assert.ErrorIs(t, err, ErrNotRefundable)

	transfers, err := f.svc.Escrow.ListOrderTransfers(f.ctx, order.ID)
	require.NoError(t, err)
	byKind := make(map[string]entity.Transfer)
	for _, tr := range transfers {
		byKind[tr.Kind] = tr
	}
	require.Len(t, byKind, 3)
	assert.Equal(t, supplierAddr, byKind[entity.TransferPayout].To)
	assert.True(t, byKind[entity.TransferPayout].Amount.Equal(units.Ether(10)))
	assert.Equal(t, carrierAddr, byKind[entity.TransferCarrierFee].To)
	assert.True(t, byKind[entity.TransferCarrierFee].Amount.Equal(units.Ether(10).Div(decimal.NewFromInt(20))))

	// 托管账户收支平衡
	escrow, _, err := f.svc.Escrow.ListTransfers(f.ctx, entity.EscrowAccount, 1, 50)
	require.NoError(t, err)
	balance := decimal.Zero
	for _, tr := range escrow {
		if tr.To == entity.EscrowAccount {
			balance = balance.Add(tr.Amount)
		} else {
			balance = balance.Sub(tr.Amount)
		}
	}
	assert.True(t, balance.IsZero(), "escrow balance %s", balance)

	names := f.sink.names()
	assert.Equal(t, entity.EventPaymentReleased, names[len(names)-1])
}

func TestEscrow_RefundRejectedOrder(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(entity.PartTransmission, 2)
	payment := f.pay(order)

	_, err := f.svc.Escrow.RefundPayment(f.ctx, manufacturerAddr, order.ID)
	assert.ErrorIs(t, err, ErrNotRefundable)

	_, err = f.svc.Order.RejectOrder(f.ctx, supplierAddr, order.ID)
	require.NoError(t, err)

	_, err = f.svc.Escrow.RefundPayment(f.ctx, supplierAddr, order.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	refunded, err := f.svc.Escrow.RefundPayment(f.ctx, manufacturerAddr, order.ID)
	require.NoError(t, err)
	assert.True(t, refunded.Refunded)
	assert.False(t, refunded.Released)

	_, err = f.svc.Escrow.RefundPayment(f.ctx, adminAddr, order.ID)
	assert.ErrorIs(t, err, ErrAlreadyRefunded)

	transfers, _, err := f.svc.Escrow.ListTransfers(f.ctx, manufacturerAddr, 1, 20)
	require.NoError(t, err)
	require.Len(t, transfers, 2)
	var refund *entity.Transfer
	for i := range transfers {
		if transfers[i].Kind == entity.TransferRefund {
			refund = &transfers[i]
		}
	}
	require.NotNil(t, refund)
	assert.True(t, refund.Amount.Equal(payment.Deposit()))
}

func TestEscrow_RefundAfterFailedQualityByAdmin(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(entity.PartEngine, 4)
	f.pay(order)
	_, err := f.svc.Order.UpdateQualityCheck(f.ctx, supplierAddr, order.ID, entity.QualityFailed)
	require.NoError(t, err)

	refunded, err := f.svc.Escrow.RefundPayment(f.ctx, adminAddr, order.ID)
	require.NoError(t, err)
	assert.True(t, refunded.Refunded)

	stored, err := f.svc.Escrow.GetPayment(f.ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.Refunded)
	assert.NotNil(t, stored.RefundedAt)

	_, err = f.svc.Escrow.GetPayment(f.ctx, 77)
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}
