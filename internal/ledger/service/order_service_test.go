package service

import (
	"math"
	"testing"
	"time"

	"github.com/bitfantasy/cargotrack/internal/ledger/entity"
	"github.com/bitfantasy/cargotrack/internal/ledger/testutil"
	"github.com/bitfantasy/cargotrack/internal/shared/units"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrder_CreateFreezesPriceAndNumbersSequentially(t *testing.T) {
	f := newFixture(t)

	first := f.createOrder(entity.PartEngine, 10)
	second := f.createOrder(entity.PartTransmission, 1)

	assert.EqualValues(t, 1, first.ID)
	assert.EqualValues(t, 2, second.ID)
	assert.Equal(t, manufacturerAddr, first.Manufacturer)
	assert.Equal(t, supplierAddr, first.Supplier)
	assert.True(t, first.PricePerUnit.Equal(units.Ether(1)))
	assert.True(t, first.TotalPrice().Equal(units.Ether(10)))
	assert.Equal(t, entity.OrderPending, first.Status)
	assert.Equal(t, entity.QualityPending, first.QualityCheck)
	assert.False(t, first.IsCompleted)
	assert.True(t, first.CreatedAt.Equal(fixtureStart))

	count, err := f.svc.Order.GetOrderCount(f.ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestOrder_CreateValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		caller string
		req    CreateOrderRequest
		want   error
	}{
		{"unregistered manufacturer", strangerAddr, CreateOrderRequest{Supplier: supplierAddr, PartType: entity.PartEngine, Quantity: 1}, ErrNotAuthorized},
		{"part not authorized", manufacturerAddr, CreateOrderRequest{Supplier: supplierAddr, PartType: entity.PartBrakeAssembly, Quantity: 1}, ErrNotAuthorized},
		{"unknown part", manufacturerAddr, CreateOrderRequest{Supplier: supplierAddr, PartType: entity.PartType(9), Quantity: 1}, ErrNotAuthorized},
		{"supplier not registered", manufacturerAddr, CreateOrderRequest{Supplier: testutil.Address(50), PartType: entity.PartEngine, Quantity: 1}, ErrInvalidPart},
		{"zero quantity", manufacturerAddr, CreateOrderRequest{Supplier: supplierAddr, PartType: entity.PartEngine, Quantity: 0}, ErrInvalidQuantity},
		{"quantity beyond int64", manufacturerAddr, CreateOrderRequest{Supplier: supplierAddr, PartType: entity.PartEngine, Quantity: 1 << 63}, ErrInvalidQuantity},
		{"bad supplier address", manufacturerAddr, CreateOrderRequest{Supplier: "0xnope", PartType: entity.PartEngine, Quantity: 1}, ErrInvalidAddress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := f.svc.Order.CreateOrder(f.ctx, tt.caller, &req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOrder_CreateAcceptsLargestQuantity(t *testing.T) {
	f := newFixture(t)

	order := f.createOrder(entity.PartEngine, math.MaxInt64)
	assert.EqualValues(t, uint64(math.MaxInt64), order.Quantity)

	stored, err := f.svc.Order.GetOrder(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.Quantity, stored.Quantity)
}

func TestOrder_CreateRejectsTotalWiderThanAmountColumn(t *testing.T) {
	f := newFixture(t)
	huge := decimal.New(1, entity.AmountDigits-1)
	_, err := f.svc.Registry.RegisterSupplier(f.ctx, adminAddr, &RegisterSupplierRequest{
		Address: testutil.Address(31),
		Name:    "Bulk Engines",
		Prices:  [entity.PartTypeCount]decimal.Decimal{huge, decimal.Zero, decimal.Zero},
	})
	require.NoError(t, err)

	_, err = f.svc.Order.CreateOrder(f.ctx, manufacturerAddr, &CreateOrderRequest{
		Supplier: testutil.Address(31),
		PartType: entity.PartEngine,
		Quantity: 10,
	})
	require.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Equal(t, KindValue, KindOf(err))

	count, err := f.svc.Order.GetOrderCount(f.ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}

func TestOrder_CreateRejectsZeroPrice(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Registry.RegisterManufacturer(f.ctx, adminAddr, &RegisterManufacturerRequest{
		Address:         testutil.Address(30),
		Name:            "Brakes Inc",
		AuthorizedParts: []entity.PartType{entity.PartBrakeAssembly},
	})
	require.NoError(t, err)

	_, err = f.svc.Order.CreateOrder(f.ctx, testutil.Address(30), &CreateOrderRequest{
		Supplier: supplierAddr,
		PartType: entity.PartBrakeAssembly,
		Quantity: 1,
	})
	assert.ErrorIs(t, err, ErrInvalidPart)
}

func TestOrder_AcceptAndReject(t *testing.T) {
	f := newFixture(t)
	a := f.createOrder(entity.PartEngine, 1)
	b := f.createOrder(entity.PartEngine, 1)

	_, err := f.svc.Order.AcceptOrder(f.ctx, manufacturerAddr, a.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	accepted, err := f.svc.Order.AcceptOrder(f.ctx, supplierAddr, a.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderAccepted, accepted.Status)

	_, err = f.svc.Order.AcceptOrder(f.ctx, supplierAddr, a.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = f.svc.Order.RejectOrder(f.ctx, supplierAddr, a.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	rejected, err := f.svc.Order.RejectOrder(f.ctx, supplierAddr, b.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderRejected, rejected.Status)

	_, err = f.svc.Order.AcceptOrder(f.ctx, supplierAddr, 99)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrder_QualityCheckBeforeAcceptKeepsPending(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(entity.PartEngine, 1)

	f.clock.Advance(48 * time.Hour)
	checked, err := f.svc.Order.UpdateQualityCheck(f.ctx, supplierAddr, order.ID, entity.QualityPassed)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderPending, checked.Status)
	assert.True(t, checked.IsCompleted)
	require.NotNil(t, checked.QualityCheckedAt)
	assert.True(t, checked.QualityCheckedAt.Equal(f.clock.Now()))

	accepted, err := f.svc.Order.AcceptOrder(f.ctx, supplierAddr, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderAccepted, accepted.Status)

	ready, err := f.svc.Order.InitiateShipment(f.ctx, manufacturerAddr, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderReadyForShipment, ready.Status)
}

func TestOrder_QualityCheckRules(t *testing.T) {
	f := newFixture(t)
	order := f.createOrder(entity.PartEngine, 1)

	_, err := f.svc.Order.UpdateQualityCheck(f.ctx, supplierAddr, order.ID, entity.QualityPending)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.svc.Order.UpdateQualityCheck(f.ctx, manufacturerAddr, order.ID, entity.QualityPassed)
	assert.ErrorIs(t, err, ErrUnauthorized)

	failed, err := f.svc.Order.UpdateQualityCheck(f.ctx, supplierAddr, order.ID, entity.QualityFailed)
	require.NoError(t, err)
	assert.Equal(t, entity.QualityFailed, failed.QualityCheck)
	assert.False(t, failed.IsCompleted)
	assert.Nil(t, failed.QualityCheckedAt)

	_, err = f.svc.Order.UpdateQualityCheck(f.ctx, supplierAddr, order.ID, entity.QualityPassed)
	assert.ErrorIs(t, err, ErrInvalidState)

	rejected := f.createOrder(entity.PartEngine, 1)
	_, err = f.svc.Order.RejectOrder(f.ctx, supplierAddr, rejected.ID)
	require.NoError(t, err)
	_, err = f.svc.Order.UpdateQualityCheck(f.ctx, supplierAddr, rejected.ID, entity.QualityPassed)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestOrder_InitiateShipmentIsIdempotent(t *testing.T) {
	f := newFixture(t)
	order := f.readyOrder(1)
	before := len(f.sink.names())

	again, err := f.svc.Order.InitiateShipment(f.ctx, manufacturerAddr, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderReadyForShipment, again.Status)
	assert.Len(t, f.sink.names(), before, "no-op must not emit events")

	_, err = f.svc.Order.InitiateShipment(f.ctx, supplierAddr, order.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	pending := f.createOrder(entity.PartEngine, 1)
	_, err = f.svc.Order.InitiateShipment(f.ctx, manufacturerAddr, pending.ID)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestOrder_ListWithFilters(t *testing.T) {
	f := newFixture(t)
	f.createOrder(entity.PartEngine, 1)
	second := f.createOrder(entity.PartEngine, 2)
	_, err := f.svc.Order.AcceptOrder(f.ctx, supplierAddr, second.ID)
	require.NoError(t, err)

	items, total, err := f.svc.Order.ListOrders(f.ctx, 1, 20, map[string]string{"supplier": supplierAddr})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, items, 2)

	for _, status := range []string{"1", "Accepted", "accepted"} {
		items, total, err = f.svc.Order.ListOrders(f.ctx, 1, 20, map[string]string{"status": status})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total, status)
		assert.Equal(t, second.ID, items[0].ID)
	}

	_, _, err = f.svc.Order.ListOrders(f.ctx, 1, 20, map[string]string{"status": "Shipped"})
	assert.Error(t, err)

	_, total, err = f.svc.Order.ListOrders(f.ctx, 1, 20, map[string]string{"manufacturer": strangerAddr})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestOrder_Export(t *testing.T) {
	f := newFixture(t)
	f.createOrder(entity.PartEngine, 10)
	f.readyOrder(3)

	file, filename, err := f.svc.Order.ExportOrders(f.ctx, nil)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, "orders_20240301.xlsx", filename)

	rows, err := file.GetRows("Orders")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "订单号", rows[0][0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "Engine", rows[1][3])
	assert.Equal(t, "10.0", rows[1][6])
	assert.Equal(t, "ReadyForShipment", rows[2][7])
	assert.Equal(t, "Passed", rows[2][8])
}
