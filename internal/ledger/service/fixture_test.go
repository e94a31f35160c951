package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bitfantasy/cargotrack/internal/ledger/entity"
	"github.com/bitfantasy/cargotrack/internal/ledger/testutil"
	"github.com/bitfantasy/cargotrack/internal/shared/units"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	adminAddr        = testutil.Address(1)
	manufacturerAddr = testutil.Address(2)
	supplierAddr     = testutil.Address(3)
	carrierAddr      = testutil.Address(4)
	strangerAddr     = testutil.Address(99)
)

var fixtureStart = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (s *memoryStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memoryStore) PresignedURL(_ context.Context, key string, expiry time.Duration, fileName string) (string, error) {
	return fmt.Sprintf("https://objects.test/%s?name=%s&expires=%d", key, fileName, int(expiry.Seconds())), nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []*entity.LedgerEvent
	err    error
}

func (s *recordingSink) Publish(_ context.Context, e *entity.LedgerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func (s *recordingSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.events))
	for i, e := range s.events {
		names[i] = e.Name
	}
	return names
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	svc   *Services
	clock *fakeClock
	store *memoryStore
	sink  *recordingSink
	rdb   *redis.Client
	mr    *miniredis.Miniredis
}

// newFixture 注册好一组参与方：制造商可采购 Engine/Transmission，
// 供应商 Engine=1 ETH、Transmission=2 ETH、BrakeAssembly 无报价
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.SetupTestDB(t)
	rdb, mr := testutil.SetupRedis(t)

	cfg := DefaultConfig()
	cfg.AdminAddress = adminAddr
	ledger := NewLedger(db, cfg)
	clock := &fakeClock{now: fixtureStart}
	ledger.SetClock(clock.Now)

	store := newMemoryStore()
	svc := NewServices(ledger, rdb, store, AuthConfig{Secret: testutil.JWTSecret, Issuer: "cargotrack"}, nil)
	sink := &recordingSink{}
	ledger.AddSink(sink)

	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		svc:   svc,
		clock: clock,
		store: store,
		sink:  sink,
		rdb:   rdb,
		mr:    mr,
	}

	_, err := svc.Registry.RegisterManufacturer(f.ctx, adminAddr, &RegisterManufacturerRequest{
		Address:         manufacturerAddr,
		Name:            "Acme Motors",
		AuthorizedParts: []entity.PartType{entity.PartEngine, entity.PartTransmission},
	})
	require.NoError(t, err)
	_, err = svc.Registry.RegisterSupplier(f.ctx, adminAddr, &RegisterSupplierRequest{
		Address: supplierAddr,
		Name:    "Parts Co",
		Prices:  [entity.PartTypeCount]decimal.Decimal{units.Ether(1), units.Ether(2), decimal.Zero},
	})
	require.NoError(t, err)
	_, err = svc.Registry.RegisterCarrier(f.ctx, adminAddr, &RegisterCarrierRequest{
		Address: carrierAddr,
		Name:    "Blue Sea Logistics",
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) createOrder(part entity.PartType, quantity uint64) *entity.Order {
	f.t.Helper()
	order, err := f.svc.Order.CreateOrder(f.ctx, manufacturerAddr, &CreateOrderRequest{
		Supplier: supplierAddr,
		PartType: part,
		Quantity: quantity,
	})
	require.NoError(f.t, err)
	return order
}

// readyOrder 下单 -> 接单 -> 质检通过，订单进入 ReadyForShipment
func (f *fixture) readyOrder(quantity uint64) *entity.Order {
	f.t.Helper()
	order := f.createOrder(entity.PartEngine, quantity)
	_, err := f.svc.Order.AcceptOrder(f.ctx, supplierAddr, order.ID)
	require.NoError(f.t, err)
	order, err = f.svc.Order.UpdateQualityCheck(f.ctx, supplierAddr, order.ID, entity.QualityPassed)
	require.NoError(f.t, err)
	require.Equal(f.t, entity.OrderReadyForShipment, order.Status)
	return order
}

func (f *fixture) ship(order *entity.Order) *entity.Shipment {
	f.t.Helper()
	shipment, err := f.svc.Shipment.CreateShipment(f.ctx, manufacturerAddr, &CreateShipmentRequest{
		OrderID:         order.ID,
		Carrier:         carrierAddr,
		PartType:        order.PartType,
		TransportMode:   entity.TransportOcean,
		InitialLocation: "Shanghai",
		FinalLocation:   "Hamburg",
	})
	require.NoError(f.t, err)
	return shipment
}

func (f *fixture) pay(order *entity.Order) *entity.Payment {
	f.t.Helper()
	quote, err := f.svc.Escrow.QuotePayment(f.ctx, order.ID)
	require.NoError(f.t, err)
	payment, err := f.svc.Escrow.CreateOrderPayment(f.ctx, manufacturerAddr, &CreatePaymentRequest{
		OrderID: order.ID,
		Value:   quote.Total,
	})
	require.NoError(f.t, err)
	return payment
}

func (f *fixture) deliver(shipment *entity.Shipment) *entity.Shipment {
	f.t.Helper()
	result, err := f.svc.Workflow.ClearCustoms(f.ctx, carrierAddr, shipment.ID, &ClearCustomsRequest{
		TargetStatus: entity.ShipmentDelivered,
		Location:     "Hamburg",
		Note:         "cleared",
	})
	require.NoError(f.t, err)
	return result.Shipment
}
