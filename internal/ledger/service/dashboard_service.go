package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bitfantasy/cargotrack/internal/ledger/entity"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const overviewCacheKey = "dashboard:overview"

// DashboardService 看板服务，快照缓存在 redis，任意账本事件都会使其失效
type DashboardService struct {
	ledger *Ledger
	rdb    *redis.Client
	ttl    time.Duration
	sf     singleflight.Group
	// gen 每个账本事件加一，重建期间变化则快照作废
	gen    atomic.Uint64
	logger *zap.Logger
}

func NewDashboardService(ledger *Ledger, rdb *redis.Client) *DashboardService {
	return &DashboardService{
		ledger: ledger,
		rdb:    rdb,
		ttl:    30 * time.Second,
		logger: zap.NewNop(),
	}
}

// SetLogger 注入日志
func (s *DashboardService) SetLogger(logger *zap.Logger) {
	s.logger = logger
}

// Overview 账本概览
type Overview struct {
	Manufacturers     int              `json:"manufacturers"`
	Suppliers         int              `json:"suppliers"`
	Carriers          int              `json:"carriers"`
	Orders            int64            `json:"orders"`
	OrdersByStatus    map[string]int64 `json:"orders_by_status"`
	Shipments         int64            `json:"shipments"`
	ShipmentsByStatus map[string]int64 `json:"shipments_by_status"`
	PaymentsHeld      int64            `json:"payments_held"`
	PaymentsReleased  int64            `json:"payments_released"`
	PaymentsRefunded  int64            `json:"payments_refunded"`
	Events            int64            `json:"events"`
	GeneratedAt       time.Time        `json:"generated_at"`
}

// GetOverview 读取概览，缓存未命中时重建（并发请求只重建一次）
func (s *DashboardService) GetOverview(ctx context.Context) (*Overview, error) {
	if s.rdb != nil {
		raw, err := s.rdb.Get(ctx, overviewCacheKey).Bytes()
		if err == nil {
			var cached Overview
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("read overview cache failed", zap.Error(err))
		}
	}

	// 重建结果由所有等待者共享，不随首个调用方取消
	v, err, _ := s.sf.Do(overviewCacheKey, func() (interface{}, error) {
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rebuildTimeout)
		defer cancel()

		gen := s.gen.Load()
		overview, err := s.build(bctx)
		if err != nil {
			return nil, err
		}
		s.store(bctx, overview, gen)
		return overview, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Overview), nil
}

const rebuildTimeout = 10 * time.Second

// store 写入快照；gen 之后有事件到达则不写，写入后才到达的由再次检查删除
func (s *DashboardService) store(ctx context.Context, overview *Overview, gen uint64) {
	if s.rdb == nil || s.gen.Load() != gen {
		return
	}
	raw, err := json.Marshal(overview)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, overviewCacheKey, raw, s.ttl).Err(); err != nil {
		s.logger.Warn("write overview cache failed", zap.Error(err))
		return
	}
	if s.gen.Load() != gen {
		if err := s.rdb.Del(ctx, overviewCacheKey).Err(); err != nil {
			s.logger.Warn("drop stale overview failed", zap.Error(err))
		}
	}
}

func (s *DashboardService) build(ctx context.Context) (*Overview, error) {
	repos := s.ledger.repos
	overview := &Overview{GeneratedAt: s.ledger.now()}

	var (
		manufacturers []entity.Manufacturer
		suppliers     []entity.Supplier
		carriers      []entity.Carrier
		orderStatus   map[entity.OrderStatus]int64
		shipStatus    map[entity.ShipmentStatus]int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		manufacturers, err = repos.Participant.ListManufacturers(gctx)
		return
	})
	g.Go(func() (err error) {
		suppliers, err = repos.Participant.ListSuppliers(gctx)
		return
	})
	g.Go(func() (err error) {
		carriers, err = repos.Participant.ListCarriers(gctx)
		return
	})
	g.Go(func() (err error) {
		orderStatus, err = repos.Order.CountByStatus(gctx)
		return
	})
	g.Go(func() (err error) {
		shipStatus, err = repos.Shipment.CountByStatus(gctx)
		return
	})
	g.Go(func() (err error) {
		overview.PaymentsHeld, overview.PaymentsReleased, overview.PaymentsRefunded, err = repos.Payment.CountBySettlement(gctx)
		return
	})
	g.Go(func() (err error) {
		overview.Events, err = repos.Event.Count(gctx)
		return
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build overview: %w", err)
	}

	overview.Manufacturers = len(manufacturers)
	overview.Suppliers = len(suppliers)
	overview.Carriers = len(carriers)
	overview.OrdersByStatus = make(map[string]int64, len(orderStatus))
	for status, n := range orderStatus {
		overview.OrdersByStatus[status.String()] = n
		overview.Orders += n
	}
	overview.ShipmentsByStatus = make(map[string]int64, len(shipStatus))
	for status, n := range shipStatus {
		overview.ShipmentsByStatus[status.String()] = n
		overview.Shipments += n
	}
	return overview, nil
}

// Publish 事件下游：清除概览缓存
func (s *DashboardService) Publish(ctx context.Context, _ *entity.LedgerEvent) error {
	s.gen.Add(1)
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Del(ctx, overviewCacheKey).Err()
}
