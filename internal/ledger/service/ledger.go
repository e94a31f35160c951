package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bitfantasy/cargotrack/internal/ledger/entity"
	"github.com/bitfantasy/cargotrack/internal/ledger/repository"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Config 账本规则参数
type Config struct {
	AdminAddress      string
	CarrierFeeBps     int64
	GracePeriod       time.Duration
	PenaltyRatePerDay decimal.Decimal
}

// DefaultConfig 默认参数：运费5%，宽限期30天，每天0.01 ether
func DefaultConfig() Config {
	return Config{
		CarrierFeeBps:     500,
		GracePeriod:       30 * 24 * time.Hour,
		PenaltyRatePerDay: decimal.New(1, 16),
	}
}

// EventSink 事件下游（SSE、Kafka、缓存失效）
type EventSink interface {
	Publish(ctx context.Context, event *entity.LedgerEvent) error
}

// Ledger 账本核心：串行化写操作，每个操作一个数据库事务，提交后分发事件
type Ledger struct {
	db        *gorm.DB
	repos     *repository.Repositories
	cfg       Config
	mu        sync.Mutex
	publishMu sync.Mutex
	sinks     []EventSink
	clock     func() time.Time
	logger    *zap.Logger
}

func (l *Ledger) carrierFee(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(l.cfg.CarrierFeeBps)).Div(decimal.NewFromInt(10000)).Truncate(0)
}

func NewLedger(db *gorm.DB, cfg Config) *Ledger {
	if cfg.AdminAddress != "" && common.IsHexAddress(cfg.AdminAddress) {
		cfg.AdminAddress = common.HexToAddress(cfg.AdminAddress).Hex()
	}
	if cfg.CarrierFeeBps <= 0 {
		cfg.CarrierFeeBps = DefaultConfig().CarrierFeeBps
	}
	if cfg.PenaltyRatePerDay.IsZero() {
		cfg.PenaltyRatePerDay = DefaultConfig().PenaltyRatePerDay
	}
	return &Ledger{
		db:     db,
		repos:  repository.NewRepositories(db),
		cfg:    cfg,
		clock:  time.Now,
		logger: zap.NewNop(),
	}
}

// SetClock 替换时钟（测试用）
func (l *Ledger) SetClock(clock func() time.Time) {
	l.clock = clock
}

// SetLogger 注入日志
func (l *Ledger) SetLogger(logger *zap.Logger) {
	l.logger = logger
}

// AddSink 注册事件下游
func (l *Ledger) AddSink(sink EventSink) {
	l.sinks = append(l.sinks, sink)
}

// Config 当前规则参数
func (l *Ledger) Config() Config {
	return l.cfg
}

// Repos 非事务仓库（只读查询用）
func (l *Ledger) Repos() *repository.Repositories {
	return l.repos
}

// IsAdmin 是否为管理员地址
func (l *Ledger) IsAdmin(address string) bool {
	return l.cfg.AdminAddress != "" && strings.EqualFold(l.cfg.AdminAddress, address)
}

func (l *Ledger) now() time.Time {
	return l.clock().UTC().Truncate(time.Microsecond)
}

// Tx 单个账本操作的事务上下文
type Tx struct {
	Ctx    context.Context
	Repos  *repository.Repositories
	Now    time.Time
	Actor  string
	events []*entity.LedgerEvent
}

// Emit 记录事件，随事务一起提交
func (t *Tx) Emit(name string, orderID *uint64, subject string, args entity.JSONB) {
	t.events = append(t.events, &entity.LedgerEvent{
		ID:        uuid.New().String(),
		Name:      name,
		OrderID:   orderID,
		Subject:   subject,
		Actor:     t.Actor,
		Args:      args,
		CreatedAt: t.Now,
	})
}

// Order 在事务内加锁读取订单
func (t *Tx) Order(id uint64) (*entity.Order, error) {
	o, err := t.Repos.Order.FindByIDForUpdate(t.Ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrOrderNotFound.With("order %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load order %d: %w", id, err)
	}
	return o, nil
}

// Shipment 在事务内加锁读取运单
func (t *Tx) Shipment(id uint64) (*entity.Shipment, error) {
	s, err := t.Repos.Shipment.FindByIDForUpdate(t.Ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrShipmentNotFound.With("shipment %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load shipment %d: %w", id, err)
	}
	return s, nil
}

// Payment 在事务内加锁读取付款
func (t *Tx) Payment(orderID uint64) (*entity.Payment, error) {
	p, err := t.Repos.Payment.FindByOrderIDForUpdate(t.Ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrPaymentNotFound.With("order %d", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("load payment %d: %w", orderID, err)
	}
	return p, nil
}

// Transfer 记录一笔资金流水
func (t *Tx) Transfer(orderID uint64, kind, from, to string, amount decimal.Decimal) error {
	if amount.IsZero() {
		return nil
	}
	return t.Repos.Payment.CreateTransfer(t.Ctx, &entity.Transfer{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		Kind:      kind,
		From:      from,
		To:        to,
		Amount:    amount,
		CreatedAt: t.Now,
	})
}

// apply 执行一个原子操作：全部成功后提交并分发事件，任何错误都回滚
func (l *Ledger) apply(ctx context.Context, op, actor string, fn func(tx *Tx) error) error {
	l.mu.Lock()

	var events []*entity.LedgerEvent
	err := l.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		tx := &Tx{
			Ctx:   ctx,
			Repos: l.repos.WithTx(gtx),
			Now:   l.now(),
			Actor: actor,
		}
		if err := fn(tx); err != nil {
			return err
		}
		if len(tx.events) == 0 {
			return nil
		}
		seq, err := tx.Repos.Event.NextSeq(ctx)
		if err != nil {
			return fmt.Errorf("next event seq: %w", err)
		}
		for _, e := range tx.events {
			e.Seq = seq
			seq++
			if err := tx.Repos.Event.Create(ctx, e); err != nil {
				return fmt.Errorf("persist event %s: %w", e.Name, err)
			}
		}
		events = tx.events
		return nil
	})
	if err != nil {
		l.mu.Unlock()
		if KindOf(err) != "" {
			l.logger.Debug("ledger operation rejected", zap.String("op", op), zap.String("actor", actor), zap.Error(err))
		} else {
			l.logger.Error("ledger operation failed", zap.String("op", op), zap.String("actor", actor), zap.Error(err))
		}
		return err
	}

	// 提交顺序即分发顺序
	l.publishMu.Lock()
	l.mu.Unlock()
	defer l.publishMu.Unlock()

	l.logger.Info("ledger operation applied", zap.String("op", op), zap.String("actor", actor), zap.Int("events", len(events)))
	l.dispatch(context.WithoutCancel(ctx), events)
	return nil
}

func (l *Ledger) dispatch(ctx context.Context, events []*entity.LedgerEvent) {
	for _, e := range events {
		for _, sink := range l.sinks {
			if err := sink.Publish(ctx, e); err != nil {
				l.logger.Warn("publish ledger event failed",
					zap.String("event", e.Name),
					zap.Uint64("seq", e.Seq),
					zap.Error(err))
			}
		}
	}
}

// NormalizeAddress 校验并返回校验和格式地址
func NormalizeAddress(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", ErrInvalidAddress.With("%q", address)
	}
	addr := common.HexToAddress(address)
	if addr == (common.Address{}) {
		return "", ErrInvalidAddress.With("zero address")
	}
	return addr.Hex(), nil
}

func orderRef(id uint64) *uint64 {
	return &id
}
