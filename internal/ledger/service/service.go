package service

import (
	"github.com/bitfantasy/cargotrack/internal/shared/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Services 账本服务集合
type Services struct {
	Ledger    *Ledger
	Registry  *RegistryService
	Order     *OrderService
	Shipment  *ShipmentService
	Escrow    *EscrowService
	Penalty   *PenaltyService
	Milestone *MilestoneService
	Workflow  *WorkflowService
	Document  *DocumentService
	Dashboard *DashboardService
	Event     *EventService
	Auth      *AuthService
}

// NewServices 创建服务集合；rdb 与 store 可为 nil（不启用缓存/单证存储）
func NewServices(ledger *Ledger, rdb *redis.Client, store storage.ObjectStore, authCfg AuthConfig, logger *zap.Logger) *Services {
	if logger == nil {
		logger = zap.NewNop()
	}
	ledger.SetLogger(logger)

	registry := NewRegistryService(ledger)
	orders := NewOrderService(ledger)
	shipments := NewShipmentService(ledger)

	dashboard := NewDashboardService(ledger, rdb)
	dashboard.SetLogger(logger)
	ledger.AddSink(dashboard)

	return &Services{
		Ledger:    ledger,
		Registry:  registry,
		Order:     orders,
		Shipment:  shipments,
		Escrow:    NewEscrowService(ledger),
		Penalty:   NewPenaltyService(ledger),
		Milestone: NewMilestoneService(ledger),
		Workflow:  NewWorkflowService(ledger, orders, shipments),
		Document:  NewDocumentService(ledger, store),
		Dashboard: dashboard,
		Event:     NewEventService(ledger),
		Auth:      NewAuthService(registry, rdb, authCfg),
	}
}
