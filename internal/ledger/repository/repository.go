package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 账本仓库集合
type Repositories struct {
	db          *gorm.DB
	Participant *ParticipantRepository
	Order       *OrderRepository
	Shipment    *ShipmentRepository
	Payment     *PaymentRepository
	Milestone   *MilestoneRepository
	Document    *DocumentRepository
	Event       *EventRepository
}

// NewRepositories 创建账本仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:          db,
		Participant: NewParticipantRepository(db),
		Order:       NewOrderRepository(db),
		Shipment:    NewShipmentRepository(db),
		Payment:     NewPaymentRepository(db),
		Milestone:   NewMilestoneRepository(db),
		Document:    NewDocumentRepository(db),
		Event:       NewEventRepository(db),
	}
}

// WithTx 返回绑定到事务的仓库集合
func (r *Repositories) WithTx(tx *gorm.DB) *Repositories {
	return NewRepositories(tx)
}

// DB 底层连接
func (r *Repositories) DB() *gorm.DB {
	return r.db
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
