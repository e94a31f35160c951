package repository

import (
	"context"

	"github.com/bitfantasy/cargotrack/internal/ledger/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentRepository 托管付款与资金流水仓库
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// FindByOrderID 根据订单ID查找付款
func (r *PaymentRepository) FindByOrderID(ctx context.Context, orderID uint64) (*entity.Payment, error) {
	var p entity.Payment
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// FindByOrderIDForUpdate 加行锁读取付款（须在事务内调用）
func (r *PaymentRepository) FindByOrderIDForUpdate(ctx context.Context, orderID uint64) (*entity.Payment, error) {
	var p entity.Payment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ?", orderID).
		First(&p).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// Create 创建付款
func (r *PaymentRepository) Create(ctx context.Context, p *entity.Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// Update 更新付款
func (r *PaymentRepository) Update(ctx context.Context, p *entity.Payment) error {
	return r.db.WithContext(ctx).Save(p).Error
}

// CountBySettlement 统计托管中/已放款/已退款笔数
func (r *PaymentRepository) CountBySettlement(ctx context.Context) (held, released, refunded int64, err error) {
	base := r.db.WithContext(ctx).Model(&entity.Payment{})
	if err = base.Session(&gorm.Session{}).Where("released = ? AND refunded = ?", false, false).Count(&held).Error; err != nil {
		return
	}
	if err = base.Session(&gorm.Session{}).Where("released = ?", true).Count(&released).Error; err != nil {
		return
	}
	err = base.Session(&gorm.Session{}).Where("refunded = ?", true).Count(&refunded).Error
	return
}

// CreateTransfer 记录一笔资金流水
func (r *PaymentRepository) CreateTransfer(ctx context.Context, t *entity.Transfer) error {
	return r.db.WithContext(ctx).Create(t).Error
}

// ListTransfersByOrder 订单的资金流水
func (r *PaymentRepository) ListTransfersByOrder(ctx context.Context, orderID uint64) ([]entity.Transfer, error) {
	var items []entity.Transfer
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	return items, err
}

// ListTransfersByAccount 某地址作为收款方或付款方的流水
func (r *PaymentRepository) ListTransfersByAccount(ctx context.Context, account string, page, pageSize int) ([]entity.Transfer, int64, error) {
	var items []entity.Transfer
	var total int64

	query := r.db.WithContext(ctx).
		Model(&entity.Transfer{}).
		Where("from_address = ? OR to_address = ?", account, account)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}
