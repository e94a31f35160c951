package repository

import (
	"context"

	"github.com/bitfantasy/cargotrack/internal/ledger/entity"
	"gorm.io/gorm"
)

// ParticipantRepository 制造商/供应商/承运商仓库
type ParticipantRepository struct {
	db *gorm.DB
}

func NewParticipantRepository(db *gorm.DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

// FindManufacturer 根据地址查找制造商
func (r *ParticipantRepository) FindManufacturer(ctx context.Context, address string) (*entity.Manufacturer, error) {
	var m entity.Manufacturer
	if err := r.db.WithContext(ctx).Where("address = ?", address).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// CreateManufacturer 创建制造商
func (r *ParticipantRepository) CreateManufacturer(ctx context.Context, m *entity.Manufacturer) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ListManufacturers 制造商列表（按注册时间）
func (r *ParticipantRepository) ListManufacturers(ctx context.Context) ([]entity.Manufacturer, error) {
	var items []entity.Manufacturer
	err := r.db.WithContext(ctx).Order("registered_at ASC, address ASC").Find(&items).Error
	return items, err
}

// FindSupplier 根据地址查找供应商
func (r *ParticipantRepository) FindSupplier(ctx context.Context, address string) (*entity.Supplier, error) {
	var s entity.Supplier
	if err := r.db.WithContext(ctx).Where("address = ?", address).First(&s).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// CreateSupplier 创建供应商
func (r *ParticipantRepository) CreateSupplier(ctx context.Context, s *entity.Supplier) error {
	return r.db.WithContext(ctx).Create(s).Error
}

// UpdateSupplier 更新供应商
func (r *ParticipantRepository) UpdateSupplier(ctx context.Context, s *entity.Supplier) error {
	return r.db.WithContext(ctx).Save(s).Error
}

// ListSuppliers 供应商列表，顺序即 supplierAddresses 的下标顺序
func (r *ParticipantRepository) ListSuppliers(ctx context.Context) ([]entity.Supplier, error) {
	var items []entity.Supplier
	err := r.db.WithContext(ctx).Order("registered_at ASC, address ASC").Find(&items).Error
	return items, err
}

// CountSuppliers 供应商数量
func (r *ParticipantRepository) CountSuppliers(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&entity.Supplier{}).Count(&total).Error
	return total, err
}

// FindCarrier 根据地址查找承运商
func (r *ParticipantRepository) FindCarrier(ctx context.Context, address string) (*entity.Carrier, error) {
	var c entity.Carrier
	if err := r.db.WithContext(ctx).Where("address = ?", address).First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// CreateCarrier 创建承运商
func (r *ParticipantRepository) CreateCarrier(ctx context.Context, c *entity.Carrier) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// ListCarriers 承运商列表
func (r *ParticipantRepository) ListCarriers(ctx context.Context) ([]entity.Carrier, error) {
	var items []entity.Carrier
	err := r.db.WithContext(ctx).Order("registered_at ASC, address ASC").Find(&items).Error
	return items, err
}
