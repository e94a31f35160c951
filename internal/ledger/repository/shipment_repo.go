package repository

import (
	"context"

	"github.com/bitfantasy/cargotrack/internal/ledger/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ShipmentRepository 运单仓库
type ShipmentRepository struct {
	db *gorm.DB
}

func NewShipmentRepository(db *gorm.DB) *ShipmentRepository {
	return &ShipmentRepository{db: db}
}

// FindAll 查询运单列表
func (r *ShipmentRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Shipment, int64, error) {
	var items []entity.Shipment
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Shipment{})

	if carrier := filters["carrier"]; carrier != "" {
		query = query.Where("carrier = ?", carrier)
	}
	if raw := filters["status"]; raw != "" {
		status, err := entity.ParseShipmentStatus(raw)
		if err != nil {
			return nil, 0, err
		}
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("id ASC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 根据ID查找运单
func (r *ShipmentRepository) FindByID(ctx context.Context, id uint64) (*entity.Shipment, error) {
	var s entity.Shipment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// FindByIDForUpdate 加行锁读取运单（须在事务内调用）
func (r *ShipmentRepository) FindByIDForUpdate(ctx context.Context, id uint64) (*entity.Shipment, error) {
	var s entity.Shipment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&s).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// Count 运单总数
func (r *ShipmentRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&entity.Shipment{}).Count(&total).Error
	return total, err
}

// CountByStatus 按状态统计运单
func (r *ShipmentRepository) CountByStatus(ctx context.Context) (map[entity.ShipmentStatus]int64, error) {
	var rows []struct {
		Status entity.ShipmentStatus
		Total  int64
	}
	err := r.db.WithContext(ctx).
		Model(&entity.Shipment{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make(map[entity.ShipmentStatus]int64, len(rows))
	for _, row := range rows {
		result[row.Status] = row.Total
	}
	return result, nil
}

// Create 创建运单
func (r *ShipmentRepository) Create(ctx context.Context, s *entity.Shipment) error {
	return r.db.WithContext(ctx).Create(s).Error
}

// Update 更新运单
func (r *ShipmentRepository) Update(ctx context.Context, s *entity.Shipment) error {
	return r.db.WithContext(ctx).Save(s).Error
}
