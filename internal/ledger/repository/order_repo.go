package repository

import (
	"context"

	"github.com/bitfantasy/cargotrack/internal/ledger/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderRepository 订单仓库
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func applyOrderFilters(query *gorm.DB, filters map[string]string) *gorm.DB {
	if manufacturer := filters["manufacturer"]; manufacturer != "" {
		query = query.Where("manufacturer = ?", manufacturer)
	}
	if supplier := filters["supplier"]; supplier != "" {
		query = query.Where("supplier = ?", supplier)
	}
	if raw := filters["status"]; raw != "" {
		status, err := entity.ParseOrderStatus(raw)
		if err != nil {
			_ = query.AddError(err)
			return query
		}
		query = query.Where("status = ?", status)
	}
	return query
}

// FindAll 查询订单列表
func (r *OrderRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Order, int64, error) {
	var items []entity.Order
	var total int64

	query := applyOrderFilters(r.db.WithContext(ctx).Model(&entity.Order{}), filters)

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

// ListAll 不分页查询订单（导出用）
func (r *OrderRepository) ListAll(ctx context.Context, filters map[string]string) ([]entity.Order, error) {
	var items []entity.Order
	err := applyOrderFilters(r.db.WithContext(ctx).Model(&entity.Order{}), filters).
		Order("id ASC").
		Find(&items).Error
	return items, err
}

// FindByID 根据ID查找订单
func (r *OrderRepository) FindByID(ctx context.Context, id uint64) (*entity.Order, error) {
	var o entity.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

// FindByIDForUpdate 加行锁读取订单（须在事务内调用）
func (r *OrderRepository) FindByIDForUpdate(ctx context.Context, id uint64) (*entity.Order, error) {
	var o entity.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&o).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

// NextID 下一个订单号，从1开始连续递增
func (r *OrderRepository) NextID(ctx context.Context) (uint64, error) {
	var maxID uint64
	err := r.db.WithContext(ctx).
		Model(&entity.Order{}).
		Select("COALESCE(MAX(id), 0)").
		Scan(&maxID).Error
	if err != nil {
		return 0, err
	}
	return maxID + 1, nil
}

// Count 订单总数
func (r *OrderRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&entity.Order{}).Count(&total).Error
	return total, err
}

// CountByStatus 按状态统计订单
func (r *OrderRepository) CountByStatus(ctx context.Context) (map[entity.OrderStatus]int64, error) {
	var rows []struct {
		Status entity.OrderStatus
		Total  int64
	}
	err := r.db.WithContext(ctx).
		Model(&entity.Order{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make(map[entity.OrderStatus]int64, len(rows))
	for _, row := range rows {
		result[row.Status] = row.Total
	}
	return result, nil
}

// Create 创建订单
func (r *OrderRepository) Create(ctx context.Context, o *entity.Order) error {
	return r.db.WithContext(ctx).Create(o).Error
}

// Update 更新订单
func (r *OrderRepository) Update(ctx context.Context, o *entity.Order) error {
	return r.db.WithContext(ctx).Save(o).Error
}
