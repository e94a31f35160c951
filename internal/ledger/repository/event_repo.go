package repository

import (
	"context"
	"strconv"

	"github.com/bitfantasy/cargotrack/internal/ledger/entity"
	"gorm.io/gorm"
)

// EventRepository 账本事件仓库
type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// NextSeq 下一个事件序号
func (r *EventRepository) NextSeq(ctx context.Context) (uint64, error) {
	var maxSeq uint64
	err := r.db.WithContext(ctx).
		Model(&entity.LedgerEvent{}).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq).Error
	if err != nil {
		return 0, err
	}
	return maxSeq + 1, nil
}

// Create 写入事件
func (r *EventRepository) Create(ctx context.Context, e *entity.LedgerEvent) error {
	return r.db.WithContext(ctx).Create(e).Error
}

// FindAll 查询事件，支持 order_id / name / subject / after_seq 过滤
func (r *EventRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.LedgerEvent, int64, error) {
	var items []entity.LedgerEvent
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.LedgerEvent{})

	if orderID := filters["order_id"]; orderID != "" {
		if id, err := strconv.ParseUint(orderID, 10, 64); err == nil {
			query = query.Where("order_id = ?", id)
		}
	}
	if name := filters["name"]; name != "" {
		query = query.Where("name = ?", name)
	}
	if subject := filters["subject"]; subject != "" {
		query = query.Where("subject = ?", subject)
	}
	if after := filters["after_seq"]; after != "" {
		if seq, err := strconv.ParseUint(after, 10, 64); err == nil {
			query = query.Where("seq > ?", seq)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("seq ASC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// Count 事件总数
func (r *EventRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&entity.LedgerEvent{}).Count(&total).Error
	return total, err
}
