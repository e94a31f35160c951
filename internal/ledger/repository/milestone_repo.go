package repository

import (
	"context"

	"github.com/bitfantasy/cargotrack/internal/ledger/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MilestoneRepository 里程碑仓库
type MilestoneRepository struct {
	db *gorm.DB
}

func NewMilestoneRepository(db *gorm.DB) *MilestoneRepository {
	return &MilestoneRepository{db: db}
}

// Find 查找里程碑
func (r *MilestoneRepository) Find(ctx context.Context, orderID uint64, milestoneType entity.MilestoneType) (*entity.Milestone, error) {
	var m entity.Milestone
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND type = ?", orderID, milestoneType).
		First(&m).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// ListByOrder 订单全部里程碑
func (r *MilestoneRepository) ListByOrder(ctx context.Context, orderID uint64) ([]entity.Milestone, error) {
	var items []entity.Milestone
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("type ASC").
		Find(&items).Error
	return items, err
}

// Upsert 写入或覆盖里程碑
func (r *MilestoneRepository) Upsert(ctx context.Context, m *entity.Milestone) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}, {Name: "type"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "note", "updated_by", "updated_at"}),
		}).
		Create(m).Error
}
