package repository

import (
	"context"

	"github.com/bitfantasy/cargotrack/internal/ledger/entity"
	"gorm.io/gorm"
)

// DocumentRepository 运单单证仓库
type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create 保存单证元数据
func (r *DocumentRepository) Create(ctx context.Context, d *entity.ShipmentDocument) error {
	return r.db.WithContext(ctx).Create(d).Error
}

// FindByID 根据ID查找单证
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*entity.ShipmentDocument, error) {
	var d entity.ShipmentDocument
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

// ListByShipment 运单的全部单证
func (r *DocumentRepository) ListByShipment(ctx context.Context, shipmentID uint64) ([]entity.ShipmentDocument, error) {
	var items []entity.ShipmentDocument
	err := r.db.WithContext(ctx).
		Where("shipment_id = ?", shipmentID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}
