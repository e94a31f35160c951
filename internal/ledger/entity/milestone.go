package entity

import "time"

// Milestone 订单里程碑，仅运单承运商可写
type Milestone struct {
	OrderID   uint64          `json:"order_id" gorm:"primaryKey;autoIncrement:false"`
	Type      MilestoneType   `json:"milestone_type" gorm:"primaryKey;autoIncrement:false"`
	Status    MilestoneStatus `json:"status" gorm:"not null"`
	Note      string          `json:"note" gorm:"type:text"`
	UpdatedBy string          `json:"updated_by" gorm:"size:42"`
	UpdatedAt time.Time       `json:"updated_at" gorm:"autoUpdateTime:false"`
}

func (Milestone) TableName() string {
	return "ledger_milestones"
}
