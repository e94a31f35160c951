package entity

import "time"

// Shipment 运单，与订单一一对应（ID == OrderID）
type Shipment struct {
	ID               uint64         `json:"id" gorm:"primaryKey;autoIncrement:false"`
	OrderID          uint64         `json:"order_id" gorm:"not null;uniqueIndex"`
	Carrier          string         `json:"carrier" gorm:"size:42;not null;index"`
	PartType         PartType       `json:"part_type" gorm:"not null"`
	TransportMode    TransportMode  `json:"transport_mode" gorm:"not null"`
	InitialLocation  string         `json:"initial_location" gorm:"size:200"`
	CurrentLocation  string         `json:"current_location" gorm:"size:200"`
	FinalLocation    string         `json:"final_location" gorm:"size:200"`
	Status           ShipmentStatus `json:"status" gorm:"not null;default:0"`
	IsCustomsCleared bool           `json:"is_customs_cleared" gorm:"default:false"`
	CustomsNote      string         `json:"customs_note" gorm:"type:text"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" gorm:"autoUpdateTime:false"`
}

func (Shipment) TableName() string {
	return "ledger_shipments"
}

// ReadyForRelease 已送达且已清关
func (s *Shipment) ReadyForRelease() bool {
	return s.Status == ShipmentDelivered && s.IsCustomsCleared
}

// ShipmentDocument 运单单证（提单、报关单等），文件本体存对象存储
type ShipmentDocument struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	ShipmentID  uint64    `json:"shipment_id" gorm:"not null;index"`
	Kind        string    `json:"kind" gorm:"size:30;not null"` // bill_of_lading/customs_declaration/packing_list/other
	FileName    string    `json:"file_name" gorm:"size:255;not null"`
	ObjectKey   string    `json:"object_key" gorm:"size:500;not null"`
	ContentType string    `json:"content_type" gorm:"size:100"`
	Size        int64     `json:"size"`
	UploadedBy  string    `json:"uploaded_by" gorm:"size:42"`
	CreatedAt   time.Time `json:"created_at"`
}

func (ShipmentDocument) TableName() string {
	return "ledger_shipment_documents"
}

// 单证类型
const (
	DocumentBillOfLading       = "bill_of_lading"
	DocumentCustomsDeclaration = "customs_declaration"
	DocumentPackingList        = "packing_list"
	DocumentOther              = "other"
)
