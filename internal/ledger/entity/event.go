package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONB JSON对象类型
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (j *JSONB) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("failed to scan JSONB: %v", value)
	}
	return json.Unmarshal(raw, j)
}

// LedgerEvent 账本事件，与状态变更在同一事务中写入
type LedgerEvent struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Seq       uint64    `json:"seq" gorm:"not null;uniqueIndex"`
	Name      string    `json:"name" gorm:"size:50;not null;index"`
	OrderID   *uint64   `json:"order_id,omitempty" gorm:"index"`
	Subject   string    `json:"subject" gorm:"size:42;index"`
	Actor     string    `json:"actor" gorm:"size:42"`
	Args      JSONB     `json:"args" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}

func (LedgerEvent) TableName() string {
	return "ledger_events"
}

// 事件名
const (
	EventManufacturerRegistered = "ManufacturerRegistered"
	EventSupplierRegistered     = "SupplierRegistered"
	EventSupplierPricesUpdated  = "SupplierPricesUpdated"
	EventCarrierRegistered      = "CarrierRegistered"
	EventOrderCreated           = "OrderCreated"
	EventOrderAccepted          = "OrderAccepted"
	EventOrderRejected          = "OrderRejected"
	EventQualityCheckUpdated    = "QualityCheckUpdated"
	EventShipmentInitiated      = "ShipmentInitiated"
	EventShipmentCreated        = "ShipmentCreated"
	EventShipmentStatusUpdated  = "ShipmentStatusUpdated"
	EventCustomsStatusUpdated   = "CustomsStatusUpdated"
	EventPaymentCreated         = "PaymentCreated"
	EventPaymentReleased        = "PaymentReleased"
	EventPaymentRefunded        = "PaymentRefunded"
	EventMilestoneUpdated       = "MilestoneUpdated"
	EventDocumentUploaded       = "DocumentUploaded"
)

// AllModels 需要迁移的表
func AllModels() []interface{} {
	return []interface{}{
		&Manufacturer{},
		&Supplier{},
		&Carrier{},
		&Order{},
		&Shipment{},
		&ShipmentDocument{},
		&Payment{},
		&Transfer{},
		&Milestone{},
		&LedgerEvent{},
	}
}
