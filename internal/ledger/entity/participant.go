package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Manufacturer 制造商
type Manufacturer struct {
	Address         string    `json:"address" gorm:"primaryKey;size:42"`
	Name            string    `json:"name" gorm:"size:200;not null"`
	AuthorizedParts PartTypes `json:"authorized_parts" gorm:"type:text"`
	IsRegistered    bool      `json:"is_registered" gorm:"default:false"`
	RegisteredAt    time.Time `json:"registration_timestamp"`
}

func (Manufacturer) TableName() string {
	return "ledger_manufacturers"
}

// IsAuthorizedFor 是否有该零件的下单授权
func (m *Manufacturer) IsAuthorizedFor(part PartType) bool {
	return m.IsRegistered && m.AuthorizedParts.Contains(part)
}

// Supplier 供应商，价格以最小货币单位(wei)存储
type Supplier struct {
	Address            string          `json:"address" gorm:"primaryKey;size:42"`
	Name               string          `json:"name" gorm:"size:200;not null"`
	EnginePrice        decimal.Decimal `json:"engine_price" gorm:"type:varchar(80);not null"`
	TransmissionPrice  decimal.Decimal `json:"transmission_price" gorm:"type:varchar(80);not null"`
	BrakeAssemblyPrice decimal.Decimal `json:"brake_assembly_price" gorm:"type:varchar(80);not null"`
	IsRegistered       bool            `json:"is_registered" gorm:"default:false"`
	RegisteredAt       time.Time       `json:"registration_timestamp" gorm:"index"`
	UpdatedAt          time.Time       `json:"updated_at" gorm:"autoUpdateTime:false"`
}

func (Supplier) TableName() string {
	return "ledger_suppliers"
}

// Prices 按PartType索引的价格表
func (s *Supplier) Prices() [PartTypeCount]decimal.Decimal {
	return [PartTypeCount]decimal.Decimal{s.EnginePrice, s.TransmissionPrice, s.BrakeAssemblyPrice}
}

// SetPrices 覆盖价格表
func (s *Supplier) SetPrices(prices [PartTypeCount]decimal.Decimal) {
	s.EnginePrice = prices[PartEngine]
	s.TransmissionPrice = prices[PartTransmission]
	s.BrakeAssemblyPrice = prices[PartBrakeAssembly]
}

// PriceFor 指定零件单价，未知零件返回0
func (s *Supplier) PriceFor(part PartType) decimal.Decimal {
	if !part.Valid() {
		return decimal.Zero
	}
	return s.Prices()[part]
}

// Carrier 承运商
type Carrier struct {
	Address      string    `json:"address" gorm:"primaryKey;size:42"`
	Name         string    `json:"name" gorm:"size:200;not null"`
	IsRegistered bool      `json:"is_registered" gorm:"default:false"`
	RegisteredAt time.Time `json:"registration_timestamp"`
}

func (Carrier) TableName() string {
	return "ledger_carriers"
}
