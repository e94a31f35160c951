package entity

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// Order 采购订单，单价在创建时从供应商价格表冻结
type Order struct {
	ID               uint64          `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Manufacturer     string          `json:"manufacturer" gorm:"size:42;not null;index"`
	Supplier         string          `json:"supplier" gorm:"size:42;not null;index"`
	PartType         PartType        `json:"part_type" gorm:"not null"`
	Quantity         uint64          `json:"quantity" gorm:"not null"`
	PricePerUnit     decimal.Decimal `json:"price_per_unit" gorm:"type:varchar(80);not null"`
	Status           OrderStatus     `json:"status" gorm:"not null;default:0;index"`
	QualityCheck     QualityCheck    `json:"quality_check" gorm:"not null;default:0"`
	IsCompleted      bool            `json:"is_completed" gorm:"default:false"`
	QualityCheckedAt *time.Time      `json:"quality_checked_at"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" gorm:"autoUpdateTime:false"`
}

func (Order) TableName() string {
	return "ledger_orders"
}

// AmountDigits 金额列 varchar(80) 能容纳的最大十进制位数
const AmountDigits = 80

// FitsAmountColumn 金额写入金额列不会被截断或拒绝
func FitsAmountColumn(d decimal.Decimal) bool {
	return len(d.String()) <= AmountDigits
}

// TotalPrice 订单总额 = 数量 × 单价
func (o *Order) TotalPrice() decimal.Decimal {
	return o.PricePerUnit.Mul(decimal.NewFromBigInt(new(big.Int).SetUint64(o.Quantity), 0))
}
