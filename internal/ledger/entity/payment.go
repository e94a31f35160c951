package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment 托管付款，每个订单最多一笔
type Payment struct {
	OrderID    uint64          `json:"order_id" gorm:"primaryKey;autoIncrement:false"`
	Payer      string          `json:"payer" gorm:"size:42;not null"`
	Amount     decimal.Decimal `json:"amount" gorm:"type:varchar(80);not null"`
	CarrierFee decimal.Decimal `json:"carrier_fee" gorm:"type:varchar(80);not null"`
	Released   bool            `json:"released" gorm:"default:false"`
	Refunded   bool            `json:"refunded" gorm:"default:false"`
	ReleasedAt *time.Time      `json:"released_at"`
	RefundedAt *time.Time      `json:"refunded_at"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" gorm:"autoUpdateTime:false"`
}

func (Payment) TableName() string {
	return "ledger_payments"
}

// Deposit 托管总额 = 货款 + 运费
func (p *Payment) Deposit() decimal.Decimal {
	return p.Amount.Add(p.CarrierFee)
}

// Settled 已放款或已退款，之后不可再变更
func (p *Payment) Settled() bool {
	return p.Released || p.Refunded
}

// EscrowAccount 托管账户的伪地址
const EscrowAccount = "escrow"

// Transfer 资金流水
type Transfer struct {
	ID        string          `json:"id" gorm:"primaryKey;size:36"`
	OrderID   uint64          `json:"order_id" gorm:"not null;index"`
	Kind      string          `json:"kind" gorm:"size:20;not null"` // deposit/payout/carrier_fee/refund
	From      string          `json:"from" gorm:"column:from_address;size:42;not null;index"`
	To        string          `json:"to" gorm:"column:to_address;size:42;not null;index"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:varchar(80);not null"`
	CreatedAt time.Time       `json:"created_at"`
}

func (Transfer) TableName() string {
	return "ledger_transfers"
}

// 流水类型
const (
	TransferDeposit    = "deposit"
	TransferPayout     = "payout"
	TransferCarrierFee = "carrier_fee"
	TransferRefund     = "refund"
)
