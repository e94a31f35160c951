package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// PartType 零件类型
type PartType uint8

const (
	PartEngine PartType = iota
	PartTransmission
	PartBrakeAssembly
)

// PartTypeCount 零件类型数量（供应商价格表长度）
const PartTypeCount = 3

var partTypeNames = [...]string{"Engine", "Transmission", "BrakeAssembly"}

func (p PartType) Valid() bool { return p < PartTypeCount }

func (p PartType) String() string {
	if !p.Valid() {
		return fmt.Sprintf("PartType(%d)", p)
	}
	return partTypeNames[p]
}

// PartTypes 授权零件集合
type PartTypes []PartType

func (p PartTypes) Contains(part PartType) bool {
	for _, v := range p {
		if v == part {
			return true
		}
	}
	return false
}

func (p PartTypes) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]PartType(p))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *PartTypes) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*p = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("failed to scan PartTypes: %v", value)
	}
	return json.Unmarshal(raw, (*[]PartType)(p))
}

// TransportMode 运输方式
type TransportMode uint8

const (
	TransportOcean TransportMode = iota
	TransportAir
)

func (m TransportMode) Valid() bool { return m <= TransportAir }

func (m TransportMode) String() string {
	switch m {
	case TransportOcean:
		return "Ocean"
	case TransportAir:
		return "Air"
	}
	return fmt.Sprintf("TransportMode(%d)", m)
}

// OrderStatus 订单状态
type OrderStatus uint8

const (
	OrderPending OrderStatus = iota
	OrderAccepted
	OrderReadyForShipment
	OrderRejected
)

func (s OrderStatus) String() string {
	switch s {
	case OrderPending:
		return "Pending"
	case OrderAccepted:
		return "Accepted"
	case OrderReadyForShipment:
		return "ReadyForShipment"
	case OrderRejected:
		return "Rejected"
	}
	return fmt.Sprintf("OrderStatus(%d)", s)
}

const orderStatusCount = 4

// ParseOrderStatus 解析订单状态名（不区分大小写）或数字编码
func ParseOrderStatus(s string) (OrderStatus, error) {
	code, err := parseEnum("order status", s, orderStatusCount, func(i int) string { return OrderStatus(i).String() })
	return OrderStatus(code), err
}

// QualityCheck 质检结果
type QualityCheck uint8

const (
	QualityPending QualityCheck = iota
	QualityPassed
	QualityFailed
)

func (q QualityCheck) String() string {
	switch q {
	case QualityPending:
		return "Pending"
	case QualityPassed:
		return "Passed"
	case QualityFailed:
		return "Failed"
	}
	return fmt.Sprintf("QualityCheck(%d)", q)
}

// ShipmentStatus 运单状态，只能单调递增
type ShipmentStatus uint8

const (
	ShipmentCreated ShipmentStatus = iota
	ShipmentInTransit
	ShipmentCustomsCleared
	ShipmentDelivered
)

func (s ShipmentStatus) Valid() bool { return s <= ShipmentDelivered }

func (s ShipmentStatus) String() string {
	switch s {
	case ShipmentCreated:
		return "Created"
	case ShipmentInTransit:
		return "InTransit"
	case ShipmentCustomsCleared:
		return "CustomsCleared"
	case ShipmentDelivered:
		return "Delivered"
	}
	return fmt.Sprintf("ShipmentStatus(%d)", s)
}

// ParseShipmentStatus 解析运单状态名（不区分大小写）或数字编码
func ParseShipmentStatus(s string) (ShipmentStatus, error) {
	code, err := parseEnum("shipment status", s, int(ShipmentDelivered)+1, func(i int) string { return ShipmentStatus(i).String() })
	return ShipmentStatus(code), err
}

func parseEnum(kind, s string, n int, name func(int) string) (int, error) {
	s = strings.TrimSpace(s)
	if code, err := strconv.Atoi(s); err == nil {
		if code >= 0 && code < n {
			return code, nil
		}
		return 0, fmt.Errorf("unknown %s %q", kind, s)
	}
	for i := 0; i < n; i++ {
		if strings.EqualFold(name(i), s) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q", kind, s)
}

// MilestoneType 里程碑类型
type MilestoneType uint8

const (
	MilestoneOrderPlaced MilestoneType = iota
	MilestoneProductionStarted
	MilestoneQualityChecked
	MilestoneShipped
	MilestoneCustomsCleared
	MilestoneDelivered
)

var milestoneTypeNames = [...]string{"OrderPlaced", "ProductionStarted", "QualityChecked", "Shipped", "CustomsCleared", "Delivered"}

func (m MilestoneType) Valid() bool { return int(m) < len(milestoneTypeNames) }

func (m MilestoneType) String() string {
	if !m.Valid() {
		return fmt.Sprintf("MilestoneType(%d)", m)
	}
	return milestoneTypeNames[m]
}

// MilestoneStatus 里程碑状态
type MilestoneStatus uint8

const (
	MilestonePending MilestoneStatus = iota
	MilestoneCompleted
)

func (s MilestoneStatus) Valid() bool { return s <= MilestoneCompleted }
