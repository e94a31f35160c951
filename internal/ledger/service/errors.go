package service

import (
	"errors"
	"fmt"
)

// ErrorKind 错误分类
type ErrorKind string

const (
	KindAuthorization ErrorKind = "authorization"
	KindState         ErrorKind = "state"
	KindUniqueness    ErrorKind = "uniqueness"
	KindValue         ErrorKind = "value"
	KindNotFound      ErrorKind = "not_found"
)

// Error 业务错误，Reason 为对外暴露的拒绝原因
type Error struct {
	Kind   ErrorKind
	Reason string
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Reason
	}
	return e.Reason + ": " + e.Detail
}

// Is 同类且原因一致即视为相同；target 未指定原因时只比较分类
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// With 附带细节信息
func (e *Error) With(format string, args ...interface{}) *Error {
	return &Error{Kind: e.Kind, Reason: e.Reason, Detail: fmt.Sprintf(format, args...)}
}

// 错误分类哨兵
var (
	ErrAuthorization = &Error{Kind: KindAuthorization}
	ErrState         = &Error{Kind: KindState}
	ErrUniqueness    = &Error{Kind: KindUniqueness}
	ErrValue         = &Error{Kind: KindValue}
	ErrNotFound      = &Error{Kind: KindNotFound}
)

// 拒绝原因
var (
	ErrUnauthorized       = &Error{Kind: KindAuthorization, Reason: "Unauthorized"}
	ErrNotAuthorized      = &Error{Kind: KindAuthorization, Reason: "NotAuthorized"}
	ErrAlreadyRegistered  = &Error{Kind: KindUniqueness, Reason: "AlreadyRegistered"}
	ErrShipmentExists     = &Error{Kind: KindUniqueness, Reason: "ShipmentExists"}
	ErrPaymentExists      = &Error{Kind: KindUniqueness, Reason: "PaymentExists"}
	ErrInvalidPart        = &Error{Kind: KindValue, Reason: "InvalidPart"}
	ErrInvalidQuantity    = &Error{Kind: KindValue, Reason: "InvalidQuantity"}
	ErrInvalidAddress     = &Error{Kind: KindValue, Reason: "InvalidAddress"}
	ErrInvalidArgument    = &Error{Kind: KindValue, Reason: "InvalidArgument"}
	ErrIncorrectPayment   = &Error{Kind: KindValue, Reason: "IncorrectPaymentAmount"}
	ErrInvalidState       = &Error{Kind: KindState, Reason: "InvalidState"}
	ErrInvalidStatus      = &Error{Kind: KindState, Reason: "InvalidStatus"}
	ErrOrderNotCompleted  = &Error{Kind: KindState, Reason: "Order not completed"}
	ErrNotDelivered       = &Error{Kind: KindState, Reason: "ShipmentNotDelivered"}
	ErrNotCleared         = &Error{Kind: KindState, Reason: "CustomsNotCleared"}
	ErrAlreadyReleased    = &Error{Kind: KindState, Reason: "PaymentAlreadyReleased"}
	ErrAlreadyRefunded    = &Error{Kind: KindState, Reason: "PaymentAlreadyRefunded"}
	ErrNotRefundable      = &Error{Kind: KindState, Reason: "NotRefundable"}
	ErrCustomsFrozen      = &Error{Kind: KindState, Reason: "CustomsFrozen"}
	ErrOrderNotFound      = &Error{Kind: KindNotFound, Reason: "OrderNotFound"}
	ErrShipmentNotFound   = &Error{Kind: KindNotFound, Reason: "ShipmentNotFound"}
	ErrPaymentNotFound    = &Error{Kind: KindNotFound, Reason: "PaymentNotFound"}
	ErrParticipantMissing = &Error{Kind: KindNotFound, Reason: "NotRegistered"}
	ErrDocumentNotFound   = &Error{Kind: KindNotFound, Reason: "DocumentNotFound"}
)

// KindOf 返回错误分类，非业务错误返回空串
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
