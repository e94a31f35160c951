package handler

import (
	"github.com/bitfantasy/cargotrack/internal/ledger/service"
	"github.com/gin-gonic/gin"
)

// PaymentHandler 托管支付处理器
type PaymentHandler struct {
	svc *service.EscrowService
}

func NewPaymentHandler(svc *service.EscrowService) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

// QuotePayment 应付金额
// GET /api/v1/payments/:orderId/quote
func (h *PaymentHandler) QuotePayment(c *gin.Context) {
	orderID, ok := ParamID(c, "orderId")
	if !ok {
		return
	}
	quote, err := h.svc.QuotePayment(c.Request.Context(), orderID)
	if err != nil {
		Fail(c, "查询应付金额失败", err)
		return
	}
	Success(c, quote)
}

// CreatePayment 存入托管
// POST /api/v1/payments
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req service.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	payment, err := h.svc.CreateOrderPayment(c.Request.Context(), GetAddress(c), &req)
	if err != nil {
		Fail(c, "存入托管失败", err)
		return
	}
	Created(c, payment)
}

// GetPayment 托管详情
// GET /api/v1/payments/:orderId
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	orderID, ok := ParamID(c, "orderId")
	if !ok {
		return
	}
	payment, err := h.svc.GetPayment(c.Request.Context(), orderID)
	if err != nil {
		Fail(c, "获取托管失败", err)
		return
	}
	transfers, err := h.svc.ListOrderTransfers(c.Request.Context(), orderID)
	if err != nil {
		InternalError(c, "获取资金流水失败: "+err.Error())
		return
	}
	Success(c, gin.H{"payment": payment, "transfers": transfers})
}

// ReleasePayment 放款
// POST /api/v1/payments/:orderId/release
func (h *PaymentHandler) ReleasePayment(c *gin.Context) {
	orderID, ok := ParamID(c, "orderId")
	if !ok {
		return
	}
	payment, err := h.svc.ReleasePayment(c.Request.Context(), GetAddress(c), orderID)
	if err != nil {
		Fail(c, "放款失败", err)
		return
	}
	Success(c, payment)
}

// RefundPayment 退款
// POST /api/v1/payments/:orderId/refund
func (h *PaymentHandler) RefundPayment(c *gin.Context) {
	orderID, ok := ParamID(c, "orderId")
	if !ok {
		return
	}
	payment, err := h.svc.RefundPayment(c.Request.Context(), GetAddress(c), orderID)
	if err != nil {
		Fail(c, "退款失败", err)
		return
	}
	Success(c, payment)
}

// ListTransfers 账户资金流水，address 可为 escrow
// GET /api/v1/accounts/:address/transfers
func (h *PaymentHandler) ListTransfers(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.ListTransfers(c.Request.Context(), c.Param("address"), page, pageSize)
	if err != nil {
		Fail(c, "获取资金流水失败", err)
		return
	}
	SuccessList(c, items, total, page, pageSize)
}
