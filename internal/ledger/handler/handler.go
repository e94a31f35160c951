package handler

import (
	"errors"
	"strconv"

	"github.com/bitfantasy/cargotrack/internal/ledger/service"
	"github.com/bitfantasy/cargotrack/internal/ledger/sse"
	"github.com/gin-gonic/gin"
)

// Handlers 账本处理器集合
type Handlers struct {
	Auth      *AuthHandler
	Registry  *RegistryHandler
	Order     *OrderHandler
	Shipment  *ShipmentHandler
	Payment   *PaymentHandler
	Event     *EventHandler
	Dashboard *DashboardHandler
}

// NewHandlers 创建账本处理器集合
func NewHandlers(svc *service.Services, hub *sse.Hub) *Handlers {
	return &Handlers{
		Auth:      NewAuthHandler(svc.Auth, svc.Registry),
		Registry:  NewRegistryHandler(svc.Registry),
		Order:     NewOrderHandler(svc.Order, svc.Workflow, svc.Penalty, svc.Milestone, svc.Escrow),
		Shipment:  NewShipmentHandler(svc.Shipment, svc.Workflow, svc.Document),
		Payment:   NewPaymentHandler(svc.Escrow),
		Event:     NewEventHandler(svc.Event, hub),
		Dashboard: NewDashboardHandler(svc.Dashboard),
	}
}

// === 响应辅助函数 ===

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// ErrorDetail 业务拒绝的分类与原因
type ErrorDetail struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// 业务错误码
var kindCodes = map[service.ErrorKind]int{
	service.KindAuthorization: 40300,
	service.KindNotFound:      40400,
	service.KindValue:         40000,
	service.KindState:         40900,
	service.KindUniqueness:    40901,
}

// Fail 按错误分类返回，message 带操作前缀
func Fail(c *gin.Context, prefix string, err error) {
	var e *service.Error
	if !errors.As(err, &e) {
		InternalError(c, prefix+": "+err.Error())
		return
	}
	code, ok := kindCodes[e.Kind]
	if !ok {
		code = 50000
	}
	c.JSON(code/100, Response{
		Code:    code,
		Message: prefix + ": " + e.Error(),
		Data:    ErrorDetail{Kind: string(e.Kind), Reason: e.Reason},
	})
}

// GetAddress 当前调用方地址（JWTAuth 写入）
func GetAddress(c *gin.Context) string {
	address, _ := c.Get("address")
	if a, ok := address.(string); ok {
		return a
	}
	return ""
}

func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

// SuccessList 分页列表响应
func SuccessList(c *gin.Context, items interface{}, total int64, page, pageSize int) {
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	Success(c, ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages,
		},
	})
}

// ParamID 解析路径中的数字ID
func ParamID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, "无效的ID: "+c.Param(name))
		return 0, false
	}
	return id, true
}
