package handler

import (
	"strconv"

	"github.com/bitfantasy/cargotrack/internal/ledger/entity"
	"github.com/bitfantasy/cargotrack/internal/ledger/service"
	"github.com/gin-gonic/gin"
)

// OrderHandler 订单处理器
type OrderHandler struct {
	svc        *service.OrderService
	workflow   *service.WorkflowService
	penalty    *service.PenaltyService
	milestones *service.MilestoneService
	escrow     *service.EscrowService
}

func NewOrderHandler(svc *service.OrderService, workflow *service.WorkflowService, penalty *service.PenaltyService, milestones *service.MilestoneService, escrow *service.EscrowService) *OrderHandler {
	return &OrderHandler{
		svc:        svc,
		workflow:   workflow,
		penalty:    penalty,
		milestones: milestones,
		escrow:     escrow,
	}
}

// CreateOrder 下单
// POST /api/v1/orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	order, err := h.svc.CreateOrder(c.Request.Context(), GetAddress(c), &req)
	if err != nil {
		Fail(c, "创建订单失败", err)
		return
	}
	Created(c, order)
}

// orderFilters status 接受状态名或编码，统一转成编码
func orderFilters(c *gin.Context) (map[string]string, bool) {
	filters := map[string]string{
		"manufacturer": c.Query("manufacturer"),
		"supplier":     c.Query("supplier"),
	}
	if raw := c.Query("status"); raw != "" {
		status, err := entity.ParseOrderStatus(raw)
		if err != nil {
			BadRequest(c, "参数错误: "+err.Error())
			return nil, false
		}
		filters["status"] = strconv.Itoa(int(status))
	}
	return filters, true
}

// ListOrders 订单列表
// GET /api/v1/orders?manufacturer=&supplier=&status=
func (h *OrderHandler) ListOrders(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters, ok := orderFilters(c)
	if !ok {
		return
	}
	items, total, err := h.svc.ListOrders(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取订单列表失败: "+err.Error())
		return
	}
	SuccessList(c, items, total, page, pageSize)
}

// ExportOrders 导出订单
// GET /api/v1/orders/export
func (h *OrderHandler) ExportOrders(c *gin.Context) {
	filters, ok := orderFilters(c)
	if !ok {
		return
	}
	f, filename, err := h.svc.ExportOrders(c.Request.Context(), filters)
	if err != nil {
		InternalError(c, "导出订单失败: "+err.Error())
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "write excel: "+err.Error())
	}
}

// GetOrder 订单详情
// GET /api/v1/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	order, err := h.svc.GetOrder(c.Request.Context(), id)
	if err != nil {
		Fail(c, "获取订单失败", err)
		return
	}
	quote, err := h.escrow.QuotePayment(c.Request.Context(), id)
	if err != nil {
		Fail(c, "获取订单失败", err)
		return
	}
	Success(c, gin.H{"order": order, "total_price": order.TotalPrice(), "payment_quote": quote})
}

// CountOrders 订单总数
// GET /api/v1/orders/count
func (h *OrderHandler) CountOrders(c *gin.Context) {
	total, err := h.svc.GetOrderCount(c.Request.Context())
	if err != nil {
		InternalError(c, "获取订单数量失败: "+err.Error())
		return
	}
	Success(c, gin.H{"count": total})
}

// AcceptOrder 接单
// POST /api/v1/orders/:id/accept
func (h *OrderHandler) AcceptOrder(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	order, err := h.svc.AcceptOrder(c.Request.Context(), GetAddress(c), id)
	if err != nil {
		Fail(c, "接单失败", err)
		return
	}
	Success(c, order)
}

// RejectOrder 拒单
// POST /api/v1/orders/:id/reject
func (h *OrderHandler) RejectOrder(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	order, err := h.svc.RejectOrder(c.Request.Context(), GetAddress(c), id)
	if err != nil {
		Fail(c, "拒单失败", err)
		return
	}
	Success(c, order)
}

// UpdateQualityCheck 提交质检结果
// POST /api/v1/orders/:id/quality-check
func (h *OrderHandler) UpdateQualityCheck(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	var req service.QualityCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	order, err := h.svc.UpdateQualityCheck(c.Request.Context(), GetAddress(c), id, req.Result)
	if err != nil {
		Fail(c, "提交质检失败", err)
		return
	}
	Success(c, order)
}

// InitiateShipment 发起发货
// POST /api/v1/orders/:id/initiate-shipment
func (h *OrderHandler) InitiateShipment(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	order, err := h.svc.InitiateShipment(c.Request.Context(), GetAddress(c), id)
	if err != nil {
		Fail(c, "发起发货失败", err)
		return
	}
	Success(c, order)
}

// DispatchOrder 发货流程（可重试）
// POST /api/v1/orders/:id/dispatch
func (h *OrderHandler) DispatchOrder(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	var req service.DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	result, err := h.workflow.DispatchOrder(c.Request.Context(), GetAddress(c), id, &req)
	if err != nil {
		Fail(c, "发货流程中断", err)
		return
	}
	Success(c, result)
}

// GetPenalty 延迟罚金
// GET /api/v1/orders/:id/penalty
func (h *OrderHandler) GetPenalty(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	quote, err := h.penalty.CalculateManufacturerPenalty(c.Request.Context(), id)
	if err != nil {
		Fail(c, "计算罚金失败", err)
		return
	}
	Success(c, quote)
}

// ListMilestones 订单里程碑
// GET /api/v1/orders/:id/milestones
func (h *OrderHandler) ListMilestones(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	items, err := h.milestones.ListOrderMilestones(c.Request.Context(), id)
	if err != nil {
		InternalError(c, "获取里程碑失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": items})
}

func paramMilestoneType(c *gin.Context) (entity.MilestoneType, bool) {
	v, err := strconv.ParseUint(c.Param("type"), 10, 8)
	if err != nil {
		BadRequest(c, "无效的里程碑类型: "+c.Param("type"))
		return 0, false
	}
	return entity.MilestoneType(v), true
}

// GetMilestone 里程碑详情
// GET /api/v1/orders/:id/milestones/:type
func (h *OrderHandler) GetMilestone(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	mt, ok := paramMilestoneType(c)
	if !ok {
		return
	}
	m, err := h.milestones.GetOrderMilestone(c.Request.Context(), id, mt)
	if err != nil {
		Fail(c, "获取里程碑失败", err)
		return
	}
	Success(c, m)
}

// UpdateMilestone 更新里程碑
// PUT /api/v1/orders/:id/milestones/:type
func (h *OrderHandler) UpdateMilestone(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	mt, ok := paramMilestoneType(c)
	if !ok {
		return
	}
	var req service.UpdateMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	m, err := h.milestones.UpdateOrderMilestone(c.Request.Context(), GetAddress(c), id, mt, &req)
	if err != nil {
		Fail(c, "更新里程碑失败", err)
		return
	}
	Success(c, m)
}
