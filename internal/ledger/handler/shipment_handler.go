package handler

import (
	"strconv"

	"github.com/bitfantasy/cargotrack/internal/ledger/entity"
	"github.com/bitfantasy/cargotrack/internal/ledger/service"
	"github.com/gin-gonic/gin"
)

// ShipmentHandler 运单处理器
type ShipmentHandler struct {
	svc       *service.ShipmentService
	workflow  *service.WorkflowService
	documents *service.DocumentService
}

func NewShipmentHandler(svc *service.ShipmentService, workflow *service.WorkflowService, documents *service.DocumentService) *ShipmentHandler {
	return &ShipmentHandler{
		svc:       svc,
		workflow:  workflow,
		documents: documents,
	}
}

// CreateShipment 创建运单
// POST /api/v1/shipments
func (h *ShipmentHandler) CreateShipment(c *gin.Context) {
	var req service.CreateShipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	shipment, err := h.svc.CreateShipment(c.Request.Context(), GetAddress(c), &req)
	if err != nil {
		Fail(c, "创建运单失败", err)
		return
	}
	Created(c, shipment)
}

// ListShipments 运单列表
// GET /api/v1/shipments?carrier=&status=
func (h *ShipmentHandler) ListShipments(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"carrier": c.Query("carrier"),
	}
	if raw := c.Query("status"); raw != "" {
		status, err := entity.ParseShipmentStatus(raw)
		if err != nil {
			BadRequest(c, "参数错误: "+err.Error())
			return
		}
		filters["status"] = strconv.Itoa(int(status))
	}
	items, total, err := h.svc.ListShipments(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取运单列表失败: "+err.Error())
		return
	}
	SuccessList(c, items, total, page, pageSize)
}

// GetShipment 运单详情
// GET /api/v1/shipments/:id
func (h *ShipmentHandler) GetShipment(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	shipment, err := h.svc.GetShipment(c.Request.Context(), id)
	if err != nil {
		Fail(c, "获取运单失败", err)
		return
	}
	Success(c, shipment)
}

// CountShipments 运单总数
// GET /api/v1/shipments/count
func (h *ShipmentHandler) CountShipments(c *gin.Context) {
	total, err := h.svc.GetShipmentCount(c.Request.Context())
	if err != nil {
		InternalError(c, "获取运单数量失败: "+err.Error())
		return
	}
	Success(c, gin.H{"count": total})
}

// UpdateStatus 更新运单状态
// PUT /api/v1/shipments/:id/status
func (h *ShipmentHandler) UpdateStatus(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	var req service.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	shipment, err := h.svc.UpdateShipmentStatus(c.Request.Context(), GetAddress(c), id, &req)
	if err != nil {
		Fail(c, "更新运单状态失败", err)
		return
	}
	Success(c, shipment)
}

// UpdateCustoms 更新清关状态
// PUT /api/v1/shipments/:id/customs
func (h *ShipmentHandler) UpdateCustoms(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	var req service.UpdateCustomsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	shipment, err := h.svc.UpdateCustomsStatus(c.Request.Context(), GetAddress(c), id, &req)
	if err != nil {
		Fail(c, "更新清关状态失败", err)
		return
	}
	Success(c, shipment)
}

// ClearCustoms 清关流程（可重试）
// POST /api/v1/shipments/:id/clear-customs
func (h *ShipmentHandler) ClearCustoms(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	var req service.ClearCustomsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	result, err := h.workflow.ClearCustoms(c.Request.Context(), GetAddress(c), id, &req)
	if err != nil {
		Fail(c, "清关流程中断", err)
		return
	}
	Success(c, result)
}

// UploadDocument 上传单证
// POST /api/v1/shipments/:id/documents (multipart: file, kind)
func (h *ShipmentHandler) UploadDocument(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		BadRequest(c, "请上传文件")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	doc, err := h.documents.UploadDocument(c.Request.Context(), GetAddress(c), id, &service.UploadDocumentRequest{
		Kind:        c.PostForm("kind"),
		FileName:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
	}, file)
	if err != nil {
		Fail(c, "上传单证失败", err)
		return
	}
	Created(c, doc)
}

// ListDocuments 单证列表
// GET /api/v1/shipments/:id/documents
func (h *ShipmentHandler) ListDocuments(c *gin.Context) {
	id, ok := ParamID(c, "id")
	if !ok {
		return
	}
	items, err := h.documents.ListDocuments(c.Request.Context(), GetAddress(c), id)
	if err != nil {
		Fail(c, "获取单证失败", err)
		return
	}
	Success(c, gin.H{"items": items})
}

// DocumentURL 单证下载链接
// GET /api/v1/documents/:docId/url
func (h *ShipmentHandler) DocumentURL(c *gin.Context) {
	url, err := h.documents.DocumentURL(c.Request.Context(), GetAddress(c), c.Param("docId"))
	if err != nil {
		Fail(c, "获取下载链接失败", err)
		return
	}
	Success(c, gin.H{"url": url})
}
