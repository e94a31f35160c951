package handler

import (
	"strconv"

	"github.com/bitfantasy/cargotrack/internal/ledger/entity"
	"github.com/bitfantasy/cargotrack/internal/ledger/service"
	"github.com/gin-gonic/gin"
)

// RegistryHandler 参与方注册处理器
type RegistryHandler struct {
	svc *service.RegistryService
}

func NewRegistryHandler(svc *service.RegistryService) *RegistryHandler {
	return &RegistryHandler{svc: svc}
}

// RegisterManufacturer 注册制造商
// POST /api/v1/manufacturers
func (h *RegistryHandler) RegisterManufacturer(c *gin.Context) {
	var req service.RegisterManufacturerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	m, err := h.svc.RegisterManufacturer(c.Request.Context(), GetAddress(c), &req)
	if err != nil {
		Fail(c, "注册制造商失败", err)
		return
	}
	Created(c, m)
}

// ListManufacturers 制造商列表
// GET /api/v1/manufacturers
func (h *RegistryHandler) ListManufacturers(c *gin.Context) {
	items, err := h.svc.ListManufacturers(c.Request.Context())
	if err != nil {
		InternalError(c, "获取制造商列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": items, "count": len(items)})
}

// GetManufacturer 制造商详情
// GET /api/v1/manufacturers/:address
func (h *RegistryHandler) GetManufacturer(c *gin.Context) {
	m, err := h.svc.GetManufacturer(c.Request.Context(), c.Param("address"))
	if err != nil {
		Fail(c, "获取制造商失败", err)
		return
	}
	Success(c, m)
}

// IsAuthorizedForPart 制造商零件授权查询
// GET /api/v1/manufacturers/:address/parts/:part
func (h *RegistryHandler) IsAuthorizedForPart(c *gin.Context) {
	part, err := strconv.ParseUint(c.Param("part"), 10, 8)
	if err != nil {
		BadRequest(c, "无效的零件类型: "+c.Param("part"))
		return
	}
	ok, err := h.svc.IsAuthorizedForPart(c.Request.Context(), c.Param("address"), entity.PartType(part))
	if err != nil {
		Fail(c, "查询授权失败", err)
		return
	}
	Success(c, gin.H{"authorized": ok})
}

// RegisterSupplier 注册供应商
// POST /api/v1/suppliers
func (h *RegistryHandler) RegisterSupplier(c *gin.Context) {
	var req service.RegisterSupplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	s, err := h.svc.RegisterSupplier(c.Request.Context(), GetAddress(c), &req)
	if err != nil {
		Fail(c, "注册供应商失败", err)
		return
	}
	Created(c, s)
}

// ListSuppliers 供应商列表，addresses 为注册顺序
// GET /api/v1/suppliers
func (h *RegistryHandler) ListSuppliers(c *gin.Context) {
	items, err := h.svc.ListSuppliers(c.Request.Context())
	if err != nil {
		InternalError(c, "获取供应商列表失败: "+err.Error())
		return
	}
	addresses := make([]string, len(items))
	for i := range items {
		addresses[i] = items[i].Address
	}
	Success(c, gin.H{"items": items, "count": len(items), "addresses": addresses})
}

// GetSupplier 供应商详情（含价格表）
// GET /api/v1/suppliers/:address
func (h *RegistryHandler) GetSupplier(c *gin.Context) {
	s, err := h.svc.GetSupplier(c.Request.Context(), c.Param("address"))
	if err != nil {
		Fail(c, "获取供应商失败", err)
		return
	}
	Success(c, gin.H{"supplier": s, "prices": s.Prices()})
}

// UpdateSupplierPrices 修订供应商价格表（仅管理员）
// PUT /api/v1/suppliers/:address/prices
func (h *RegistryHandler) UpdateSupplierPrices(c *gin.Context) {
	var req service.UpdatePricesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	s, err := h.svc.UpdateSupplierPrices(c.Request.Context(), GetAddress(c), c.Param("address"), &req)
	if err != nil {
		Fail(c, "更新价格失败", err)
		return
	}
	Success(c, s)
}

// RegisterCarrier 注册承运商
// POST /api/v1/carriers
func (h *RegistryHandler) RegisterCarrier(c *gin.Context) {
	var req service.RegisterCarrierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	carrier, err := h.svc.RegisterCarrier(c.Request.Context(), GetAddress(c), &req)
	if err != nil {
		Fail(c, "注册承运商失败", err)
		return
	}
	Created(c, carrier)
}

// ListCarriers 承运商列表
// GET /api/v1/carriers
func (h *RegistryHandler) ListCarriers(c *gin.Context) {
	items, err := h.svc.ListCarriers(c.Request.Context())
	if err != nil {
		InternalError(c, "获取承运商列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": items, "count": len(items)})
}

// GetCarrier 承运商详情
// GET /api/v1/carriers/:address
func (h *RegistryHandler) GetCarrier(c *gin.Context) {
	carrier, err := h.svc.GetCarrier(c.Request.Context(), c.Param("address"))
	if err != nil {
		Fail(c, "获取承运商失败", err)
		return
	}
	Success(c, carrier)
}
