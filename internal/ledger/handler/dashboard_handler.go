package handler

import (
	"github.com/bitfantasy/cargotrack/internal/ledger/service"
	"github.com/gin-gonic/gin"
)

// DashboardHandler 看板处理器
type DashboardHandler struct {
	svc *service.DashboardService
}

func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{svc: svc}
}

// Overview 看板概览
// GET /api/v1/dashboard/overview
func (h *DashboardHandler) Overview(c *gin.Context) {
	overview, err := h.svc.GetOverview(c.Request.Context())
	if err != nil {
		InternalError(c, "获取看板数据失败: "+err.Error())
		return
	}
	Success(c, overview)
}
