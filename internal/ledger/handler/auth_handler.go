package handler

import (
	"github.com/bitfantasy/cargotrack/internal/ledger/service"
	"github.com/gin-gonic/gin"
)

// AuthHandler 钱包登录处理器
type AuthHandler struct {
	svc      *service.AuthService
	registry *service.RegistryService
}

func NewAuthHandler(svc *service.AuthService, registry *service.RegistryService) *AuthHandler {
	return &AuthHandler{svc: svc, registry: registry}
}

// Nonce 获取登录挑战
// GET /api/v1/auth/nonce?address=0x...
func (h *AuthHandler) Nonce(c *gin.Context) {
	address := c.Query("address")
	if address == "" {
		BadRequest(c, "缺少 address 参数")
		return
	}
	challenge, err := h.svc.Nonce(c.Request.Context(), address)
	if err != nil {
		Fail(c, "生成登录挑战失败", err)
		return
	}
	Success(c, challenge)
}

// Login 提交签名登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	result, err := h.svc.Login(c.Request.Context(), &req)
	if err != nil {
		Fail(c, "登录失败", err)
		return
	}
	Success(c, result)
}

// Me 当前地址及其账本角色（实时查询，不依赖令牌中的快照）
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	address := GetAddress(c)
	roles, err := h.registry.Roles(c.Request.Context(), address)
	if err != nil {
		InternalError(c, "获取角色失败: "+err.Error())
		return
	}
	if roles == nil {
		roles = []string{}
	}
	Success(c, gin.H{
		"address": address,
		"roles":   roles,
	})
}
