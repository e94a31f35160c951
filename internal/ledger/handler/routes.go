package handler

import (
	"github.com/bitfantasy/cargotrack/internal/middleware"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册 /api/v1 下的账本路由
func RegisterRoutes(v1 *gin.RouterGroup, h *Handlers, jwtSecret string) {
	// 认证 (无需登录)
	auth := v1.Group("/auth")
	{
		auth.GET("/nonce", h.Auth.Nonce)
		auth.POST("/login", h.Auth.Login)
	}

	authorized := v1.Group("")
	authorized.Use(middleware.JWTAuth(jwtSecret))
	{
		authorized.GET("/auth/me", h.Auth.Me)

		// 参与方登记
		manufacturers := authorized.Group("/manufacturers")
		{
			manufacturers.POST("", h.Registry.RegisterManufacturer)
			manufacturers.GET("", h.Registry.ListManufacturers)
			manufacturers.GET("/:address", h.Registry.GetManufacturer)
			manufacturers.GET("/:address/parts/:part", h.Registry.IsAuthorizedForPart)
		}
		suppliers := authorized.Group("/suppliers")
		{
			suppliers.POST("", h.Registry.RegisterSupplier)
			suppliers.GET("", h.Registry.ListSuppliers)
			suppliers.GET("/:address", h.Registry.GetSupplier)
			suppliers.PUT("/:address/prices", h.Registry.UpdateSupplierPrices)
		}
		carriers := authorized.Group("/carriers")
		{
			carriers.POST("", h.Registry.RegisterCarrier)
			carriers.GET("", h.Registry.ListCarriers)
			carriers.GET("/:address", h.Registry.GetCarrier)
		}

		// 订单
		orders := authorized.Group("/orders")
		{
			orders.POST("", h.Order.CreateOrder)
			orders.GET("", h.Order.ListOrders)
			orders.GET("/export", h.Order.ExportOrders)
			orders.GET("/count", h.Order.CountOrders)
			orders.GET("/:id", h.Order.GetOrder)
			orders.POST("/:id/accept", h.Order.AcceptOrder)
			orders.POST("/:id/reject", h.Order.RejectOrder)
			orders.POST("/:id/quality-check", h.Order.UpdateQualityCheck)
			orders.POST("/:id/initiate-shipment", h.Order.InitiateShipment)
			orders.POST("/:id/dispatch", h.Order.DispatchOrder)
			orders.GET("/:id/penalty", h.Order.GetPenalty)
			orders.GET("/:id/milestones", h.Order.ListMilestones)
			orders.GET("/:id/milestones/:type", h.Order.GetMilestone)
			orders.PUT("/:id/milestones/:type", h.Order.UpdateMilestone)
		}

		// 运单
		shipments := authorized.Group("/shipments")
		{
			shipments.POST("", h.Shipment.CreateShipment)
			shipments.GET("", h.Shipment.ListShipments)
			shipments.GET("/count", h.Shipment.CountShipments)
			shipments.GET("/:id", h.Shipment.GetShipment)
			shipments.PUT("/:id/status", h.Shipment.UpdateStatus)
			shipments.PUT("/:id/customs", h.Shipment.UpdateCustoms)
			shipments.POST("/:id/clear-customs", h.Shipment.ClearCustoms)
			shipments.POST("/:id/documents", h.Shipment.UploadDocument)
			shipments.GET("/:id/documents", h.Shipment.ListDocuments)
		}
		authorized.GET("/documents/:docId/url", h.Shipment.DocumentURL)

		// 托管支付，涉及资金的操作需显式确认
		payments := authorized.Group("/payments")
		{
			payments.POST("", middleware.RequireConfirm(), h.Payment.CreatePayment)
			payments.GET("/:orderId", h.Payment.GetPayment)
			payments.GET("/:orderId/quote", h.Payment.QuotePayment)
			payments.POST("/:orderId/release", middleware.RequireConfirm(), h.Payment.ReleasePayment)
			payments.POST("/:orderId/refund", middleware.RequireConfirm(), h.Payment.RefundPayment)
		}
		authorized.GET("/accounts/:address/transfers", h.Payment.ListTransfers)

		// 事件
		authorized.GET("/events", h.Event.ListEvents)
		authorized.GET("/events/stream", h.Event.Stream)
		authorized.GET("/dashboard/overview", h.Dashboard.Overview)
	}
}
