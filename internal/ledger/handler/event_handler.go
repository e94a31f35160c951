package handler

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bitfantasy/cargotrack/internal/ledger/service"
	"github.com/bitfantasy/cargotrack/internal/ledger/sse"
	"github.com/gin-gonic/gin"
)

// EventHandler 账本事件处理器
type EventHandler struct {
	svc       *service.EventService
	hub       *sse.Hub
	heartbeat time.Duration
}

func NewEventHandler(svc *service.EventService, hub *sse.Hub) *EventHandler {
	return &EventHandler{svc: svc, hub: hub, heartbeat: 30 * time.Second}
}

// ListEvents 事件列表
// GET /api/v1/events?order_id=&name=&subject=&after_seq=
func (h *EventHandler) ListEvents(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := map[string]string{
		"order_id":  c.Query("order_id"),
		"name":      c.Query("name"),
		"subject":   c.Query("subject"),
		"after_seq": c.Query("after_seq"),
	}
	items, total, err := h.svc.ListEvents(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取事件失败: "+err.Error())
		return
	}
	SuccessList(c, items, total, page, pageSize)
}

// Stream 事件推送
// GET /api/v1/events/stream?token=xxx&order_id=
func (h *EventHandler) Stream(c *gin.Context) {
	address := GetAddress(c)
	clientID := fmt.Sprintf("%s_%d", address, time.Now().UnixNano())

	client := &sse.Client{
		ID:      clientID,
		Address: address,
		Events:  make(chan sse.Event, 64),
	}
	if v := c.Query("order_id"); v != "" {
		orderID, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			BadRequest(c, "无效的订单ID: "+v)
			return
		}
		client.OrderID = &orderID
	}

	h.hub.Register(client)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	c.Writer.WriteString("event: connected\ndata: {\"client_id\":\"" + clientID + "\"}\n\n")
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	clientGone := c.Request.Context().Done()

	for {
		select {
		case <-clientGone:
			h.hub.Unregister(clientID)
			return
		case event, ok := <-client.Events:
			if !ok {
				return
			}
			c.Writer.WriteString(fmt.Sprintf("id: %s\nevent: %s\ndata: %s\n\n", event.ID, event.EventType, event.Data))
			c.Writer.Flush()
		case <-heartbeat.C:
			c.Writer.WriteString(": keepalive\n\n")
			c.Writer.Flush()
		}
	}
}
