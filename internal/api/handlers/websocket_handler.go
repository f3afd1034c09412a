package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"

	"github.com/icea-caronas/carpool-backend/pkg/logger"
	"github.com/icea-caronas/carpool-backend/pkg/websocket"
)

// HandleWebSocket handles GET /v1/ws
func (h *Handlers) HandleWebSocket(c *gin.Context) {
	upgrader := gorilla.Upgrader{
		ReadBufferSize:  h.WS.ReadSize,
		WriteBufferSize: h.WS.WriteSize,
		CheckOrigin: func(r *http.Request) bool {
			return true // Allow all origins in development
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Error("Failed to upgrade to WebSocket", logger.Err(err))
		return
	}

	// The identity provider authenticated this id upstream; the feed only
	// needs it for addressing.
	userID := c.Query("user_id")
	if userID == "" {
		h.Logger.Warn("Missing user_id in WebSocket connection")
		conn.Close()
		return
	}

	client := websocket.NewClient(h.Hub, conn, userID, h.Logger)
	h.Hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
