package handlers

import (
	"net/http"

	ws "civic-reports-service/websocket"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The live feed is a public dashboard surface; any origin may connect.
		return true
	},
}

// WebSocketHandler upgrades dashboard connections onto the live report feed.
type WebSocketHandler struct {
	hub *ws.Hub
}

func NewWebSocketHandler(hub *ws.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

// HandleWebSocket handles websocket requests from clients
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("Failed to upgrade connection: %v", err)
		return
	}

	client := ws.NewClient(h.hub, conn)
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

// Stats reports current live feed connection counts.
func (h *WebSocketHandler) Stats(c *gin.Context) {
	clients, lastSeq := h.hub.GetStats()
	c.JSON(http.StatusOK, gin.H{
		"connected_clients": clients,
		"last_broadcast_seq": lastSeq,
	})
}
