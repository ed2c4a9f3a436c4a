package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tacogroup/prodlive/internal/domain/models"
	"github.com/tacogroup/prodlive/internal/service/broadcast"
)

const writeWait = 10 * time.Second

// WSHandler upgrades dashboard viewer connections and hands them to the hub.
type WSHandler struct {
	hub      *broadcast.Hub
	svc      FleetService
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWSHandler constructs the websocket handler.
func NewWSHandler(hub *broadcast.Hub, svc FleetService, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		hub: hub,
		svc: svc,
		upgrader: websocket.Upgrader{
			// Viewers are read-only; the dashboard is served from anywhere.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Dashboard upgrades the connection, registers the viewer and then discards
// inbound messages until the connection closes. Clients send nothing but
// liveness pings, which are ignored.
func (h *WSHandler) Dashboard(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	viewer := newWSViewer(conn)
	h.hub.Register(viewer, h.svc.Snapshot())

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.hub.Unregister(viewer)
}

// wsViewer adapts a websocket connection to the hub's Viewer interface.
// Writes are guarded by a mutex and a deadline so one slow client cannot
// wedge a broadcast indefinitely.
type wsViewer struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func newWSViewer(conn *websocket.Conn) *wsViewer {
	return &wsViewer{conn: conn}
}

func (v *wsViewer) Send(snapshot models.Snapshot) error {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	if err := v.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return v.conn.WriteJSON(snapshot)
}

func (v *wsViewer) Close() error {
	return v.conn.Close()
}
