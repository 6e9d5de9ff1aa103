package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-kb/services/notify"
)

// Clients only listen; anything they send is read and dropped.
const maxClientMessageBytes = 4096

type WSHandler struct {
	hub      *notify.Hub
	upgrader websocket.Upgrader
	logger   *logrus.Logger
}

func NewWSHandler(hub *notify.Hub, allowedOrigins []string, logger *logrus.Logger) *WSHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

// HandleWebSocket handles GET /api/ws. The connection stays registered with
// the hub until the client goes away or a write to it fails.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxClientMessageBytes)

	id := h.hub.Register(conn)
	defer h.hub.Unregister(id)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.WithError(err).WithField("client_id", id).Debug("WebSocket read failed")
			}
			return
		}
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if strings.EqualFold(u.Host, r.Host) {
			return true
		}
		for _, o := range allowed {
			if strings.EqualFold(strings.TrimSuffix(o, "/"), origin) {
				return true
			}
		}
		return false
	}
}
