package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/danilohgds/f-system/pkg/common"
)

// Server upgrades HTTP requests to WebSocket connections and attaches
// them to the hub. Authentication happens in the shared middleware
// before the upgrade; by the time a request lands here its tenant id is
// in the context.
type Server struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// maxConnectionsPerUser bounds how many live connections one tenant may
// hold open.
const maxConnectionsPerUser = 10

// NewServer creates a new WebSocket server
func NewServer(hub *Hub, logger *zap.Logger) *Server {
	return &Server{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Origin checking is delegated to the CORS layer.
				return true
			},
		},
		logger: logger,
	}
}

// HandleWebSocket handles GET /ws upgrade requests.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, ok := common.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if s.hub.ConnectionCount(userID) >= maxConnectionsPerUser {
		s.logger.Warn("Connection limit exceeded",
			zap.String("userID", userID),
		)
		http.Error(w, "Too many connections", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed",
			zap.Error(err),
			zap.String("remoteAddr", r.RemoteAddr),
		)
		return
	}

	client := NewClient(userID, s.hub, conn, s.logger)
	client.Start()
}
