package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"

	enginesync "github.com/damir-m/splitmate/internal/sync"
	jwtutil "github.com/damir-m/splitmate/pkg/jwt"
	"github.com/damir-m/splitmate/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SyncHandler exposes the live snapshot feed over a websocket. Each
// connected client gets its own subscription; closing the socket releases
// it.
type SyncHandler struct {
	Hub       *enginesync.Hub
	JWTSecret string
}

// NewSyncHandler initializes a new SyncHandler.
func NewSyncHandler(hub *enginesync.Hub, jwtSecret string) *SyncHandler {
	return &SyncHandler{Hub: hub, JWTSecret: jwtSecret}
}

// SubscribeHandler upgrades the connection and streams snapshots until the
// client disconnects. Every frame is a full state replacement.
func (h *SyncHandler) SubscribeHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusUnauthorized)
		return
	}
	claims, err := jwtutil.ValidateToken(token, h.JWTSecret)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		logger.Log.Warnf("WebSocket auth failed: %v", err)
		return
	}

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Warnf("WebSocket upgrade failed: %v", err)
		return
	}

	logger.Log.Infof("WebSocket connected: %s", claims.UserID)

	sub := h.Hub.Subscribe(userID)
	defer func() {
		h.Hub.Unsubscribe(sub)
		conn.Close()
		logger.Log.Infof("WebSocket disconnected: %s", claims.UserID)
	}()

	// Writer: push every snapshot as it is emitted.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for snapshot := range sub.Updates() {
			if err := conn.WriteJSON(snapshot); err != nil {
				logger.Log.Warnf("WebSocket write error for %s: %v", claims.UserID, err)
				return
			}
		}
	}()

	// Reader: the client sends nothing meaningful; this loop only notices
	// the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.Hub.Unsubscribe(sub)
	<-done
}
