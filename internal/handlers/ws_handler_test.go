package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/damir-m/splitmate/internal/models"
	"github.com/damir-m/splitmate/internal/services"
	"github.com/damir-m/splitmate/internal/storage/memory"
	enginesync "github.com/damir-m/splitmate/internal/sync"
	jwtutil "github.com/damir-m/splitmate/pkg/jwt"
	"github.com/damir-m/splitmate/pkg/logger"
)

func muxWithSync(h *SyncHandler) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/ws/sync", h.SubscribeHandler)
	return router
}

func dialSync(t *testing.T, serverURL, token string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(serverURL, "http") + "/ws/sync?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) enginesync.Snapshot {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var snapshot enginesync.Snapshot
	require.NoError(t, conn.ReadJSON(&snapshot))
	return snapshot
}

func TestSyncWebSocket(t *testing.T) {
	logger.InitLogger()

	store := memory.NewStore()
	hub := enginesync.NewHub(store, store)
	billService := services.NewBillService(store, store, hub)

	alice, err := store.CreateUser(context.Background(), &models.User{
		Username: "alice", Email: "alice@example.com", HashedPassword: "hash",
	})
	require.NoError(t, err)
	bob, err := store.CreateUser(context.Background(), &models.User{
		Username: "bob", Email: "bob@example.com", HashedPassword: "hash",
	})
	require.NoError(t, err)

	syncHandler := NewSyncHandler(hub, testSecret)
	server := httptest.NewServer(muxWithSync(syncHandler))
	defer server.Close()

	token, err := jwtutil.GenerateToken(bob.ID.Hex(), "bob", testSecret, time.Hour)
	require.NoError(t, err)

	conn := dialSync(t, server.URL, token)
	defer conn.Close()

	// first frame is the initial full state
	initial := readSnapshot(t, conn)
	assert.Equal(t, uint64(1), initial.Seq)
	assert.Empty(t, initial.PendingBills)

	bill, err := billService.CreateBill(context.Background(), alice.ID, services.CreateBillInput{
		Description: "Dinner",
		TotalAmount: 60.00,
		FriendIDs:   []primitive.ObjectID{bob.ID},
	})
	require.NoError(t, err)

	// the mutation is pushed without any client request
	next := readSnapshot(t, conn)
	require.Len(t, next.PendingBills, 1)
	assert.Equal(t, bill.ID, next.PendingBills[0].ID)
	assert.Greater(t, next.Seq, initial.Seq)
}

func TestSyncWebSocketRejectsBadToken(t *testing.T) {
	logger.InitLogger()

	store := memory.NewStore()
	hub := enginesync.NewHub(store, store)
	syncHandler := NewSyncHandler(hub, testSecret)
	server := httptest.NewServer(muxWithSync(syncHandler))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/sync?token=garbage"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 401, resp.StatusCode)
}
