package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, *websocket.Conn) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub()
	go hub.Run(ctx)

	e := echo.New()
	e.GET("/ws", hub.HandleWebSocket)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	return hub, conn
}

func TestHub_Broadcast(t *testing.T) {
	hub, conn := startHub(t)

	hub.Broadcast("offline:success", map[string]string{"gid": "abc"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))

	assert.Equal(t, "offline:success", msg.Type)
	assert.Equal(t, map[string]any{"gid": "abc"}, msg.Payload)
	assert.NotEmpty(t, msg.Timestamp)
}

func TestHub_Ping(t *testing.T) {
	_, conn := startHub(t)

	require.NoError(t, conn.WriteJSON(Message{Type: "ping"}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "pong", msg.Type)
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	hub := NewHub()

	for i := 0; i < sendBuffer+10; i++ {
		hub.Broadcast("log:entry", i)
	}
	assert.Equal(t, int64(10), hub.Dropped())
}
