package presence

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsync-social/pkg/logger"
)

// newWSPair 启动一个服务端，每个连接都挂到router上
func newWSPair(t *testing.T, router *Router, userID int64) (*websocket.Conn, func()) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewWSClient(conn, userID, 8, time.Second, logger.NewNop())
		router.Attach(userID, client)
		defer router.Detach(userID, client.ID())
		client.Run(context.Background())
	}))

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn, func() {
		_ = conn.Close()
		srv.Close()
	}
}

func TestWSClient_ReceivesPushAndDetachesOnClose(t *testing.T) {
	router := NewRouter(NewRegistry(), logger.NewNop())
	conn, cleanup := newWSPair(t, router, 11)
	defer cleanup()

	require.Eventually(t, func() bool { return router.IsOnline(11) }, time.Second, 5*time.Millisecond)

	router.SendToUser(context.Background(), 11, testEvent{name: "event_scheduled", data: map[string]string{"title": "standup"}})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	name, data := decodeFrame(t, frame)
	assert.Equal(t, "event_scheduled", name)
	assert.Equal(t, "standup", data["title"])

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	assert.Eventually(t, func() bool { return !router.IsOnline(11) }, 2*time.Second, 5*time.Millisecond)
}

func TestWSClient_PingEvent(t *testing.T) {
	router := NewRouter(NewRegistry(), logger.NewNop())
	conn, cleanup := newWSPair(t, router, 12)
	defer cleanup()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"ping"}`)))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"pong","data":null}`, string(frame))
}

func TestWSClient_SendAfterClose(t *testing.T) {
	c := NewWSClient(nil, 1, 1, time.Second, logger.NewNop())
	assert.True(t, c.Send([]byte("a")))
	assert.False(t, c.Send([]byte("b")), "buffer of one is full")

	c.Close()
	c.Close()
	assert.False(t, c.Send([]byte("c")))
}
