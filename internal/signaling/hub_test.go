package signaling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telecom-calls/internal/auth"
)

// startServer serves the ws handler with identity taken from ?user= in place of a token.
func startServer(t *testing.T, hub *Hub, limiter ConnLimiter) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), c.Query("user"), "user")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, NewHandler(hub, limiter).Serve)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, user string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?user=" + user
	return websocket.DefaultDialer.Dial(url, nil)
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func runHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func TestHub_DeliversToEveryConnectionOfUser(t *testing.T) {
	hub := runHub(t)
	srv := startServer(t, hub, nil)

	a1, _, err := dial(t, srv, "alice")
	require.NoError(t, err)
	defer a1.Close()
	a2, _, err := dial(t, srv, "alice")
	require.NoError(t, err)
	defer a2.Close()
	b, _, err := dial(t, srv, "bob")
	require.NoError(t, err)
	defer b.Close()

	for _, c := range []*websocket.Conn{a1, a2, b} {
		assert.Equal(t, OpReady, readEnvelope(t, c).Op)
	}
	require.Eventually(t, func() bool {
		return hub.ConnectionCount("alice") == 2 && hub.ConnectionCount("bob") == 1
	}, 2*time.Second, 10*time.Millisecond)

	n := hub.Deliver("alice", "call:incoming", map[string]any{"call_id": "c1"})
	assert.Equal(t, 2, n)

	for _, c := range []*websocket.Conn{a1, a2} {
		env := readEnvelope(t, c)
		assert.Equal(t, "call:incoming", env.Op)
		assert.NotZero(t, env.Seq)
		assert.Equal(t, "c1", env.Data.(map[string]any)["call_id"])
	}
}

func TestHub_HeartbeatIsAcknowledged(t *testing.T) {
	hub := runHub(t)
	srv := startServer(t, hub, nil)

	conn, _, err := dial(t, srv, "alice")
	require.NoError(t, err)
	defer conn.Close()
	readEnvelope(t, conn)

	require.NoError(t, conn.WriteJSON(Envelope{Op: OpHeartbeat}))
	assert.Equal(t, OpHeartbeatAck, readEnvelope(t, conn).Op)
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	hub := runHub(t)
	srv := startServer(t, hub, nil)

	conn, _, err := dial(t, srv, "alice")
	require.NoError(t, err)
	readEnvelope(t, conn)
	require.Eventually(t, func() bool { return hub.ConnectionCount("alice") == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ConnectionCount("alice") == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, hub.OnlineUserIDs())
}

func TestHandler_RejectsOverLimit(t *testing.T) {
	hub := runHub(t)
	srv := startServer(t, hub, NewLocalConnLimiter(1))

	first, _, err := dial(t, srv, "alice")
	require.NoError(t, err)
	defer first.Close()
	readEnvelope(t, first)

	_, resp, err := dial(t, srv, "alice")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	other, _, err := dial(t, srv, "bob")
	require.NoError(t, err)
	other.Close()
}

func TestHub_PublishWithNoConnectionsIsNotAnError(t *testing.T) {
	hub := NewHub(nil)
	assert.NoError(t, hub.Publish(context.Background(), "nobody", "call:ended", nil))
}

func TestSubscriber_DispatchDeliversToHub(t *testing.T) {
	hub := runHub(t)
	srv := startServer(t, hub, nil)

	conn, _, err := dial(t, srv, "carol")
	require.NoError(t, err)
	defer conn.Close()
	readEnvelope(t, conn)
	require.Eventually(t, func() bool { return hub.ConnectionCount("carol") == 1 }, 2*time.Second, 10*time.Millisecond)

	s := NewSubscriber(nil, hub, nil)
	raw, err := json.Marshal(wireMessage{Op: "call:ended", Data: json.RawMessage(`{"call_id":"c9"}`)})
	require.NoError(t, err)

	s.dispatch("calls:user:carol", string(raw))
	s.dispatch("unrelated", string(raw))
	s.dispatch("calls:user:carol", "not json")

	env := readEnvelope(t, conn)
	assert.Equal(t, "call:ended", env.Op)
	assert.Equal(t, "c9", env.Data.(map[string]any)["call_id"])
}

func TestLocalConnLimiter(t *testing.T) {
	l := NewLocalConnLimiter(2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := l.Acquire(ctx, "u")
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, _ := l.Acquire(ctx, "u")
	assert.False(t, ok)

	require.NoError(t, l.Release(ctx, "u"))
	ok, _ = l.Acquire(ctx, "u")
	assert.True(t, ok)
}
