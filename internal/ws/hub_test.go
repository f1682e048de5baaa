package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	hub := NewHub(logger)
	server := httptest.NewServer(hub.Handler())
	t.Cleanup(server.Close)
	t.Cleanup(hub.Shutdown)
	return hub, server
}

func dialHub(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.CloseNow()
	})
	return conn
}

func waitForSubscribers(t *testing.T, hub *Hub, want int) {
	t.Helper()
	assert.Eventually(t, func() bool {
		return hub.SubscriberCount() == want
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHubBroadcastReachesSubscriber(t *testing.T) {
	hub, server := newTestHub(t)
	conn := dialHub(t, server)
	waitForSubscribers(t, hub, 1)

	payload := map[string]string{"type": "newMessage", "body": "hello"}
	require.NoError(t, hub.Broadcast(context.Background(), payload))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got map[string]string
	require.NoError(t, wsjson.Read(ctx, conn, &got))
	assert.Equal(t, payload, got)
}

func TestHubBroadcastReachesAllSubscribers(t *testing.T) {
	hub, server := newTestHub(t)
	first := dialHub(t, server)
	second := dialHub(t, server)
	waitForSubscribers(t, hub, 2)

	require.NoError(t, hub.Broadcast(context.Background(), map[string]string{"type": "sentMessage"}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, conn := range []*websocket.Conn{first, second} {
		var got map[string]string
		require.NoError(t, wsjson.Read(ctx, conn, &got))
		assert.Equal(t, "sentMessage", got["type"])
	}
}

func TestHubBroadcastWithoutSubscribers(t *testing.T) {
	hub, _ := newTestHub(t)
	assert.NoError(t, hub.Broadcast(context.Background(), map[string]string{"type": "newMessage"}))
}

func TestHubDropsDisconnectedSubscriber(t *testing.T) {
	hub, server := newTestHub(t)
	conn := dialHub(t, server)
	waitForSubscribers(t, hub, 1)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	waitForSubscribers(t, hub, 0)

	// Broadcasting after the departure must not fail.
	assert.NoError(t, hub.Broadcast(context.Background(), map[string]string{"type": "newMessage"}))
}

func TestHubShutdownClosesSubscribers(t *testing.T) {
	hub, server := newTestHub(t)
	conn := dialHub(t, server)
	waitForSubscribers(t, hub, 1)

	hub.Shutdown()
	assert.Zero(t, hub.SubscriberCount())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var discard interface{}
	err := wsjson.Read(ctx, conn, &discard)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}
