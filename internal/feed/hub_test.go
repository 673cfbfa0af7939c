package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storefront/internal/models"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(zap.NewNop(), nil)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var topics []string
		if q := r.URL.Query().Get("collections"); q != "" {
			topics = strings.Split(q, ",")
		}
		_ = hub.ServeWS(w, r, topics)
	}))
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubDeliversMatchingTopics(t *testing.T) {
	hub, srv := startHub(t)

	orders := dial(t, srv, "?collections=orders")
	all := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.Subscribers() == 2 }, time.Second, 10*time.Millisecond)

	ctx := context.Background()
	require.NoError(t, hub.Publish(ctx, &models.ChangeEvent{Collection: models.CollectionMessages, EventType: models.ChangeInsert, RecordID: "9"}))
	require.NoError(t, hub.Publish(ctx, &models.ChangeEvent{Collection: models.CollectionOrders, EventType: models.ChangeUpdate, RecordID: "XSABC"}))

	read := func(c *websocket.Conn) notification {
		_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := c.ReadMessage()
		require.NoError(t, err)
		var n notification
		require.NoError(t, json.Unmarshal(data, &n))
		return n
	}

	// the orders-only subscriber skips the message event
	n := read(orders)
	assert.Equal(t, models.CollectionOrders, n.Collection)
	assert.Equal(t, "XSABC", n.RecordID)

	assert.Equal(t, models.CollectionMessages, read(all).Collection)
	assert.Equal(t, models.CollectionOrders, read(all).Collection)
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	hub, srv := startHub(t)

	c := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	c.Close()
	assert.Eventually(t, func() bool { return hub.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}
