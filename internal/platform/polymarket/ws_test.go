package polymarket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsTestServer upgrades incoming connections and drains frames until the
// client goes away. Control frames (pings) are handled by the read loop.
func wsTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSubscribeRequiresConnection(t *testing.T) {
	w := NewWSClient("ws://unused")
	err := w.Subscribe([]string{"a1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")

	// An empty subscription is a no-op even without a connection.
	assert.NoError(t, w.Subscribe(nil))
}

func TestPingsInterleaveWithSubscribes(t *testing.T) {
	srv := wsTestServer(t)

	w := NewWSClient(wsURL(srv))
	require.NoError(t, w.Connect(context.Background()))
	defer w.Close()

	// Drive the ping loop fast while resubscribing from another goroutine,
	// the way the feed refresher does when new assets appear. The single
	// connection writer invariant holds only if both paths share the lock.
	pingDone := make(chan struct{})
	w.mu.Lock()
	conn := w.conn
	w.mu.Unlock()
	go w.pingLoop(conn, time.Millisecond, pingDone)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.NoError(t, w.Subscribe([]string{"a1", "a2"}))
			}
		}()
	}
	wg.Wait()
	close(pingDone)
}
