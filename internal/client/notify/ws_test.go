package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// relay forwards every frame it reads to all other connected peers.
type relay struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func (r *relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := websocket.Accept(w, req, nil)
	if err != nil {
		return
	}
	r.mu.Lock()
	r.conns[conn] = struct{}{}
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.conns, conn)
		r.mu.Unlock()
		_ = conn.CloseNow()
	}()

	ctx := req.Context()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		r.mu.Lock()
		for peer := range r.conns {
			if peer == conn {
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_ = peer.Write(wctx, typ, data)
			cancel()
		}
		r.mu.Unlock()
	}
}

func (r *relay) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

func TestWSChannel_RelaysBetweenPeers(t *testing.T) {
	hub := &relay{conns: make(map[*websocket.Conn]struct{})}
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ctx := context.Background()

	a, err := DialWS(ctx, url, nil)
	require.NoError(t, err)
	defer a.Close()
	b, err := DialWS(ctx, url, nil)
	require.NoError(t, err)
	defer b.Close()

	require.Eventually(t, func() bool { return hub.size() == 2 }, time.Second, 5*time.Millisecond)

	var got collector
	_, err = b.Subscribe(ctx, got.handle)
	require.NoError(t, err)

	require.NoError(t, a.Publish(ctx, msg("device-a")))

	require.Eventually(t, func() bool { return got.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"device-a"}, got.origins())
}

func TestDialWS_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	_, err := DialWS(context.Background(), url, nil)
	require.Error(t, err)
}
