package notify

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	// el registro en el hub pasa después del handshake; esperarlo
	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.clients) == 1
	}, time.Second, 5*time.Millisecond)
	return conn
}

func TestEmitDeliversEnvelope(t *testing.T) {
	h := NewHub(nil)
	conn := dialHub(t, h)

	h.Emit("guild-config", map[string]any{"guild": "g1"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, "guild-config", env.Event)
}

// Dos mutaciones simultáneas emiten a la vez; las escrituras al mismo conn
// tienen que serializarse o gorilla/websocket tira el proceso abajo.
func TestEmitConcurrentToSameClient(t *testing.T) {
	h := NewHub(nil)
	conn := dialHub(t, h)

	const emitters = 32
	const perEmitter = 50

	var wg sync.WaitGroup
	for i := 0; i < emitters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perEmitter; j++ {
				h.Emit("site", map[string]any{"n": j})
			}
		}()
	}

	got := 0
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	for got < emitters*perEmitter {
		_, _, err := conn.ReadMessage()
		require.NoError(t, err)
		got++
	}
	wg.Wait()
	assert.Equal(t, emitters*perEmitter, got)
}

func TestEmitDropsDeadClient(t *testing.T) {
	h := NewHub(nil)
	conn := dialHub(t, h)
	require.NoError(t, conn.Close())

	// la primera escritura fallida descarta el cliente; nunca hay error visible
	h.Emit("site", map[string]any{"n": 1})
	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.clients) == 0
	}, time.Second, 5*time.Millisecond)
}
