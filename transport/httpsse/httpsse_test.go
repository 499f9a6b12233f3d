package httpsse

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxiomlabs/mcpkit/jsonrpc"
)

func newTestServer(t *testing.T) (*Transport, *httptest.Server) {
	t.Helper()
	tr := New()
	r := mux.NewRouter()
	tr.Mount(r, "/mcp")
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return tr, srv
}

func TestPostDeliversEnvelopeToRecv(t *testing.T) {
	tr, srv := newTestServer(t)

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	resp, err := http.Post(srv.URL+"/mcp", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, tr.SessionID(), resp.Header.Get("Mcp-Session-Id"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	env, ok, err := tr.Recv(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ping", env.Request.Method)
}

func TestUnknownSessionRejected(t *testing.T) {
	_, srv := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/mcp", bytes.NewReader([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)))
	req.Header.Set("Mcp-Session-Id", "not-the-real-session")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteClosesSession(t *testing.T) {
	tr, srv := newTestServer(t)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/mcp", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.False(t, tr.Connected())
}

func TestSendBuffersForSSEStream(t *testing.T) {
	tr, _ := newTestServer(t)
	defer tr.Close()

	env, err := jsonrpc.NewResultResponse(jsonrpc.NewIntID(1), map[string]bool{"ok": true})
	require.NoError(t, err)
	require.NoError(t, tr.Send(context.Background(), env))

	select {
	case data := <-tr.sse:
		assert.Contains(t, string(data), `"ok":true`)
	default:
		t.Fatal("expected buffered SSE payload")
	}
}
