package stdio

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxiomlabs/mcpkit/jsonrpc"
	"github.com/praxiomlabs/mcpkit/transport"
)

func TestSendWritesNewlineDelimitedJSON(t *testing.T) {
	var out bytes.Buffer
	tr := New(bytes.NewReader(nil), &out)
	defer tr.Close()

	env, err := jsonrpc.NewRequest(jsonrpc.NewIntID(1), "ping", nil)
	require.NoError(t, err)
	require.NoError(t, tr.Send(context.Background(), env))

	assert.Equal(t, byte('\n'), out.Bytes()[out.Len()-1])

	parsed, err := jsonrpc.Parse(bytes.TrimRight(out.Bytes(), "\n"))
	require.NoError(t, err)
	assert.Equal(t, "ping", parsed.Request.Method)
}

func TestRecvParsesCompleteLines(t *testing.T) {
	in := bytes.NewBufferString(`{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n")
	tr := New(in, &bytes.Buffer{})
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	env, ok, err := tr.Recv(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, jsonrpc.KindNotification, env.Kind)
	assert.Equal(t, "notifications/initialized", env.Notification.Method)
}

func TestRecvCleanCloseOnEOF(t *testing.T) {
	tr := New(bytes.NewReader(nil), &bytes.Buffer{})
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, ok, err := tr.Recv(ctx)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestSendAfterCloseFails(t *testing.T) {
	tr := New(bytes.NewReader(nil), &bytes.Buffer{})
	require.NoError(t, tr.Close())

	env, _ := jsonrpc.NewRequest(jsonrpc.NewIntID(1), "ping", nil)
	err := tr.Send(context.Background(), env)
	assert.ErrorIs(t, err, transport.ErrClosed)
}
