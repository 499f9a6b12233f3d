// Package stdio implements the transport.Transport contract over a
// subprocess's standard input/output: one JSON-RPC envelope per line,
// UTF-8, newline-terminated — the transport a host uses to spawn an MCP
// server as a child process.
package stdio

import (
	"bufio"
	"context"
	"io"
	"sync"
	"time"

	"github.com/praxiomlabs/mcpkit/jsonrpc"
	"github.com/praxiomlabs/mcpkit/transport"
)

// readBuffer accumulates a continuous byte stream into discrete
// newline-delimited lines, the way a line-buffered stdio reader does for
// its own stdio transport, generalized to hand back raw lines rather than
// decoded messages so Transport can decide how to parse them.
type readBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (r *readBuffer) append(chunk []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, chunk...)
}

func (r *readBuffer) readLine() ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, b := range r.buf {
		if b == '\n' {
			line := r.buf[:i]
			r.buf = r.buf[i+1:]
			out := make([]byte, len(line))
			copy(out, line)
			return out, true
		}
	}
	return nil, false
}

// Transport implements transport.Transport over an io.Reader/io.Writer
// pair. New takes the pair explicitly: os.Stdin/os.Stdout, a subprocess's
// pipes, or any reader/writer a test supplies.
type Transport struct {
	reader *bufio.Reader
	writer io.Writer
	rb     *readBuffer

	meta transport.Metadata

	mu     sync.Mutex
	closed bool

	// lines delivers complete, still-encoded lines from the background
	// read pump to Recv.
	lines chan []byte
	// readErr carries a terminal read failure to Recv.
	readErr chan error
}

// New wraps r/w as a Transport. The background read pump starts
// immediately so Send/Recv can be used right away.
func New(r io.Reader, w io.Writer) *Transport {
	t := &Transport{
		reader:  bufio.NewReader(r),
		writer:  w,
		rb:      &readBuffer{},
		meta:    transport.Metadata{Type: "stdio", ConnectedAt: time.Now()},
		lines:   make(chan []byte, 16),
		readErr: make(chan error, 1),
	}
	go t.readLoop()
	return t
}

func (t *Transport) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := t.reader.Read(buf)
		if n > 0 {
			t.rb.append(buf[:n])
			for {
				line, ok := t.rb.readLine()
				if !ok {
					break
				}
				t.lines <- line
			}
		}
		if err != nil {
			close(t.lines)
			if err != io.EOF {
				t.readErr <- err
			}
			return
		}
	}
}

// Send marshals env and writes it as one newline-terminated line.
func (t *Transport) Send(_ context.Context, env jsonrpc.Envelope) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return transport.ErrClosed
	}

	data, err := jsonrpc.Serialize(env)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return transport.ErrClosed
	}
	_, err = t.writer.Write(data)
	return err
}

// Recv returns the next line-framed Envelope, or ok=false once the peer
// (or our own Close) ends the stream cleanly.
func (t *Transport) Recv(ctx context.Context) (jsonrpc.Envelope, bool, error) {
	if !t.Connected() {
		return jsonrpc.Envelope{}, false, nil
	}
	select {
	case line, open := <-t.lines:
		if !open {
			select {
			case err := <-t.readErr:
				return jsonrpc.Envelope{}, false, err
			default:
				return jsonrpc.Envelope{}, false, nil
			}
		}
		env, err := jsonrpc.Parse(line)
		if err != nil {
			return jsonrpc.Envelope{}, false, err
		}
		return env, true, nil
	case <-ctx.Done():
		return jsonrpc.Envelope{}, false, ctx.Err()
	}
}

// Close is idempotent; it does not interrupt an in-flight Read on the
// underlying reader (callers should close the underlying pipe/file to do
// that), but it makes Send fail and every later Recv call report a clean
// close. A Recv already blocked when Close is called keeps waiting for the
// pump or its ctx.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Connected reports whether Close has not yet been called.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed
}

// Metadata describes this transport instance.
func (t *Transport) Metadata() transport.Metadata { return t.meta }
