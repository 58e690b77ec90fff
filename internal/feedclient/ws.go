package feedclient

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go-leavehub/internal/realtime"

	"github.com/gorilla/websocket"
)

const dialTimeout = 10 * time.Second

// WSStreamer opens websocket push streams against the delivery channel. The
// credential is supplied per connect by the reconciler, never cached here.
type WSStreamer struct {
	url    string
	dialer *websocket.Dialer
}

func NewWSStreamer(url string) *WSStreamer {
	return &WSStreamer{
		url: url,
		dialer: &websocket.Dialer{
			HandshakeTimeout: dialTimeout,
		},
	}
}

func (s *WSStreamer) Open(ctx context.Context, token string) (Stream, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := s.dialer.DialContext(ctx, s.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}

	st := &wsStream{conn: conn, done: make(chan struct{})}

	// Unblock any pending read when the caller tears the client down. The
	// watcher also exits when the stream itself is closed, so a reconnect
	// loop never accumulates watchers for dead streams.
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-st.done:
		}
	}()

	return st, nil
}

type wsStream struct {
	conn      *websocket.Conn
	done      chan struct{}
	closeOnce sync.Once
}

func (s *wsStream) Next(ctx context.Context) (realtime.Envelope, error) {
	if deadline, ok := ctx.Deadline(); ok {
		s.conn.SetReadDeadline(deadline)
	}

	var env realtime.Envelope
	if err := s.conn.ReadJSON(&env); err != nil {
		return realtime.Envelope{}, err
	}
	return env, nil
}

func (s *wsStream) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return s.conn.Close()
}
