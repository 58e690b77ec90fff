package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 16
)

// Session is one live connection for one recipient. A recipient may hold
// several at once (multiple tabs or devices).
type Session struct {
	RecipientID string
	ConnectedAt time.Time

	conn      *websocket.Conn
	send      chan Envelope
	closeOnce sync.Once
	logger    *zap.Logger
}

func NewSession(recipientID string, conn *websocket.Conn, logger *zap.Logger) *Session {
	return &Session{
		RecipientID: recipientID,
		ConnectedAt: time.Now().UTC(),
		conn:        conn,
		send:        make(chan Envelope, sendBufferSize),
		logger:      logger,
	}
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.send)
	})
}

// writePump drains the send buffer onto the wire. A write failure tears the
// session down; the frame is lost by design.
func (s *Session) writePump(hub *Hub) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case env, ok := <-s.send:
			if !ok {
				s.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
				return
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(env); err != nil {
				s.logger.Debug("session write failed",
					zap.String("recipient_id", s.RecipientID),
					zap.Error(err),
				)
				hub.Unregister(s)
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				hub.Unregister(s)
				return
			}
		}
	}
}

// readPump only services pong frames and the close handshake; clients do not
// send application data on this channel.
func (s *Session) readPump(hub *Hub) {
	defer hub.Unregister(s)

	s.conn.SetReadLimit(512)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
