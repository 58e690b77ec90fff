package realtime

import (
	"sync"

	"go-leavehub/internal/events"
	"go-leavehub/internal/notification"

	"go.uber.org/zap"
)

// Envelope is the frame pushed to live sessions. Kind lets clients dispatch
// with an exhaustive switch instead of matching on free-form strings.
type Envelope struct {
	Kind         events.Kind                       `json:"kind"`
	Notification notification.NotificationResponse `json:"notification"`
}

// Hub tracks the open sessions per recipient. Delivery is strictly
// best-effort: a recipient with no sessions simply misses the push, and the
// durable notification log is the recovery path. The hub is constructed once
// in the app registry and handed to the bridge by reference; there is no
// package-level instance.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*Session]struct{}
	closed   bool
	logger   *zap.Logger
}

func NewHub(logger ...*zap.Logger) *Hub {
	l := zap.L().Named("realtime.hub")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("realtime.hub")
	}
	return &Hub{
		sessions: make(map[string]map[*Session]struct{}),
		logger:   l,
	}
}

func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		s.close()
		return
	}

	if h.sessions[s.RecipientID] == nil {
		h.sessions[s.RecipientID] = make(map[*Session]struct{})
	}
	h.sessions[s.RecipientID][s] = struct{}{}

	h.logger.Debug("session registered",
		zap.String("recipient_id", s.RecipientID),
		zap.Int("sessions", len(h.sessions[s.RecipientID])),
	)
}

// Unregister removes the session and closes it. Missed pushes are not
// replayed; the client reconciles by re-pulling the notification log.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	if set, ok := h.sessions[s.RecipientID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.sessions, s.RecipientID)
		}
	}
	h.mu.Unlock()

	s.close()

	h.logger.Debug("session unregistered", zap.String("recipient_id", s.RecipientID))
}

// Push forwards the envelope to every open session of the recipient and
// returns how many sessions accepted it. Zero is not an error: the frame is
// dropped, never queued or retried. A session whose buffer is full also
// drops the frame rather than blocking the caller.
func (h *Hub) Push(recipientID string, env Envelope) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for s := range h.sessions[recipientID] {
		select {
		case s.send <- env:
			delivered++
		default:
			h.logger.Warn("session buffer full, frame dropped",
				zap.String("recipient_id", recipientID),
			)
		}
	}

	if delivered == 0 {
		h.logger.Debug("push dropped, no live session",
			zap.String("recipient_id", recipientID),
			zap.String("kind", env.Kind.String()),
		)
	}

	return delivered
}

func (h *Hub) SessionCount(recipientID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[recipientID])
}

// Close shuts every session down. Called once on server shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for _, set := range h.sessions {
		for s := range set {
			s.close()
		}
	}
	h.sessions = make(map[string]map[*Session]struct{})

	h.logger.Info("hub closed")
}
