package feedclient

import (
	"sync"

	"go-leavehub/internal/notification"
	"go-leavehub/internal/realtime"
)

// Feed is the client's merged view of its notification log. Pushed frames
// and pulled snapshots may arrive in any order and may overlap, so merging
// is always by notification id, never by arrival order.
type Feed struct {
	mu     sync.Mutex
	order  []string // most-recent-first
	items  map[string]notification.NotificationResponse
	unread int
}

func NewFeed() *Feed {
	return &Feed{
		items: make(map[string]notification.NotificationResponse),
	}
}

// ApplyPull replaces the local view with the server's snapshot. The durable
// log is the baseline truth; anything the client held that the server does
// not return was never real.
func (f *Feed) ApplyPull(list []notification.NotificationResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.order = f.order[:0]
	f.items = make(map[string]notification.NotificationResponse, len(list))
	f.unread = 0

	for _, n := range list {
		if _, dup := f.items[n.ID]; dup {
			continue
		}
		f.order = append(f.order, n.ID)
		f.items[n.ID] = n
		if !n.Read {
			f.unread++
		}
	}
}

// Merge folds one pushed envelope in and reports whether it was new. A frame
// that also arrived via a racing pull is a no-op.
func (f *Feed) Merge(env realtime.Envelope) bool {
	n := env.Notification

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.items[n.ID]; exists {
		return false
	}

	f.order = append([]string{n.ID}, f.order...)
	f.items[n.ID] = n
	if !n.Read {
		f.unread++
	}
	return true
}

// markReadLocal flips the local read state and returns whether the flip
// changed anything, so a failed server call can be rolled back.
func (f *Feed) markReadLocal(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, ok := f.items[id]
	if !ok || n.Read {
		return false
	}
	n.Read = true
	f.items[id] = n
	f.unread--
	return true
}

func (f *Feed) markUnreadLocal(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, ok := f.items[id]
	if !ok || !n.Read {
		return
	}
	n.Read = false
	f.items[id] = n
	f.unread++
}

// Unread returns the current local unread count.
func (f *Feed) Unread() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unread
}

// Snapshot returns the merged view, most-recent-first.
func (f *Feed) Snapshot() []notification.NotificationResponse {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]notification.NotificationResponse, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.items[id])
	}
	return out
}

// Len reports how many distinct notifications the feed holds.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order)
}
