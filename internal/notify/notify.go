// Package notify delivers synchronizer notifications to the user and to
// operators.
package notify

import (
	"sync"
	"time"

	"github.com/example/pantrysync/internal/syncer"
)

// Notification is one user facing message.
type Notification struct {
	Message string      `json:"message"`
	Kind    syncer.Kind `json:"kind"`
	At      time.Time   `json:"at"`
}

// DefaultBufferSize bounds a Buffer.
const DefaultBufferSize = 50

// Buffer keeps the latest notifications until they are drained. Identical
// consecutive messages are collapsed.
type Buffer struct {
	mu    sync.Mutex
	size  int
	now   func() time.Time
	items []Notification
}

// NewBuffer creates a Buffer holding at most size notifications.
func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Buffer{size: size, now: time.Now}
}

// Notify implements syncer.Notifier.
func (b *Buffer) Notify(message string, kind syncer.Kind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n := len(b.items); n > 0 && b.items[n-1].Message == message && b.items[n-1].Kind == kind {
		b.items[n-1].At = b.now().UTC()
		return
	}
	b.items = append(b.items, Notification{Message: message, Kind: kind, At: b.now().UTC()})
	if len(b.items) > b.size {
		b.items = b.items[len(b.items)-b.size:]
	}
}

// Drain returns and clears the buffered notifications, oldest first.
func (b *Buffer) Drain() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.items
	b.items = nil
	if out == nil {
		out = []Notification{}
	}
	return out
}

// Multi fans a notification out to several notifiers.
type Multi []syncer.Notifier

// Notify implements syncer.Notifier.
func (m Multi) Notify(message string, kind syncer.Kind) {
	for _, n := range m {
		if n != nil {
			n.Notify(message, kind)
		}
	}
}
