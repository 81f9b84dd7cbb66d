// Package events is the thread-safe fan-out bus delivering progress,
// notification and scan events from the Work Queue's worker goroutine
// to subscribers, grounded on the teacher's
// services/api/internal/listenparty hub, generalized from
// WebSocket-session fan-out to arbitrary subscriber channels. The
// subscriber set is a mutex-guarded map and Publish sends from the
// caller's goroutine; there are no register/unregister/broadcast
// channels and no dedicated hub goroutine. This is
// the systems-language expression spec.md §9 calls for in place of the
// façade's "post to the event loop."
package events

import (
	"sync"
	"time"
)

// Type discriminates the four event shapes named in spec.md §6.
type Type string

const (
	TypeAlbumUpdate Type = "album_update"
	TypeProgress    Type = "progress"
	TypeNotification Type = "notification"
	TypeScanUpdate  Type = "scan_update"
)

// Event is one published record.
type Event struct {
	Type    Type
	AlbumID string
	Status  string
	Message string
	Value   float64 // progress in [0,1] for TypeProgress
}

// Bus fans out published events to all current subscribers. Events
// published from one goroutine reach each subscriber in emission order,
// and Publish returns only after every subscriber with free buffer
// space has accepted the event. A subscriber whose buffer is full does
// not receive that event; Publish does not wait for it.
type Bus struct {
	mu          sync.Mutex
	subscribers map[chan Event]struct{}

	// YieldAfterPublish mirrors spec.md §9's ~80ms post-publish yield
	// that lets a cooperative event loop drain the message before the
	// worker blocks it with the next mutation.
	YieldAfterPublish time.Duration
}

// NewBus builds an empty Bus with the spec-recommended yield.
func NewBus() *Bus {
	return &Bus{
		subscribers:       map[chan Event]struct{}{},
		YieldAfterPublish: 80 * time.Millisecond,
	}
}

// Subscribe registers a new subscriber channel with the given buffer
// depth and returns it along with an unsubscribe function.
func (b *Bus) Subscribe(buffer int) (ch chan Event, unsubscribe func()) {
	ch = make(chan Event, buffer)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
	}
}

// Publish delivers ev to every current subscriber. A subscriber whose
// buffer is full is skipped rather than blocking the publisher — the
// disconnect list is effectively computed post-hoc on each broadcast,
// matching spec.md §5's "no thread races on connection lists."
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	targets := make([]chan Event, 0, len(b.subscribers))
	for ch := range b.subscribers {
		targets = append(targets, ch)
	}
	b.mu.Unlock()

	for _, ch := range targets {
		select {
		case ch <- ev:
		default:
		}
	}

	if b.YieldAfterPublish > 0 {
		time.Sleep(b.YieldAfterPublish)
	}
}
