// Package events fans job notifications out to whichever UI surfaces are
// listening. Delivery is best effort and never blocks the publisher.
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/kerbaras/docport/pkg/data"
)

type Type string

const (
	TypeProgress Type = "progress"
	TypeLog      Type = "log"
	TypeComplete Type = "complete"
	TypeError    Type = "error"
	TypeState    Type = "state"
)

type Event struct {
	Type     Type           `json:"type"`
	Time     time.Time      `json:"time"`
	Exported int            `json:"exportedCount,omitempty"`
	Total    int            `json:"totalCount,omitempty"`
	Line     string         `json:"line,omitempty"`
	Message  string         `json:"message,omitempty"`
	Counts   *data.Counts   `json:"counts,omitempty"`
	State    *data.JobState `json:"state,omitempty"`
}

func Progress(exported, total int) Event {
	return Event{Type: TypeProgress, Exported: exported, Total: total}
}

func Log(line string) Event {
	return Event{Type: TypeLog, Line: line}
}

func Complete(c data.Counts) Event {
	return Event{Type: TypeComplete, Counts: &c, Exported: c.Exported(), Total: c.Total}
}

func Error(msg string) Event {
	return Event{Type: TypeError, Message: msg}
}

func State(s *data.JobState) Event {
	return Event{Type: TypeState, State: s}
}

// Publisher is what producers depend on.
type Publisher interface {
	Publish(Event)
}

type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	next   int
	closed bool
	log    *slog.Logger
	now    func() time.Time
}

func NewBus(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{subs: map[int]chan Event{}, log: log, now: time.Now}
}

// Subscribe registers a listener with the given buffer. The returned function
// unsubscribes and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

func (b *Bus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = b.now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed || len(b.subs) == 0 {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.log.Debug("dropping event for slow subscriber", "subscriber", id, "type", e.Type)
		}
	}
}

// Subscribers reports how many listeners are attached.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close detaches every subscriber. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
