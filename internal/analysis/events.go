package analysis

import (
	"strings"
	"sync"
)

// EventBroker fans stage events out to live subscribers. Slow subscribers
// lose events rather than blocking a run.
type EventBroker struct {
	mu   sync.RWMutex
	next int
	subs map[int]subscriber
}

type subscriber struct {
	runID string
	ch    chan JournalEvent
}

func NewEventBroker() *EventBroker {
	return &EventBroker{subs: make(map[int]subscriber)}
}

// Subscribe registers for events of runID, or of every run when runID is
// empty. The returned cancel func closes the channel.
func (b *EventBroker) Subscribe(runID string, size int) (<-chan JournalEvent, func()) {
	if size <= 0 {
		size = 1
	}
	ch := make(chan JournalEvent, size)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = subscriber{runID: strings.TrimSpace(runID), ch: ch}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *EventBroker) Publish(ev JournalEvent) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if s.runID != "" && s.runID != ev.RunID {
			continue
		}
		select {
		case s.ch <- ev:
		default:
		}
	}
}
