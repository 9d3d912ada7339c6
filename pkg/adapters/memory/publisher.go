package memory

import (
	"context"
	"sync"

	"github.com/aretw0/topolab/pkg/domain"
	"github.com/aretw0/topolab/pkg/ports"
)

// Publisher implements ports.EventPublisher by fanning events out to in-process
// subscribers. Slow subscribers miss events instead of blocking the publisher.
type Publisher struct {
	mu     sync.RWMutex
	subs   map[int]chan domain.Event
	nextID int
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a publisher with no subscribers.
func NewPublisher() *Publisher {
	return &Publisher{subs: make(map[int]chan domain.Event)}
}

// Publish delivers the event to every subscriber with room in its buffer.
func (p *Publisher) Publish(ctx context.Context, event domain.Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, ch := range p.subs {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel receiving future events and a function that
// unsubscribes and closes it.
func (p *Publisher) Subscribe(buffer int) (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, buffer)

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = ch
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
			close(ch)
		})
	}
}
