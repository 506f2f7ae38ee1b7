// Package bus is a typed in-process publish/subscribe bus. Producers emit
// immutable knowledge records on a topic; subscribers receive them on a
// bounded channel. Publish never blocks: when a subscriber falls behind its
// oldest pending record is dropped.
package bus

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"modelmgr/pkg/types"
)

const defaultBuffer = 64

type subscriber struct {
	topic string
	ch    chan types.KnowledgeRecord
}

// Bus fans records out by topic.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	buffer int
	closed bool
}

func New() *Bus {
	return &Bus{subs: make(map[*subscriber]struct{}), buffer: defaultBuffer}
}

// Publish delivers a record to every subscriber of its topic. The record's
// ID and EmittedAt are filled in if unset.
func (b *Bus) Publish(topic string, producer string, payload any) types.KnowledgeRecord {
	rec := types.KnowledgeRecord{
		ID:        uuid.NewString(),
		Topic:     topic,
		Producer:  producer,
		Payload:   payload,
		EmittedAt: time.Now().UTC(),
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return rec
	}
	for s := range b.subs {
		if s.topic != topic {
			continue
		}
		for {
			select {
			case s.ch <- rec:
			default:
				// full: drop the oldest pending record and retry
				select {
				case <-s.ch:
				default:
				}
				continue
			}
			break
		}
	}
	return rec
}

// Subscribe registers interest in a topic. The cancel func removes the
// subscription and closes the channel; it is safe to call twice.
func (b *Bus) Subscribe(topic string) (<-chan types.KnowledgeRecord, func()) {
	s := &subscriber{topic: topic, ch: make(chan types.KnowledgeRecord, b.buffer)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, s)
			b.mu.Unlock()
			close(s.ch)
		})
	}
	return s.ch, cancel
}

// Close drops all subscriptions and closes their channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		close(s.ch)
		delete(b.subs, s)
	}
}
