package gateway

import (
	"context"
	"sync"
)

// Subscription delivers the states of one query. Delivery never blocks the
// gateway: a slow reader only ever sees the latest state.
type Subscription struct {
	g    *Gateway
	key  string
	id   uint64
	ch   chan Snapshot
	done chan struct{}
	once sync.Once
}

func newSubscription(g *Gateway, key string, id uint64) *Subscription {
	return &Subscription{
		g:    g,
		key:  key,
		id:   id,
		ch:   make(chan Snapshot, 1),
		done: make(chan struct{}),
	}
}

// Updates is closed when the subscription ends.
func (s *Subscription) Updates() <-chan Snapshot {
	return s.ch
}

// Key returns the view store key the subscription follows.
func (s *Subscription) Key() string {
	return s.key
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		s.g.unsubscribe(s)
	})
}

// Next blocks until a settled snapshot arrives.
func (s *Subscription) Next(ctx context.Context) (Snapshot, error) {
	for {
		select {
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		case snap, ok := <-s.ch:
			if !ok {
				return Snapshot{}, context.Canceled
			}
			if snap.Settled() {
				return snap, snap.Err
			}
		}
	}
}

// deliver is called with the gateway lock held, which serializes it with
// unsubscribe closing the channel.
func (s *Subscription) deliver(snap Snapshot) {
	select {
	case s.ch <- snap:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snap
}
