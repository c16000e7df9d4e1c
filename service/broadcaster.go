package service

import "sync"

// RefreshBroadcaster fans a payload-less refresh signal out to every
// subscriber. Delivery is best effort: a subscriber that already has a
// pending signal does not receive a second one.
type RefreshBroadcaster struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

func NewRefreshBroadcaster() *RefreshBroadcaster {
	return &RefreshBroadcaster{subs: make(map[chan struct{}]struct{})}
}

// Subscribe returns a signal channel and a function that cancels the
// subscription.
func (b *RefreshBroadcaster) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
		})
	}
}

func (b *RefreshBroadcaster) Broadcast() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
