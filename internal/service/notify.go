package service

import "sync"

// Events broadcast on the notifier. The payload contract is only
// "recompute your view from the store".
const (
	EventMealSaved   = "meal.saved"
	EventMealDeleted = "meal.deleted"
)

// Subscription is a registered listener on a Notifier. Close it when the
// listener goes away.
type Subscription struct {
	C        chan string
	notifier *Notifier
}

// Close unregisters the subscription and releases its channel.
func (s *Subscription) Close() {
	s.notifier.unsubscribe(s)
}

// Notifier is the process-wide broadcast channel between the capture flow
// and the store's readers. Any number of independent subscribers, no
// delivery-order guarantee.
type Notifier struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewNotifier creates a new Notifier instance
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a new listener. The returned subscription's channel
// is buffered; a subscriber that stops draining only loses coalescible
// refresh signals, never its registration.
func (n *Notifier) Subscribe() *Subscription {
	sub := &Subscription{C: make(chan string, 8), notifier: n}
	n.mu.Lock()
	n.subs[sub] = struct{}{}
	n.mu.Unlock()
	return sub
}

func (n *Notifier) unsubscribe(sub *Subscription) {
	n.mu.Lock()
	if _, ok := n.subs[sub]; ok {
		delete(n.subs, sub)
		close(sub.C)
	}
	n.mu.Unlock()
}

// Publish broadcasts the event to every subscriber without blocking the
// publisher. A full buffer means refresh signals are already pending, so
// dropping the newest one loses nothing.
func (n *Notifier) Publish(event string) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for sub := range n.subs {
		select {
		case sub.C <- event:
		default:
		}
	}
}
