// Package tabsync queues change notifications from other instances until the owner can apply them.
package tabsync

import (
	"sync"

	"github.com/trezcool/gradebook/storage/kv"
)

// Inbox collects kv.Changes without ever blocking the notifier.
// Each change carries the whole collection, so only the latest change per key is kept.
type Inbox struct {
	mu      sync.Mutex
	pending map[string]kv.Change
	order   []string // keys in first-arrival order
	signal  chan struct{}
}

func NewInbox() *Inbox {
	return &Inbox{
		pending: make(map[string]kv.Change),
		signal:  make(chan struct{}, 1),
	}
}

// Attach subscribes the inbox to store. Calling the returned func detaches it.
func (in *Inbox) Attach(store kv.Store) func() {
	return store.Subscribe(in.Handle)
}

// Handle is a kv.Listener.
func (in *Inbox) Handle(ch kv.Change) {
	in.mu.Lock()
	if _, ok := in.pending[ch.Key]; !ok {
		in.order = append(in.order, ch.Key)
	}
	in.pending[ch.Key] = ch
	in.mu.Unlock()

	select {
	case in.signal <- struct{}{}:
	default: // already signalled
	}
}

// Drain returns and forgets the pending changes.
func (in *Inbox) Drain() []kv.Change {
	in.mu.Lock()
	defer in.mu.Unlock()

	if len(in.order) == 0 {
		return nil
	}
	changes := make([]kv.Change, 0, len(in.order))
	for _, key := range in.order {
		changes = append(changes, in.pending[key])
	}
	in.pending = make(map[string]kv.Change)
	in.order = nil
	return changes
}

func (in *Inbox) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.order)
}

// Signal receives a value after Handle queued a change. One value may stand for several changes.
func (in *Inbox) Signal() <-chan struct{} {
	return in.signal
}
