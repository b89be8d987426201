// Package changefeed fans "collection changed" signals out to document
// store listeners.
package changefeed

import (
	"context"
	"sync"
)

// Local delivers signals within one process.
type Local struct {
	mu   sync.Mutex
	subs map[string]map[int]chan struct{}
	next int
}

func NewLocal() *Local {
	return &Local{subs: make(map[string]map[int]chan struct{})}
}

func (l *Local) Publish(_ context.Context, collection string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ch := range l.subs[collection] {
		signal(ch)
	}
	return nil
}

// Subscribe returns a channel holding at most one pending signal.
func (l *Local) Subscribe(_ context.Context, collection string) (<-chan struct{}, func(), error) {
	ch := make(chan struct{}, 1)
	l.mu.Lock()
	id := l.next
	l.next++
	if l.subs[collection] == nil {
		l.subs[collection] = make(map[int]chan struct{})
	}
	l.subs[collection][id] = ch
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs[collection], id)
			l.mu.Unlock()
		})
	}, nil
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
