package changefeed

import (
	"context"
	"sync"
)

// Local is an in-process feed. It only reaches watchers inside the same process.
type Local struct {
	mu        sync.Mutex
	listeners map[string]map[*localListener]struct{}
	closed    bool
}

type localListener struct {
	ch chan struct{}
}

// NewLocal creates an in-process feed
func NewLocal() *Local {
	return &Local{listeners: make(map[string]map[*localListener]struct{})}
}

func (f *Local) Publish(_ context.Context, topics ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	for _, topic := range topics {
		for l := range f.listeners[topic] {
			notify(l.ch)
		}
	}
	return nil
}

func (f *Local) Listen(_ context.Context, topic string) (<-chan struct{}, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, nil, ErrClosed
	}
	l := &localListener{ch: make(chan struct{}, 1)}
	if f.listeners[topic] == nil {
		f.listeners[topic] = make(map[*localListener]struct{})
	}
	f.listeners[topic][l] = struct{}{}

	var once sync.Once
	stop := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if set, ok := f.listeners[topic]; ok {
				delete(set, l)
				if len(set) == 0 {
					delete(f.listeners, topic)
				}
			}
		})
	}
	return l.ch, stop, nil
}

// ListenerCount returns the number of registered listeners on topic
func (f *Local) ListenerCount(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners[topic])
}

func (f *Local) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	for topic, set := range f.listeners {
		for l := range set {
			close(l.ch)
		}
		delete(f.listeners, topic)
	}
	return nil
}
