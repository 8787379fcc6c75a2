package viewmodels

import "sync"

// State holds the latest value of one piece of screen state. Each Set replaces the value
// wholesale and notifies every observer.
type State[T any] struct {
	mu        sync.RWMutex
	value     T
	observers map[int]func(T)
	nextID    int
}

func NewState[T any](initial T) *State[T] {
	return &State[T]{value: initial, observers: make(map[int]func(T))}
}

func (s *State[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set stores v and calls the observers from the calling goroutine
func (s *State[T]) Set(v T) {
	s.mu.Lock()
	s.value = v
	observers := make([]func(T), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()

	for _, fn := range observers {
		fn(v)
	}
}

// Observe calls fn with the current value, then with every later one, until the returned
// function is called.
func (s *State[T]) Observe(fn func(T)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	current := s.value
	s.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}
