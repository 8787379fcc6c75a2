package docstore

import (
	"context"
	"errors"
	"sync"
)

// ErrFeedClosed terminates a live subscription whose change notices stopped arriving
var ErrFeedClosed = errors.New("docstore: change feed closed")

// RunFunc produces the values of a subscription until ctx is cancelled or it fails.
// emit returns false once the subscription has been cancelled.
type RunFunc[T any] func(ctx context.Context, emit func(T) bool) error

// Subscription is a live stream of full snapshots.
//
// The producer starts on the first call to Updates or Done. Values are conflated: a consumer that
// falls behind receives the most recent value only. The stream ends when Cancel is called, the parent
// context is cancelled, or the underlying listener fails; Err then reports the terminal error (nil for
// a cancellation). A failed subscription is not restarted: open a new one.
type Subscription[T any] struct {
	parent  context.Context
	ctx     context.Context
	cancel  context.CancelFunc
	run     RunFunc[T]
	updates chan T
	done    chan struct{}
	start   sync.Once

	mu  sync.Mutex
	err error
}

// NewSubscription wraps run into a Subscription bound to ctx
func NewSubscription[T any](ctx context.Context, run RunFunc[T]) *Subscription[T] {
	inner, cancel := context.WithCancel(ctx)
	return &Subscription[T]{
		parent:  ctx,
		ctx:     inner,
		cancel:  cancel,
		run:     run,
		updates: make(chan T, 1),
		done:    make(chan struct{}),
	}
}

// Just emits v once and completes
func Just[T any](ctx context.Context, v T) *Subscription[T] {
	return NewSubscription(ctx, func(_ context.Context, emit func(T) bool) error {
		emit(v)
		return nil
	})
}

// Failed is a subscription that ends immediately with err
func Failed[T any](ctx context.Context, err error) *Subscription[T] {
	return NewSubscription(ctx, func(context.Context, func(T) bool) error {
		return err
	})
}

// Map decodes every value of src with f. A decoding failure ends the stream with that error.
func Map[S, T any](src *Subscription[S], f func(S) (T, error)) *Subscription[T] {
	return NewSubscription(src.parent, func(ctx context.Context, emit func(T) bool) error {
		defer src.Cancel()
		for {
			select {
			case <-ctx.Done():
				return nil
			case v, ok := <-src.Updates():
				if !ok {
					return src.Err()
				}
				out, err := f(v)
				if err != nil {
					return err
				}
				if !emit(out) {
					return nil
				}
			}
		}
	})
}

// Updates returns the value channel; it is closed when the stream ends
func (s *Subscription[T]) Updates() <-chan T {
	s.start.Do(func() { go s.loop() })
	return s.updates
}

// Done is closed when the stream has ended
func (s *Subscription[T]) Done() <-chan struct{} {
	s.start.Do(func() { go s.loop() })
	return s.done
}

// Err returns the terminal error once the stream has ended
func (s *Subscription[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Cancel stops the producer and waits for the stream to end. It is safe to call more than once.
func (s *Subscription[T]) Cancel() {
	s.cancel()
	s.start.Do(func() {
		close(s.updates)
		close(s.done)
	})
	<-s.done
}

func (s *Subscription[T]) loop() {
	err := s.run(s.ctx, s.emit)
	if s.ctx.Err() != nil {
		err = nil
	}
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.cancel()
	close(s.updates)
	close(s.done)
}

// emit replaces any value the consumer has not taken yet. Only the producer goroutine sends.
func (s *Subscription[T]) emit(v T) bool {
	for {
		if s.ctx.Err() != nil {
			return false
		}
		select {
		case s.updates <- v:
			return true
		default:
		}
		select {
		case <-s.updates:
		default:
		}
	}
}
