// Package viewmodels turns repository streams into per-screen state. Each view model owns a
// Scope; every live subscription it opens lives in that scope and ends when the screen closes.
package viewmodels

import (
	"context"
	"sync"

	"chatsync_server/docstore"
	"chatsync_server/metrics"

	"go.uber.org/zap"
)

// Scope runs the tasks of one screen. Close cancels them and waits for them to return.
type Scope struct {
	ctx     context.Context
	cancel  context.CancelFunc
	metrics *metrics.Metrics
	logger  *zap.Logger

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

func NewScope(parent context.Context, m *metrics.Metrics, logger *zap.Logger) *Scope {
	ctx, cancel := context.WithCancel(parent)
	return &Scope{ctx: ctx, cancel: cancel, metrics: m, logger: logger}
}

// Context is cancelled when the scope closes
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Launch runs fn in its own goroutine. It returns false, without running fn, once the scope is closed.
func (s *Scope) Launch(fn func(ctx context.Context)) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
	return true
}

// Close cancels every task of the scope and waits for them. Calling it again does nothing.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// Collect feeds every emission of sub to onValue until the subscription ends or the scope closes.
// A subscription that fails is reported to onErr; the caller has to open a new one to resume.
// The returned function cancels just this subscription.
func Collect[T any](s *Scope, kind string, sub *docstore.Subscription[T], onValue func(T), onErr func(error)) (cancel func()) {
	ok := s.Launch(func(ctx context.Context) {
		s.metrics.SubscriptionOpened(kind)
		defer sub.Cancel()
		for {
			select {
			case v, open := <-sub.Updates():
				if !open {
					err := sub.Err()
					s.metrics.SubscriptionClosed(kind, err)
					if err != nil {
						s.logger.Error("❌ Subscription failed", zap.String("kind", kind), zap.Error(err))
						if onErr != nil {
							onErr(err)
						}
					}
					return
				}
				onValue(v)
			case <-ctx.Done():
				s.metrics.SubscriptionClosed(kind, nil)
				return
			}
		}
	})
	if !ok {
		sub.Cancel()
	}
	return sub.Cancel
}
