// Package changefeed carries "something changed" notices from document writers to live watchers.
// A notice carries no payload: watchers re-read the state they care about.
package changefeed

import (
	"context"
	"errors"
)

// ErrClosed is returned once a feed has been shut down
var ErrClosed = errors.New("changefeed: closed")

// Feed publishes and delivers change notices by topic.
type Feed interface {
	// Publish notifies every listener of each topic.
	Publish(ctx context.Context, topics ...string) error
	// Listen registers for notices on topic. Notices are coalesced: a listener that has not
	// drained its channel sees one pending notice however many were published. The channel is
	// closed if the feed shuts down or the underlying transport fails. stop must be called to
	// release the registration.
	Listen(ctx context.Context, topic string) (notices <-chan struct{}, stop func(), err error)
	Close() error
}

// notify performs a coalescing send
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
