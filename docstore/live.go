package docstore

import (
	"context"
	"errors"
	"reflect"

	"chatsync_server/changefeed"

	"go.uber.org/zap"
)

// Live adds live subscriptions to a request/response Store. Every write is followed by a notice on
// the collection topic and on the document topic; watchers re-read and emit the full result.
type Live struct {
	store  Store
	feed   changefeed.Feed
	logger *zap.Logger
}

// NewLive wraps store; feed must be shared by every process writing to the same store
func NewLive(store Store, feed changefeed.Feed, logger *zap.Logger) *Live {
	return &Live{store: store, feed: feed, logger: logger.Named("docstore")}
}

func (l *Live) Get(ctx context.Context, ref Ref) (Item, error) {
	return l.store.Get(ctx, ref)
}

func (l *Live) Set(ctx context.Context, ref Ref, item Item) error {
	if err := l.store.Set(ctx, ref, item); err != nil {
		return err
	}
	l.publish(ctx, ref)
	return nil
}

func (l *Live) Update(ctx context.Context, ref Ref, mutations ...Mutation) error {
	if err := l.store.Update(ctx, ref, mutations...); err != nil {
		return err
	}
	l.publish(ctx, ref)
	return nil
}

func (l *Live) Delete(ctx context.Context, ref Ref) error {
	if err := l.store.Delete(ctx, ref); err != nil {
		return err
	}
	l.publish(ctx, ref)
	return nil
}

func (l *Live) Query(ctx context.Context, q Query) ([]Snapshot, error) {
	return l.store.Query(ctx, q)
}

// publish never fails the write it follows: the document is already stored
func (l *Live) publish(ctx context.Context, ref Ref) {
	if err := l.feed.Publish(ctx, ref.Collection, ref.Path()); err != nil {
		l.logger.Error("❌ Failed to publish change notice", zap.String("ref", ref.Path()), zap.Error(err))
	}
}

// WatchQuery re-runs q after every change in its collection
func (l *Live) WatchQuery(ctx context.Context, q Query) *Subscription[[]Snapshot] {
	return NewSubscription(ctx, func(ctx context.Context, emit func([]Snapshot) bool) error {
		return watch(ctx, l, q.Collection, func(ctx context.Context) ([]Snapshot, error) {
			return l.store.Query(ctx, q)
		}, emit)
	})
}

// WatchDocument re-reads ref after every change of that document
func (l *Live) WatchDocument(ctx context.Context, ref Ref) *Subscription[*Snapshot] {
	return NewSubscription(ctx, func(ctx context.Context, emit func(*Snapshot) bool) error {
		return watch(ctx, l, ref.Path(), func(ctx context.Context) (*Snapshot, error) {
			item, err := l.store.Get(ctx, ref)
			if errors.Is(err, ErrNotFound) {
				return nil, nil
			}
			if err != nil {
				return nil, err
			}
			return &Snapshot{ID: ref.ID, Item: item}, nil
		}, emit)
	})
}

// watch registers on topic before the first read so that no change between read and listen is
// lost. Results equal to the previous emission are skipped.
func watch[T any](ctx context.Context, l *Live, topic string, read func(context.Context) (T, error), emit func(T) bool) error {
	notices, stop, err := l.feed.Listen(ctx, topic)
	if err != nil {
		return err
	}
	defer stop()

	var last T
	first := true
	for {
		current, err := read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.logger.Warn("⚠️ Live read failed", zap.String("topic", topic), zap.Error(err))
			return err
		}
		if first || !reflect.DeepEqual(current, last) {
			if !emit(current) {
				return nil
			}
			first = false
			last = current
		}
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-notices:
			if !ok {
				return ErrFeedClosed
			}
		}
	}
}
