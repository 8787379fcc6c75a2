package changefeed

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Runs against a real server only when REDIS_ADDR is set.
func TestRedisFeed(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	feed := NewRedis(client, "chatsync_test:"+uuid.NewString()+":", zap.NewNop())
	defer feed.Close()

	ch, stop, err := feed.Listen(ctx, "chatrooms")
	require.NoError(t, err)
	defer stop()

	require.NoError(t, feed.Publish(ctx, "chatrooms"))
	receive(t, ch)

	stop()
	_, ok := <-ch
	require.False(t, ok)
}
