package services

import (
	"context"
	"testing"

	"chatsync_server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceOnlineUsers(t *testing.T) {
	env := newTestEnv(t)
	env.seedABC(t)
	ctx := context.Background()

	sub := env.presence.OnlineUsers(ctx)
	defer sub.Cancel()
	assert.Empty(t, waitUntil(t, sub, func([]models.User) bool { return true }))

	require.NoError(t, env.presence.SetOnline(ctx, "u1"))
	require.NoError(t, env.presence.SetOnline(ctx, "u3"))
	online := waitUntil(t, sub, func(u []models.User) bool { return len(u) == 2 })
	assert.Equal(t, "u1", online[0].UID)
	assert.Equal(t, "u3", online[1].UID)

	require.NoError(t, env.presence.SetOffline(ctx, "u1"))
	online = waitUntil(t, sub, func(u []models.User) bool { return len(u) == 1 })
	assert.Equal(t, "u3", online[0].UID)
}

func TestPresenceUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	assert.ErrorIs(t, env.presence.SetOnline(ctx, "ghost"), ErrUserNotFound)
	assert.ErrorIs(t, env.presence.SetOffline(ctx, ""), ErrUserNotFound)
}

func TestIncrementUnreadSkipsSender(t *testing.T) {
	env := newTestEnv(t)
	env.seedABC(t)
	ctx := context.Background()
	roomID := newGroup(t, env, "b@x.com", "c@x.com")

	require.NoError(t, env.presence.IncrementUnread(ctx, roomID, []string{"u1", "u2", "u3"}, "u1"))
	require.NoError(t, env.presence.IncrementUnread(ctx, roomID, []string{"u1", "u2", "u3"}, "u3"))

	room := env.room(t, roomID)
	assert.Equal(t, map[string]int64{"u2": 2, "u3": 1, "u1": 1}, room.UnreadCounts)

	// only the sender: nothing to do
	require.NoError(t, env.presence.IncrementUnread(ctx, "missing", []string{"u1"}, "u1"))
	assert.ErrorIs(t, env.presence.IncrementUnread(ctx, "missing", []string{"u1", "u2"}, "u1"), ErrRoomNotFound)
}

func TestUnreadCount(t *testing.T) {
	env := newTestEnv(t)
	env.seedABC(t)
	ctx := context.Background()
	roomID := newGroup(t, env, "b@x.com")

	count, err := env.presence.UnreadCount(ctx, roomID, "u2")
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = env.chat.SendText(ctx, roomID, "u1", "hi")
	require.NoError(t, err)
	count, err = env.presence.UnreadCount(ctx, roomID, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = env.presence.UnreadCount(ctx, "missing", "u2")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.ErrorIs(t, env.presence.MarkAsRead(ctx, roomID, ""), ErrUserNotFound)
}
