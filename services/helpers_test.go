package services

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"chatsync_server/changefeed"
	"chatsync_server/docstore"
	"chatsync_server/idgen"
	"chatsync_server/metrics"
	"chatsync_server/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testSecret      = "0123456789abcdef0123456789abcdef"
	testGroupAvatar = "https://avatars.test/group.png"
	testUserAvatar  = "https://avatars.test/user.png"
	waitFor         = 2 * time.Second
)

type fakeUploader struct {
	mu      sync.Mutex
	keys    []string
	payload []string
	err     error
}

func (f *fakeUploader) Upload(_ context.Context, prefix string, body io.Reader, ext, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := ObjectKey(prefix, ext)
	f.keys = append(f.keys, key)
	f.payload = append(f.payload, string(data))
	return "https://cdn.test/" + key, nil
}

type testEnv struct {
	store    *docstore.Live
	feed     *changefeed.Local
	media    *fakeUploader
	metrics  *metrics.Metrics
	users    *UserService
	presence *PresenceService
	chat     *ChatService
	calls    *CallService
	auth     *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	feed := changefeed.NewLocal()
	t.Cleanup(func() { _ = feed.Close() })
	store := docstore.NewLive(docstore.NewMemory(), feed, logger)
	ids, err := idgen.New(1)
	require.NoError(t, err)
	m := metrics.New()
	media := &fakeUploader{}

	users := NewUserService(store, media, logger)
	presence := NewPresenceService(store, logger)
	chat := NewChatService(store, presence, users, media, ids, m, logger, testGroupAvatar)
	return &testEnv{
		store:    store,
		feed:     feed,
		media:    media,
		metrics:  m,
		users:    users,
		presence: presence,
		chat:     chat,
		calls:    NewCallService(store, chat, ids, m, logger),
		auth:     NewAuthService(store, users, ids, testSecret, time.Hour, 50, testUserAvatar, logger),
	}
}

func (e *testEnv) seedUser(t *testing.T, uid, email string) {
	t.Helper()
	require.NoError(t, e.users.CreateUser(context.Background(), models.User{UID: uid, Name: uid, Email: email}))
}

// seedABC creates u1, u2 (b@x.com) and u3 (c@x.com)
func (e *testEnv) seedABC(t *testing.T) {
	t.Helper()
	e.seedUser(t, "u1", "a@x.com")
	e.seedUser(t, "u2", "b@x.com")
	e.seedUser(t, "u3", "c@x.com")
}

func (e *testEnv) room(t *testing.T, roomID string) *models.ChatRoom {
	t.Helper()
	room, err := e.chat.GetChatRoom(context.Background(), roomID)
	require.NoError(t, err)
	return room
}

// waitUntil reads emissions until ok accepts one
func waitUntil[T any](t *testing.T, sub *docstore.Subscription[T], ok func(T) bool) T {
	t.Helper()
	timeout := time.After(waitFor)
	for {
		select {
		case v, open := <-sub.Updates():
			require.True(t, open, "subscription closed: %v", sub.Err())
			if ok(v) {
				return v
			}
		case <-timeout:
			t.Fatalf("no matching emission within %s", waitFor)
		}
	}
}
