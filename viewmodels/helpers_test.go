package viewmodels

import (
	"context"
	"io"
	"testing"
	"time"

	"chatsync_server/changefeed"
	"chatsync_server/docstore"
	"chatsync_server/idgen"
	"chatsync_server/metrics"
	"chatsync_server/models"
	"chatsync_server/services"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type stubUploader struct{}

func (stubUploader) Upload(_ context.Context, prefix string, body io.Reader, ext, _ string) (string, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	return "https://cdn.test/" + services.ObjectKey(prefix, ext), nil
}

type testEnv struct {
	feed     *changefeed.Local
	metrics  *metrics.Metrics
	logger   *zap.Logger
	users    *services.UserService
	presence *services.PresenceService
	chat     *services.ChatService
	calls    *services.CallService
	auth     *services.AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	feed := changefeed.NewLocal()
	t.Cleanup(func() { _ = feed.Close() })
	store := docstore.NewLive(docstore.NewMemory(), feed, logger)
	ids, err := idgen.New(2)
	require.NoError(t, err)
	m := metrics.New()

	users := services.NewUserService(store, stubUploader{}, logger)
	presence := services.NewPresenceService(store, logger)
	chat := services.NewChatService(store, presence, users, stubUploader{}, ids, m, logger, "https://avatars.test/group.png")
	return &testEnv{
		feed:     feed,
		metrics:  m,
		logger:   logger,
		users:    users,
		presence: presence,
		chat:     chat,
		calls:    services.NewCallService(store, chat, ids, m, logger),
		auth:     services.NewAuthService(store, users, ids, "0123456789abcdef0123456789abcdef", time.Hour, 50, "", logger),
	}
}

func (e *testEnv) seedABC(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for _, u := range []models.User{
		{UID: "u1", Name: "Ann", Email: "a@x.com"},
		{UID: "u2", Name: "Bao", Email: "b@x.com"},
		{UID: "u3", Name: "Chi", Email: "c@x.com"},
	} {
		require.NoError(t, e.users.CreateUser(ctx, u))
	}
}

// eventually waits until cond holds
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, waitFor, tick, msg)
}
