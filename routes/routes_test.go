package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chatsync_server/changefeed"
	"chatsync_server/controllers"
	"chatsync_server/docstore"
	"chatsync_server/idgen"
	"chatsync_server/metrics"
	"chatsync_server/models"
	"chatsync_server/services"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	password      = "correct-Horse-battery-staple-42"
	webhookSecret = "hook-secret"
)

type stubUploader struct{}

func (stubUploader) Upload(_ context.Context, prefix string, body io.Reader, ext, _ string) (string, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	return "https://cdn.test/" + services.ObjectKey(prefix, ext), nil
}

type testEnv struct {
	router *mux.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	feed := changefeed.NewLocal()
	t.Cleanup(func() { _ = feed.Close() })
	store := docstore.NewLive(docstore.NewMemory(), feed, logger)
	ids, err := idgen.New(4)
	require.NoError(t, err)
	m := metrics.New()

	users := services.NewUserService(store, stubUploader{}, logger)
	presence := services.NewPresenceService(store, logger)
	chat := services.NewChatService(store, presence, users, stubUploader{}, ids, m, logger, "https://avatars.test/group.png")
	calls := services.NewCallService(store, chat, ids, m, logger)
	auth := services.NewAuthService(store, users, ids, "0123456789abcdef0123456789abcdef", time.Hour, 50, "", logger)
	media := services.NewMediaService(nil, nil, "", "us-east-1", "", m, logger)

	router := NewRouter(
		controllers.NewAuthController(auth, logger),
		controllers.NewUserController(users, presence, logger),
		controllers.NewChatController(chat, logger),
		controllers.NewCallController(calls, webhookSecret, logger),
		controllers.NewMediaController(media, logger),
		controllers.NewAuthMiddleware(auth, logger),
		m,
	)
	return &testEnv{router: router}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

type authResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func (e *testEnv) register(t *testing.T, name, email string) authResponse {
	t.Helper()
	rec := e.do(t, "POST", "/api/auth/register", "", map[string]string{"name": name, "email": email, "password": password})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[authResponse](t, rec)
}

func TestPublicRoutes(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusOK, env.do(t, "GET", "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, "GET", "/", "", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, "GET", "/privacy-policy", "", nil).Code)

	rec := env.do(t, "GET", "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "chatsync_http_request_duration_seconds")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	for _, route := range []struct{ method, path string }{
		{"GET", "/api/auth/me"},
		{"POST", "/api/chatrooms/direct"},
		{"GET", "/api/users/u1"},
		{"POST", "/api/presence/foreground"},
		{"POST", "/generate-presigned-url"},
	} {
		rec := env.do(t, route.method, route.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, route.path)
	}
	assert.Equal(t, http.StatusUnauthorized, env.do(t, "GET", "/api/auth/me", "not-a-token", nil).Code)
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)
	ann := env.register(t, "Ann", "a@x.com")

	rec := env.do(t, "POST", "/api/auth/register", "", map[string]string{"name": "Ann", "email": "A@x.com", "password": password})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, "POST", "/api/auth/login", "", map[string]string{"email": "a@x.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, "POST", "/api/auth/login", "", map[string]string{"email": "a@x.com", "password": password})
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[authResponse](t, rec)

	rec = env.do(t, "GET", "/api/auth/me", ann.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ann.User.UID, decode[models.User](t, rec).UID)

	require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/auth/logout", ann.Token, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, "GET", "/api/auth/me", ann.Token, nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, "GET", "/api/auth/me", second.Token, nil).Code)
}

func TestProfileAndPresence(t *testing.T) {
	env := newTestEnv(t)
	ann := env.register(t, "Ann", "a@x.com")
	bao := env.register(t, "Bao", "b@x.com")
	uid := ann.User.UID

	rec := env.do(t, "PUT", "/api/users/"+uid, ann.Token, map[string]string{"name": "Ann Lee", "phone": "123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Ann Lee", decode[models.User](t, rec).Name)

	assert.Equal(t, http.StatusForbidden, env.do(t, "PUT", "/api/users/"+uid, bao.Token, map[string]string{"name": "x"}).Code)

	require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/presence/foreground", ann.Token, nil).Code)
	rec = env.do(t, "GET", "/api/users/"+uid, bao.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[models.User](t, rec).IsOnline)

	require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/presence/background", ann.Token, nil).Code)
	rec = env.do(t, "GET", "/api/users/"+uid, bao.Token, nil)
	assert.False(t, decode[models.User](t, rec).IsOnline)

	assert.Equal(t, http.StatusNotFound, env.do(t, "GET", "/api/users/nobody", bao.Token, nil).Code)
}

// Ann opens a chat with Bao, sends a message, Bao reads it
func TestDirectChatScenario(t *testing.T) {
	env := newTestEnv(t)
	ann := env.register(t, "Ann", "a@x.com")
	bao := env.register(t, "Bao", "b@x.com")
	chi := env.register(t, "Chi", "c@x.com")

	rec := env.do(t, "POST", "/api/chatrooms/direct", ann.Token, map[string]string{"email": "b@x.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[map[string]string](t, rec)
	roomID := created["roomId"]
	assert.Equal(t, bao.User.UID, created["otherUserId"])

	rec = env.do(t, "POST", "/api/chatrooms/direct", bao.Token, map[string]string{"email": "a@x.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, roomID, decode[map[string]string](t, rec)["roomId"])

	assert.Equal(t, http.StatusBadRequest, env.do(t, "POST", "/api/chatrooms/direct", ann.Token, map[string]string{"email": "a@x.com"}).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, "POST", "/api/chatrooms/direct", ann.Token, map[string]string{"email": "z@x.com"}).Code)

	rec = env.do(t, "POST", "/api/chatrooms/"+roomID+"/messages", ann.Token, map[string]string{"type": "text", "body": "hello", "senderId": chi.User.UID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sent := decode[models.ChatMessage](t, rec)
	assert.Equal(t, ann.User.UID, sent.SenderID)
	assert.NotEmpty(t, sent.MessageID)

	assert.Equal(t, http.StatusBadRequest, env.do(t, "POST", "/api/chatrooms/"+roomID+"/messages", ann.Token, map[string]string{"type": "text", "body": "  "}).Code)

	rec = env.do(t, "GET", "/api/chatrooms/"+roomID, bao.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	room := decode[models.ChatRoom](t, rec)
	assert.Equal(t, "hello", room.LastMessage)
	assert.Equal(t, ann.User.UID, room.LastMessageSenderID)
	assert.Equal(t, int64(1), room.UnreadCounts[bao.User.UID])

	require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/chatrooms/"+roomID+"/read", bao.Token, nil).Code)
	rec = env.do(t, "GET", "/api/chatrooms/"+roomID, bao.Token, nil)
	assert.Equal(t, int64(0), decode[models.ChatRoom](t, rec).UnreadCounts[bao.User.UID])

	assert.Equal(t, http.StatusForbidden, env.do(t, "GET", "/api/chatrooms/"+roomID, chi.Token, nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, "POST", "/api/chatrooms/"+roomID+"/messages", chi.Token, map[string]string{"body": "hi"}).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, "GET", "/api/chatrooms/missing", chi.Token, nil).Code)

	require.Equal(t, http.StatusOK, env.do(t, "DELETE", "/api/chatrooms/"+roomID, ann.Token, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, "GET", "/api/chatrooms/"+roomID, ann.Token, nil).Code)
}

func TestUploadAttachment(t *testing.T) {
	env := newTestEnv(t)
	ann := env.register(t, "Ann", "a@x.com")
	env.register(t, "Bao", "b@x.com")
	rec := env.do(t, "POST", "/api/chatrooms/direct", ann.Token, map[string]string{"email": "b@x.com"})
	roomID := decode[map[string]string](t, rec)["roomId"]

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	require.NoError(t, form.WriteField("type", models.MessageTypeImage))
	part, err := form.CreateFormFile("file", "beach.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg bytes"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest("POST", "/api/chatrooms/"+roomID+"/attachments", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+ann.Token)
	out := httptest.NewRecorder()
	env.router.ServeHTTP(out, req)

	require.Equal(t, http.StatusCreated, out.Code, out.Body.String())
	msg := decode[models.ChatMessage](t, out)
	assert.Equal(t, models.MessageTypeImage, msg.Type)
	assert.Equal(t, models.BodyImage, msg.Body)
	assert.Contains(t, msg.FileURL, services.ChatFilePrefix)
	assert.Contains(t, msg.FileURL, ".jpg")

	rec = env.do(t, "POST", "/api/chatrooms/"+roomID+"/attachments", ann.Token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGroupManagement(t *testing.T) {
	env := newTestEnv(t)
	ann := env.register(t, "Ann", "a@x.com")
	bao := env.register(t, "Bao", "b@x.com")
	chi := env.register(t, "Chi", "c@x.com")

	rec := env.do(t, "POST", "/api/chatrooms/group", ann.Token, map[string]interface{}{"emails": []string{"b@x.com"}, "groupName": "Trip"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	roomID := decode[map[string]string](t, rec)["roomId"]

	assert.Equal(t, http.StatusBadRequest, env.do(t, "POST", "/api/chatrooms/group", ann.Token, map[string]interface{}{"emails": []string{}, "groupName": "x"}).Code)

	require.Equal(t, http.StatusOK, env.do(t, "PUT", "/api/chatrooms/"+roomID+"/name", bao.Token, map[string]string{"groupName": "Road trip"}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, "PUT", "/api/chatrooms/"+roomID+"/name", bao.Token, map[string]string{"groupName": " "}).Code)

	rec = env.do(t, "POST", "/api/chatrooms/"+roomID+"/members", ann.Token, map[string]string{"email": "c@x.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, chi.User.UID, decode[map[string]string](t, rec)["uid"])

	require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/chatrooms/"+roomID+"/admins/"+bao.User.UID, ann.Token, nil).Code)
	require.Equal(t, http.StatusOK, env.do(t, "DELETE", "/api/chatrooms/"+roomID+"/admins/"+bao.User.UID, ann.Token, nil).Code)
	require.Equal(t, http.StatusOK, env.do(t, "DELETE", "/api/chatrooms/"+roomID+"/members/"+chi.User.UID, ann.Token, nil).Code)

	rec = env.do(t, "GET", "/api/chatrooms/"+roomID, ann.Token, nil)
	room := decode[models.ChatRoom](t, rec)
	assert.Equal(t, "Road trip", room.GroupName)
	assert.ElementsMatch(t, []string{ann.User.UID, bao.User.UID}, room.MemberIDs)
	assert.Equal(t, []string{ann.User.UID}, room.AdminIDs)

	// removed members lose access
	assert.Equal(t, http.StatusForbidden, env.do(t, "GET", "/api/chatrooms/"+roomID, chi.Token, nil).Code)
}

func TestCallLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ann := env.register(t, "Ann", "a@x.com")
	bao := env.register(t, "Bao", "b@x.com")
	rec := env.do(t, "POST", "/api/chatrooms/direct", ann.Token, map[string]string{"email": "b@x.com"})
	roomID := decode[map[string]string](t, rec)["roomId"]

	assert.Equal(t, http.StatusBadRequest, env.do(t, "POST", "/api/chatrooms/"+roomID+"/calls", ann.Token, map[string]string{"callType": "hologram"}).Code)

	rec = env.do(t, "POST", "/api/chatrooms/"+roomID+"/calls", ann.Token, map[string]string{"callType": models.CallTypeVideo})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	call := decode[models.CallSession](t, rec)
	assert.Equal(t, models.CallStatusOngoing, call.Status)
	assert.Equal(t, []string{bao.User.UID}, call.TargetIDs)

	event := services.CallEvent{CallID: call.CallID, RoomID: roomID, Event: services.CallEventDeclined}
	assert.Equal(t, http.StatusUnauthorized, env.do(t, "POST", "/api/calls/events", "", event).Code)

	data, err := json.Marshal(event)
	require.NoError(t, err)
	req := httptest.NewRequest("POST", "/api/calls/events", bytes.NewReader(data))
	req.Header.Set(controllers.WebhookSecretHeader, webhookSecret)
	out := httptest.NewRecorder()
	env.router.ServeHTTP(out, req)

	require.Equal(t, http.StatusOK, out.Code, out.Body.String())
	ended := decode[models.CallSession](t, out)
	assert.Equal(t, models.CallStatusMissed, ended.Status)
	assert.Equal(t, services.CallEventDeclined, ended.EndReason)

	rec = env.do(t, "GET", "/api/chatrooms/"+roomID, bao.Token, nil)
	assert.Equal(t, models.BodyCall, decode[models.ChatRoom](t, rec).LastMessage)
}

func TestPresignWithoutStorage(t *testing.T) {
	env := newTestEnv(t)
	ann := env.register(t, "Ann", "a@x.com")

	rec := env.do(t, "POST", "/generate-presigned-url", ann.Token, map[string]string{"fileName": "a.png", "fileType": "image/png"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = env.do(t, "POST", "/generate-presigned-url", ann.Token, map[string]string{"fileName": "a.png"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, "POST", "/get-presigned-read-url", ann.Token, map[string]string{"key": "avatars/a.png"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
