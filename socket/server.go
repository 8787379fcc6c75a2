package socket

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"

	"chatsync_server/services"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"go.uber.org/zap"
)

// Events accepted from the client
const (
	EventHomeOpen   = "home:open"
	EventHomeClose  = "home:close"
	EventRoomOpen   = "room:open"
	EventRoomClose  = "room:close"
	EventGroupOpen  = "group:open"
	EventGroupClose = "group:close"
)

var ErrMissingToken = errors.New("authorization token is not provided")

// RoomRequest is the body of the room and group events
type RoomRequest struct {
	RoomID string `json:"roomId"`
}

// Server is the socket.io endpoint. A connection authenticates with ?token=<jwt> and then
// opens screens whose state is pushed as events.
type Server struct {
	io     *socketio.Server
	auth   *services.AuthService
	svc    Services
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session

	closeOnce sync.Once
	closeErr  error
}

// NewSocketServer initializes the socket.io server and registers its handlers
func NewSocketServer(auth *services.AuthService, svc Services, allowedOrigins []string, logger *zap.Logger) *Server {
	checkOrigin := OriginChecker(allowedOrigins)
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		io: socketio.NewServer(&engineio.Options{
			Transports: []transport.Transport{
				&polling.Transport{CheckOrigin: checkOrigin},
				&websocket.Transport{CheckOrigin: checkOrigin},
			},
		}),
		auth:     auth,
		svc:      svc,
		logger:   logger.Named("socket"),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}

	s.io.OnConnect("/", s.onConnect)
	s.io.OnEvent("/", EventHomeOpen, func(c socketio.Conn) {
		if sess := s.sessionOf(c); sess != nil {
			_ = sess.OpenHome()
		}
	})
	s.io.OnEvent("/", EventHomeClose, func(c socketio.Conn) {
		if sess := s.sessionOf(c); sess != nil {
			sess.CloseHome()
		}
	})
	s.io.OnEvent("/", EventRoomOpen, func(c socketio.Conn, req RoomRequest) {
		if sess := s.sessionOf(c); sess != nil {
			_ = sess.OpenRoom(req.RoomID)
		}
	})
	s.io.OnEvent("/", EventRoomClose, func(c socketio.Conn, req RoomRequest) {
		if sess := s.sessionOf(c); sess != nil {
			sess.CloseRoom(req.RoomID)
		}
	})
	s.io.OnEvent("/", EventGroupOpen, func(c socketio.Conn, req RoomRequest) {
		if sess := s.sessionOf(c); sess != nil {
			_ = sess.OpenGroup(req.RoomID)
		}
	})
	s.io.OnEvent("/", EventGroupClose, func(c socketio.Conn, req RoomRequest) {
		if sess := s.sessionOf(c); sess != nil {
			sess.CloseGroup(req.RoomID)
		}
	})
	s.io.OnError("/", func(c socketio.Conn, err error) {
		s.logger.Warn("⚠️ Socket error", zap.Error(err))
	})
	s.io.OnDisconnect("/", func(c socketio.Conn, reason string) {
		s.Disconnect(c.ID())
		s.logger.Info("❌ Socket disconnected", zap.String("id", c.ID()), zap.String("reason", reason))
	})
	return s
}

// OriginChecker accepts the configured origins; "*" accepts any
func OriginChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowed, "*") {
			return true
		}
		return slices.Contains(allowed, origin)
	}
}

func (s *Server) onConnect(c socketio.Conn) error {
	u := c.URL()
	sess, err := s.Connect(c.ID(), u.Query().Get("token"), c)
	if err != nil {
		s.logger.Warn("❌ Socket rejected", zap.String("id", c.ID()), zap.Error(err))
		return err
	}
	c.SetContext(sess)
	return nil
}

// Connect authenticates token and registers a session for connection id
func (s *Server) Connect(id, token string, out Emitter) (*Session, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	user, err := s.auth.Authenticate(s.ctx, token)
	if err != nil {
		return nil, err
	}
	sess := NewSession(s.ctx, *user, out, s.svc, s.logger)

	s.mu.Lock()
	if old, ok := s.sessions[id]; ok {
		old.Close()
	}
	s.sessions[id] = sess
	s.mu.Unlock()

	s.logger.Info("✅ Socket connected", zap.String("id", id), zap.String("uid", user.UID))
	return sess, nil
}

// Disconnect closes every screen of connection id
func (s *Server) Disconnect(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		sess.Close()
	}
}

func (s *Server) sessionOf(c socketio.Conn) *Session {
	sess, ok := c.Context().(*Session)
	if !ok {
		c.Emit(EventError, ErrorPayload{Message: ErrMissingToken.Error()})
		return nil
	}
	return sess
}

// Sessions reports the number of connected sessions
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.io.ServeHTTP(w, r)
}

// Serve runs the socket.io event loop until Close
func (s *Server) Serve() error {
	return s.io.Serve()
}

// Close ends every session and stops the socket.io server. Later calls are no-ops.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		sessions := s.sessions
		s.sessions = make(map[string]*Session)
		s.mu.Unlock()
		for _, sess := range sessions {
			sess.Close()
		}
		s.cancel()
		s.closeErr = s.io.Close()
	})
	return s.closeErr
}
