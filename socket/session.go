package socket

import (
	"context"
	"fmt"
	"sync"

	"chatsync_server/metrics"
	"chatsync_server/models"
	"chatsync_server/services"
	"chatsync_server/viewmodels"

	"go.uber.org/zap"
)

// Events pushed to the client
const (
	EventRooms       = "rooms"
	EventOnlineUsers = "onlineUsers"
	EventMessages    = "messages"
	EventRoom        = "room"
	EventMembers     = "members"
	EventGroup       = "group"
	EventError       = "error"
)

// Emitter is the outbound half of a connection
type Emitter interface {
	Emit(event string, v ...interface{})
}

// Services are what a session needs to build its screens
type Services struct {
	Chat     *services.ChatService
	Users    *services.UserService
	Presence *services.PresenceService
	Calls    *services.CallService
	Metrics  *metrics.Metrics
}

type RoomsPayload struct {
	Rooms []models.ChatRoom `json:"rooms"`
}

type UsersPayload struct {
	Users []models.User `json:"users"`
}

type MessagesPayload struct {
	RoomID   string               `json:"roomId"`
	Messages []models.ChatMessage `json:"messages"`
}

type RoomPayload struct {
	RoomID string           `json:"roomId"`
	Room   *models.ChatRoom `json:"room"`
}

type MembersPayload struct {
	RoomID  string        `json:"roomId"`
	Screen  string        `json:"screen"`
	Members []models.User `json:"members"`
}

type ErrorPayload struct {
	Screen  string `json:"screen"`
	RoomID  string `json:"roomId,omitempty"`
	Message string `json:"message"`
}

// screen is an open view model plus the observers forwarding its state
type screen struct {
	vm    interface{ Close() }
	unobs []func()
}

func (s *screen) close() {
	for _, unobserve := range s.unobs {
		unobserve()
	}
	s.vm.Close()
}

// Session holds the screens one authenticated connection has open. Each screen owns its
// own view model, so two connections on the same room never share subscriptions.
type Session struct {
	ctx    context.Context
	user   models.User
	out    Emitter
	svc    Services
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
	home   *screen
	rooms  map[string]*screen
	groups map[string]*screen
}

func NewSession(ctx context.Context, user models.User, out Emitter, svc Services, logger *zap.Logger) *Session {
	return &Session{
		ctx:    ctx,
		user:   user,
		out:    out,
		svc:    svc,
		logger: logger.With(zap.String("uid", user.UID)),
		rooms:  make(map[string]*screen),
		groups: make(map[string]*screen),
	}
}

// User is the signed-in user of the connection
func (s *Session) User() models.User {
	return s.user
}

func (s *Session) emitError(screenName, roomID string, err error) {
	s.out.Emit(EventError, ErrorPayload{Screen: screenName, RoomID: roomID, Message: err.Error()})
}

// forwardErrors pushes every non-empty error message of a view model
func (s *Session) forwardErrors(state *viewmodels.State[string], screenName, roomID string) func() {
	return state.Observe(func(msg string) {
		if msg != "" {
			s.out.Emit(EventError, ErrorPayload{Screen: screenName, RoomID: roomID, Message: msg})
		}
	})
}

// OpenHome starts the room list of the user. Opening it twice is a no-op.
func (s *Session) OpenHome() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return context.Canceled
	}
	if s.home != nil {
		return nil
	}

	vm := viewmodels.NewHomeViewModel(s.ctx, s.svc.Chat, s.svc.Users, s.svc.Presence, s.svc.Metrics, s.logger)
	sc := &screen{vm: vm}
	sc.unobs = append(sc.unobs,
		vm.ChatRooms.Observe(func(rooms []models.ChatRoom) {
			s.out.Emit(EventRooms, RoomsPayload{Rooms: rooms})
		}),
		vm.OnlineUsers.Observe(func(users []models.User) {
			s.out.Emit(EventOnlineUsers, UsersPayload{Users: users})
		}),
		s.forwardErrors(vm.Error, "home", ""),
	)
	vm.ListenChatRooms(s.user.UID)
	s.home = sc
	s.logger.Info("🏠 Home opened")
	return nil
}

func (s *Session) CloseHome() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.home != nil {
		s.home.close()
		s.home = nil
	}
}

// memberRoom loads roomID and rejects users outside it
func (s *Session) memberRoom(roomID string) (*models.ChatRoom, error) {
	room, err := s.svc.Chat.GetChatRoom(s.ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasMember(s.user.UID) {
		return nil, fmt.Errorf("room %s: %w", roomID, services.ErrNotMember)
	}
	return room, nil
}

// OpenRoom starts following the messages, info and members of a room the user belongs to
func (s *Session) OpenRoom(roomID string) error {
	if _, err := s.memberRoom(roomID); err != nil {
		s.emitError("room", roomID, err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return context.Canceled
	}
	if _, ok := s.rooms[roomID]; ok {
		return nil
	}

	vm := viewmodels.NewChatViewModel(s.ctx, s.svc.Chat, s.svc.Calls, s.svc.Metrics, s.logger)
	sc := &screen{vm: vm}
	sc.unobs = append(sc.unobs,
		vm.Messages.Observe(func(msgs []models.ChatMessage) {
			s.out.Emit(EventMessages, MessagesPayload{RoomID: roomID, Messages: msgs})
		}),
		vm.ChatRoom.Observe(func(room *models.ChatRoom) {
			if room != nil {
				s.out.Emit(EventRoom, RoomPayload{RoomID: roomID, Room: room})
			}
		}),
		vm.UsersInRoom.Observe(func(users []models.User) {
			s.out.Emit(EventMembers, MembersPayload{RoomID: roomID, Screen: "room", Members: users})
		}),
		s.forwardErrors(vm.Error, "room", roomID),
	)
	vm.ListenMessages(roomID)
	vm.ListenChatRoomInfo(roomID)
	s.rooms[roomID] = sc
	s.logger.Info("💬 Room opened", zap.String("roomId", roomID))
	return nil
}

func (s *Session) CloseRoom(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sc, ok := s.rooms[roomID]; ok {
		sc.close()
		delete(s.rooms, roomID)
	}
}

// OpenGroup starts the settings screen of a group the user belongs to
func (s *Session) OpenGroup(roomID string) error {
	room, err := s.memberRoom(roomID)
	if err == nil && !room.IsGroup {
		err = fmt.Errorf("room %s: %w", roomID, services.ErrNotGroup)
	}
	if err != nil {
		s.emitError("group", roomID, err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return context.Canceled
	}
	if _, ok := s.groups[roomID]; ok {
		return nil
	}

	vm := viewmodels.NewGroupInfoViewModel(s.ctx, s.svc.Chat, s.svc.Metrics, s.logger)
	sc := &screen{vm: vm}
	sc.unobs = append(sc.unobs,
		vm.ChatRoom.Observe(func(room *models.ChatRoom) {
			if room != nil {
				s.out.Emit(EventGroup, RoomPayload{RoomID: roomID, Room: room})
			}
		}),
		vm.Members.Observe(func(users []models.User) {
			s.out.Emit(EventMembers, MembersPayload{RoomID: roomID, Screen: "group", Members: users})
		}),
		s.forwardErrors(vm.Error, "group", roomID),
	)
	vm.LoadGroup(roomID)
	s.groups[roomID] = sc
	s.logger.Info("👥 Group opened", zap.String("roomId", roomID))
	return nil
}

func (s *Session) CloseGroup(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sc, ok := s.groups[roomID]; ok {
		sc.close()
		delete(s.groups, roomID)
	}
}

// Screens reports how many screens are open
func (s *Session) Screens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.rooms) + len(s.groups)
	if s.home != nil {
		n++
	}
	return n
}

// Close ends every screen of the connection. Presence is left untouched.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.home != nil {
		s.home.close()
		s.home = nil
	}
	for id, sc := range s.rooms {
		sc.close()
		delete(s.rooms, id)
	}
	for id, sc := range s.groups {
		sc.close()
		delete(s.groups, id)
	}
}
