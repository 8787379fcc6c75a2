package viewmodels

import (
	"context"
	"strings"
	"sync"

	"chatsync_server/metrics"
	"chatsync_server/models"
	"chatsync_server/services"

	"go.uber.org/zap"
)

// HomeViewModel backs the room list: the user's rooms, who is online, and the search box
type HomeViewModel struct {
	base
	chat     *services.ChatService
	users    *services.UserService
	presence *services.PresenceService

	ChatRooms     *State[[]models.ChatRoom]
	OnlineUsers   *State[[]models.User]
	SearchQuery   *State[string]
	FilteredRooms *State[[]models.ChatRoom]

	mu            sync.RWMutex
	currentUserID string
	names         map[string]string
}

// NewHomeViewModel starts following the online users right away
func NewHomeViewModel(parent context.Context, chat *services.ChatService, users *services.UserService, presence *services.PresenceService, m *metrics.Metrics, logger *zap.Logger) *HomeViewModel {
	vm := &HomeViewModel{
		base:          newBase(parent, m, logger.Named("home_vm")),
		chat:          chat,
		users:         users,
		presence:      presence,
		ChatRooms:     NewState([]models.ChatRoom{}),
		OnlineUsers:   NewState([]models.User{}),
		SearchQuery:   NewState(""),
		FilteredRooms: NewState([]models.ChatRoom{}),
		names:         make(map[string]string),
	}
	Collect(vm.scope, "onlineUsers", presence.OnlineUsers(vm.ctx()), func(users []models.User) {
		for _, u := range users {
			vm.CacheUser(u)
		}
		vm.OnlineUsers.Set(users)
	}, vm.onErr)
	return vm
}

// CacheUser remembers a user's display name
func (vm *HomeViewModel) CacheUser(user models.User) {
	vm.mu.Lock()
	vm.names[user.UID] = user.Name
	vm.mu.Unlock()
}

// CachedUserName returns the remembered name, or "" if the user was never seen
func (vm *HomeViewModel) CachedUserName(uid string) string {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.names[uid]
}

// GetUserByID loads a user and caches its name
func (vm *HomeViewModel) GetUserByID(uid string) (*models.User, error) {
	user, err := vm.users.GetUser(vm.ctx(), uid)
	if err != nil {
		return nil, err
	}
	vm.CacheUser(*user)
	return user, nil
}

// ListenChatRooms follows the rooms of userID, newest activity first. Names of one-to-one
// counterparts are loaded into the cache so the search can match them.
func (vm *HomeViewModel) ListenChatRooms(userID string) {
	vm.mu.Lock()
	vm.currentUserID = userID
	vm.mu.Unlock()

	Collect(vm.scope, "rooms", vm.chat.GetUserChatRooms(vm.ctx(), userID), func(rooms []models.ChatRoom) {
		for _, r := range rooms {
			if r.IsGroup {
				continue
			}
			other := r.OtherMember(userID)
			if other == "" || vm.CachedUserName(other) != "" {
				continue
			}
			if _, err := vm.GetUserByID(other); err != nil {
				vm.logger.Warn("⚠️ Could not load room member", zap.String("uid", other), zap.Error(err))
			}
		}
		vm.ChatRooms.Set(rooms)
		vm.refilter()
	}, vm.onErr)
}

func (vm *HomeViewModel) UpdateSearchQuery(query string) {
	vm.SearchQuery.Set(query)
	vm.refilter()
}

// DisplayName is the group name, or the other member's name for a one-to-one room
func (vm *HomeViewModel) DisplayName(room models.ChatRoom) string {
	if room.IsGroup {
		return room.GroupName
	}
	vm.mu.RLock()
	me := vm.currentUserID
	vm.mu.RUnlock()
	return vm.CachedUserName(room.OtherMember(me))
}

func (vm *HomeViewModel) refilter() {
	query := strings.ToLower(vm.SearchQuery.Get())
	rooms := vm.ChatRooms.Get()
	filtered := make([]models.ChatRoom, 0, len(rooms))
	for _, r := range rooms {
		if strings.Contains(strings.ToLower(vm.DisplayName(r)), query) {
			filtered = append(filtered, r)
		}
	}
	vm.FilteredRooms.Set(filtered)
}

func (vm *HomeViewModel) CreateOneToOneChat(currentUserID, email string) (string, string, error) {
	roomID, otherID, err := vm.chat.CreateOneToOneChatByEmail(vm.ctx(), currentUserID, email)
	return roomID, otherID, vm.fail(err)
}

func (vm *HomeViewModel) CreateGroupChat(currentUserID string, emails []string, groupName string) (string, error) {
	roomID, err := vm.chat.CreateGroupChatByEmails(vm.ctx(), currentUserID, emails, groupName)
	return roomID, vm.fail(err)
}
