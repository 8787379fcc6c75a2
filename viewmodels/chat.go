package viewmodels

import (
	"context"
	"io"
	"strings"

	"chatsync_server/metrics"
	"chatsync_server/models"
	"chatsync_server/services"

	"go.uber.org/zap"
)

// ChatViewModel backs an open conversation, one-to-one or group
type ChatViewModel struct {
	base
	chat  *services.ChatService
	calls *services.CallService

	Messages    *State[[]models.ChatMessage]
	ChatRoom    *State[*models.ChatRoom]
	UsersInRoom *State[[]models.User]

	members *memberWatch
}

func NewChatViewModel(parent context.Context, chat *services.ChatService, calls *services.CallService, m *metrics.Metrics, logger *zap.Logger) *ChatViewModel {
	vm := &ChatViewModel{
		base:        newBase(parent, m, logger.Named("chat_vm")),
		chat:        chat,
		calls:       calls,
		Messages:    NewState([]models.ChatMessage{}),
		ChatRoom:    NewState[*models.ChatRoom](nil),
		UsersInRoom: NewState([]models.User{}),
	}
	vm.members = &memberWatch{scope: vm.scope, chat: chat, target: vm.UsersInRoom, onErr: vm.onErr}
	return vm
}

func (vm *ChatViewModel) ListenMessages(roomID string) {
	Collect(vm.scope, "messages", vm.chat.GetMessages(vm.ctx(), roomID), vm.Messages.Set, vm.onErr)
}

// ListenChatRoomInfo follows the room and, through it, the users currently in it
func (vm *ChatViewModel) ListenChatRoomInfo(roomID string) {
	Collect(vm.scope, "room", vm.chat.GetChatRoomInfo(vm.ctx(), roomID), func(room *models.ChatRoom) {
		vm.ChatRoom.Set(room)
		vm.members.follow(room)
	}, vm.onErr)
}

// SendMessage sends a text message. Blank text is ignored.
func (vm *ChatViewModel) SendMessage(roomID, senderID, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	_, err := vm.chat.SendText(vm.ctx(), roomID, senderID, text)
	return vm.fail(err)
}

func (vm *ChatViewModel) MarkAsRead(roomID, userID string) error {
	return vm.fail(vm.chat.MarkAsRead(vm.ctx(), roomID, userID))
}

// SendAttachment uploads a picked file and sends it as kind (image, video, audio or file)
func (vm *ChatViewModel) SendAttachment(roomID, senderID, kind string, body io.Reader, fileName, ext string, size int64) (*models.ChatMessage, error) {
	msg, err := vm.chat.UploadAndSend(vm.ctx(), roomID, senderID, kind, body, fileName, ext, size)
	return msg, vm.fail(err)
}

// StartCall logs a new call; with no targets every other member is invited
func (vm *ChatViewModel) StartCall(roomID, callerID, callType string, targetIDs []string) (*models.CallSession, error) {
	call, err := vm.calls.StartCall(vm.ctx(), roomID, callerID, callType, targetIDs)
	return call, vm.fail(err)
}
