package viewmodels

import (
	"context"
	"io"

	"chatsync_server/metrics"
	"chatsync_server/models"
	"chatsync_server/services"

	"go.uber.org/zap"
)

// GroupInfoViewModel backs the group settings screen
type GroupInfoViewModel struct {
	base
	chat *services.ChatService

	ChatRoom *State[*models.ChatRoom]
	Members  *State[[]models.User]

	members *memberWatch
}

func NewGroupInfoViewModel(parent context.Context, chat *services.ChatService, m *metrics.Metrics, logger *zap.Logger) *GroupInfoViewModel {
	vm := &GroupInfoViewModel{
		base:     newBase(parent, m, logger.Named("group_vm")),
		chat:     chat,
		ChatRoom: NewState[*models.ChatRoom](nil),
		Members:  NewState([]models.User{}),
	}
	vm.members = &memberWatch{scope: vm.scope, chat: chat, target: vm.Members, onErr: vm.onErr}
	return vm
}

// LoadGroup follows the group and its member profiles
func (vm *GroupInfoViewModel) LoadGroup(roomID string) {
	Collect(vm.scope, "group", vm.chat.GetChatRoomInfo(vm.ctx(), roomID), func(room *models.ChatRoom) {
		vm.ChatRoom.Set(room)
		vm.members.follow(room)
	}, vm.onErr)
}

func (vm *GroupInfoViewModel) UpdateName(roomID, name string) error {
	return vm.fail(vm.chat.UpdateGroupName(vm.ctx(), roomID, name))
}

func (vm *GroupInfoViewModel) UploadAvatar(roomID string, body io.Reader, ext, contentType string) (string, error) {
	url, err := vm.chat.UploadGroupAvatar(vm.ctx(), roomID, body, ext, contentType)
	return url, vm.fail(err)
}

func (vm *GroupInfoViewModel) AddMember(roomID, email string) (string, error) {
	uid, err := vm.chat.AddMemberByEmail(vm.ctx(), roomID, email)
	return uid, vm.fail(err)
}

func (vm *GroupInfoViewModel) RemoveMember(roomID, uid string) error {
	return vm.fail(vm.chat.RemoveMember(vm.ctx(), roomID, uid))
}

func (vm *GroupInfoViewModel) AddAdmin(roomID, uid string) error {
	return vm.fail(vm.chat.AddAdmin(vm.ctx(), roomID, uid))
}

func (vm *GroupInfoViewModel) RemoveAdmin(roomID, uid string) error {
	return vm.fail(vm.chat.RemoveAdmin(vm.ctx(), roomID, uid))
}
