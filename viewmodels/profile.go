package viewmodels

import (
	"context"
	"io"

	"chatsync_server/metrics"
	"chatsync_server/models"
	"chatsync_server/services"

	"go.uber.org/zap"
)

type ProfileViewModel struct {
	base
	users *services.UserService

	User        *State[*models.User]
	IsUploading *State[bool]
}

func NewProfileViewModel(parent context.Context, users *services.UserService, m *metrics.Metrics, logger *zap.Logger) *ProfileViewModel {
	return &ProfileViewModel{
		base:        newBase(parent, m, logger.Named("profile_vm")),
		users:       users,
		User:        NewState[*models.User](nil),
		IsUploading: NewState(false),
	}
}

// LoadUser follows the user's document
func (vm *ProfileViewModel) LoadUser(uid string) {
	Collect(vm.scope, "user", vm.users.WatchUser(vm.ctx(), uid), vm.User.Set, vm.onErr)
}

func (vm *ProfileViewModel) UpdateUser(user models.User) (*models.User, error) {
	updated, err := vm.users.UpdateUser(vm.ctx(), user)
	if err != nil {
		return nil, vm.fail(err)
	}
	vm.User.Set(updated)
	return updated, nil
}

func (vm *ProfileViewModel) UploadAvatar(uid string, body io.Reader, ext, contentType string) (string, error) {
	vm.IsUploading.Set(true)
	defer vm.IsUploading.Set(false)

	url, err := vm.users.UploadAvatar(vm.ctx(), uid, body, ext, contentType)
	if err != nil {
		return "", vm.fail(err)
	}
	if current := vm.User.Get(); current != nil && current.UID == uid {
		updated := *current
		updated.AvatarURL = url
		vm.User.Set(&updated)
	}
	return url, nil
}
