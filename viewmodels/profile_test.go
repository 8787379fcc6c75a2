package viewmodels

import (
	"context"
	"strings"
	"sync"
	"testing"

	"chatsync_server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileViewModel(t *testing.T) {
	env := newTestEnv(t)
	env.seedABC(t)
	ctx := context.Background()

	vm := NewProfileViewModel(ctx, env.users, env.metrics, env.logger)
	defer vm.Close()
	vm.LoadUser("u1")
	eventually(t, func() bool { return vm.User.Get() != nil }, "user loads")

	updated, err := vm.UpdateUser(models.User{UID: "u1", Name: "Ann Tran", Phone: "0900"})
	require.NoError(t, err)
	assert.Equal(t, "Ann Tran", updated.Name)
	eventually(t, func() bool { return vm.User.Get().Phone == "0900" }, "edit shows")

	var mu sync.Mutex
	var uploading []bool
	unsubscribe := vm.IsUploading.Observe(func(v bool) {
		mu.Lock()
		uploading = append(uploading, v)
		mu.Unlock()
	})
	defer unsubscribe()

	url, err := vm.UploadAvatar("u1", strings.NewReader("jpeg"), "jpg", "image/jpeg")
	require.NoError(t, err)
	mu.Lock()
	assert.Equal(t, []bool{false, true, false}, uploading)
	mu.Unlock()
	eventually(t, func() bool { return vm.User.Get().AvatarURL == url }, "avatar shows")

	_, err = vm.UpdateUser(models.User{UID: "u1", Name: " "})
	assert.Error(t, err)
	assert.NotEmpty(t, vm.Error.Get())
}
