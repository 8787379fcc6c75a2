package viewmodels

import (
	"context"

	"chatsync_server/metrics"
	"chatsync_server/models"
	"chatsync_server/services"

	"go.uber.org/zap"
)

// AuthViewModel backs the sign-in and sign-up screens
type AuthViewModel struct {
	base
	auth *services.AuthService

	CurrentUser *State[*models.User]
	Token       *State[string]
}

func NewAuthViewModel(parent context.Context, auth *services.AuthService, m *metrics.Metrics, logger *zap.Logger) *AuthViewModel {
	return &AuthViewModel{
		base:        newBase(parent, m, logger.Named("auth_vm")),
		auth:        auth,
		CurrentUser: NewState[*models.User](nil),
		Token:       NewState(""),
	}
}

// Restore picks up an existing session, if the token is still valid
func (vm *AuthViewModel) Restore(token string) (*models.User, error) {
	user, err := vm.auth.Authenticate(vm.ctx(), token)
	if err != nil {
		return nil, err
	}
	vm.Token.Set(token)
	vm.CurrentUser.Set(user)
	return user, nil
}

// Register creates the account and signs it in
func (vm *AuthViewModel) Register(name, email, password string) (string, error) {
	vm.ClearError()
	if _, err := vm.auth.Register(vm.ctx(), name, email, password); err != nil {
		return "", vm.fail(err)
	}
	return vm.Login(email, password)
}

func (vm *AuthViewModel) Login(email, password string) (string, error) {
	vm.ClearError()
	token, user, err := vm.auth.Login(vm.ctx(), email, password)
	if err != nil {
		return "", vm.fail(err)
	}
	vm.Token.Set(token)
	vm.CurrentUser.Set(user)
	return token, nil
}

func (vm *AuthViewModel) Logout() error {
	token := vm.Token.Get()
	if token == "" {
		return nil
	}
	if err := vm.auth.Logout(vm.ctx(), token); err != nil {
		return vm.fail(err)
	}
	vm.Token.Set("")
	vm.CurrentUser.Set(nil)
	return nil
}
