package viewmodels

import (
	"context"
	"slices"
	"sync"

	"chatsync_server/metrics"
	"chatsync_server/models"
	"chatsync_server/services"

	"go.uber.org/zap"
)

// base is embedded by every view model: a scope and the error message shown on the screen
type base struct {
	scope  *Scope
	logger *zap.Logger

	Error *State[string]
}

func newBase(parent context.Context, m *metrics.Metrics, logger *zap.Logger) base {
	return base{
		scope:  NewScope(parent, m, logger),
		logger: logger,
		Error:  NewState(""),
	}
}

func (b *base) ctx() context.Context {
	return b.scope.Context()
}

// fail shows err on the screen and hands it back
func (b *base) fail(err error) error {
	if err != nil {
		b.Error.Set(err.Error())
	}
	return err
}

func (b *base) onErr(err error) {
	b.Error.Set(err.Error())
}

func (b *base) ClearError() {
	b.Error.Set("")
}

// Close ends every subscription of the screen
func (b *base) Close() {
	b.scope.Close()
}

// memberWatch keeps one users-in-room subscription for the current member list of a room
// and replaces it whenever the membership changes.
type memberWatch struct {
	scope  *Scope
	chat   *services.ChatService
	target *State[[]models.User]
	onErr  func(error)

	mu      sync.Mutex
	members []string
	cancel  func()
	// gen counts subscriptions so a value buffered by a replaced one is dropped
	gen uint64
}

func (w *memberWatch) follow(room *models.ChatRoom) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var members []string
	if room != nil {
		members = slices.Clone(room.MemberIDs)
		slices.Sort(members)
	}
	if w.cancel != nil && slices.Equal(members, w.members) {
		return
	}
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.members = members
	w.gen++
	if len(members) == 0 {
		w.target.Set([]models.User{})
		return
	}
	gen := w.gen
	sub := w.chat.GetUsersInChatRoom(w.scope.Context(), members)
	w.cancel = Collect(w.scope, "members", sub, func(users []models.User) { w.deliver(gen, users) }, w.onErr)
}

// deliver publishes users unless a newer member list has been followed since gen
func (w *memberWatch) deliver(gen uint64, users []models.User) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		return
	}
	w.target.Set(users)
}
