package services

import (
	"context"
	"errors"
	"fmt"

	"chatsync_server/docstore"
	"chatsync_server/models"

	"go.uber.org/zap"
)

// PresenceService keeps the isOnline flags and the per-room unread counters.
// There is no heartbeat: a client that never reports going to the background stays online.
type PresenceService struct {
	store  docstore.LiveStore
	logger *zap.Logger
}

func NewPresenceService(store docstore.LiveStore, logger *zap.Logger) *PresenceService {
	return &PresenceService{store: store, logger: logger.Named("presence")}
}

// SetOnline is called when the app comes to the foreground
func (s *PresenceService) SetOnline(ctx context.Context, uid string) error {
	return s.setOnline(ctx, uid, true)
}

// SetOffline is called when the app goes to the background
func (s *PresenceService) SetOffline(ctx context.Context, uid string) error {
	return s.setOnline(ctx, uid, false)
}

func (s *PresenceService) setOnline(ctx context.Context, uid string, online bool) error {
	if uid == "" {
		return ErrUserNotFound
	}
	err := s.store.Update(ctx, userRef(uid), docstore.Set(docstore.Bool(online), "isOnline"))
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to set presence: %w", err)
	}
	s.logger.Debug("👀 Presence changed", zap.String("uid", uid), zap.Bool("online", online))
	return nil
}

// OnlineUsers streams every user whose isOnline flag is set
func (s *PresenceService) OnlineUsers(ctx context.Context) *docstore.Subscription[[]models.User] {
	sub := s.store.WatchQuery(ctx, docstore.Query{
		Collection: models.UsersCollection,
		Filters:    []docstore.Filter{docstore.Where("isOnline", docstore.Bool(true))},
	})
	return docstore.Map(sub, docstore.DecodeAll[models.User])
}

// IncrementUnread adds one to the counter of every member except the sender, in a single update
func (s *PresenceService) IncrementUnread(ctx context.Context, roomID string, memberIDs []string, senderID string) error {
	mutations := make([]docstore.Mutation, 0, len(memberIDs))
	for _, uid := range memberIDs {
		if uid != senderID {
			mutations = append(mutations, docstore.Increment(1, "unreadCounts", uid))
		}
	}
	if len(mutations) == 0 {
		return nil
	}
	err := s.store.Update(ctx, roomRef(roomID), mutations...)
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrRoomNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to increment unread counts: %w", err)
	}
	return nil
}

// MarkAsRead resets the user's unread counter of the room to zero
func (s *PresenceService) MarkAsRead(ctx context.Context, roomID, userID string) error {
	if userID == "" {
		return ErrUserNotFound
	}
	err := s.store.Update(ctx, roomRef(roomID), docstore.Set(docstore.Number(0), "unreadCounts", userID))
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrRoomNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to mark as read: %w", err)
	}
	return nil
}

// UnreadCount reads the user's unread counter of the room
func (s *PresenceService) UnreadCount(ctx context.Context, roomID, userID string) (int64, error) {
	room, err := loadRoom(ctx, s.store, roomID)
	if err != nil {
		return 0, err
	}
	return room.UnreadCounts[userID], nil
}

func roomRef(roomID string) docstore.Ref {
	return docstore.Doc(models.ChatRoomsCollection, roomID)
}

func loadRoom(ctx context.Context, store docstore.Store, roomID string) (*models.ChatRoom, error) {
	if roomID == "" {
		return nil, ErrRoomNotFound
	}
	item, err := store.Get(ctx, roomRef(roomID))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat room: %w", err)
	}
	var room models.ChatRoom
	if err := docstore.Decode(item, &room); err != nil {
		return nil, err
	}
	return &room, nil
}
