package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"chatsync_server/docstore"
	"chatsync_server/models"

	"go.uber.org/zap"
)

// loadGroup loads a room and rejects one-to-one rooms
func (s *ChatService) loadGroup(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	room, err := loadRoom(ctx, s.store, roomID)
	if err != nil {
		return nil, err
	}
	if !room.IsGroup {
		return nil, ErrNotGroup
	}
	return room, nil
}

func (s *ChatService) updateRoom(ctx context.Context, roomID string, mutations ...docstore.Mutation) error {
	err := s.store.Update(ctx, roomRef(roomID), mutations...)
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrRoomNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update chat room: %w", err)
	}
	return nil
}

// UpdateGroupName renames a group
func (s *ChatService) UpdateGroupName(ctx context.Context, roomID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidGroupName
	}
	if _, err := s.loadGroup(ctx, roomID); err != nil {
		return err
	}
	if err := s.updateRoom(ctx, roomID, docstore.Set(docstore.String(name), "groupName")); err != nil {
		return err
	}
	s.logger.Info("✏️ Group renamed", zap.String("roomId", roomID))
	return nil
}

// UpdateGroupAvatar points the group's avatar at url
func (s *ChatService) UpdateGroupAvatar(ctx context.Context, roomID, url string) error {
	if _, err := s.loadGroup(ctx, roomID); err != nil {
		return err
	}
	return s.updateRoom(ctx, roomID, docstore.Set(docstore.String(url), "groupAvatarUrl"))
}

// UploadGroupAvatar uploads an image and makes it the group's avatar
func (s *ChatService) UploadGroupAvatar(ctx context.Context, roomID string, body io.Reader, ext, contentType string) (string, error) {
	if _, err := s.loadGroup(ctx, roomID); err != nil {
		return "", err
	}
	url, err := s.media.Upload(ctx, AvatarPrefix, body, ext, contentType)
	if err != nil {
		return "", err
	}
	if err := s.updateRoom(ctx, roomID, docstore.Set(docstore.String(url), "groupAvatarUrl")); err != nil {
		return "", err
	}
	s.logger.Info("🖼️ Group avatar updated", zap.String("roomId", roomID))
	return url, nil
}

// AddMemberByEmail adds the user behind email to the group and returns their uid.
// Adding an existing member changes nothing.
func (s *ChatService) AddMemberByEmail(ctx context.Context, roomID, email string) (string, error) {
	if _, err := s.loadGroup(ctx, roomID); err != nil {
		return "", err
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if err := s.updateRoom(ctx, roomID, docstore.ArrayUnion("memberIds", user.UID)); err != nil {
		return "", err
	}
	s.logger.Info("➕ Member added", zap.String("roomId", roomID), zap.String("uid", user.UID))
	return user.UID, nil
}

// RemoveMember takes uid out of memberIds. adminIds is left as it is, so a removed admin
// keeps its entry there.
func (s *ChatService) RemoveMember(ctx context.Context, roomID, uid string) error {
	room, err := s.loadGroup(ctx, roomID)
	if err != nil {
		return err
	}
	if room.IsAdmin(uid) {
		s.logger.Warn("⚠️ Removing a member who is still an admin", zap.String("roomId", roomID), zap.String("uid", uid))
	}
	if err := s.updateRoom(ctx, roomID, docstore.ArrayRemove("memberIds", uid)); err != nil {
		return err
	}
	s.logger.Info("➖ Member removed", zap.String("roomId", roomID), zap.String("uid", uid))
	return nil
}

// AddAdmin grants admin rights to a current member
func (s *ChatService) AddAdmin(ctx context.Context, roomID, uid string) error {
	room, err := s.loadGroup(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.HasMember(uid) {
		return ErrNotMember
	}
	return s.updateRoom(ctx, roomID, docstore.ArrayUnion("adminIds", uid))
}

// RemoveAdmin revokes admin rights; the user stays a member
func (s *ChatService) RemoveAdmin(ctx context.Context, roomID, uid string) error {
	if _, err := s.loadGroup(ctx, roomID); err != nil {
		return err
	}
	return s.updateRoom(ctx, roomID, docstore.ArrayRemove("adminIds", uid))
}
