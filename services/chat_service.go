package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"chatsync_server/docstore"
	"chatsync_server/idgen"
	"chatsync_server/metrics"
	"chatsync_server/models"

	"go.uber.org/zap"
)

// ChatService is the room repository: it maps rooms, messages and memberships onto documents and
// exposes live streams of them.
//
// A send is three sequential writes (message, lastMessage fields, unread counters) with no
// transaction; a failure part-way leaves the earlier writes in place and is reported to the caller.
type ChatService struct {
	store       docstore.LiveStore
	presence    *PresenceService
	users       *UserService
	media       Uploader
	ids         *idgen.Generator
	metrics     *metrics.Metrics
	logger      *zap.Logger
	groupAvatar string
}

func NewChatService(
	store docstore.LiveStore,
	presence *PresenceService,
	users *UserService,
	media Uploader,
	ids *idgen.Generator,
	m *metrics.Metrics,
	logger *zap.Logger,
	defaultGroupAvatar string,
) *ChatService {
	return &ChatService{
		store:       store,
		presence:    presence,
		users:       users,
		media:       media,
		ids:         ids,
		metrics:     m,
		logger:      logger.Named("chat"),
		groupAvatar: defaultGroupAvatar,
	}
}

func messageRef(roomID, messageID string) docstore.Ref {
	return docstore.Doc(models.MessagesPath(roomID), messageID)
}

// GetChatRoom reads a room once
func (s *ChatService) GetChatRoom(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	return loadRoom(ctx, s.store, roomID)
}

// SendMessage stores msg in the room and updates the room's denormalized fields.
// messageId and timestamp are assigned when empty; an empty type means text.
func (s *ChatService) SendMessage(ctx context.Context, roomID string, msg models.ChatMessage) (*models.ChatMessage, error) {
	if msg.Type == "" {
		msg.Type = models.MessageTypeText
	}
	if !models.IsValidMessageType(msg.Type) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMessageType, msg.Type)
	}
	if msg.SenderID == "" {
		return nil, fmt.Errorf("%w: senderId is required", ErrInvalidMessage)
	}
	if msg.Type == models.MessageTypeText && strings.TrimSpace(msg.Body) == "" {
		return nil, ErrEmptyMessage
	}

	room, err := loadRoom(ctx, s.store, roomID)
	if err != nil {
		return nil, err
	}

	msg.RoomID = roomID
	if msg.MessageID == "" {
		msg.MessageID = s.ids.MessageID()
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = s.ids.Now()
	}

	s.logger.Info("📩 Storing message",
		zap.String("roomId", roomID),
		zap.String("messageId", msg.MessageID),
		zap.String("type", msg.Type))

	item, err := docstore.Encode(msg)
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, messageRef(roomID, msg.MessageID), item); err != nil {
		s.logger.Error("❌ Failed to store message", zap.String("roomId", roomID), zap.Error(err))
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	err = s.store.Update(ctx, roomRef(roomID),
		docstore.Set(docstore.String(msg.Body), "lastMessage"),
		docstore.Set(docstore.String(msg.SenderID), "lastMessageSenderId"),
		docstore.Set(docstore.Number(msg.Timestamp), "lastMessageTimestamp"),
	)
	if err != nil {
		s.logger.Error("❌ Message stored but room not updated", zap.String("roomId", roomID), zap.Error(err))
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to update last message: %w", err)
	}

	if err := s.presence.IncrementUnread(ctx, roomID, room.MemberIDs, msg.SenderID); err != nil {
		s.logger.Error("❌ Message stored but unread counts not updated", zap.String("roomId", roomID), zap.Error(err))
		return nil, err
	}

	s.metrics.MessageSent(msg.Type)
	s.logger.Info("✅ Message sent", zap.String("roomId", roomID), zap.String("messageId", msg.MessageID))
	return &msg, nil
}

func (s *ChatService) SendText(ctx context.Context, roomID, senderID, text string) (*models.ChatMessage, error) {
	return s.SendMessage(ctx, roomID, models.ChatMessage{SenderID: senderID, Type: models.MessageTypeText, Body: text})
}

func (s *ChatService) SendImage(ctx context.Context, roomID, senderID, url string) (*models.ChatMessage, error) {
	return s.SendMessage(ctx, roomID, models.ChatMessage{SenderID: senderID, Type: models.MessageTypeImage, Body: models.BodyImage, FileURL: url})
}

func (s *ChatService) SendVideo(ctx context.Context, roomID, senderID, url string) (*models.ChatMessage, error) {
	return s.SendMessage(ctx, roomID, models.ChatMessage{SenderID: senderID, Type: models.MessageTypeVideo, Body: models.BodyVideo, FileURL: url})
}

func (s *ChatService) SendAudio(ctx context.Context, roomID, senderID, url string) (*models.ChatMessage, error) {
	return s.SendMessage(ctx, roomID, models.ChatMessage{SenderID: senderID, Type: models.MessageTypeAudio, Body: models.BodyAudio, FileURL: url})
}

func (s *ChatService) SendFile(ctx context.Context, roomID, senderID, url, fileName string, size int64) (*models.ChatMessage, error) {
	return s.SendMessage(ctx, roomID, models.ChatMessage{
		SenderID: senderID,
		Type:     models.MessageTypeFile,
		Body:     models.FileBody(fileName),
		FileURL:  url,
		FileName: fileName,
		FileSize: size,
	})
}

// SendCallMessage appends a call entry to the conversation
func (s *ChatService) SendCallMessage(ctx context.Context, roomID, senderID, callID, callType, status string) (*models.ChatMessage, error) {
	return s.SendMessage(ctx, roomID, models.ChatMessage{
		SenderID:   senderID,
		Type:       models.MessageTypeCall,
		Body:       models.BodyCall,
		CallID:     callID,
		CallType:   callType,
		CallStatus: status,
	})
}

// UploadAndSend uploads an attachment and sends it as a message of kind image, video, audio or file
func (s *ChatService) UploadAndSend(ctx context.Context, roomID, senderID, kind string, body io.Reader, fileName, ext string, size int64) (*models.ChatMessage, error) {
	switch kind {
	case models.MessageTypeImage, models.MessageTypeVideo, models.MessageTypeAudio, models.MessageTypeFile:
	default:
		return nil, fmt.Errorf("%w: %q is not an attachment type", ErrInvalidMessageType, kind)
	}
	if _, err := loadRoom(ctx, s.store, roomID); err != nil {
		return nil, err
	}
	url, err := s.media.Upload(ctx, ChatFilePrefix, body, ext, "")
	if err != nil {
		return nil, err
	}
	switch kind {
	case models.MessageTypeImage:
		return s.SendImage(ctx, roomID, senderID, url)
	case models.MessageTypeVideo:
		return s.SendVideo(ctx, roomID, senderID, url)
	case models.MessageTypeAudio:
		return s.SendAudio(ctx, roomID, senderID, url)
	}
	return s.SendFile(ctx, roomID, senderID, url, fileName, size)
}

// MarkAsRead resets the user's unread counter; calling it again changes nothing
func (s *ChatService) MarkAsRead(ctx context.Context, roomID, userID string) error {
	return s.presence.MarkAsRead(ctx, roomID, userID)
}

// GetMessages streams the room's full message list in ascending timestamp order
func (s *ChatService) GetMessages(ctx context.Context, roomID string) *docstore.Subscription[[]models.ChatMessage] {
	sub := s.store.WatchQuery(ctx, docstore.Query{
		Collection: models.MessagesPath(roomID),
		OrderBy:    "timestamp",
	})
	return docstore.Map(sub, docstore.DecodeAll[models.ChatMessage])
}

// GetUserChatRooms streams every room the user belongs to, most recent activity first
func (s *ChatService) GetUserChatRooms(ctx context.Context, userID string) *docstore.Subscription[[]models.ChatRoom] {
	sub := s.store.WatchQuery(ctx, docstore.Query{
		Collection: models.ChatRoomsCollection,
		Filters:    []docstore.Filter{docstore.ArrayContains("memberIds", userID)},
		OrderBy:    "lastMessageTimestamp",
		Descending: true,
	})
	return docstore.Map(sub, docstore.DecodeAll[models.ChatRoom])
}

// GetChatRoomInfo streams one room; nil while it does not exist
func (s *ChatService) GetChatRoomInfo(ctx context.Context, roomID string) *docstore.Subscription[*models.ChatRoom] {
	return docstore.Map(s.store.WatchDocument(ctx, roomRef(roomID)), docstore.DecodeOne[models.ChatRoom])
}

// GetUsersInChatRoom streams the given users. An empty list emits one empty result and completes.
func (s *ChatService) GetUsersInChatRoom(ctx context.Context, userIDs []string) *docstore.Subscription[[]models.User] {
	if len(userIDs) == 0 {
		return docstore.Just(ctx, []models.User{})
	}
	sub := s.store.WatchQuery(ctx, docstore.Query{
		Collection: models.UsersCollection,
		Filters:    []docstore.Filter{docstore.IDIn(userIDs...)},
	})
	return docstore.Map(sub, docstore.DecodeAll[models.User])
}

func (s *ChatService) newRoom() models.ChatRoom {
	now := s.ids.Now()
	return models.ChatRoom{
		RoomID:               s.ids.NewID(),
		UnreadCounts:         map[string]int64{},
		CreatedAt:            now,
		LastMessageTimestamp: now,
	}
}

func (s *ChatService) putRoom(ctx context.Context, room models.ChatRoom) error {
	item, err := docstore.Encode(room)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, roomRef(room.RoomID), item); err != nil {
		return fmt.Errorf("failed to create chat room: %w", err)
	}
	return nil
}

// CreateOneToOneChatByEmail returns the existing one-to-one room of the two users, creating it on
// first use. Calling it again with the same pair returns the same room.
func (s *ChatService) CreateOneToOneChatByEmail(ctx context.Context, currentUserID, email string) (string, string, error) {
	other, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		s.logger.Warn("⚠️ No user for email", zap.String("email", NormalizeEmail(email)))
		return "", "", err
	}
	if other.UID == currentUserID {
		return "", "", ErrSelfChat
	}

	snaps, err := s.store.Query(ctx, docstore.Query{
		Collection: models.ChatRoomsCollection,
		Filters: []docstore.Filter{
			docstore.ArrayContains("memberIds", currentUserID),
			docstore.Where("isGroup", docstore.Bool(false)),
		},
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to search existing rooms: %w", err)
	}
	rooms, err := docstore.DecodeAll[models.ChatRoom](snaps)
	if err != nil {
		return "", "", err
	}
	for _, r := range rooms {
		if r.HasMember(other.UID) {
			return r.RoomID, other.UID, nil
		}
	}

	room := s.newRoom()
	room.MemberIDs = []string{currentUserID, other.UID}
	if err := s.putRoom(ctx, room); err != nil {
		return "", "", err
	}
	s.logger.Info("✅ One-to-one room created", zap.String("roomId", room.RoomID))
	return room.RoomID, other.UID, nil
}

// CreateGroupChatByEmails creates a group of the creator and every resolvable email. Unknown emails
// are skipped; the creator is the only admin.
func (s *ChatService) CreateGroupChatByEmails(ctx context.Context, currentUserID string, emails []string, groupName string) (string, error) {
	if len(emails) == 0 {
		return "", ErrNoMembers
	}
	groupName = strings.TrimSpace(groupName)
	if groupName == "" {
		return "", ErrInvalidGroupName
	}
	users, err := s.users.FindByEmails(ctx, emails)
	if err != nil {
		return "", err
	}

	members := []string{currentUserID}
	for _, u := range users {
		if u.UID != currentUserID {
			members = append(members, u.UID)
		}
	}
	if len(users) < len(emails) {
		s.logger.Warn("⚠️ Some group emails did not resolve",
			zap.Int("requested", len(emails)),
			zap.Int("resolved", len(users)))
	}

	room := s.newRoom()
	room.IsGroup = true
	room.GroupName = groupName
	room.GroupAvatarURL = s.groupAvatar
	room.MemberIDs = members
	room.AdminIDs = []string{currentUserID}
	if err := s.putRoom(ctx, room); err != nil {
		return "", err
	}
	s.logger.Info("✅ Group created", zap.String("roomId", room.RoomID), zap.Int("members", len(members)))
	return room.RoomID, nil
}

// DeleteChatRoom deletes every message and call log one by one, then the room.
// It is not transactional: a failure part-way leaves the remaining documents behind.
func (s *ChatService) DeleteChatRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return ErrRoomNotFound
	}
	for _, collection := range []string{models.MessagesPath(roomID), models.CallsPath(roomID)} {
		snaps, err := s.store.Query(ctx, docstore.Query{Collection: collection})
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", collection, err)
		}
		for _, snap := range snaps {
			if err := s.store.Delete(ctx, docstore.Doc(collection, snap.ID)); err != nil {
				return fmt.Errorf("failed to delete %s/%s: %w", collection, snap.ID, err)
			}
		}
	}
	if err := s.store.Delete(ctx, roomRef(roomID)); err != nil {
		return fmt.Errorf("failed to delete chat room: %w", err)
	}
	s.logger.Info("🗑️ Chat room deleted", zap.String("roomId", roomID))
	return nil
}
