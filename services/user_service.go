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

// UserService reads and edits user documents
type UserService struct {
	store  docstore.LiveStore
	media  Uploader
	logger *zap.Logger
}

func NewUserService(store docstore.LiveStore, media Uploader, logger *zap.Logger) *UserService {
	return &UserService{store: store, media: media, logger: logger.Named("users")}
}

// NormalizeEmail trims and lower-cases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func userRef(uid string) docstore.Ref {
	return docstore.Doc(models.UsersCollection, uid)
}

// CreateUser writes a new user document
func (s *UserService) CreateUser(ctx context.Context, user models.User) error {
	if user.UID == "" {
		return errors.New("uid is required")
	}
	user.Email = NormalizeEmail(user.Email)
	item, err := docstore.Encode(user)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, userRef(user.UID), item); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	s.logger.Info("✅ User created", zap.String("uid", user.UID))
	return nil
}

func (s *UserService) GetUser(ctx context.Context, uid string) (*models.User, error) {
	if uid == "" {
		return nil, ErrUserNotFound
	}
	item, err := s.store.Get(ctx, userRef(uid))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	var user models.User
	if err := docstore.Decode(item, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser saves profile fields. uid, email and the online flag are not changed here.
func (s *UserService) UpdateUser(ctx context.Context, user models.User) (*models.User, error) {
	if strings.TrimSpace(user.Name) == "" {
		return nil, ErrInvalidName
	}
	err := s.store.Update(ctx, userRef(user.UID),
		docstore.Set(docstore.String(strings.TrimSpace(user.Name)), "name"),
		docstore.Set(docstore.String(user.Phone), "phone"),
		docstore.Set(docstore.String(user.Birthday), "birthday"),
		docstore.Set(docstore.String(user.AvatarURL), "avatarUrl"),
	)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return s.GetUser(ctx, user.UID)
}

// FindByEmail resolves one email to a user
func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrUserNotFound
	}
	snaps, err := s.store.Query(ctx, docstore.Query{
		Collection: models.UsersCollection,
		Filters:    []docstore.Filter{docstore.Where("email", docstore.String(email))},
		Limit:      1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up email: %w", err)
	}
	if len(snaps) == 0 {
		return nil, ErrUserNotFound
	}
	var user models.User
	if err := docstore.Decode(snaps[0].Item, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmails resolves emails with one "in" query; unknown emails are left out
func (s *UserService) FindByEmails(ctx context.Context, emails []string) ([]models.User, error) {
	seen := make(map[string]bool, len(emails))
	normalized := make([]string, 0, len(emails))
	for _, e := range emails {
		e = NormalizeEmail(e)
		if e != "" && !seen[e] {
			seen[e] = true
			normalized = append(normalized, e)
		}
	}
	if len(normalized) == 0 {
		return []models.User{}, nil
	}
	snaps, err := s.store.Query(ctx, docstore.Query{
		Collection: models.UsersCollection,
		Filters:    []docstore.Filter{docstore.In("email", normalized...)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up emails: %w", err)
	}
	return docstore.DecodeAll[models.User](snaps)
}

// WatchUser streams one user document; nil while it does not exist
func (s *UserService) WatchUser(ctx context.Context, uid string) *docstore.Subscription[*models.User] {
	return docstore.Map(s.store.WatchDocument(ctx, userRef(uid)), docstore.DecodeOne[models.User])
}

// UploadAvatar stores an image and points the user's avatarUrl at it
func (s *UserService) UploadAvatar(ctx context.Context, uid string, body io.Reader, ext, contentType string) (string, error) {
	url, err := s.media.Upload(ctx, AvatarPrefix, body, ext, contentType)
	if err != nil {
		return "", err
	}
	err = s.store.Update(ctx, userRef(uid), docstore.Set(docstore.String(url), "avatarUrl"))
	if errors.Is(err, docstore.ErrNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to save avatar: %w", err)
	}
	s.logger.Info("🖼️ Avatar updated", zap.String("uid", uid))
	return url, nil
}
