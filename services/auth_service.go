package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"chatsync_server/docstore"
	"chatsync_server/idgen"
	"chatsync_server/models"

	"github.com/golang-jwt/jwt/v4"
	passwordvalidator "github.com/wagslane/go-password-validator"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const passwordHashCost = bcrypt.DefaultCost

// TokenClaims are carried by session tokens. Subject is the uid.
type TokenClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// AuthService signs users up and in with email and password. A sign-in opens a session document;
// the returned token is only valid while that session exists.
type AuthService struct {
	store         docstore.LiveStore
	users         *UserService
	ids           *idgen.Generator
	secret        []byte
	sessionTTL    time.Duration
	minEntropy    float64
	defaultAvatar string
	now           func() time.Time
	logger        *zap.Logger
}

func NewAuthService(
	store docstore.LiveStore,
	users *UserService,
	ids *idgen.Generator,
	secret string,
	sessionTTL time.Duration,
	minEntropy float64,
	defaultAvatar string,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		store:         store,
		users:         users,
		ids:           ids,
		secret:        []byte(secret),
		sessionTTL:    sessionTTL,
		minEntropy:    minEntropy,
		defaultAvatar: defaultAvatar,
		now:           time.Now,
		logger:        logger.Named("auth"),
	}
}

// Register creates the credentials and the user document of a new account
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	email = NormalizeEmail(email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, ErrInvalidEmail
	}
	if err := passwordvalidator.Validate(password, s.minEntropy); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWeakPassword, err)
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	uid := s.ids.NewID()
	cred, err := docstore.Encode(models.Credential{
		UID:          uid,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UnixMilli(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, docstore.Doc(models.CredentialsCollection, uid), cred); err != nil {
		return nil, fmt.Errorf("failed to store credentials: %w", err)
	}

	user := models.User{UID: uid, Name: name, Email: email, AvatarURL: s.defaultAvatar}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("✅ Account registered", zap.String("uid", uid))
	return &user, nil
}

// Login checks the password and opens a session. It returns a signed token for the session.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = NormalizeEmail(email)
	snaps, err := s.store.Query(ctx, docstore.Query{
		Collection: models.CredentialsCollection,
		Filters:    []docstore.Filter{docstore.Where("email", docstore.String(email))},
		Limit:      1,
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to look up credentials: %w", err)
	}
	if len(snaps) == 0 {
		return "", nil, ErrInvalidCredentials
	}
	var cred models.Credential
	if err := docstore.Decode(snaps[0].Item, &cred); err != nil {
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("⚠️ Failed sign-in", zap.String("uid", cred.UID))
		return "", nil, ErrInvalidCredentials
	}

	user, err := s.users.GetUser(ctx, cred.UID)
	if err != nil {
		return "", nil, err
	}

	now := s.now()
	session := models.Session{
		SessionID: s.ids.NewID(),
		UID:       cred.UID,
		CreatedAt: now.UnixMilli(),
		ExpiresAt: now.Add(s.sessionTTL).UnixMilli(),
	}
	item, err := docstore.Encode(session)
	if err != nil {
		return "", nil, err
	}
	if err := s.store.Set(ctx, docstore.Doc(models.SessionsCollection, session.SessionID), item); err != nil {
		return "", nil, fmt.Errorf("failed to store session: %w", err)
	}

	token, err := s.signToken(session, now)
	if err != nil {
		return "", nil, err
	}
	s.logger.Info("🔑 Signed in", zap.String("uid", cred.UID), zap.String("sessionId", session.SessionID))
	return token, user, nil
}

func (s *AuthService) signToken(session models.Session, now time.Time) (string, error) {
	claims := TokenClaims{
		SessionID: session.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(time.UnixMilli(session.ExpiresAt)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies the token signature and expiry
func (s *AuthService) ParseToken(tokenString string) (*TokenClaims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, err := parser.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid || claims.SessionID == "" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt != nil && !s.now().Before(claims.ExpiresAt.Time) {
		return nil, ErrSessionNotFound
	}
	return claims, nil
}

func (s *AuthService) session(ctx context.Context, claims *TokenClaims) (*models.Session, error) {
	item, err := s.store.Get(ctx, docstore.Doc(models.SessionsCollection, claims.SessionID))
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	var session models.Session
	if err := docstore.Decode(item, &session); err != nil {
		return nil, err
	}
	if session.UID != claims.Subject || s.now().UnixMilli() >= session.ExpiresAt {
		return nil, ErrSessionNotFound
	}
	return &session, nil
}

// Authenticate resolves a token to the signed-in user
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*models.User, error) {
	claims, err := s.ParseToken(tokenString)
	if err != nil {
		return nil, err
	}
	if _, err := s.session(ctx, claims); err != nil {
		return nil, err
	}
	return s.users.GetUser(ctx, claims.Subject)
}

// Logout deletes the token's session; the token stops working immediately
func (s *AuthService) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.ParseToken(tokenString)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, docstore.Doc(models.SessionsCollection, claims.SessionID)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.logger.Info("👋 Signed out", zap.String("uid", claims.Subject))
	return nil
}
