package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/reigncloud/reigncloud/internal/adapter/metrics"
	"github.com/reigncloud/reigncloud/internal/domain"
)

const (
	minPasswordLength = 8
	// bcrypt only reads the first 72 bytes.
	maxPasswordBytes = 72
)

// Service is the application layer. It orchestrates accounts, token rotation and direct messages, and
// hands new messages to the push gateway once they are stored.
type Service struct {
	users    domain.UserRepository
	messages domain.MessageRepository
	tokens   domain.TokenIssuer
	refresh  domain.RefreshTokenStore
	hasher   domain.PasswordHasher
	pusher   domain.MessagePusher
	metrics  *metrics.MessageMetrics
}

type Deps struct {
	Users    domain.UserRepository
	Messages domain.MessageRepository
	Tokens   domain.TokenIssuer
	Refresh  domain.RefreshTokenStore
	Hasher   domain.PasswordHasher
	Pusher   domain.MessagePusher
	Metrics  *metrics.MessageMetrics // optional
}

func NewService(d Deps) *Service {
	return &Service{
		users:    d.Users,
		messages: d.Messages,
		tokens:   d.Tokens,
		refresh:  d.Refresh,
		hasher:   d.Hasher,
		pusher:   d.Pusher,
		metrics:  d.Metrics,
	}
}

// Register creates an account and signs the user in.
func (s *Service) Register(ctx context.Context, email, username, password string) (*domain.TokenPair, error) {
	email, username = normalizeEmail(email), strings.TrimSpace(username)
	if email == "" || username == "" || password == "" {
		return nil, domain.ErrMissingFields
	}
	if len(password) < minPasswordLength {
		return nil, domain.ErrPasswordLength
	}
	if len(password) > maxPasswordBytes {
		return nil, domain.ErrPasswordTooLong
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, email, username, hash)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "User registered", "user_id", user.ID)
	return s.issue(ctx, user)
}

// Login verifies credentials. An unknown email and a wrong password produce the same error.
func (s *Service) Login(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.ErrMissingFields
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, err
	}
	return s.issue(ctx, user)
}

// Refresh exchanges a refresh token for a new pair. The presented token is consumed, so replaying it
// fails.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	active, err := s.refresh.Consume(ctx, claims.TokenID)
	if err != nil {
		return nil, err
	}
	if !active {
		slog.WarnContext(ctx, "Refresh token reused or revoked", "user_id", claims.Subject)
		return nil, domain.ErrTokenRevoked
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, domain.ErrMalformedClaim
	}
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrTokenRevoked
	}
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, user)
}

// Logout revokes the refresh token. Invalid tokens are ignored.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil
	}
	return s.refresh.Revoke(ctx, claims.TokenID)
}

func (s *Service) issue(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	issued, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	if err := s.refresh.Save(ctx, issued.RefreshTokenID, user.ID, issued.RefreshTokenTTL); err != nil {
		return nil, err
	}
	return &issued.TokenPair, nil
}

// CreateMessage stores a message from senderID to recipientID and pushes it to the recipient's live
// connections. The sender's own connections are not notified.
func (s *Service) CreateMessage(ctx context.Context, senderID, recipientID uuid.UUID, content string) (*domain.Message, error) {
	msg, err := s.createMessage(ctx, senderID, recipientID, content)
	s.observe("create", err)
	if err != nil {
		return nil, err
	}

	s.pusher.Deliver(ctx, msg.RecipientID, msg)
	return msg, nil
}

func (s *Service) createMessage(ctx context.Context, senderID, recipientID uuid.UUID, content string) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, domain.ErrEmptyContent
	}
	if recipientID == uuid.Nil {
		return nil, domain.ErrRecipientNotFound
	}
	return s.messages.Create(ctx, senderID, recipientID, content)
}

// ListConversation returns both directions of the conversation between userID and otherID, oldest first.
func (s *Service) ListConversation(ctx context.Context, userID, otherID uuid.UUID) ([]domain.Message, error) {
	msgs, err := s.messages.ListConversation(ctx, userID, otherID)
	s.observe("list", err)
	return msgs, err
}

// UpdateMessage replaces the content of a message the caller sent. Missing messages and messages owned
// by someone else both yield domain.ErrMessageNotFound.
func (s *Service) UpdateMessage(ctx context.Context, messageID, senderID uuid.UUID, content string) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		s.observe("update", domain.ErrEmptyContent)
		return nil, domain.ErrEmptyContent
	}
	msg, err := s.messages.UpdateContent(ctx, messageID, senderID, content)
	s.observe("update", err)
	return msg, err
}

// DeleteMessage removes a message the caller sent, with the same not-found rule as UpdateMessage.
func (s *Service) DeleteMessage(ctx context.Context, messageID, senderID uuid.UUID) error {
	err := s.messages.Delete(ctx, messageID, senderID)
	s.observe("delete", err)
	return err
}

func (s *Service) observe(operation string, err error) {
	if s.metrics != nil {
		s.metrics.Observe(operation, err)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
