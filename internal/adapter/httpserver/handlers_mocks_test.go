package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/reigncloud/reigncloud/internal/auth"
	"github.com/reigncloud/reigncloud/internal/domain"
	"github.com/reigncloud/reigncloud/internal/platform/config"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockAppService struct {
	registerFn         func(ctx context.Context, email, username, password string) (*domain.TokenPair, error)
	loginFn            func(ctx context.Context, email, password string) (*domain.TokenPair, error)
	refreshFn          func(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	logoutFn           func(ctx context.Context, refreshToken string) error
	createMessageFn    func(ctx context.Context, senderID, recipientID uuid.UUID, content string) (*domain.Message, error)
	listConversationFn func(ctx context.Context, userID, otherID uuid.UUID) ([]domain.Message, error)
	updateMessageFn    func(ctx context.Context, messageID, senderID uuid.UUID, content string) (*domain.Message, error)
	deleteMessageFn    func(ctx context.Context, messageID, senderID uuid.UUID) error
}

func (m *mockAppService) Register(ctx context.Context, email, username, password string) (*domain.TokenPair, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, email, username, password)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAppService) Login(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAppService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, refreshToken)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAppService) Logout(ctx context.Context, refreshToken string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, refreshToken)
	}
	return nil
}

func (m *mockAppService) CreateMessage(ctx context.Context, senderID, recipientID uuid.UUID, content string) (*domain.Message, error) {
	if m.createMessageFn != nil {
		return m.createMessageFn(ctx, senderID, recipientID, content)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAppService) ListConversation(ctx context.Context, userID, otherID uuid.UUID) ([]domain.Message, error) {
	if m.listConversationFn != nil {
		return m.listConversationFn(ctx, userID, otherID)
	}
	return nil, nil
}

func (m *mockAppService) UpdateMessage(ctx context.Context, messageID, senderID uuid.UUID, content string) (*domain.Message, error) {
	if m.updateMessageFn != nil {
		return m.updateMessageFn(ctx, messageID, senderID, content)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAppService) DeleteMessage(ctx context.Context, messageID, senderID uuid.UUID) error {
	if m.deleteMessageFn != nil {
		return m.deleteMessageFn(ctx, messageID, senderID)
	}
	return errors.New("not implemented")
}

// --- Test helpers ---

const testJWTSecret = "httpserver-test-secret-32-bytes-long!!"

var testTokens = auth.NewTokenManager(testJWTSecret, 15*time.Minute, time.Hour, clockwork.NewRealClock())

func newTestServer(t *testing.T, app appService, opts ...func(*Deps)) *Server {
	t.Helper()

	d := Deps{App: app, Verifier: testTokens}
	for _, opt := range opts {
		opt(&d)
	}

	cfg := &config.Config{Port: "0", AuthRateLimit: 100, AuthRateBurst: 100}
	return NewServer(cfg, d)
}

func withHealthChecks(checks ...HealthCheck) func(*Deps) {
	return func(d *Deps) {
		d.HealthChecks = checks
	}
}

func withPushHandler(h http.Handler) func(*Deps) {
	return func(d *Deps) {
		d.PushHandler = h
	}
}

// accessToken issues a valid access token for userID.
func accessToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	issued, err := testTokens.Issue(userID, "user@example.com")
	require.NoError(t, err)
	return issued.AccessToken
}

// do sends a request through the full middleware stack.
func do(srv *Server, method, path, token, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}
