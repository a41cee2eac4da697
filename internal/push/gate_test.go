package push

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/reigncloud/reigncloud/internal/adapter/metrics"
	"github.com/reigncloud/reigncloud/internal/domain"
	apperrors "github.com/reigncloud/reigncloud/internal/platform/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier map[string]*domain.Claims

func (s stubVerifier) VerifyAccessToken(token string) (*domain.Claims, error) {
	c, ok := s[token]
	if !ok {
		return nil, domain.ErrInvalidToken
	}
	return c, nil
}

type testGate struct {
	gate     *Gate
	registry *Registry
	metrics  *metrics.PushMetrics
	server   *httptest.Server
}

func newTestGate(t *testing.T, verifier domain.AccessTokenVerifier, maxConns int64) *testGate {
	t.Helper()
	return newTestGateWithConfig(t, verifier, GateConfig{MaxConnections: maxConns})
}

func newTestGateWithConfig(t *testing.T, verifier domain.AccessTokenVerifier, cfg GateConfig) *testGate {
	t.Helper()
	registry := NewRegistry(nil)
	m := metrics.NewPushMetrics(prometheus.NewRegistry())
	cfg.CheckOrigin = func(*http.Request) bool { return true }
	gate := NewGate(verifier, registry, clockwork.NewRealClock(), m, cfg)
	srv := httptest.NewServer(gate)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = gate.Stop(ctx)
		srv.Close()
	})
	return &testGate{gate: gate, registry: registry, metrics: m, server: srv}
}

func (tg *testGate) dial(t *testing.T, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(tg.server.URL, "http") + "/ws"
	if token != "" {
		url += "?token=" + token
	}
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if conn != nil {
		t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, resp, err
}

func (tg *testGate) connect(t *testing.T, token string, userID uuid.UUID, wantCount int) *websocket.Conn {
	t.Helper()
	conn, _, err := tg.dial(t, token)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return tg.registry.Count(userID) == wantCount }, 2*time.Second, 5*time.Millisecond)
	return conn
}

func accessClaims(sub string) *domain.Claims {
	return &domain.Claims{Subject: sub, Type: domain.TokenTypeAccess}
}

func readFrame(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	typ, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, typ)
	return string(data)
}

func assertNoFrame(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	_, data, err := conn.ReadMessage()
	require.Error(t, err, "unexpected frame %q", data)
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestGate_RejectsBeforeUpgrade(t *testing.T) {
	verifier := stubVerifier{
		"not-a-uuid": accessClaims("user-42"),
	}

	tests := []struct {
		name       string
		token      string
		wantStatus int
		wantType   apperrors.ErrorType
		reason     string
	}{
		{"missing token", "", http.StatusUnauthorized, apperrors.TypeUnauthorized, "missing_token"},
		{"invalid token", "garbage", http.StatusUnauthorized, apperrors.TypeUnauthorized, "invalid_token"},
		{"subject is not a user id", "not-a-uuid", http.StatusBadRequest, apperrors.TypeValidation, "invalid_subject"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tg := newTestGate(t, verifier, 10)

			conn, resp, err := tg.dial(t, tt.token)
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			assert.Nil(t, conn)
			require.NotNil(t, resp)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body apperrors.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.wantType, body.Type)

			assert.Zero(t, tg.registry.Users())
			assert.Equal(t, 1.0, testutil.ToFloat64(tg.metrics.HandshakeRejected.WithLabelValues(tt.reason)))
		})
	}
}

func TestGate_RejectsAtCapacity(t *testing.T) {
	alice := uuid.New()
	tg := newTestGate(t, stubVerifier{"a": accessClaims(alice.String())}, 1)

	tg.connect(t, "a", alice, 1)

	_, resp, err := tg.dial(t, "a")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, 1, tg.registry.Count(alice))
}

func TestGate_DeliversOnlyToAddressedUser(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()
	tg := newTestGate(t, stubVerifier{
		"a": accessClaims(alice.String()),
		"b": accessClaims(bob.String()),
	}, 10)

	a1 := tg.connect(t, "a", alice, 1)
	a2 := tg.connect(t, "a", alice, 2)
	b1 := tg.connect(t, "b", bob, 1)

	tg.registry.Broadcast(alice, []byte("first"))
	tg.registry.Broadcast(alice, []byte("second"))

	for _, conn := range []*websocket.Conn{a1, a2} {
		assert.Equal(t, "first", readFrame(t, conn))
		assert.Equal(t, "second", readFrame(t, conn))
	}
	assertNoFrame(t, b1)
}

func TestGate_ClosedConnectionIsUnregistered(t *testing.T) {
	alice := uuid.New()
	tg := newTestGate(t, stubVerifier{"a": accessClaims(alice.String())}, 10)

	a1 := tg.connect(t, "a", alice, 1)
	a2 := tg.connect(t, "a", alice, 2)

	require.NoError(t, a1.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool { return tg.registry.Count(alice) == 1 }, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, tg.registry.Broadcast(alice, []byte("still here")))
	assert.Equal(t, "still here", readFrame(t, a2))
	require.Eventually(t, func() bool { return tg.gate.Connections() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestGate_InboundFramesAreIgnored(t *testing.T) {
	alice := uuid.New()
	tg := newTestGate(t, stubVerifier{"a": accessClaims(alice.String())}, 10)

	conn := tg.connect(t, "a", alice, 1)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"hello":"server"}`)))

	tg.registry.Broadcast(alice, []byte("pong?"))
	assert.Equal(t, "pong?", readFrame(t, conn))
	assert.Equal(t, 1, tg.registry.Count(alice))
}

func TestGate_StopClosesSessions(t *testing.T) {
	alice := uuid.New()
	tg := newTestGate(t, stubVerifier{"a": accessClaims(alice.String())}, 10)

	conn := tg.connect(t, "a", alice, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, tg.gate.Stop(ctx))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	assert.Zero(t, tg.registry.Count(alice))

	_, resp, err := tg.dial(t, "a")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
