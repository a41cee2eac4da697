package push

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/reigncloud/reigncloud/internal/adapter/metrics"
	"github.com/reigncloud/reigncloud/internal/auth"
	"github.com/reigncloud/reigncloud/internal/domain"
	"github.com/reigncloud/reigncloud/internal/platform/correlation"
	apperrors "github.com/reigncloud/reigncloud/internal/platform/errors"
)

const tokenParam = "token"

type GateConfig struct {
	CheckOrigin    func(r *http.Request) bool
	MaxConnections int64
	// WriteTimeout bounds each frame write. Zero means DefaultWriteTimeout.
	WriteTimeout time.Duration
}

// Gate authenticates push handshakes and runs a Session for every accepted connection. Rejected
// handshakes never upgrade.
type Gate struct {
	verifier domain.AccessTokenVerifier
	registry *Registry
	limiter  *ConnectionLimiter
	upgrader websocket.Upgrader
	clock    clockwork.Clock
	metrics  *metrics.PushMetrics

	writeTimeout time.Duration

	mu       sync.Mutex
	stopped  bool
	ctx      context.Context
	cancel   context.CancelFunc
	sessions sync.WaitGroup
}

// NewGate builds the push endpoint handler. m may be nil.
func NewGate(verifier domain.AccessTokenVerifier, registry *Registry, clock clockwork.Clock, m *metrics.PushMetrics, cfg GateConfig) *Gate {
	ctx, cancel := context.WithCancel(context.Background())
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &Gate{
		verifier: verifier,
		registry: registry,
		limiter:  NewConnectionLimiter(cfg.MaxConnections),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cfg.CheckOrigin,
		},
		clock:        clock,
		metrics:      m,
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (g *Gate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, rejection := g.authenticate(r)
	if rejection != nil {
		g.reject(w, r, rejection)
		return
	}

	if !g.track() {
		g.reject(w, r, apperrors.UnavailableError("Server shutting down").WithField("reason", "shutdown"))
		return
	}
	defer g.sessions.Done()

	if !g.limiter.Acquire() {
		g.reject(w, r, apperrors.UnavailableError("Too many connections").WithField("reason", "capacity"))
		return
	}
	defer g.limiter.Release()

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		slog.WarnContext(r.Context(), "Push upgrade failed", "user_id", userID, "error", err)
		return
	}

	id, ok := correlation.ID(r.Context())
	if !ok {
		id = correlation.NewID()
	}
	ctx := correlation.WithID(g.ctx, id)

	slog.InfoContext(ctx, "Push client connected", "user_id", userID, "remote_addr", r.RemoteAddr)
	session := NewSession(userID, conn, g.registry, g.clock, g.metrics)
	session.writeTimeout = g.writeTimeout
	if err := session.Run(ctx); err != nil {
		slog.DebugContext(ctx, "Push client disconnected with error", "user_id", userID, "error", err)
		return
	}
	slog.InfoContext(ctx, "Push client disconnected", "user_id", userID)
}

func (g *Gate) authenticate(r *http.Request) (uuid.UUID, *apperrors.Error) {
	token := r.URL.Query().Get(tokenParam)
	if token == "" {
		return uuid.Nil, apperrors.UnauthorizedError("Missing token").WithField("reason", "missing_token")
	}

	claims, err := g.verifier.VerifyAccessToken(token)
	if err != nil {
		return uuid.Nil, apperrors.UnauthorizedError("Invalid token").WithCause(err).WithField("reason", "invalid_token")
	}

	userID, err := auth.SubjectID(claims)
	if err != nil {
		return uuid.Nil, apperrors.ValidationError("Invalid user ID in token").WithCause(err).WithField("reason", "invalid_subject")
	}
	return userID, nil
}

func (g *Gate) reject(w http.ResponseWriter, r *http.Request, e *apperrors.Error) {
	reason, _ := e.Context["reason"].(string)
	if g.metrics != nil {
		g.metrics.HandshakeRejected.WithLabelValues(reason).Inc()
	}
	slog.InfoContext(r.Context(), "Push handshake rejected", "reason", reason, "status", e.HTTPStatus(), "remote_addr", r.RemoteAddr)

	resp := apperrors.ErrorResponse{Error: e.Message, Type: e.Type}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.HTTPStatus())
	_ = json.NewEncoder(w).Encode(resp)
}

// track adds a running session unless the gate is stopping.
func (g *Gate) track() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return false
	}
	g.sessions.Add(1)
	return true
}

// Stop closes every running session with a going-away frame and waits for them to finish. The gate
// rejects new handshakes afterwards.
func (g *Gate) Stop(ctx context.Context) error {
	g.mu.Lock()
	g.stopped = true
	g.cancel()
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("push sessions still running"), ctx.Err())
	}
}

// Connections returns the number of sessions currently running on this gate.
func (g *Gate) Connections() int64 {
	return g.limiter.Current()
}
