package push

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/reigncloud/reigncloud/internal/adapter/metrics"
	"golang.org/x/sync/errgroup"
)

// DefaultWriteTimeout bounds a single frame write, including the close frame sent at teardown.
const DefaultWriteTimeout = 5 * time.Second

var (
	errPeerClosed  = errors.New("peer closed connection")
	errOutboxGone  = errors.New("outbox closed")
	errEgressWrite = errors.New("egress write failed")
	errIngressRead = errors.New("ingress read failed")
)

// Session pumps one connection. Inbound application frames carry no meaning and are discarded.
type Session struct {
	userID   uuid.UUID
	conn     *websocket.Conn
	outbox   *Outbox
	registry *Registry
	clock    clockwork.Clock
	metrics  *metrics.PushMetrics

	writeTimeout time.Duration
}

func NewSession(userID uuid.UUID, conn *websocket.Conn, registry *Registry, clock clockwork.Clock, m *metrics.PushMetrics) *Session {
	return &Session{
		userID:   userID,
		conn:     conn,
		outbox:   NewOutbox(),
		registry: registry,
		clock:    clock,
		metrics:  m,

		writeTimeout: DefaultWriteTimeout,
	}
}

// Run registers the session and blocks until either loop ends or ctx is cancelled. The session's
// outbox is unregistered and the socket closed before Run returns. Cancelling ctx sends a going-away
// close frame. Run returns nil for orderly endings and the loop error otherwise.
func (s *Session) Run(ctx context.Context) error {
	s.registry.Register(s.userID, s.outbox)
	started := s.clock.Now()
	if s.metrics != nil {
		s.metrics.ActiveConnections.Inc()
		s.metrics.ConnectionsTotal.Inc()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.egress(gctx) })
	g.Go(s.ingress)
	g.Go(func() error {
		<-gctx.Done()
		s.teardown(ctx)
		return nil
	})
	err := g.Wait()

	cause := disconnectCause(ctx, err)
	if s.metrics != nil {
		s.metrics.ActiveConnections.Dec()
		s.metrics.SessionDuration.Observe(s.clock.Since(started).Seconds())
		s.metrics.DisconnectsByCause.WithLabelValues(cause).Inc()
	}
	slog.DebugContext(ctx, "Push session ended", "user_id", s.userID, "cause", cause, "error", err)

	if cause == "peer" || cause == "shutdown" {
		return nil
	}
	return err
}

// teardown runs once, after the first loop has finished or the parent context is cancelled.
func (s *Session) teardown(parent context.Context) {
	s.registry.Unregister(s.userID, s.outbox)
	s.outbox.Close()

	code, reason := websocket.CloseNormalClosure, ""
	if parent.Err() != nil {
		code, reason = websocket.CloseGoingAway, "server shutting down"
	}
	msg := websocket.FormatCloseMessage(code, reason)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, s.clock.Now().Add(s.writeTimeout))
	_ = s.conn.Close()
}

// egress writes queued payloads in enqueue order. There is no keepalive; a dead peer is noticed when a
// write fails or the read side errors.
func (s *Session) egress(ctx context.Context) error {
	for {
		for {
			payload, ok := s.outbox.pop()
			if !ok {
				break
			}
			_ = s.conn.SetWriteDeadline(s.clock.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return fmt.Errorf("%w: %w", errEgressWrite, err)
			}
		}

		select {
		case <-s.outbox.readyCh():
		case <-s.outbox.doneCh():
			return errOutboxGone
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Session) ingress() error {
	for {
		_, r, err := s.conn.NextReader()
		if err == nil {
			// Frames are drained without buffering, so their size does not matter.
			_, err = io.Copy(io.Discard, r)
		}
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return errPeerClosed
			}
			return fmt.Errorf("%w: %w", errIngressRead, err)
		}
	}
}

func disconnectCause(ctx context.Context, err error) string {
	switch {
	case ctx.Err() != nil:
		return "shutdown"
	case errors.Is(err, errPeerClosed):
		return "peer"
	case errors.Is(err, errEgressWrite):
		return "write_failed"
	case errors.Is(err, errIngressRead):
		return "read_failed"
	default:
		return "closed"
	}
}
