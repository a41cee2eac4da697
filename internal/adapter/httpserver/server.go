package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/reigncloud/reigncloud/internal/adapter/metrics"
	"github.com/reigncloud/reigncloud/internal/domain"
	"github.com/reigncloud/reigncloud/internal/platform/config"
)

type appService interface {
	Register(ctx context.Context, email, username, password string) (*domain.TokenPair, error)
	Login(ctx context.Context, email, password string) (*domain.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	CreateMessage(ctx context.Context, senderID, recipientID uuid.UUID, content string) (*domain.Message, error)
	ListConversation(ctx context.Context, userID, otherID uuid.UUID) ([]domain.Message, error)
	UpdateMessage(ctx context.Context, messageID, senderID uuid.UUID, content string) (*domain.Message, error)
	DeleteMessage(ctx context.Context, messageID, senderID uuid.UUID) error
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	app      appService
	verifier domain.AccessTokenVerifier

	pushHandler    http.Handler
	metricsHandler http.Handler
	httpMetrics    *metrics.HTTPMetrics

	healthChecks []HealthCheck
	startTime    time.Time
}

// Deps bundles what the server needs. HTTPMetrics and MetricsHandler are optional.
type Deps struct {
	App            appService
	Verifier       domain.AccessTokenVerifier
	PushHandler    http.Handler
	MetricsHandler http.Handler
	HTTPMetrics    *metrics.HTTPMetrics
	HealthChecks   []HealthCheck
}

func NewServer(cfg *config.Config, d Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpErrorHandler

	srv := &Server{
		echo:           e,
		config:         cfg,
		app:            d.App,
		verifier:       d.Verifier,
		pushHandler:    d.PushHandler,
		metricsHandler: d.MetricsHandler,
		httpMetrics:    d.HTTPMetrics,
		healthChecks:   d.HealthChecks,
		startTime:      time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones. Hijacked push connections are not
// tracked by the HTTP server and must be drained separately.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP exposes the router for tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
