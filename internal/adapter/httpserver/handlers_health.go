package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/reigncloud/reigncloud/internal/platform/version"
	"golang.org/x/sync/errgroup"
)

// Startup runs before the pools have warmed up, so it gets the shorter budget.
const (
	startupCheckBudget   = 2 * time.Second
	readinessCheckBudget = 5 * time.Second
)

const dependencyOK = "ok"

// HealthCheck reports whether one backing dependency (postgres, redis) is usable.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type dependencyReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.dependencyHandler(startupCheckBudget))
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.dependencyHandler(readinessCheckBudget))
	s.echo.GET("/version", s.handleVersion)
}

// dependencyHandler answers 200 only when every dependency check passes within budget.
func (s *Server) dependencyHandler(budget time.Duration) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), budget)
		defer cancel()

		report := s.checkDependencies(ctx)
		code := http.StatusOK
		if report.Status != "ready" {
			code = http.StatusServiceUnavailable
		}
		if err := c.JSON(code, report); err != nil {
			return fmt.Errorf("write health report: %w", err)
		}
		return nil
	}
}

// checkDependencies runs every check concurrently and reports each one by name.
func (s *Server) checkDependencies(ctx context.Context) dependencyReport {
	results := make([]error, len(s.healthChecks))

	var g errgroup.Group
	for i, hc := range s.healthChecks {
		g.Go(func() error {
			results[i] = hc.Check(ctx)
			return nil
		})
	}
	_ = g.Wait()

	report := dependencyReport{Status: "ready", Checks: make(map[string]string, len(results))}
	for i, hc := range s.healthChecks {
		if results[i] == nil {
			report.Checks[hc.Name] = dependencyOK
			continue
		}
		slog.WarnContext(ctx, "Dependency check failed", "check", hc.Name, "error", results[i])
		report.Status = "unhealthy"
		report.Checks[hc.Name] = results[i].Error()
	}
	return report
}

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Seconds(),
	})
}

func (s *Server) handleVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, version.Get())
}
