package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/reigncloud/reigncloud/internal/auth"
	"github.com/reigncloud/reigncloud/internal/domain"
	apperrors "github.com/reigncloud/reigncloud/internal/platform/errors"
)

func (s *Server) registerAuthRoutes() {
	rateLimiter := newRateLimiter(s.config.AuthRateLimit, s.config.AuthRateBurst)

	g := s.echo.Group("/api/users", rateLimiter)
	g.POST("/register", s.handleRegister)
	g.POST("/login", s.handleLogin)
	g.POST("/refresh", s.handleRefresh)
	g.POST("/logout", s.handleLogout)
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

func newTokenResponse(pair *domain.TokenPair) tokenResponse {
	return tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken, TokenType: "Bearer"}
}

func (s *Server) handleRegister(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	pair, err := s.app.Register(c.Request().Context(), req.Email, req.Username, req.Password)
	if err != nil {
		return domainError(err)
	}

	if err := c.JSON(http.StatusCreated, newTokenResponse(pair)); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	pair, err := s.app.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return domainError(err)
	}

	if err := c.JSON(http.StatusOK, newTokenResponse(pair)); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleRefresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return apperrors.ValidationError("refresh_token is required")
	}

	pair, err := s.app.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return domainError(err)
	}

	if err := c.JSON(http.StatusOK, newTokenResponse(pair)); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleLogout(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return apperrors.ValidationError("refresh_token is required")
	}

	if err := s.app.Logout(c.Request().Context(), req.RefreshToken); err != nil {
		return domainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// requireAuth validates the bearer access token and stores the caller's ID under "userID".
func (s *Server) requireAuth() echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup:  "header:" + echo.HeaderAuthorization,
		AuthScheme: "Bearer",
		Validator: func(token string, c echo.Context) (bool, error) {
			claims, err := s.verifier.VerifyAccessToken(token)
			if err != nil {
				return false, err
			}
			userID, err := auth.SubjectID(claims)
			if err != nil {
				return false, err
			}
			c.Set("userID", userID)
			return true, nil
		},
		ErrorHandler: func(err error, c echo.Context) error {
			switch {
			case errors.Is(err, domain.ErrMalformedClaim):
				return apperrors.ValidationError("invalid user ID in token")
			case errors.Is(err, domain.ErrInvalidToken):
				return apperrors.UnauthorizedError("invalid token")
			default:
				return apperrors.UnauthorizedError("missing bearer token")
			}
		},
	})
}
