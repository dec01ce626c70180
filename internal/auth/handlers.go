package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type LoginRequest struct {
	Password string `json:"password" form:"password"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type ChangePasswordRequest struct {
	OldPassword     string `json:"old_password" form:"old_password"`
	Password        string `json:"password" form:"password"`
	PasswordConfirm string `json:"password_confirm" form:"password_confirm"`
}

// LockoutChecker throttles repeated login failures.
type LockoutChecker interface {
	IsLocked(key string) bool
	RecordFailure(key string)
	RecordSuccess(key string)
}

type Handlers struct {
	service *Service
	lockout LockoutChecker
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

func (h *Handlers) SetLockoutChecker(checker LockoutChecker) {
	h.lockout = checker
}

// RegisterRoutes registers login publicly and the rest behind AdminAuth.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.POST("/login", h.Login)
	g.GET("/status", h.Status)

	protected := g.Group("", AdminAuth(h.service))
	protected.PUT("/password", h.ChangePassword)
}

// Login exchanges the admin password for a token
// POST /api/v1/auth/login
func (h *Handlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "password is required")
	}

	key := c.RealIP()
	if h.lockout != nil && h.lockout.IsLocked(key) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many failed attempts, try again later")
	}

	if err := h.service.ValidatePassword(c.Request().Context(), req.Password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrNoPasswordSet) {
			if h.lockout != nil {
				h.lockout.RecordFailure(key)
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid password")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "authentication failed")
	}

	if h.lockout != nil {
		h.lockout.RecordSuccess(key)
	}

	token, expires, err := h.service.GenerateToken()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to generate token")
	}

	return c.JSON(http.StatusOK, LoginResponse{Token: token, ExpiresAt: expires})
}

// Status reports whether an admin password exists
// GET /api/v1/auth/status
func (h *Handlers) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{
		"passwordSet": h.service.IsPasswordSet(c.Request().Context()),
	})
}

// ChangePassword updates the admin password
// PUT /api/v1/auth/password
func (h *Handlers) ChangePassword(c echo.Context) error {
	var req ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	err := h.service.ChangePassword(c.Request().Context(), req.OldPassword, req.Password, req.PasswordConfirm)
	switch {
	case err == nil:
		return c.NoContent(http.StatusNoContent)
	case errors.Is(err, ErrWrongOldPassword), errors.Is(err, ErrPasswordMismatch),
		errors.Is(err, ErrPasswordRequired), errors.Is(err, ErrPasswordTooShort):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNoPasswordSet):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to change password")
	}
}
