package handler

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/donor-registry/internal/middleware"
	"github.com/iliyamo/donor-registry/internal/repository"
	"github.com/iliyamo/donor-registry/internal/service"
	"github.com/iliyamo/donor-registry/internal/utils"
)

// AdminHandler serves the admin login and the dashboard read models.
type AdminHandler struct {
	Admins        AdminVerifier
	Guard         *service.LoginGuard
	Donors        DonorStore
	Notifications NotificationStore
	Requests      BloodRequestStore
	Secret        string
	TTL           time.Duration
}

func (h *AdminHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "email/password required")
	}

	key := c.RealIP()
	now := clock()
	if locked, wait := h.Guard.Locked(key, now); locked {
		mins := int(math.Ceil(wait.Minutes()))
		c.Response().Header().Set(echo.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		return c.JSON(http.StatusTooManyRequests, echo.Map{
			"error": fmt.Sprintf("Failed to log in: too many failed attempts, try again in %d minute(s)", mins),
		})
	}

	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	admin, err := h.Admins.Verify(ctx, req.Email, req.Password)
	if errors.Is(err, repository.ErrInvalidCredentials) {
		left := h.Guard.Fail(key, now)
		logger(c).Warn().Str("ip", key).Int("attempts_left", left).Msg("admin login failed")
		if left == 0 {
			return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "Failed to log in: too many failed attempts, account locked"})
		}
		return c.JSON(http.StatusUnauthorized, echo.Map{
			"error":         "Failed to log in: invalid email or password",
			"attempts_left": left,
		})
	}
	if err != nil {
		return failure(c, "log in", err)
	}
	h.Guard.Succeed(key)

	token, session, err := utils.IssueAdminSession(h.Secret, *admin, now, h.TTL)
	if err != nil {
		return failure(c, "issue session", err)
	}
	logger(c).Info().Str("admin_id", admin.ID).Msg("admin logged in")
	return c.JSON(http.StatusOK, echo.Map{"token": token, "session": session})
}

// Session echoes the session carried by the bearer token.
func (h *AdminHandler) Session(c echo.Context) error {
	s, ok := middleware.AdminSession(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return c.JSON(http.StatusOK, s)
}

// Logout only records the event; sessions are stateless and the client
// drops its token.
func (h *AdminHandler) Logout(c echo.Context) error {
	if s, ok := middleware.AdminSession(c); ok {
		logger(c).Info().Str("admin_id", s.ID).Msg("admin logged out")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) Stats(c echo.Context) error {
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	st, err := h.Donors.Stats(ctx, clock())
	if err != nil {
		return failure(c, "load statistics", err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *AdminHandler) ListNotifications(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	unread, _ := strconv.ParseBool(c.QueryParam("unread"))

	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	list, err := h.Notifications.ListRecent(ctx, limit, unread)
	if err != nil {
		return failure(c, "load notifications", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

func (h *AdminHandler) MarkNotificationRead(c echo.Context) error {
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	n, err := h.Notifications.MarkRead(ctx, c.Param("id"))
	if err != nil {
		return failure(c, "mark notification read", err)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *AdminHandler) BloodRequests(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	list, err := h.Requests.List(ctx, c.QueryParam("status"), c.QueryParam("blood_type"), limit)
	if err != nil {
		return failure(c, "load blood requests", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}
