package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/donor-registry/internal/backend"
	"github.com/iliyamo/donor-registry/internal/eligibility"
	"github.com/iliyamo/donor-registry/internal/middleware"
	"github.com/iliyamo/donor-registry/internal/model"
	"github.com/iliyamo/donor-registry/internal/queue"
	"github.com/iliyamo/donor-registry/internal/repository"
	"github.com/iliyamo/donor-registry/internal/service"
	"github.com/iliyamo/donor-registry/internal/utils"
)

// AuthHandler serves donor sign up, sign in and session endpoints.  The
// accounts themselves live in the hosted auth service.
type AuthHandler struct {
	Auth   Authenticator
	Donors DonorStore
	Events service.EventPublisher
	Cache  CacheInvalidator
}

func NewAuthHandler(auth Authenticator, donors DonorStore, events service.EventPublisher, cache CacheInvalidator) *AuthHandler {
	if cache == nil {
		cache = nopInvalidator{}
	}
	return &AuthHandler{Auth: auth, Donors: donors, Events: events, Cache: cache}
}

// ----- DTOs -----

type registerReq struct {
	Password string `json:"password"`
	model.DonorInput
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type sessionResp struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresAt    int64        `json:"expires_at"`
	User         backend.User `json:"user"`
}

func toSessionResp(s *backend.Session) *sessionResp {
	if s == nil {
		return nil
	}
	return &sessionResp{AccessToken: s.AccessToken, RefreshToken: s.RefreshToken, ExpiresAt: s.ExpiresAt, User: s.User}
}

type donorView struct {
	model.Donor
	Eligibility eligibility.Result `json:"eligibility"`
}

func viewOf(d model.Donor) donorView {
	return donorView{Donor: d, Eligibility: eligibility.CheckDonor(d, clock())}
}

// Register creates the auth account (with name and phone as metadata) and
// the donor row that belongs to it.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Normalize()
	if req.Email == "" {
		return badRequest(c, "Failed to register: email is required")
	}
	if len(req.Password) < utils.MinPasswordLength {
		return badRequest(c, "Failed to register: "+utils.ErrWeakPassword.Error())
	}
	if err := req.Validate(clock()); err != nil {
		return failure(c, "register", err)
	}

	ctx, cancel := withTimeout(c, 2*requestTimeout)
	defer cancel()

	res, err := h.Auth.SignUp(ctx, req.Email, req.Password, map[string]any{"name": req.Name, "phone": req.Phone})
	if err != nil {
		return failure(c, "register", err)
	}
	if res.Session != nil {
		ctx = backend.WithAccessToken(ctx, res.Session.AccessToken)
	}
	uid := res.User.ID
	donor, err := h.Donors.Create(ctx, req.DonorInput, &uid)
	if err != nil {
		logger(c).Error().Err(err).Str("user_id", uid).Msg("account created but donor row failed")
		return failure(c, "save donor profile", err)
	}
	h.Cache.Invalidate(ctx, middleware.CacheGroupDonors)
	publish(c, h.Events, queue.EventDonorRegistered, *donor, "self")

	return c.JSON(http.StatusCreated, echo.Map{
		"user":    res.User,
		"session": toSessionResp(res.Session),
		"donor":   viewOf(*donor),
		// without a session the project requires email confirmation first
		"confirmation_required": res.Session == nil,
	})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "email/password required")
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	s, err := h.Auth.SignInWithPassword(ctx, req.Email, req.Password)
	if err != nil {
		return failure(c, "log in", err)
	}
	return c.JSON(http.StatusOK, toSessionResp(s))
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	s, err := h.Auth.RefreshSession(ctx, req.RefreshToken)
	if err != nil {
		return failure(c, "refresh session", err)
	}
	return c.JSON(http.StatusOK, toSessionResp(s))
}

// Logout revokes the caller's access token.
func (h *AuthHandler) Logout(c echo.Context) error {
	auth := c.Request().Header.Get("Authorization")
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "Bearer ") {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	if err := h.Auth.SignOut(ctx, strings.TrimSpace(auth[7:])); err != nil {
		return failure(c, "log out", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the signed-in account and its donor record, if any.
func (h *AuthHandler) Me(c echo.Context) error {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	resp := echo.Map{"user": u, "donor": nil}
	d, err := h.Donors.GetByUserID(ctx, u.ID)
	switch {
	case err == nil:
		resp["donor"] = viewOf(*d)
	case !errors.Is(err, repository.ErrDonorNotFound):
		return failure(c, "load profile", err)
	}
	return c.JSON(http.StatusOK, resp)
}
