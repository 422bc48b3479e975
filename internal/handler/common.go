package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/iliyamo/donor-registry/internal/backend"
	"github.com/iliyamo/donor-registry/internal/donorlist"
	"github.com/iliyamo/donor-registry/internal/model"
	"github.com/iliyamo/donor-registry/internal/repository"
	"github.com/iliyamo/donor-registry/internal/service"
)

// requestTimeout bounds every backend round trip of a handler.
const requestTimeout = 5 * time.Second

// clock is swapped in tests.
var clock = time.Now

// DonorStore is the donor persistence used by the handlers.
type DonorStore interface {
	ListAll(ctx context.Context) ([]model.Donor, error)
	Search(ctx context.Context, q repository.DonorQuery) (donorlist.Page[model.Donor], error)
	GetByID(ctx context.Context, id string) (*model.Donor, error)
	GetByUserID(ctx context.Context, userID string) (*model.Donor, error)
	Create(ctx context.Context, in model.DonorInput, userID *string) (*model.Donor, error)
	Update(ctx context.Context, id string, patch model.DonorPatch) (*model.Donor, error)
	RecordDonation(ctx context.Context, id string, day model.Date) (*model.Donor, error)
	SetProfilePicture(ctx context.Context, id, url string) (*model.Donor, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context, now time.Time) (repository.DonorStats, error)
}

type ContentStore interface {
	GetHero(ctx context.Context) (*model.HeroSettings, error)
	SaveHero(ctx context.Context, in repository.HeroInput) (*model.HeroSettings, error)
	GetGuidelines(ctx context.Context) (*model.Guidelines, error)
	SaveGuidelines(ctx context.Context, content string) (*model.Guidelines, error)
}

type NotificationStore interface {
	ListRecent(ctx context.Context, limit int, unreadOnly bool) ([]model.Notification, error)
	MarkRead(ctx context.Context, id string) (*model.Notification, error)
}

type BloodRequestStore interface {
	Create(ctx context.Context, in model.BloodRequestInput) (*model.BloodRequest, error)
	List(ctx context.Context, status, bloodType string, limit int) ([]model.BloodRequest, error)
}

type AdminVerifier interface {
	Verify(ctx context.Context, email, password string) (*model.Admin, error)
}

// Authenticator is the hosted auth service (*backend.AuthClient).
type Authenticator interface {
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*backend.SignUpResult, error)
	SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*backend.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// ObjectStore is the hosted object storage (*backend.StorageClient).
type ObjectStore interface {
	Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string, upsert bool) (string, error)
	PublicURL(bucket, path string) string
	PathFromPublicURL(bucket, u string) (string, bool)
	Remove(ctx context.Context, bucket string, paths ...string) error
}

// CacheInvalidator drops cached public responses (*middleware.Cache).
type CacheInvalidator interface {
	Invalidate(ctx context.Context, groups ...string)
}

type nopInvalidator struct{}

func (nopInvalidator) Invalidate(context.Context, ...string) {}

func withTimeout(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), d)
}

func logger(c echo.Context) *zerolog.Logger {
	return zerolog.Ctx(c.Request().Context())
}

// failure renders err as {"error": "Failed to <action>: <message>"}.
// Validation problems are 400, missing rows 404, and a status reported by
// the backend is passed through; other backend failures are 502.
func failure(c echo.Context, action string, err error) error {
	msg := "Failed to " + action + ": " + err.Error()
	var (
		verr   *model.ValidationError
		apiErr *backend.APIError
	)
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "fields": verr.Fields})
	case errors.Is(err, repository.ErrDonorNotFound),
		errors.Is(err, repository.ErrContentNotFound),
		errors.Is(err, repository.ErrNotificationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": msg})
	case errors.Is(err, repository.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": msg})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": msg})
	case errors.Is(err, backend.ErrNotConfigured):
		logger(c).Error().Err(err).Str("action", action).Msg("backend not configured")
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": msg})
	case errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusGatewayTimeout, echo.Map{"error": msg})
	case errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500:
		return c.JSON(apiErr.Status, echo.Map{"error": msg})
	default:
		logger(c).Error().Err(err).Str("action", action).Msg("backend call failed")
		return c.JSON(http.StatusBadGateway, echo.Map{"error": msg})
	}
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// publish sends a donor event without failing the request.
func publish(c echo.Context, pub service.EventPublisher, kind string, d model.Donor, actor string) {
	if pub == nil {
		return
	}
	ev := service.NewDonorEvent(kind, d, actor, clock())
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), 3*time.Second)
	defer cancel()
	if err := pub.Publish(ctx, ev); err != nil {
		logger(c).Warn().Err(err).Str("type", kind).Str("donor_id", d.ID).Msg("publish donor event")
	}
}

// Compile-time checks that the backend and repositories satisfy the
// handler interfaces.
var (
	_ DonorStore        = (*repository.DonorRepo)(nil)
	_ ContentStore      = (*repository.ContentRepo)(nil)
	_ NotificationStore = (*repository.NotificationRepo)(nil)
	_ BloodRequestStore = (*repository.BloodRequestRepo)(nil)
	_ AdminVerifier     = (*repository.AdminRepo)(nil)
	_ Authenticator     = (*backend.AuthClient)(nil)
	_ ObjectStore       = (*backend.StorageClient)(nil)
)
