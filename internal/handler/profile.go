package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/donor-registry/internal/middleware"
	"github.com/iliyamo/donor-registry/internal/model"
	"github.com/iliyamo/donor-registry/internal/queue"
	"github.com/iliyamo/donor-registry/internal/service"
)

// ProfileHandler lets a signed-in donor manage their own record.  Every
// call runs with the donor's access token so row policies apply.
type ProfileHandler struct {
	Donors   DonorStore
	Pictures Pictures
	Events   service.EventPublisher
	Cache    CacheInvalidator
}

func NewProfileHandler(donors DonorStore, pictures Pictures, events service.EventPublisher, cache CacheInvalidator) *ProfileHandler {
	if cache == nil {
		cache = nopInvalidator{}
	}
	return &ProfileHandler{Donors: donors, Pictures: pictures, Events: events, Cache: cache}
}

// own loads the donor row of the current user.  On failure the response
// has already been written and the returned error is the one to return.
func (h *ProfileHandler) own(c echo.Context, action string) (*model.Donor, error) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return nil, c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()
	d, err := h.Donors.GetByUserID(ctx, u.ID)
	if err != nil {
		return nil, failure(c, action, err)
	}
	return d, nil
}

func (h *ProfileHandler) Get(c echo.Context) error {
	d, err := h.own(c, "load profile")
	if d == nil {
		return err
	}
	return c.JSON(http.StatusOK, viewOf(*d))
}

func (h *ProfileHandler) Update(c echo.Context) error {
	var patch model.DonorPatch
	if err := c.Bind(&patch); err != nil {
		return badRequest(c, "invalid body")
	}
	patch.Normalize()
	if patch.Empty() {
		return badRequest(c, "Failed to update profile: no fields to update")
	}
	if err := patch.Validate(clock()); err != nil {
		return failure(c, "update profile", err)
	}
	d, err := h.own(c, "update profile")
	if d == nil {
		return err
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	updated, err := h.Donors.Update(ctx, d.ID, patch)
	if err != nil {
		return failure(c, "update profile", err)
	}
	h.Cache.Invalidate(ctx, middleware.CacheGroupDonors)
	publish(c, h.Events, queue.EventDonorUpdated, *updated, "self")
	return c.JSON(http.StatusOK, viewOf(*updated))
}

// Delete removes the donor record (and its picture).  The auth account is
// left alone.
func (h *ProfileHandler) Delete(c echo.Context) error {
	d, err := h.own(c, "delete profile")
	if d == nil {
		return err
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	if err := h.Donors.Delete(ctx, d.ID); err != nil {
		return failure(c, "delete profile", err)
	}
	if d.ProfilePictureURL != nil {
		h.Pictures.drop(c, *d.ProfilePictureURL)
	}
	h.Cache.Invalidate(ctx, middleware.CacheGroupDonors)
	publish(c, h.Events, queue.EventDonorDeleted, *d, "self")
	return c.NoContent(http.StatusNoContent)
}

func (h *ProfileHandler) UploadPicture(c echo.Context) error {
	d, err := h.own(c, "upload picture")
	if d == nil {
		return err
	}
	updated, err := h.Pictures.replace(c, h.Donors, *d)
	if updated == nil {
		return err
	}
	h.Cache.Invalidate(c.Request().Context(), middleware.CacheGroupDonors)
	return c.JSON(http.StatusOK, viewOf(*updated))
}

type donationReq struct {
	DonationDate *model.Date `json:"donation_date"`
}

// RecordDonation sets the last donation date, today when none is given.
func (h *ProfileHandler) RecordDonation(c echo.Context) error {
	d, err := h.own(c, "record donation")
	if d == nil {
		return err
	}
	return recordDonation(c, h.Donors, h.Events, h.Cache, *d, "self")
}

func recordDonation(c echo.Context, donors DonorStore, events service.EventPublisher, cache CacheInvalidator, d model.Donor, actor string) error {
	var req donationReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	now := clock()
	day := model.DateOf(now)
	if req.DonationDate != nil && !req.DonationDate.IsZero() {
		day = *req.DonationDate
	}
	if day.After(model.DateOf(now).Time) {
		return failure(c, "record donation", &model.ValidationError{
			Fields: map[string]string{"donation_date": "cannot be in the future"},
		})
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	updated, err := donors.RecordDonation(ctx, d.ID, day)
	if err != nil {
		return failure(c, "record donation", err)
	}
	cache.Invalidate(ctx, middleware.CacheGroupDonors)
	publish(c, events, queue.EventDonationRecorded, *updated, actor)
	return c.JSON(http.StatusOK, viewOf(*updated))
}
