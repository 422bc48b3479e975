package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/donor-registry/internal/donorlist"
	"github.com/iliyamo/donor-registry/internal/middleware"
	"github.com/iliyamo/donor-registry/internal/model"
	"github.com/iliyamo/donor-registry/internal/queue"
	"github.com/iliyamo/donor-registry/internal/repository"
	"github.com/iliyamo/donor-registry/internal/service"
)

// AdminDonorHandler is the admin side of donor management.  Admin-entered
// donors have no auth account.
type AdminDonorHandler struct {
	Donors   DonorStore
	Pictures Pictures
	Events   service.EventPublisher
	Cache    CacheInvalidator
}

func NewAdminDonorHandler(donors DonorStore, pictures Pictures, events service.EventPublisher, cache CacheInvalidator) *AdminDonorHandler {
	if cache == nil {
		cache = nopInvalidator{}
	}
	return &AdminDonorHandler{Donors: donors, Pictures: pictures, Events: events, Cache: cache}
}

func actor(c echo.Context) string {
	if s, ok := middleware.AdminSession(c); ok {
		return "admin:" + s.Email
	}
	return "admin"
}

// List pages donors on the backend when only plain filters are set.
// Eligibility depends on today's date and sorting must follow the
// directory's collation, so either one runs the in-memory pipeline.
func (h *AdminDonorHandler) List(c echo.Context) error {
	f := donorlist.ParseFilter(c.QueryParams())
	page, size := pageParams(c)

	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	var (
		result donorlist.Page[model.Donor]
		err    error
	)
	if f.Eligibility == donorlist.BucketAll && f.SortBy == donorlist.SortNone {
		result, err = h.Donors.Search(ctx, repository.DonorQuery{
			Search:     f.Search,
			BloodType:  f.BloodType,
			District:   f.District,
			City:       f.City,
			SortBy:     f.SortBy,
			Descending: f.Descending,
			Page:       page,
			PageSize:   size,
		})
	} else {
		var all []model.Donor
		if all, err = h.Donors.ListAll(ctx); err == nil {
			result = donorlist.Paginate(donorlist.Apply(all, f, clock()), page, size)
		}
	}
	if err != nil {
		return failure(c, "load donors", err)
	}

	out := make([]donorView, 0, len(result.Items))
	for _, d := range result.Items {
		out = append(out, viewOf(d))
	}
	return c.JSON(http.StatusOK, donorlist.NewPage(out, result.Page, result.PageSize, result.Total))
}

// load fetches the donor named by :id, writing the error response itself.
func (h *AdminDonorHandler) load(c echo.Context, action string) (*model.Donor, error) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return nil, badRequest(c, "invalid donor id")
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()
	d, err := h.Donors.GetByID(ctx, id)
	if err != nil {
		return nil, failure(c, action, err)
	}
	return d, nil
}

func (h *AdminDonorHandler) Get(c echo.Context) error {
	d, err := h.load(c, "load donor")
	if d == nil {
		return err
	}
	return c.JSON(http.StatusOK, viewOf(*d))
}

func (h *AdminDonorHandler) Create(c echo.Context) error {
	var in model.DonorInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	in.Normalize()
	if err := in.Validate(clock()); err != nil {
		return failure(c, "create donor", err)
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	d, err := h.Donors.Create(ctx, in, nil)
	if err != nil {
		return failure(c, "create donor", err)
	}
	h.Cache.Invalidate(ctx, middleware.CacheGroupDonors)
	publish(c, h.Events, queue.EventDonorRegistered, *d, actor(c))
	return c.JSON(http.StatusCreated, viewOf(*d))
}

func (h *AdminDonorHandler) Update(c echo.Context) error {
	var patch model.DonorPatch
	if err := c.Bind(&patch); err != nil {
		return badRequest(c, "invalid body")
	}
	patch.Normalize()
	if patch.Empty() {
		return badRequest(c, "Failed to update donor: no fields to update")
	}
	if err := patch.Validate(clock()); err != nil {
		return failure(c, "update donor", err)
	}
	d, err := h.load(c, "update donor")
	if d == nil {
		return err
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	updated, err := h.Donors.Update(ctx, d.ID, patch)
	if err != nil {
		return failure(c, "update donor", err)
	}
	h.Cache.Invalidate(ctx, middleware.CacheGroupDonors)
	publish(c, h.Events, queue.EventDonorUpdated, *updated, actor(c))
	return c.JSON(http.StatusOK, viewOf(*updated))
}

func (h *AdminDonorHandler) Delete(c echo.Context) error {
	d, err := h.load(c, "delete donor")
	if d == nil {
		return err
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	if err := h.Donors.Delete(ctx, d.ID); err != nil {
		return failure(c, "delete donor", err)
	}
	if d.ProfilePictureURL != nil {
		h.Pictures.drop(c, *d.ProfilePictureURL)
	}
	h.Cache.Invalidate(ctx, middleware.CacheGroupDonors)
	publish(c, h.Events, queue.EventDonorDeleted, *d, actor(c))
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminDonorHandler) UploadPicture(c echo.Context) error {
	d, err := h.load(c, "upload picture")
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

func (h *AdminDonorHandler) RecordDonation(c echo.Context) error {
	d, err := h.load(c, "record donation")
	if d == nil {
		return err
	}
	return recordDonation(c, h.Donors, h.Events, h.Cache, *d, actor(c))
}
