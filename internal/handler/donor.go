package handler

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/donor-registry/internal/donorlist"
	"github.com/iliyamo/donor-registry/internal/eligibility"
)

// DonorHandler serves the public directory and the eligibility calculator.
type DonorHandler struct {
	Donors DonorStore
}

func NewDonorHandler(donors DonorStore) *DonorHandler {
	return &DonorHandler{Donors: donors}
}

func pageParams(c echo.Context) (int, int) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("page_size"))
	return donorlist.NormalizePage(page, size)
}

// List runs the directory pipeline (search, blood type, district, city,
// eligibility, sort) over all donors and returns one page.
func (h *DonorHandler) List(c echo.Context) error {
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	all, err := h.Donors.ListAll(ctx)
	if err != nil {
		return failure(c, "load donors", err)
	}
	now := clock()
	filtered := donorlist.Apply(all, donorlist.ParseFilter(c.QueryParams()), now)
	page, size := pageParams(c)
	p := donorlist.Paginate(filtered, page, size)

	out := make([]donorView, 0, len(p.Items))
	for _, d := range p.Items {
		out = append(out, donorView{Donor: d, Eligibility: eligibility.CheckDonor(d, now)})
	}
	return c.JSON(http.StatusOK, donorlist.NewPage(out, p.Page, p.PageSize, p.Total))
}

func (h *DonorHandler) Get(c echo.Context) error {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return badRequest(c, "invalid donor id")
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	d, err := h.Donors.GetByID(ctx, id)
	if err != nil {
		return failure(c, "load donor", err)
	}
	return c.JSON(http.StatusOK, viewOf(*d))
}

// Eligibility checks an arbitrary last donation date.  An empty date
// means the person never donated.
func (h *DonorHandler) Eligibility(c echo.Context) error {
	res, err := eligibility.FromString(c.QueryParam("last_donation_date"), clock())
	if err != nil {
		return badRequest(c, "Failed to check eligibility: "+err.Error())
	}
	return c.JSON(http.StatusOK, res)
}
