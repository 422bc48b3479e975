package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/donor-registry/internal/model"
)

// BloodRequestHandler accepts public requests for blood.
type BloodRequestHandler struct {
	Requests BloodRequestStore
}

func NewBloodRequestHandler(requests BloodRequestStore) *BloodRequestHandler {
	return &BloodRequestHandler{Requests: requests}
}

func (h *BloodRequestHandler) Create(c echo.Context) error {
	var in model.BloodRequestInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	in.Normalize()
	if err := in.Validate(clock()); err != nil {
		return failure(c, "submit blood request", err)
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	req, err := h.Requests.Create(ctx, in)
	if err != nil {
		return failure(c, "submit blood request", err)
	}
	logger(c).Info().Str("request_id", req.ID).Str("blood_type", string(req.BloodType)).Msg("blood request submitted")
	return c.JSON(http.StatusCreated, req)
}

// Open lists open requests, optionally for one blood type.
func (h *BloodRequestHandler) Open(c echo.Context) error {
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	list, err := h.Requests.List(ctx, model.RequestOpen, c.QueryParam("blood_type"), 50)
	if err != nil {
		return failure(c, "load blood requests", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}
