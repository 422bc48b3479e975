package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/donor-registry/internal/middleware"
	"github.com/iliyamo/donor-registry/internal/model"
	"github.com/iliyamo/donor-registry/internal/repository"
)

// Shown until an admin saves the first version.
var (
	defaultHero = model.HeroSettings{
		Title:      "Donate Blood, Save Lives",
		Subtitle:   "Join our community of blood donors and help those in need.",
		ButtonText: "Register as Donor",
	}
	defaultGuidelines = model.Guidelines{
		Content: "Donors must be 18 to 65 years old, in good health, and wait at least three months between donations.",
	}
)

// ContentHandler serves and edits the landing page content.
type ContentHandler struct {
	Content ContentStore
	Cache   CacheInvalidator
}

func NewContentHandler(content ContentStore, cache CacheInvalidator) *ContentHandler {
	if cache == nil {
		cache = nopInvalidator{}
	}
	return &ContentHandler{Content: content, Cache: cache}
}

func (h *ContentHandler) GetHero(c echo.Context) error {
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	hero, err := h.Content.GetHero(ctx)
	if errors.Is(err, repository.ErrContentNotFound) {
		return c.JSON(http.StatusOK, defaultHero)
	}
	if err != nil {
		return failure(c, "load hero settings", err)
	}
	return c.JSON(http.StatusOK, hero)
}

func (h *ContentHandler) GetGuidelines(c echo.Context) error {
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	g, err := h.Content.GetGuidelines(ctx)
	if errors.Is(err, repository.ErrContentNotFound) {
		return c.JSON(http.StatusOK, defaultGuidelines)
	}
	if err != nil {
		return failure(c, "load guidelines", err)
	}
	return c.JSON(http.StatusOK, g)
}

func (h *ContentHandler) SaveHero(c echo.Context) error {
	var in repository.HeroInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Subtitle = strings.TrimSpace(in.Subtitle)
	in.ButtonText = strings.TrimSpace(in.ButtonText)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	if in.Title == "" || in.ButtonText == "" {
		return badRequest(c, "Failed to save hero settings: title and button_text are required")
	}
	if in.ImageURL != "" {
		if u, err := url.Parse(in.ImageURL); err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			return badRequest(c, "Failed to save hero settings: image_url must be an http(s) URL")
		}
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	hero, err := h.Content.SaveHero(ctx, in)
	if err != nil {
		return failure(c, "save hero settings", err)
	}
	h.Cache.Invalidate(ctx, middleware.CacheGroupContent)
	return c.JSON(http.StatusOK, hero)
}

func (h *ContentHandler) SaveGuidelines(c echo.Context) error {
	var in struct {
		Content string `json:"content"`
	}
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	in.Content = strings.TrimSpace(in.Content)
	if in.Content == "" {
		return badRequest(c, "Failed to save guidelines: content is required")
	}
	ctx, cancel := withTimeout(c, requestTimeout)
	defer cancel()

	g, err := h.Content.SaveGuidelines(ctx, in.Content)
	if err != nil {
		return failure(c, "save guidelines", err)
	}
	h.Cache.Invalidate(ctx, middleware.CacheGroupContent)
	return c.JSON(http.StatusOK, g)
}
