package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/iliyamo/donor-registry/internal/backend"
	"github.com/iliyamo/donor-registry/internal/model"
)

const (
	heroTable       = "hero_settings"
	guidelinesTable = "guidelines"
)

// ContentRepo manages the two singleton content rows.  There is at most
// one row per table; saving updates it in place or creates it.
type ContentRepo struct {
	db *backend.Client
}

func NewContentRepo(db *backend.Client) *ContentRepo {
	return &ContentRepo{db: db}
}

// HeroInput is the editable part of the hero banner.
type HeroInput struct {
	Title      string `json:"title"`
	Subtitle   string `json:"subtitle"`
	ButtonText string `json:"button_text"`
	ImageURL   string `json:"image_url"`
}

type heroRow struct {
	ID string `json:"id"`
	HeroInput
}

type guidelinesRow struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

func (r *ContentRepo) GetHero(ctx context.Context) (*model.HeroSettings, error) {
	var rows []model.HeroSettings
	if _, err := r.db.From(heroTable).Select("*").Order("updated_at", false).Limit(1).Execute(ctx, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrContentNotFound
	}
	return &rows[0], nil
}

func (r *ContentRepo) SaveHero(ctx context.Context, in HeroInput) (*model.HeroSettings, error) {
	var out []model.HeroSettings
	cur, err := r.GetHero(ctx)
	switch {
	case err == nil:
		err = r.db.From(heroTable).Update(in).Eq("id", cur.ID).Execute(ctx, &out)
	case errors.Is(err, ErrContentNotFound):
		err = r.db.From(heroTable).Insert(heroRow{ID: uuid.NewString(), HeroInput: in}).Execute(ctx, &out)
	}
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return r.GetHero(ctx)
	}
	return &out[0], nil
}

func (r *ContentRepo) GetGuidelines(ctx context.Context) (*model.Guidelines, error) {
	var rows []model.Guidelines
	if _, err := r.db.From(guidelinesTable).Select("*").Order("updated_at", false).Limit(1).Execute(ctx, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrContentNotFound
	}
	return &rows[0], nil
}

func (r *ContentRepo) SaveGuidelines(ctx context.Context, content string) (*model.Guidelines, error) {
	var out []model.Guidelines
	cur, err := r.GetGuidelines(ctx)
	switch {
	case err == nil:
		err = r.db.From(guidelinesTable).Update(map[string]any{"content": content}).Eq("id", cur.ID).Execute(ctx, &out)
	case errors.Is(err, ErrContentNotFound):
		err = r.db.From(guidelinesTable).Insert(guidelinesRow{ID: uuid.NewString(), Content: content}).Execute(ctx, &out)
	}
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return r.GetGuidelines(ctx)
	}
	return &out[0], nil
}
