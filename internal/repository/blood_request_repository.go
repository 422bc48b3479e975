package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/iliyamo/donor-registry/internal/backend"
	"github.com/iliyamo/donor-registry/internal/model"
)

const bloodRequestsTable = "blood_requests"

type BloodRequestRepo struct {
	db *backend.Client
}

func NewBloodRequestRepo(db *backend.Client) *BloodRequestRepo {
	return &BloodRequestRepo{db: db}
}

type bloodRequestRow struct {
	ID string `json:"id"`
	model.BloodRequestInput
	Status string `json:"status"`
}

// Create stores a validated request as open.
func (r *BloodRequestRepo) Create(ctx context.Context, in model.BloodRequestInput) (*model.BloodRequest, error) {
	row := bloodRequestRow{ID: uuid.NewString(), BloodRequestInput: in, Status: model.RequestOpen}
	if row.NeededBy != nil && row.NeededBy.IsZero() {
		row.NeededBy = nil
	}
	var out []model.BloodRequest
	if err := r.db.From(bloodRequestsTable).Insert(row).Execute(ctx, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, backend.ErrNoRows
	}
	return &out[0], nil
}

// List returns requests newest first, optionally only one status and blood
// type.
func (r *BloodRequestRepo) List(ctx context.Context, status, bloodType string, limit int) ([]model.BloodRequest, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	q := r.db.From(bloodRequestsTable).Select("*").Order("created_at", false).Limit(limit)
	if status != "" {
		q.Eq("status", status)
	}
	if bt, err := model.ParseBloodType(bloodType); err == nil {
		q.Eq("blood_type", string(bt))
	}
	out := []model.BloodRequest{}
	if _, err := q.Execute(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
