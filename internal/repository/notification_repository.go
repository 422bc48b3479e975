package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/iliyamo/donor-registry/internal/backend"
	"github.com/iliyamo/donor-registry/internal/model"
)

const notificationsTable = "notifications"

type NotificationRepo struct {
	db *backend.Client
}

func NewNotificationRepo(db *backend.Client) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// NewNotification is what the event consumer writes.
type NewNotification struct {
	Type    string  `json:"type"`
	Title   string  `json:"title"`
	Message string  `json:"message"`
	DonorID *string `json:"donor_id"`
}

type notificationRow struct {
	ID string `json:"id"`
	NewNotification
	IsRead bool `json:"is_read"`
}

func (r *NotificationRepo) Create(ctx context.Context, n NewNotification) error {
	return r.db.From(notificationsTable).Insert(notificationRow{ID: uuid.NewString(), NewNotification: n}).Execute(ctx, nil)
}

// ListRecent returns up to limit notifications, newest first.
func (r *NotificationRepo) ListRecent(ctx context.Context, limit int, unreadOnly bool) ([]model.Notification, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	q := r.db.From(notificationsTable).Select("*").Order("created_at", false).Limit(limit)
	if unreadOnly {
		q.Is("is_read", false)
	}
	out := []model.Notification{}
	if _, err := q.Execute(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *NotificationRepo) MarkRead(ctx context.Context, id string) (*model.Notification, error) {
	var out []model.Notification
	if err := r.db.From(notificationsTable).Update(map[string]any{"is_read": true}).Eq("id", id).Execute(ctx, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotificationNotFound
	}
	return &out[0], nil
}
