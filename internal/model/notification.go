package model

import "time"

// Notification is an admin-facing feed entry derived from donor events.
type Notification struct {
    ID        string    `json:"id"`
    Type      string    `json:"type"`
    Title     string    `json:"title"`
    Message   string    `json:"message"`
    DonorID   *string   `json:"donor_id"`
    IsRead    bool      `json:"is_read"`
    CreatedAt time.Time `json:"created_at"`
}
