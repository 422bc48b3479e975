// Package queue defines message payloads exchanged over the message broker
// and the consumer that turns them into admin notifications.
package queue

import "time"

// DonorEventsQueue is the durable queue all donor events go to.
const DonorEventsQueue = "donor.events"

// Event types.
const (
    EventDonorRegistered  = "donor.registered"
    EventDonorUpdated     = "donor.updated"
    EventDonorDeleted     = "donor.deleted"
    EventDonationRecorded = "donation.recorded"
)

// DonorEvent is published after a donor row changes.  It carries enough
// to render a notification without reading the donors table, which may
// already have lost the row.
type DonorEvent struct {
    Type         string    `json:"type"`
    DonorID      string    `json:"donor_id"`
    Name         string    `json:"name"`
    BloodType    string    `json:"blood_type"`
    District     string    `json:"district"`
    City         string    `json:"city"`
    DonationDate string    `json:"donation_date,omitempty"`
    Actor        string    `json:"actor,omitempty"` // "self" or "admin"
    OccurredAt   time.Time `json:"occurred_at"`
}
