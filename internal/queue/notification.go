package queue

import (
    "context"
    "fmt"

    "github.com/iliyamo/donor-registry/internal/repository"
)

// NotificationWriter persists a notification row.
type NotificationWriter interface {
    Create(ctx context.Context, n repository.NewNotification) error
}

// NotificationHandler turns donor events into admin notifications.
func NotificationHandler(w NotificationWriter) Handler {
    return func(ctx context.Context, ev DonorEvent) error {
        n, ok := Describe(ev)
        if !ok {
            return fmt.Errorf("unknown event type %q", ev.Type)
        }
        return w.Create(ctx, n)
    }
}

// Describe renders the notification for an event.
func Describe(ev DonorEvent) (repository.NewNotification, bool) {
    n := repository.NewNotification{Type: ev.Type}
    if ev.DonorID != "" && ev.Type != EventDonorDeleted {
        id := ev.DonorID
        n.DonorID = &id
    }
    where := ev.District
    if ev.City != "" {
        where = ev.City + ", " + ev.District
    }
    switch ev.Type {
    case EventDonorRegistered:
        n.Title = "New donor registered"
        n.Message = fmt.Sprintf("%s (%s) from %s joined the registry", ev.Name, ev.BloodType, where)
    case EventDonorUpdated:
        n.Title = "Donor profile updated"
        n.Message = fmt.Sprintf("%s (%s) updated their details", ev.Name, ev.BloodType)
    case EventDonorDeleted:
        n.Title = "Donor removed"
        n.Message = fmt.Sprintf("%s (%s) was removed from the registry", ev.Name, ev.BloodType)
    case EventDonationRecorded:
        n.Title = "Donation recorded"
        n.Message = fmt.Sprintf("%s (%s) donated on %s", ev.Name, ev.BloodType, ev.DonationDate)
    default:
        return n, false
    }
    if ev.Actor == "admin" {
        n.Message += " by an admin"
    }
    return n, true
}
