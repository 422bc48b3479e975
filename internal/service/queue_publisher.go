// Package service holds process-level collaborators of the handlers: the
// domain event publisher and the admin login guard.
package service

import (
    "context"
    "encoding/json"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/rs/zerolog"

    "github.com/iliyamo/donor-registry/internal/model"
    "github.com/iliyamo/donor-registry/internal/queue"
)

// EventPublisher emits donor events.  Publishing is best effort: callers
// log failures and carry on.
type EventPublisher interface {
    Publish(ctx context.Context, ev queue.DonorEvent) error
}

// NewDonorEvent fills an event from a donor row.
func NewDonorEvent(kind string, d model.Donor, actor string, now time.Time) queue.DonorEvent {
    ev := queue.DonorEvent{
        Type:       kind,
        DonorID:    d.ID,
        Name:       d.Name,
        BloodType:  string(d.BloodType),
        District:   d.District,
        City:       d.City,
        Actor:      actor,
        OccurredAt: now.UTC(),
    }
    if kind == queue.EventDonationRecorded && d.LastDonationDate != nil {
        ev.DonationDate = d.LastDonationDate.String()
    }
    return ev
}

// AMQPPublisher publishes to the durable donor.events queue.  It dials per
// publish, which keeps it free of connection state; donor writes are rare.
type AMQPPublisher struct {
    URL string
    Log zerolog.Logger
}

func (p AMQPPublisher) Publish(ctx context.Context, ev queue.DonorEvent) error {
    conn, err := amqp.Dial(p.URL)
    if err != nil {
        p.Log.Warn().Err(err).Msg("rabbitmq: dial failed")
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        p.Log.Warn().Err(err).Msg("rabbitmq: channel open failed")
        return err
    }
    defer func() { _ = ch.Close() }()

    if _, err := ch.QueueDeclare(
        queue.DonorEventsQueue, // name
        true,                   // durable
        false,                  // autoDelete
        false,                  // exclusive
        false,                  // noWait
        nil,                    // args
    ); err != nil {
        p.Log.Warn().Err(err).Msg("rabbitmq: queue declare failed")
        return err
    }

    body, err := json.Marshal(ev)
    if err != nil {
        return err
    }
    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Type:         ev.Type,
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", queue.DonorEventsQueue, false, false, pub); err != nil {
        p.Log.Warn().Err(err).Str("type", ev.Type).Msg("rabbitmq: publish failed")
        return err
    }
    p.Log.Debug().Str("type", ev.Type).Str("donor_id", ev.DonorID).Msg("donor event published")
    return nil
}

// NopPublisher drops events; used when EVENTS_ENABLED is off.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, queue.DonorEvent) error { return nil }
