// Package events publishes domain events to kafka so downstream
// consumers (analytics, fulfillment) can follow cart and order
// activity. Publishing is best-effort: a broker outage never fails
// the request that triggered the event.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const (
	KindCartUpdated  = "cart.updated"
	KindOrderCreated = "order.created"
)

type Event struct {
	Kind        string    `json:"kind"`
	UserID      string    `json:"user_id"`
	OrderNumber string    `json:"order_number,omitempty"`
	At          time.Time `json:"at"`
}

// Publisher writes events keyed by user id so per-user ordering is
// preserved. With no brokers configured it degrades to a no-op, which
// keeps local development and tests broker-free.
type Publisher struct {
	log    logrus.FieldLogger
	writer *kafka.Writer
}

func NewPublisher(log logrus.FieldLogger, brokers []string, topic string) *Publisher {
	p := &Publisher{log: log}
	if len(brokers) == 0 {
		return p
	}

	p.writer = &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return p
}

func (p *Publisher) CartUpdated(ctx context.Context, userID string) {
	p.publish(ctx, Event{
		Kind:   KindCartUpdated,
		UserID: userID,
		At:     time.Now().UTC(),
	})
}

func (p *Publisher) OrderCreated(ctx context.Context, userID string, orderNumber string) {
	p.publish(ctx, Event{
		Kind:        KindOrderCreated,
		UserID:      userID,
		OrderNumber: orderNumber,
		At:          time.Now().UTC(),
	})
}

func (p *Publisher) publish(ctx context.Context, ev Event) {
	if p == nil || p.writer == nil {
		return
	}

	value, err := json.Marshal(ev)
	if err != nil {
		p.log.WithError(err).Errorf("events: encoding %s", ev.Kind)
		return
	}

	msg := kafka.Message{
		Key:   []byte(ev.UserID),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.WithError(err).Errorf("events: publishing %s for user[%s]", ev.Kind, ev.UserID)
	}
}

func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("closing kafka writer: %w", err)
	}
	return nil
}
