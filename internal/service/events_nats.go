package service

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
)

type natsEventPublisher struct {
	conn *nats.Conn
}

// NewNATSEventPublisher adapts a NATS connection to the EventPublisher
// interface, JSON-encoding every payload.
func NewNATSEventPublisher(conn *nats.Conn) EventPublisher {
	return &natsEventPublisher{conn: conn}
}

func (p *natsEventPublisher) Publish(subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.conn.Publish(subject, data)
}
