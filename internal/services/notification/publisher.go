package notification

import (
	"context"
	"encoding/json"
	"log"
)

// Publisher delivers a JSON event under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event interface{}) error
	Close() error
}

// LogPublisher writes events to the process log. It is used when no
// broker is configured.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher { return &LogPublisher{} }

func (p *LogPublisher) Publish(ctx context.Context, routingKey string, event interface{}) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	log.Printf("event %s: %s", routingKey, body)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
