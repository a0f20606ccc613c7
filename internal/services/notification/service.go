package notification

import (
	"context"
	"log"
	"time"

	"payroute/internal/models"
)

// Service announces recorded payment attempts to downstream consumers.
// Delivery is best effort: the attempt row is the source of truth.
type Service struct {
	publisher Publisher
	retries   int
	backoff   time.Duration
	now       func() time.Time
}

// NewService wraps publisher. retries is the number of extra publish
// attempts after the first failure.
func NewService(publisher Publisher, retries int, backoff time.Duration) *Service {
	if publisher == nil {
		publisher = NewLogPublisher()
	}
	if retries < 0 {
		retries = 0
	}
	return &Service{publisher: publisher, retries: retries, backoff: backoff, now: time.Now}
}

// AttemptRecorded publishes the finalized attempt.
func (s *Service) AttemptRecorded(ctx context.Context, p *models.Payment) error {
	event := NewAttemptRecorded(p, s.now())

	var err error
	for i := 0; i <= s.retries; i++ {
		if err = s.publisher.Publish(ctx, RoutingKeyAttemptRecorded, event); err == nil {
			return nil
		}
		log.Printf("⚠️ Failed to publish attempt %d of order %s (try %d/%d): %v",
			p.AttemptNumber, p.OrderID, i+1, s.retries+1, err)

		if i < s.retries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i+1) * s.backoff):
			}
		}
	}
	return err
}

func (s *Service) Close() error {
	return s.publisher.Close()
}
