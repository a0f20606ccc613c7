package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"payroute/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, event interface{}) error {
	return m.Called(routingKey, event).Error(0)
}

func (m *MockPublisher) Close() error {
	return m.Called().Error(0)
}

func attempt() *models.Payment {
	return &models.Payment{
		ID:            7,
		OrderID:       "ord-1",
		StoreID:       3,
		PSPID:         2,
		AttemptNumber: 2,
		IsFallback:    true,
		Status:        models.PaymentStatusSuccess,
		Outcome:       "success",
		Amount:        1999,
		Currency:      "EUR",
	}
}

func TestService_AttemptRecorded(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	want := NewAttemptRecorded(attempt(), fixed)

	tests := []struct {
		name     string
		retries  int
		failures int
		wantErr  bool
		calls    int
	}{
		{name: "first try", retries: 2, failures: 0, calls: 1},
		{name: "recovers on retry", retries: 2, failures: 2, calls: 3},
		{name: "gives up", retries: 1, failures: 5, wantErr: true, calls: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := new(MockPublisher)
			if tt.failures > 0 {
				pub.On("Publish", RoutingKeyAttemptRecorded, want).Return(errors.New("broker down")).Times(tt.failures)
			}
			pub.On("Publish", RoutingKeyAttemptRecorded, want).Return(nil)

			s := NewService(pub, tt.retries, time.Millisecond)
			s.now = func() time.Time { return fixed }

			err := s.AttemptRecorded(context.Background(), attempt())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			pub.AssertNumberOfCalls(t, "Publish", tt.calls)
		})
	}
}

func TestNewAttemptRecorded(t *testing.T) {
	at := time.Now()
	e := NewAttemptRecorded(attempt(), at)

	assert.Equal(t, uint(7), e.PaymentID)
	assert.Equal(t, "ord-1", e.OrderID)
	assert.True(t, e.IsFallback)
	assert.Equal(t, models.PaymentStatusSuccess, e.Status)
	assert.Equal(t, at, e.RecordedAt)
}

func TestLogPublisher(t *testing.T) {
	p := NewLogPublisher()
	assert.NoError(t, p.Publish(context.Background(), RoutingKeyAttemptRecorded, map[string]int{"a": 1}))
	assert.Error(t, p.Publish(context.Background(), RoutingKeyAttemptRecorded, make(chan int)))
	assert.NoError(t, p.Close())
}
