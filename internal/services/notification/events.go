package notification

import (
	"time"

	"payroute/internal/models"
)

const (
	DefaultExchange = "payroute.events"
	ExchangeKind    = "topic"

	RoutingKeyAttemptRecorded = "payment.attempt.recorded"
)

// AttemptRecorded is published once per finalized attempt row.
type AttemptRecorded struct {
	PaymentID     uint                 `json:"payment_id"`
	OrderID       string               `json:"order_id"`
	StoreID       uint                 `json:"store_id"`
	PSPID         uint                 `json:"psp_id"`
	AttemptNumber int                  `json:"attempt_number"`
	IsFallback    bool                 `json:"is_fallback"`
	Status        models.PaymentStatus `json:"status"`
	Outcome       string               `json:"outcome"`
	FailureReason string               `json:"failure_reason,omitempty"`
	Amount        int64                `json:"amount"`
	Currency      string               `json:"currency"`
	ProcessingMs  int64                `json:"processing_time_ms"`
	RecordedAt    time.Time            `json:"recorded_at"`
}

func NewAttemptRecorded(p *models.Payment, at time.Time) AttemptRecorded {
	return AttemptRecorded{
		PaymentID:     p.ID,
		OrderID:       p.OrderID,
		StoreID:       p.StoreID,
		PSPID:         p.PSPID,
		AttemptNumber: p.AttemptNumber,
		IsFallback:    p.IsFallback,
		Status:        p.Status,
		Outcome:       p.Outcome,
		FailureReason: p.FailureReason,
		Amount:        p.Amount,
		Currency:      p.Currency,
		ProcessingMs:  p.ProcessingTimeMs,
		RecordedAt:    at,
	}
}
