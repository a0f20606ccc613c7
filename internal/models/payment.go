package models

import (
	"time"

	"gorm.io/datatypes"
)

// PaymentStatus is the lifecycle state of a single provider attempt.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusSuccess    PaymentStatus = "SUCCESS"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
)

// Terminal reports whether the status can no longer change.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed || s == PaymentStatusRefunded
}

// Payment is one attempt against one PSP. A purchase that falls back
// produces several rows sharing the same OrderID.
type Payment struct {
	ID                uint              `gorm:"primarykey" json:"id"`
	OrderID           string            `gorm:"type:varchar(64);not null;index" json:"order_id"`
	StoreID           uint              `gorm:"not null;index" json:"store_id"`
	PSPID             uint              `gorm:"column:psp_id;not null;index:idx_payment_psp_status_created" json:"psp_id"`
	AttemptNumber     int               `gorm:"not null" json:"attempt_number"`
	IsFallback        bool              `gorm:"not null;default:false" json:"is_fallback"`
	ProcessingTimeMs  int64             `json:"processing_time_ms"`
	Status            PaymentStatus     `gorm:"type:varchar(16);not null;index:idx_payment_psp_status_created" json:"status"`
	Outcome           string            `gorm:"type:varchar(16)" json:"outcome,omitempty"`
	FailureReason     string            `json:"failure_reason,omitempty"`
	IntentID          string            `gorm:"type:varchar(64);uniqueIndex;not null" json:"intent_id"`
	ProviderReference string            `json:"provider_reference,omitempty"`
	Amount            int64             `gorm:"not null" json:"amount"`
	Currency          string            `gorm:"type:varchar(3);not null" json:"currency"`
	Metadata          datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt         time.Time         `gorm:"index:idx_payment_psp_status_created" json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// PaymentFilter narrows attempt listings.
type PaymentFilter struct {
	StoreID *uint
	PSPID   *uint
	OrderID string
	Status  PaymentStatus
}
