package models

import (
	"time"

	"gorm.io/gorm"
)

// ProviderType identifies the adapter used to talk to a PSP.
type ProviderType string

const (
	ProviderStripe   ProviderType = "stripe"
	ProviderCheckout ProviderType = "checkout"
	ProviderPayPal   ProviderType = "paypal"
)

// PSP is a payment processing account shared by every store linked to it.
// Credentials are stored only in vault ciphertext form.
type PSP struct {
	ID                 uint           `gorm:"primarykey" json:"id"`
	Name               string         `gorm:"not null" json:"name"`
	Provider           ProviderType   `gorm:"type:varchar(32);not null;index" json:"provider"`
	EncryptedPublicKey string         `gorm:"type:text" json:"-"`
	EncryptedSecretKey string         `gorm:"type:text;not null" json:"-"`
	DailyCapacity      *int64         `json:"daily_capacity"`
	MonthlyCapacity    *int64         `json:"monthly_capacity"`
	IsActive           bool           `gorm:"not null" json:"is_active"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}

func (PSP) TableName() string {
	return "psps"
}

// Usable reports whether the PSP is active and not soft-deleted.
func (p *PSP) Usable() bool {
	return p.IsActive && !p.DeletedAt.Valid
}

// StorePSP grants a store the right to route through a PSP.
type StorePSP struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	StoreID   uint      `gorm:"not null;uniqueIndex:idx_store_psp" json:"store_id"`
	PSPID     uint      `gorm:"column:psp_id;not null;uniqueIndex:idx_store_psp" json:"psp_id"`
	PSP       PSP       `gorm:"foreignKey:PSPID" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

func (StorePSP) TableName() string {
	return "store_psps"
}
