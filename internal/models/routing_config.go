package models

import "time"

// RoutingMode selects how the primary PSP is chosen.
type RoutingMode string

const (
	RoutingModeAutomatic RoutingMode = "AUTOMATIC"
	RoutingModeManual    RoutingMode = "MANUAL"
)

// RoutingConfig is the per-store routing policy.
type RoutingConfig struct {
	ID              uint               `gorm:"primarykey" json:"id"`
	StoreID         uint               `gorm:"uniqueIndex;not null" json:"store_id"`
	Mode            RoutingMode        `gorm:"type:varchar(16);not null;default:'AUTOMATIC'" json:"mode"`
	FallbackEnabled bool               `gorm:"not null;default:false" json:"fallback_enabled"`
	MaxRetries      int                `gorm:"not null;default:1" json:"max_retries"`
	Weights         []PSPWeight        `gorm:"foreignKey:RoutingConfigID;constraint:OnDelete:CASCADE" json:"weights"`
	Fallbacks       []FallbackSequence `gorm:"foreignKey:RoutingConfigID;constraint:OnDelete:CASCADE" json:"fallbacks"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// PSPWeight is only consulted in MANUAL mode.
type PSPWeight struct {
	ID              uint `gorm:"primarykey" json:"id"`
	RoutingConfigID uint `gorm:"not null;uniqueIndex:idx_weight_config_psp" json:"routing_config_id"`
	PSPID           uint `gorm:"column:psp_id;not null;uniqueIndex:idx_weight_config_psp" json:"psp_id"`
	Weight          int  `gorm:"not null;default:0" json:"weight"`
}

func (PSPWeight) TableName() string {
	return "psp_weights"
}

// FallbackSequence orders the PSPs tried after a failed attempt.
// Position is dense from 1 and unique per routing config.
type FallbackSequence struct {
	ID              uint `gorm:"primarykey" json:"id"`
	RoutingConfigID uint `gorm:"not null;uniqueIndex:idx_fallback_config_position" json:"routing_config_id"`
	PSPID           uint `gorm:"column:psp_id;not null" json:"psp_id"`
	Position        int  `gorm:"not null;uniqueIndex:idx_fallback_config_position" json:"order"`
}

func (FallbackSequence) TableName() string {
	return "fallback_sequences"
}
