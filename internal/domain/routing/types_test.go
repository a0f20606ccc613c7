package routing

import (
	"testing"
	"time"

	"payroute/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnapshot_Defaults(t *testing.T) {
	snap := NewSnapshot(7, nil, []models.PSP{{ID: 2}, {ID: 1}}, time.Now())

	assert.Equal(t, models.RoutingModeAutomatic, snap.Mode)
	assert.False(t, snap.FallbackEnabled)
	assert.Equal(t, 1, snap.MaxRetries)
	assert.Empty(t, snap.FallbackOrder())

	psps := snap.PSPs()
	require.Len(t, psps, 2)
	assert.Equal(t, uint(1), psps[0].ID)
}

func TestNewSnapshot_CopiesConfig(t *testing.T) {
	cfg := &models.RoutingConfig{
		Mode:            models.RoutingModeManual,
		FallbackEnabled: true,
		MaxRetries:      3,
		Weights: []models.PSPWeight{
			{PSPID: 1, Weight: 70},
			{PSPID: 2, Weight: 30},
			{PSPID: 3, Weight: -5},
		},
		Fallbacks: []models.FallbackSequence{
			{PSPID: 3, Position: 2},
			{PSPID: 2, Position: 1},
		},
	}

	snap := NewSnapshot(7, cfg, []models.PSP{{ID: 1}, {ID: 2}, {ID: 3}}, time.Now())

	// later edits must not leak into the snapshot
	cfg.Weights[0].Weight = 0
	cfg.Fallbacks[0].PSPID = 99

	assert.Equal(t, models.RoutingModeManual, snap.Mode)
	assert.Equal(t, 3, snap.MaxRetries)
	assert.Equal(t, 70, snap.Weight(1))
	assert.Equal(t, 0, snap.Weight(3))
	assert.Equal(t, []uint{2, 3}, snap.FallbackOrder())

	_, ok := snap.PSP(4)
	assert.False(t, ok)
}

func TestNewSnapshot_ClampsMaxRetries(t *testing.T) {
	tests := []struct {
		name       string
		maxRetries int
		want       int
	}{
		{"zero", 0, 1},
		{"negative", -3, 1},
		{"in range", 4, 4},
		{"at limit", MaxAttempts, MaxAttempts},
		{"above limit", 50, MaxAttempts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := NewSnapshot(1, &models.RoutingConfig{MaxRetries: tt.maxRetries}, nil, time.Now())
			assert.Equal(t, tt.want, snap.MaxRetries)
		})
	}
}

func TestSnapshot_Without(t *testing.T) {
	cfg := &models.RoutingConfig{
		Mode:      models.RoutingModeManual,
		Weights:   []models.PSPWeight{{PSPID: 1, Weight: 60}, {PSPID: 2, Weight: 40}},
		Fallbacks: []models.FallbackSequence{{PSPID: 2, Position: 1}},
	}
	snap := NewSnapshot(1, cfg, []models.PSP{{ID: 1}, {ID: 2}, {ID: 3}}, time.Now())

	trimmed := snap.Without(1)

	_, ok := trimmed.PSP(1)
	assert.False(t, ok)
	p, ok := trimmed.PSP(3)
	require.True(t, ok)
	assert.Equal(t, uint(3), p.ID)
	assert.Len(t, trimmed.PSPs(), 2)
	assert.Equal(t, 40, trimmed.Weight(2))
	assert.Equal(t, models.RoutingModeManual, trimmed.Mode)

	_, ok = snap.PSP(1)
	assert.True(t, ok)
	assert.Len(t, snap.PSPs(), 3)
}
