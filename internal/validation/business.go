package validation

import (
	"fmt"

	"payroute/internal/models"
)

// RoutingConfig validates a store policy against the PSPs linked to it.
func (v *Validator) RoutingConfig(cfg *models.RoutingConfig, linked map[uint]bool) {
	v.Required("store_id", cfg.StoreID)
	v.Check(cfg.Mode == models.RoutingModeAutomatic || cfg.Mode == models.RoutingModeManual,
		"mode", "must be AUTOMATIC or MANUAL")
	v.Range("max_retries", int64(cfg.MaxRetries), 1, MaxRetriesLimit)

	total := 0
	seen := make(map[uint]bool, len(cfg.Weights))
	for i, w := range cfg.Weights {
		field := fmt.Sprintf("weights[%d]", i)
		v.Check(linked[w.PSPID], field, fmt.Sprintf("psp %d is not linked to the store", w.PSPID))
		v.Check(!seen[w.PSPID], field, fmt.Sprintf("psp %d appears twice", w.PSPID))
		v.Range(field+".weight", int64(w.Weight), 0, MaxWeight)
		seen[w.PSPID] = true
		total += w.Weight
	}
	if cfg.Mode == models.RoutingModeManual {
		v.Check(total > 0, "weights", "manual mode needs at least one positive weight")
	}

	positions := make(map[int]bool, len(cfg.Fallbacks))
	inChain := make(map[uint]bool, len(cfg.Fallbacks))
	for i, f := range cfg.Fallbacks {
		field := fmt.Sprintf("fallbacks[%d]", i)
		v.Check(linked[f.PSPID], field, fmt.Sprintf("psp %d is not linked to the store", f.PSPID))
		v.Check(!inChain[f.PSPID], field, fmt.Sprintf("psp %d appears twice", f.PSPID))
		v.Check(f.Position >= 1 && !positions[f.Position], field+".order", "must be unique and start at 1")
		positions[f.Position] = true
		inChain[f.PSPID] = true
	}
	for p := 1; p <= len(cfg.Fallbacks); p++ {
		if !positions[p] {
			v.AddError("fallbacks", "order must be contiguous from 1")
			break
		}
	}
}

// Capacity validates optional ceilings in minor units.
func (v *Validator) Capacity(field string, ceiling *int64) {
	if ceiling != nil {
		v.Check(*ceiling >= 0, field, "must not be negative")
	}
}
