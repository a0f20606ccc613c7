package router

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"payroute/internal/domain/routing"
	"payroute/internal/models"
	"payroute/internal/repositories"
)

// ConfigCache caches routing policy rows by store.
type ConfigCache interface {
	GetRoutingConfig(ctx context.Context, storeID uint) (*models.RoutingConfig, bool, error)
	SetRoutingConfig(ctx context.Context, cfg *models.RoutingConfig) error
}

type PSPLister interface {
	ListForStore(ctx context.Context, storeID uint) ([]models.PSP, error)
}

type snapshotLoader struct {
	configs repositories.RoutingConfigRepository
	psps    PSPLister
	cache   ConfigCache
}

// NewSnapshotLoader reads policy through cache (optional) and PSP rows
// straight from the database.
func NewSnapshotLoader(configs repositories.RoutingConfigRepository, psps PSPLister, cache ConfigCache) SnapshotLoader {
	if configs == nil {
		panic("routing config repository is required")
	}
	if psps == nil {
		panic("psp repository is required")
	}
	return &snapshotLoader{configs: configs, psps: psps, cache: cache}
}

func (l *snapshotLoader) Load(ctx context.Context, storeID uint, now time.Time) (*routing.Snapshot, error) {
	cfg, err := l.config(ctx, storeID)
	if err != nil {
		return nil, err
	}

	list, err := l.psps.ListForStore(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load psps for store %d: %w", storeID, err)
	}

	return routing.NewSnapshot(storeID, cfg, list, now), nil
}

func (l *snapshotLoader) config(ctx context.Context, storeID uint) (*models.RoutingConfig, error) {
	if l.cache != nil {
		cfg, found, err := l.cache.GetRoutingConfig(ctx, storeID)
		if err != nil {
			log.Printf("⚠️ Routing config cache read failed for store %d: %v", storeID, err)
		} else if found {
			return cfg, nil
		}
	}

	cfg, err := l.configs.GetByStoreID(ctx, storeID)
	if errors.Is(err, repositories.ErrRoutingConfigNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load routing config for store %d: %w", storeID, err)
	}

	if l.cache != nil {
		if err := l.cache.SetRoutingConfig(ctx, cfg); err != nil {
			log.Printf("⚠️ Routing config cache write failed for store %d: %v", storeID, err)
		}
	}
	return cfg, nil
}
