package router

import (
	"context"
	"errors"
	"testing"
	"time"

	"payroute/internal/models"
	"payroute/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockConfigRepo struct {
	mock.Mock
}

func (m *MockConfigRepo) GetByStoreID(ctx context.Context, storeID uint) (*models.RoutingConfig, error) {
	args := m.Called(storeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RoutingConfig), args.Error(1)
}

func (m *MockConfigRepo) Save(ctx context.Context, cfg *models.RoutingConfig) error {
	return m.Called(cfg).Error(0)
}

type MockConfigCache struct {
	mock.Mock
}

func (m *MockConfigCache) GetRoutingConfig(ctx context.Context, storeID uint) (*models.RoutingConfig, bool, error) {
	args := m.Called(storeID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.RoutingConfig), args.Bool(1), args.Error(2)
}

func (m *MockConfigCache) SetRoutingConfig(ctx context.Context, cfg *models.RoutingConfig) error {
	return m.Called(cfg.StoreID).Error(0)
}

type staticPSPs []models.PSP

func (s staticPSPs) ListForStore(context.Context, uint) ([]models.PSP, error) { return s, nil }

func TestSnapshotLoader(t *testing.T) {
	manual := &models.RoutingConfig{StoreID: 5, Mode: models.RoutingModeManual, FallbackEnabled: true, MaxRetries: 2}
	list := staticPSPs{{ID: 1, IsActive: true}}

	tests := []struct {
		name     string
		setup    func(*MockConfigRepo, *MockConfigCache)
		wantMode models.RoutingMode
		wantMax  int
	}{
		{
			name: "cache hit skips database",
			setup: func(r *MockConfigRepo, c *MockConfigCache) {
				c.On("GetRoutingConfig", uint(5)).Return(manual, true, nil)
			},
			wantMode: models.RoutingModeManual,
			wantMax:  2,
		},
		{
			name: "cache miss fills cache",
			setup: func(r *MockConfigRepo, c *MockConfigCache) {
				c.On("GetRoutingConfig", uint(5)).Return(nil, false, nil)
				r.On("GetByStoreID", uint(5)).Return(manual, nil)
				c.On("SetRoutingConfig", uint(5)).Return(nil)
			},
			wantMode: models.RoutingModeManual,
			wantMax:  2,
		},
		{
			name: "cache down reads database",
			setup: func(r *MockConfigRepo, c *MockConfigCache) {
				c.On("GetRoutingConfig", uint(5)).Return(nil, false, errors.New("redis down"))
				r.On("GetByStoreID", uint(5)).Return(manual, nil)
				c.On("SetRoutingConfig", uint(5)).Return(errors.New("redis down"))
			},
			wantMode: models.RoutingModeManual,
			wantMax:  2,
		},
		{
			name: "no config uses defaults",
			setup: func(r *MockConfigRepo, c *MockConfigCache) {
				c.On("GetRoutingConfig", uint(5)).Return(nil, false, nil)
				r.On("GetByStoreID", uint(5)).Return(nil, repositories.ErrRoutingConfigNotFound)
			},
			wantMode: models.RoutingModeAutomatic,
			wantMax:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockConfigRepo)
			cache := new(MockConfigCache)
			tt.setup(repo, cache)

			snap, err := NewSnapshotLoader(repo, list, cache).Load(context.Background(), 5, time.Now())
			require.NoError(t, err)
			assert.Equal(t, tt.wantMode, snap.Mode)
			assert.Equal(t, tt.wantMax, snap.MaxRetries)
			assert.Len(t, snap.PSPs(), 1)

			repo.AssertExpectations(t)
			cache.AssertExpectations(t)
		})
	}
}

func TestSnapshotLoader_DatabaseError(t *testing.T) {
	repo := new(MockConfigRepo)
	repo.On("GetByStoreID", uint(5)).Return(nil, errors.New("connection refused"))

	_, err := NewSnapshotLoader(repo, staticPSPs{}, nil).Load(context.Background(), 5, time.Now())
	assert.Error(t, err)
}
