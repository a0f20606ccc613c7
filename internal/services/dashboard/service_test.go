package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "payroute/internal/errors"
	"payroute/internal/models"
	"payroute/internal/repositories"
	"payroute/internal/services/capacity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPSPReader struct {
	mock.Mock
}

func (m *MockPSPReader) GetByID(ctx context.Context, id uint) (*models.PSP, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PSP), args.Error(1)
}

func (m *MockPSPReader) List(ctx context.Context) ([]models.PSP, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.PSP), args.Error(1)
}

type MockStats struct {
	mock.Mock
}

func (m *MockStats) RecentStats(ctx context.Context, pspID uint, window int) (*models.PSPStats, error) {
	args := m.Called(ctx, pspID, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PSPStats), args.Error(1)
}

// MockUsage doubles as the ledger's usage reader.
type MockUsage struct {
	mock.Mock
}

func (m *MockUsage) SumAmount(ctx context.Context, pspID uint, statuses []models.PaymentStatus, since time.Time) (int64, error) {
	args := m.Called(ctx, pspID, statuses, since)
	return args.Get(0).(int64), args.Error(1)
}

type fixedBreakers map[uint]string

func (f fixedBreakers) BreakerState(pspID uint) string { return f[pspID] }

func limit(v int64) *int64 { return &v }

func TestListPSPOverviews(t *testing.T) {
	psps := &MockPSPReader{}
	stats := &MockStats{}
	usage := &MockUsage{}

	psps.On("List", mock.Anything).Return([]models.PSP{
		{ID: 1, Name: "stripe", DailyCapacity: limit(1000)},
		{ID: 2, Name: "paypal"},
	}, nil)
	usage.On("SumAmount", mock.Anything, uint(1), mock.Anything, mock.Anything).Return(int64(400), nil)
	usage.On("SumAmount", mock.Anything, uint(2), mock.Anything, mock.Anything).Return(int64(0), nil)
	stats.On("RecentStats", mock.Anything, uint(1), 50).Return(&models.PSPStats{PSPID: 1, Samples: 10, ApprovalRate: 0.9}, nil)
	stats.On("RecentStats", mock.Anything, uint(2), 50).Return(&models.PSPStats{PSPID: 2}, nil)

	ledger := capacity.NewLedger(usage, capacity.Config{})
	svc := NewService(psps, ledger, stats, fixedBreakers{1: "closed", 2: "open"}, 50)

	got, err := svc.ListPSPOverviews(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "closed", got[0].Breaker)
	require.NotNil(t, got[0].Capacity.DailyRemaining)
	assert.Equal(t, int64(600), *got[0].Capacity.DailyRemaining)
	assert.Equal(t, 0.9, got[0].Stats.ApprovalRate)

	assert.Equal(t, "open", got[1].Breaker)
	assert.Nil(t, got[1].Capacity.DailyRemaining)
	assert.Nil(t, got[1].Capacity.MonthlyRemaining)
}

func TestGetPSPOverview_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*MockPSPReader, *MockStats)
		want  error
	}{
		{
			name: "unknown psp",
			setup: func(p *MockPSPReader, _ *MockStats) {
				p.On("GetByID", mock.Anything, uint(9)).Return(nil, repositories.ErrPSPNotFound)
			},
			want: apperrors.ErrPSPNotFound,
		},
		{
			name: "stats failure",
			setup: func(p *MockPSPReader, s *MockStats) {
				p.On("GetByID", mock.Anything, uint(9)).Return(&models.PSP{ID: 9}, nil)
				s.On("RecentStats", mock.Anything, uint(9), DefaultStatsWindow).Return(nil, errors.New("db gone"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			psps := &MockPSPReader{}
			stats := &MockStats{}
			usage := &MockUsage{}
			usage.On("SumAmount", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(int64(0), nil)
			tt.setup(psps, stats)
			svc := NewService(psps, capacity.NewLedger(usage, capacity.Config{}), stats, nil, 0)

			_, err := svc.GetPSPOverview(context.Background(), 9)
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}
