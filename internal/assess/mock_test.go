package assess

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/readiness-cli/internal/model"
	"github.com/sells-group/readiness-cli/internal/store"
)

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

var _ store.Store = (*mockStore)(nil)

func (m *mockStore) AppendRecords(ctx context.Context, records []model.IndicatorRecord) (int, error) {
	args := m.Called(ctx, records)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) ListRecords(ctx context.Context, filter store.RecordFilter) ([]model.IndicatorRecord, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.IndicatorRecord), args.Error(1)
}

func (m *mockStore) BeginRun(ctx context.Context, run *model.AssessmentRun) error {
	return m.Called(ctx, run).Error(0)
}

func (m *mockStore) CompleteRun(ctx context.Context, run *model.AssessmentRun) error {
	return m.Called(ctx, run).Error(0)
}

func (m *mockStore) FailRun(ctx context.Context, runID, reason string) error {
	return m.Called(ctx, runID, reason).Error(0)
}

func (m *mockStore) GetRun(ctx context.Context, runID string) (*model.AssessmentRun, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AssessmentRun), args.Error(1)
}

func (m *mockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.RunSummary, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RunSummary), args.Error(1)
}

func (m *mockStore) LatestCompletedRun(ctx context.Context, version string) (*model.AssessmentRun, error) {
	args := m.Called(ctx, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AssessmentRun), args.Error(1)
}

func (m *mockStore) ReleaseRuns(ctx context.Context, version string) (int, error) {
	args := m.Called(ctx, version)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}
