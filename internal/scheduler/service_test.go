package scheduler

import (
	"context"
	"testing"
	"time"

	"pld/internal/accumulation"
	"pld/internal/catalog"
	"pld/internal/domain"
	"pld/internal/pipeline"
	"pld/pkg/errors"
	"pld/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mocks

type MockSweepRepository struct {
	mock.Mock
}

func (m *MockSweepRepository) ListActive(ctx context.Context) ([]domain.Operation, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Operation), args.Error(1)
}

type MockPipelineRepository struct {
	mock.Mock
}

func (m *MockPipelineRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Operation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Operation), args.Error(1)
}

func (m *MockPipelineRepository) Update(ctx context.Context, op *domain.Operation, expectedVersion int) error {
	args := m.Called(ctx, op, expectedVersion)
	return args.Error(0)
}

type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Create(ctx context.Context, entry *domain.StatusAudit) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishAccumulation(acc *domain.ClientAccumulation) {
	m.Called(acc)
}

const testRFC = "XAXX010101000"

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	matrices := map[string]domain.RiskMatrix{
		"games_raffles": {
			ActivityType: "games_raffles",
			Factors:      map[string]domain.RiskFactor{},
			TierTable: []domain.TierRange{
				{Min: 0, Max: 40, Label: domain.RiskLevelLow},
				{Min: 41, Max: 70, Label: domain.RiskLevelMedium},
				{Min: 71, Max: 100, Label: domain.RiskLevelHigh},
			},
		},
	}
	thresholds := map[string]domain.ThresholdConfig{
		"games_raffles": {
			ActivityType:            "games_raffles",
			ReportingThresholdUnits: decimal.NewFromInt(645),
			WindowMonths:            6,
			UnitValue:               decimal.RequireFromString("117.31"),
		},
	}

	cat, err := catalog.New("test-1", nil, matrices, thresholds)
	require.NoError(t, err)
	return cat
}

func activeOp(amount string, daysAgo int, status domain.OperationStatus) domain.Operation {
	return domain.Operation{
		ID:            uuid.New(),
		ClientRFC:     testRFC,
		ActivityType:  "games_raffles",
		Amount:        decimal.RequireFromString(amount),
		OperationDate: time.Now().UTC().AddDate(0, 0, -daysAgo),
		RiskLevel:     domain.RiskLevelLow,
		Status:        status,
		Version:       1,
	}
}

func newTestSweeper(t *testing.T, repo SweepRepository, pipeRepo pipeline.OperationRepository, audit pipeline.AuditRepository, publisher *MockPublisher) *Sweeper {
	t.Helper()
	cat := testCatalog(t)
	pipe := pipeline.NewService(pipeRepo, audit, logger.NewNop())
	return NewSweeper(repo, accumulation.NewMonitor(cat), pipe, publisher, nil, time.Minute, time.Hour, logger.NewNop())
}

func TestRunOnceEscalatesCriticalGroup(t *testing.T) {
	mockRepo := new(MockSweepRepository)
	mockPipeRepo := new(MockPipelineRepository)
	mockAudit := new(MockAuditRepository)
	mockPublisher := new(MockPublisher)

	// 90,000 accumulated against a 75,664.95 threshold: CRITICO.
	op1 := activeOp("60000", 30, domain.StatusPending)
	op2 := activeOp("30000", 10, domain.StatusPendingReview)
	ops := []domain.Operation{op1, op2}

	mockRepo.On("ListActive", mock.Anything).Return(ops, nil)
	mockPublisher.On("PublishAccumulation", mock.MatchedBy(func(acc *domain.ClientAccumulation) bool {
		return acc.MonitoringStatus == domain.MonitoringCritico
	})).Return()

	for i := range ops {
		op := ops[i]
		mockPipeRepo.On("FindByID", mock.Anything, op.ID).Return(&op, nil)
	}
	mockPipeRepo.On("Update", mock.Anything, mock.MatchedBy(func(o *domain.Operation) bool {
		return o.Status == domain.StatusPendingReport && o.RiskLevel == domain.RiskLevelHigh
	}), 1).Return(nil).Times(2)
	mockAudit.On("Create", mock.Anything, mock.MatchedBy(func(e *domain.StatusAudit) bool {
		return e.Action == "escalate" && e.ActorID != nil
	})).Return(nil).Times(2)

	sweeper := newTestSweeper(t, mockRepo, mockPipeRepo, mockAudit, mockPublisher)
	err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)

	mockPipeRepo.AssertExpectations(t)
	mockAudit.AssertExpectations(t)
	mockPublisher.AssertExpectations(t)
}

func TestRunOnceAlertsWithoutEscalating(t *testing.T) {
	mockRepo := new(MockSweepRepository)
	mockPipeRepo := new(MockPipelineRepository)
	mockPublisher := new(MockPublisher)

	// ~79% of threshold: ALERTA publishes but nothing escalates.
	ops := []domain.Operation{activeOp("60000", 30, domain.StatusPending)}

	mockRepo.On("ListActive", mock.Anything).Return(ops, nil)
	mockPublisher.On("PublishAccumulation", mock.MatchedBy(func(acc *domain.ClientAccumulation) bool {
		return acc.MonitoringStatus == domain.MonitoringAlerta
	})).Return()

	sweeper := newTestSweeper(t, mockRepo, mockPipeRepo, new(MockAuditRepository), mockPublisher)
	err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)

	mockPipeRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	mockPublisher.AssertExpectations(t)
}

func TestRunOnceSkipsAlreadyEscalated(t *testing.T) {
	mockRepo := new(MockSweepRepository)
	mockPipeRepo := new(MockPipelineRepository)
	mockPublisher := new(MockPublisher)

	ops := []domain.Operation{activeOp("90000", 10, domain.StatusPendingReport)}

	mockRepo.On("ListActive", mock.Anything).Return(ops, nil)
	mockPublisher.On("PublishAccumulation", mock.Anything).Return()

	sweeper := newTestSweeper(t, mockRepo, mockPipeRepo, new(MockAuditRepository), mockPublisher)
	err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)

	// PENDING_REPORT operations are left for the reporting workflow.
	mockPipeRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestRunOnceToleratesConflicts(t *testing.T) {
	mockRepo := new(MockSweepRepository)
	mockPipeRepo := new(MockPipelineRepository)
	mockAudit := new(MockAuditRepository)
	mockPublisher := new(MockPublisher)

	op := activeOp("90000", 10, domain.StatusPending)

	mockRepo.On("ListActive", mock.Anything).Return([]domain.Operation{op}, nil)
	mockPublisher.On("PublishAccumulation", mock.Anything).Return()
	mockPipeRepo.On("FindByID", mock.Anything, op.ID).Return(&op, nil)
	mockPipeRepo.On("Update", mock.Anything, mock.Anything, 1).
		Return(&errors.ConflictError{ID: op.ID.String(), ExpectedVersion: 1})

	sweeper := newTestSweeper(t, mockRepo, mockPipeRepo, mockAudit, mockPublisher)

	// A concurrent writer beat the sweep; the run still succeeds and the
	// group is retried on the next cycle.
	err := sweeper.RunOnce(context.Background())
	assert.NoError(t, err)
}

func TestRunOnceListFailure(t *testing.T) {
	mockRepo := new(MockSweepRepository)
	mockRepo.On("ListActive", mock.Anything).Return(nil, errors.New("db down"))

	sweeper := newTestSweeper(t, mockRepo, new(MockPipelineRepository), new(MockAuditRepository), new(MockPublisher))
	err := sweeper.RunOnce(context.Background())
	assert.Error(t, err)
}

func TestSnapshotComputesAllGroups(t *testing.T) {
	mockRepo := new(MockSweepRepository)

	ops := []domain.Operation{
		activeOp("10000", 10, domain.StatusPending),
		{
			ID:            uuid.New(),
			ClientRFC:     "MABC850101AB1",
			ActivityType:  "games_raffles",
			Amount:        decimal.NewFromInt(5000),
			OperationDate: time.Now().UTC().AddDate(0, 0, -5),
			Status:        domain.StatusPending,
			Version:       1,
		},
	}
	mockRepo.On("ListActive", mock.Anything).Return(ops, nil)

	sweeper := newTestSweeper(t, mockRepo, new(MockPipelineRepository), new(MockAuditRepository), new(MockPublisher))
	accs, err := sweeper.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, accs, 2)
}
