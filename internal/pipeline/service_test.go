package pipeline

import (
	"context"
	"testing"

	"pld/internal/domain"
	"pld/pkg/errors"
	"pld/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mocks

type MockOperationRepository struct {
	mock.Mock
}

func (m *MockOperationRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Operation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Operation), args.Error(1)
}

func (m *MockOperationRepository) Update(ctx context.Context, op *domain.Operation, expectedVersion int) error {
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

func pendingReviewOperation() *domain.Operation {
	return &domain.Operation{
		ID:           uuid.New(),
		ClientRFC:    "XAXX010101000",
		ActivityType: "real_estate",
		RiskLevel:    domain.RiskLevelMedium,
		RiskScore:    50,
		Status:       domain.StatusPendingReview,
		Version:      2,
	}
}

// Tests

func TestMarkReviewedReturnsToPending(t *testing.T) {
	mockRepo := new(MockOperationRepository)
	mockAudit := new(MockAuditRepository)
	service := NewService(mockRepo, mockAudit, logger.NewNop())

	op := pendingReviewOperation()
	actorID := uuid.New()

	mockRepo.On("FindByID", mock.Anything, op.ID).Return(op, nil)
	mockRepo.On("Update", mock.Anything, mock.MatchedBy(func(o *domain.Operation) bool {
		return o.Status == domain.StatusPending && o.ReviewedBy != nil && *o.ReviewedBy == actorID
	}), 2).Return(nil)
	mockAudit.On("Create", mock.Anything, mock.MatchedBy(func(e *domain.StatusAudit) bool {
		return e.OperationID == op.ID &&
			e.FromStatus == domain.StatusPendingReview &&
			e.ToStatus == domain.StatusPending &&
			e.Action == "mark_reviewed"
	})).Return(nil)

	updated, err := service.MarkReviewed(context.Background(), op.ID, actorID)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, updated.Status)
	assert.Equal(t, 3, updated.Version)
	assert.NotNil(t, updated.ReviewedAt)

	mockRepo.AssertExpectations(t)
	mockAudit.AssertExpectations(t)
}

func TestMarkReviewedRequiresActor(t *testing.T) {
	service := NewService(new(MockOperationRepository), new(MockAuditRepository), logger.NewNop())

	_, err := service.MarkReviewed(context.Background(), uuid.New(), uuid.Nil)
	assert.ErrorIs(t, err, errors.ErrActorRequired)
}

func TestMarkReviewedRejectsWrongState(t *testing.T) {
	mockRepo := new(MockOperationRepository)
	mockAudit := new(MockAuditRepository)
	service := NewService(mockRepo, mockAudit, logger.NewNop())

	op := pendingReviewOperation()
	op.Status = domain.StatusPendingReport

	mockRepo.On("FindByID", mock.Anything, op.ID).Return(op, nil)

	_, err := service.MarkReviewed(context.Background(), op.ID, uuid.New())
	require.Error(t, err)

	var invalid *errors.InvalidTransitionError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, string(domain.StatusPendingReport), invalid.From)

	// No write happens for a rejected transition.
	mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	mockAudit.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestEscalateForcesHighRisk(t *testing.T) {
	mockRepo := new(MockOperationRepository)
	mockAudit := new(MockAuditRepository)
	service := NewService(mockRepo, mockAudit, logger.NewNop())

	op := pendingReviewOperation()
	actorID := uuid.New()

	mockRepo.On("FindByID", mock.Anything, op.ID).Return(op, nil)
	mockRepo.On("Update", mock.Anything, mock.MatchedBy(func(o *domain.Operation) bool {
		return o.Status == domain.StatusPendingReport &&
			o.RiskLevel == domain.RiskLevelHigh &&
			o.EscalatedBy != nil && *o.EscalatedBy == actorID
	}), 2).Return(nil)
	mockAudit.On("Create", mock.Anything, mock.Anything).Return(nil)

	updated, err := service.Escalate(context.Background(), op.ID, actorID)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPendingReport, updated.Status)
	assert.Equal(t, domain.RiskLevelHigh, updated.RiskLevel)
	assert.NotNil(t, updated.EscalatedAt)

	mockRepo.AssertExpectations(t)
}

func TestEscalateIsIrrevocable(t *testing.T) {
	mockRepo := new(MockOperationRepository)
	service := NewService(mockRepo, new(MockAuditRepository), logger.NewNop())

	op := pendingReviewOperation()
	op.Status = domain.StatusPendingReport

	mockRepo.On("FindByID", mock.Anything, op.ID).Return(op, nil)

	// There is no path out of PENDING_REPORT via review.
	_, err := service.MarkReviewed(context.Background(), op.ID, uuid.New())
	var invalid *errors.InvalidTransitionError
	assert.True(t, errors.As(err, &invalid))
}

func TestMarkReportedFromPendingReport(t *testing.T) {
	mockRepo := new(MockOperationRepository)
	mockAudit := new(MockAuditRepository)
	service := NewService(mockRepo, mockAudit, logger.NewNop())

	op := pendingReviewOperation()
	op.Status = domain.StatusPendingReport

	mockRepo.On("FindByID", mock.Anything, op.ID).Return(op, nil)
	mockRepo.On("Update", mock.Anything, mock.MatchedBy(func(o *domain.Operation) bool {
		return o.Status == domain.StatusReported && o.ReportedAt != nil
	}), 2).Return(nil)
	mockAudit.On("Create", mock.Anything, mock.Anything).Return(nil)

	updated, err := service.MarkReported(context.Background(), op.ID, false)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReported, updated.Status)
}

func TestMarkReportedZeroDeclaration(t *testing.T) {
	mockRepo := new(MockOperationRepository)
	mockAudit := new(MockAuditRepository)
	service := NewService(mockRepo, mockAudit, logger.NewNop())

	op := pendingReviewOperation()
	op.Status = domain.StatusPending

	mockRepo.On("FindByID", mock.Anything, op.ID).Return(op, nil)
	mockRepo.On("Update", mock.Anything, mock.Anything, 2).Return(nil)
	mockAudit.On("Create", mock.Anything, mock.Anything).Return(nil)

	// Without the zero-declaration flag the same transition is rejected.
	updated, err := service.MarkReported(context.Background(), op.ID, true)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReported, updated.Status)
}

func TestMarkReportedFromPendingRequiresZeroDeclaration(t *testing.T) {
	mockRepo := new(MockOperationRepository)
	service := NewService(mockRepo, new(MockAuditRepository), logger.NewNop())

	op := pendingReviewOperation()
	op.Status = domain.StatusPending

	mockRepo.On("FindByID", mock.Anything, op.ID).Return(op, nil)

	_, err := service.MarkReported(context.Background(), op.ID, false)
	var invalid *errors.InvalidTransitionError
	assert.True(t, errors.As(err, &invalid))
}

func TestTransitionPropagatesConflict(t *testing.T) {
	mockRepo := new(MockOperationRepository)
	mockAudit := new(MockAuditRepository)
	service := NewService(mockRepo, mockAudit, logger.NewNop())

	op := pendingReviewOperation()
	conflict := &errors.ConflictError{ID: op.ID.String(), ExpectedVersion: 2}

	mockRepo.On("FindByID", mock.Anything, op.ID).Return(op, nil)
	mockRepo.On("Update", mock.Anything, mock.Anything, 2).Return(conflict)

	_, err := service.MarkReviewed(context.Background(), op.ID, uuid.New())
	require.Error(t, err)

	var got *errors.ConflictError
	assert.True(t, errors.As(err, &got))
	mockAudit.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestTransitionOperationNotFound(t *testing.T) {
	mockRepo := new(MockOperationRepository)
	service := NewService(mockRepo, new(MockAuditRepository), logger.NewNop())

	id := uuid.New()
	mockRepo.On("FindByID", mock.Anything, id).Return(nil, errors.ErrOperationNotFound)

	_, err := service.MarkReviewed(context.Background(), id, uuid.New())
	assert.ErrorIs(t, err, errors.ErrOperationNotFound)
}

func TestAuditFailureDoesNotFailTransition(t *testing.T) {
	mockRepo := new(MockOperationRepository)
	mockAudit := new(MockAuditRepository)
	service := NewService(mockRepo, mockAudit, logger.NewNop())

	op := pendingReviewOperation()

	mockRepo.On("FindByID", mock.Anything, op.ID).Return(op, nil)
	mockRepo.On("Update", mock.Anything, mock.Anything, 2).Return(nil)
	mockAudit.On("Create", mock.Anything, mock.Anything).Return(errors.New("audit store down"))

	updated, err := service.MarkReviewed(context.Background(), op.ID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, updated.Status)
}
