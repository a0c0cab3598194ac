// Package operation wires ingestion together: scoring, initial pipeline
// status, accumulation, and persistence.
package operation

import (
	"context"
	"strings"
	"time"

	"pld/internal/accumulation"
	"pld/internal/catalog"
	"pld/internal/domain"
	"pld/internal/metrics"
	"pld/internal/scoring"
	"pld/pkg/errors"
	"pld/pkg/logger"
	"pld/pkg/validator"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository is the operation store contract.
type Repository interface {
	Create(ctx context.Context, op *domain.Operation) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Operation, error)
	List(ctx context.Context, filter Filter) ([]domain.Operation, error)
	ListByClientActivity(ctx context.Context, clientRFC, activityType string) ([]domain.Operation, error)
}

// AuditRepository records the ingestion entry in the audit trail.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.StatusAudit) error
}

// AlertPublisher receives accumulation alerts worth surfacing.
type AlertPublisher interface {
	PublishAccumulation(acc *domain.ClientAccumulation)
}

// Filter narrows operation listings.
type Filter struct {
	ClientRFC    string
	ActivityType string
	Status       domain.OperationStatus
	Limit        int
	Offset       int
}

// IngestRequest is a new operation to score and admit into the pipeline.
type IngestRequest struct {
	ClientRFC        string          `json:"client_rfc" validate:"required,rfc"`
	ActivityType     string          `json:"activity_type" validate:"required"`
	Amount           decimal.Decimal `json:"amount" validate:"required,gt=0"`
	Currency         string          `json:"currency" validate:"omitempty,len=3"`
	OperationDate    time.Time       `json:"operation_date" validate:"required"`
	TriggeredFactors []string        `json:"triggered_factors"`
}

// IngestResult pairs the persisted operation with its scoring detail and
// the client's refreshed accumulation.
type IngestResult struct {
	Operation    *domain.Operation          `json:"operation"`
	Scoring      *scoring.Result            `json:"scoring"`
	Accumulation *domain.ClientAccumulation `json:"accumulation"`
}

type Service struct {
	repo      Repository
	audit     AuditRepository
	engine    *scoring.Engine
	monitor   *accumulation.Monitor
	catalog   *catalog.Catalog
	publisher AlertPublisher
	logger    logger.Logger
}

func NewService(
	repo Repository,
	audit AuditRepository,
	engine *scoring.Engine,
	monitor *accumulation.Monitor,
	cat *catalog.Catalog,
	publisher AlertPublisher,
	log logger.Logger,
) *Service {
	return &Service{
		repo:      repo,
		audit:     audit,
		engine:    engine,
		monitor:   monitor,
		catalog:   cat,
		publisher: publisher,
		logger:    log,
	}
}

// Ingest scores the operation, derives its entry status, persists it, and
// refreshes the client's accumulation for the activity.
func (s *Service) Ingest(ctx context.Context, req *IngestRequest) (*IngestResult, error) {
	req.ClientRFC = strings.ToUpper(strings.TrimSpace(req.ClientRFC))
	if !validator.ValidRFC(req.ClientRFC) {
		return nil, errors.ErrInvalidRFC
	}

	res, err := s.engine.Score(req.TriggeredFactors, req.ActivityType)
	if err != nil {
		return nil, err
	}
	if len(res.UnknownFactors) > 0 {
		// Catalogs evolve; unknown factor ids are observed, never fatal.
		s.logger.Warn("Unknown risk factors ignored during scoring", map[string]interface{}{
			"client_rfc":      req.ClientRFC,
			"activity_type":   req.ActivityType,
			"unknown_factors": res.UnknownFactors,
		})
	}

	matrix, err := s.catalog.Matrix(req.ActivityType)
	if err != nil {
		return nil, err
	}

	history, err := s.repo.ListByClientActivity(ctx, req.ClientRFC, req.ActivityType)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load client history")
	}

	now := time.Now().UTC()
	priorAcc, err := s.monitor.Compute(history, req.ClientRFC, req.ActivityType, now)
	if err != nil {
		return nil, err
	}

	status := scoring.InitialStatus(res, matrix, priorAcc.MonitoringStatus)

	op := &domain.Operation{
		ID:               uuid.New(),
		ClientRFC:        req.ClientRFC,
		ActivityType:     req.ActivityType,
		Amount:           req.Amount,
		Currency:         defaultCurrency(req.Currency),
		OperationDate:    req.OperationDate,
		RiskLevel:        res.Tier,
		RiskScore:        res.Score,
		TriggeredFactors: domain.StringList(req.TriggeredFactors),
		Status:           status,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.Create(ctx, op); err != nil {
		return nil, errors.Wrap(err, "failed to create operation")
	}

	entry := &domain.StatusAudit{
		ID:          uuid.New(),
		OperationID: op.ID,
		FromStatus:  "",
		ToStatus:    status,
		Action:      "ingest",
		CreatedAt:   now,
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Error("Failed to write ingestion audit entry", map[string]interface{}{
			"operation_id": op.ID,
			"error":        err.Error(),
		})
	}

	acc, err := s.monitor.Compute(append(history, *op), req.ClientRFC, req.ActivityType, now)
	if err != nil {
		return nil, err
	}

	if s.publisher != nil && (acc.MonitoringStatus == domain.MonitoringAlerta || acc.MonitoringStatus == domain.MonitoringCritico) {
		s.publisher.PublishAccumulation(acc)
	}

	metrics.OperationsScoredTotal.WithLabelValues(string(res.Tier)).Inc()

	s.logger.Info("Operation ingested", map[string]interface{}{
		"operation_id":      op.ID,
		"client_rfc":        op.ClientRFC,
		"activity_type":     op.ActivityType,
		"risk_score":        op.RiskScore,
		"risk_level":        string(op.RiskLevel),
		"status":            string(op.Status),
		"monitoring_status": string(acc.MonitoringStatus),
	})

	return &IngestResult{Operation: op, Scoring: res, Accumulation: acc}, nil
}

// Get returns one operation.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Operation, error) {
	return s.repo.FindByID(ctx, id)
}

// List returns operations matching the filter.
func (s *Service) List(ctx context.Context, filter Filter) ([]domain.Operation, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.List(ctx, filter)
}

// Accumulation recomputes the client's position for one activity as of
// the given instant.
func (s *Service) Accumulation(ctx context.Context, clientRFC, activityType string, asOf time.Time) (*domain.ClientAccumulation, error) {
	clientRFC = strings.ToUpper(strings.TrimSpace(clientRFC))
	ops, err := s.repo.ListByClientActivity(ctx, clientRFC, activityType)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load client history")
	}
	return s.monitor.Compute(ops, clientRFC, activityType, asOf)
}

// Summary aggregates the filtered operation set for dashboards.
func (s *Service) Summary(ctx context.Context, filter Filter) (accumulation.Summary, error) {
	ops, err := s.repo.List(ctx, Filter{ClientRFC: filter.ClientRFC, ActivityType: filter.ActivityType, Limit: 10000})
	if err != nil {
		return accumulation.Summary{}, err
	}
	return accumulation.Summarize(ops), nil
}

func defaultCurrency(c string) string {
	if c == "" {
		return "MXN"
	}
	return strings.ToUpper(c)
}
