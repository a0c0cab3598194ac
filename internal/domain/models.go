// Package domain holds the core types of the risk and threshold
// compliance engine.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RiskLevel is the derived severity of a single operation.
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "LOW"
	RiskLevelMedium RiskLevel = "MEDIUM"
	RiskLevelHigh   RiskLevel = "HIGH"
)

// OperationStatus represents an operation's position in the compliance
// pipeline. REPORTED is terminal and set only once a regulatory filing is
// confirmed.
type OperationStatus string

const (
	StatusPending       OperationStatus = "PENDING"
	StatusPendingReview OperationStatus = "PENDING_REVIEW"
	StatusPendingReport OperationStatus = "PENDING_REPORT"
	StatusReported      OperationStatus = "REPORTED"
)

// MonitoringStatus classifies a client's accumulated position against the
// reporting threshold of one vulnerable activity.
type MonitoringStatus string

const (
	MonitoringNormal     MonitoringStatus = "NORMAL"
	MonitoringEnProgreso MonitoringStatus = "EN_PROGRESO"
	MonitoringAlerta     MonitoringStatus = "ALERTA"
	MonitoringCritico    MonitoringStatus = "CRITICO"
)

// Operation is a single vulnerable-activity operation under monitoring.
// Rows are append-only: corrections are new operations, never updates to
// amount or date. RiskLevel, RiskScore and Status are mutated exclusively
// by the scoring engine and the status pipeline.
type Operation struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	ClientRFC        string          `json:"client_rfc" db:"client_rfc"`
	ActivityType     string          `json:"activity_type" db:"activity_type"`
	Amount           decimal.Decimal `json:"amount" db:"amount"`
	Currency         string          `json:"currency" db:"currency"`
	OperationDate    time.Time       `json:"operation_date" db:"operation_date"`
	RiskLevel        RiskLevel       `json:"risk_level" db:"risk_level"`
	RiskScore        int             `json:"risk_score" db:"risk_score"`
	TriggeredFactors StringList      `json:"triggered_factors" db:"triggered_factors"`
	Status           OperationStatus `json:"status" db:"status"`
	ReviewedAt       *time.Time      `json:"reviewed_at,omitempty" db:"reviewed_at"`
	ReviewedBy       *uuid.UUID      `json:"reviewed_by,omitempty" db:"reviewed_by"`
	EscalatedAt      *time.Time      `json:"escalated_at,omitempty" db:"escalated_at"`
	EscalatedBy      *uuid.UUID      `json:"escalated_by,omitempty" db:"escalated_by"`
	ReportedAt       *time.Time      `json:"reported_at,omitempty" db:"reported_at"`
	Version          int             `json:"version" db:"version"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// RiskFactor is one entry of the regulatory risk catalog. Immutable once
// referenced by historical scores.
type RiskFactor struct {
	ID                 string `json:"id" db:"id"`
	SeverityWeight     int    `json:"severity_weight" db:"severity_weight"`
	LegalReference     string `json:"legal_reference" db:"legal_reference"`
	BlocksOperation    bool   `json:"blocks_operation" db:"blocks_operation"`
	RequiresEscalation bool   `json:"requires_escalation" db:"requires_escalation"`
}

// TierRange maps a contiguous score band to a labeled risk tier.
// Min and Max are both inclusive.
type TierRange struct {
	Min               int       `json:"min"`
	Max               int       `json:"max"`
	Label             RiskLevel `json:"label"`
	RecommendedAction string    `json:"recommended_action"`
}

// RiskMatrix is the per-activity risk configuration: the activity's own
// factors (merged over the shared general set, specific wins on collision)
// and its tier table partitioning [0,100].
type RiskMatrix struct {
	ActivityType string                `json:"activity_type"`
	Factors      map[string]RiskFactor `json:"factors"`
	TierTable    []TierRange           `json:"tier_table"`
}

// TopTier returns the highest-severity range of the tier table.
// The table is validated at load time to be ordered and end at 100.
func (m *RiskMatrix) TopTier() TierRange {
	return m.TierTable[len(m.TierTable)-1]
}

// ThresholdConfig holds the per-activity monetary thresholds, expressed in
// UMA units. A zero units value means the obligation always applies.
type ThresholdConfig struct {
	ActivityType                 string          `json:"activity_type" db:"activity_type"`
	IdentificationThresholdUnits decimal.Decimal `json:"identification_threshold_units" db:"identification_threshold_units"`
	ReportingThresholdUnits      decimal.Decimal `json:"reporting_threshold_units" db:"reporting_threshold_units"`
	WindowMonths                 int             `json:"window_months" db:"window_months"`
	UnitValue                    decimal.Decimal `json:"unit_value" db:"unit_value"`
}

// ClientAccumulation is the derived rolling-window position of one client
// in one activity. Never persisted as primary truth; recomputed from the
// operation set.
type ClientAccumulation struct {
	ClientRFC          string           `json:"client_rfc"`
	ActivityType       string           `json:"activity_type"`
	WindowStart        time.Time        `json:"window_start"`
	WindowEnd          time.Time        `json:"window_end"`
	AccumulatedAmount  decimal.Decimal  `json:"accumulated_amount"`
	OperationCount     int              `json:"operation_count"`
	PercentOfThreshold decimal.Decimal  `json:"percent_of_threshold"`
	MonitoringStatus   MonitoringStatus `json:"monitoring_status"`
	DaysInMonitoring   int              `json:"days_in_monitoring"`
	MonitoringEndDate  *time.Time       `json:"monitoring_end_date,omitempty"`
}

// StatusAudit records one pipeline transition for the audit trail.
type StatusAudit struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	OperationID uuid.UUID       `json:"operation_id" db:"operation_id"`
	FromStatus  OperationStatus `json:"from_status" db:"from_status"`
	ToStatus    OperationStatus `json:"to_status" db:"to_status"`
	Action      string          `json:"action" db:"action"`
	ActorID     *uuid.UUID      `json:"actor_id,omitempty" db:"actor_id"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// UnitValue is the currency value of one UMA unit for a fiscal year.
type UnitValue struct {
	Year      int             `json:"year" db:"year"`
	Value     decimal.Decimal `json:"value" db:"value"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// StringList stores a string slice as a JSON column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, l)
}

// Metadata holds arbitrary key-value metadata stored as JSON.
type Metadata map[string]interface{}

func (m Metadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *Metadata) Scan(value interface{}) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, &m)
}
