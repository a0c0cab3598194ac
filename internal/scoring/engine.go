// Package scoring implements the per-operation risk scoring engine.
// Scoring is a pure function over the catalog and the triggered factor
// set: re-scoring the same operation against the same catalog version is
// idempotent, which the audit trail depends on.
package scoring

import (
	"sort"

	"pld/internal/catalog"
	"pld/internal/domain"
	"pld/pkg/errors"
)

// Result is the outcome of scoring one operation.
type Result struct {
	Score              int                 `json:"score"`
	Tier               domain.RiskLevel    `json:"tier"`
	RecommendedAction  string              `json:"recommended_action"`
	IsBlocked          bool                `json:"is_blocked"`
	RequiresEscalation bool                `json:"requires_escalation"`
	MatchedFactors     []domain.RiskFactor `json:"matched_factors"`
	UnknownFactors     []string            `json:"unknown_factors,omitempty"`
}

// Engine scores operations against a loaded catalog.
type Engine struct {
	catalog *catalog.Catalog
}

func NewEngine(cat *catalog.Catalog) *Engine {
	return &Engine{catalog: cat}
}

// Score resolves the merged factor set for the activity, sums the weights
// of the triggered factors, clamps to [0,100], and maps the result onto
// the activity's tier table.
//
// Unknown factor ids are not errors: catalogs evolve and historical
// re-scoring must not break. They are returned in UnknownFactors so the
// caller can log them. A score that no tier range covers is a
// TierConfigError; the engine never defaults to a safe tier, since
// under-reporting is exactly what must be caught.
func (e *Engine) Score(triggeredFactorIDs []string, activityType string) (*Result, error) {
	merged, err := e.catalog.MergedFactors(activityType)
	if err != nil {
		return nil, err
	}
	matrix, err := e.catalog.Matrix(activityType)
	if err != nil {
		return nil, err
	}

	ids := dedupe(triggeredFactorIDs)

	var (
		sum       int
		matched   []domain.RiskFactor
		unknown   []string
		blocked   bool
		escalates bool
	)
	for _, id := range ids {
		f, ok := merged[id]
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		sum += f.SeverityWeight
		matched = append(matched, f)
		if f.BlocksOperation {
			blocked = true
		}
		if f.RequiresEscalation {
			escalates = true
		}
	}

	// A single saturating factor (e.g. a sanctions-list match at weight
	// 100) already maxes the score; stacked triggers cannot exceed it.
	score := sum
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	tier, found := tierFor(matrix.TierTable, score)
	if !found {
		return nil, &errors.TierConfigError{
			Activity: activityType,
			Score:    score,
			Reason:   "no tier range covers score",
		}
	}

	if tier.Min == matrix.TopTier().Min {
		escalates = true
	}

	return &Result{
		Score:              score,
		Tier:               tier.Label,
		RecommendedAction:  tier.RecommendedAction,
		IsBlocked:          blocked,
		RequiresEscalation: escalates,
		MatchedFactors:     matched,
		UnknownFactors:     unknown,
	}, nil
}

// InitialStatus derives the pipeline entry state for a freshly scored
// operation, optionally informed by the client's monitoring status.
func InitialStatus(res *Result, matrix domain.RiskMatrix, monitoring domain.MonitoringStatus) domain.OperationStatus {
	if res.IsBlocked || res.RequiresEscalation || res.Score >= matrix.TopTier().Min {
		return domain.StatusPendingReport
	}
	if res.Tier == domain.RiskLevelMedium || monitoring == domain.MonitoringAlerta || monitoring == domain.MonitoringCritico {
		return domain.StatusPendingReview
	}
	return domain.StatusPending
}

func tierFor(table []domain.TierRange, score int) (domain.TierRange, bool) {
	for _, r := range table {
		if score >= r.Min && score <= r.Max {
			return r, true
		}
	}
	return domain.TierRange{}, false
}

// dedupe returns the unique ids in deterministic order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
