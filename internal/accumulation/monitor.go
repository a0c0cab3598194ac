// Package accumulation computes a client's rolling-window position against
// the reporting threshold of a vulnerable activity. All computation is
// pure over an already-materialized operation set; there is no I/O here.
package accumulation

import (
	"time"

	"pld/internal/catalog"
	"pld/internal/domain"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Breakpoints are the percent-of-threshold boundaries of the monitoring
// statuses. They are deliberately independent from per-activity tier
// tables: monitoring concerns accumulation trend, not single-operation
// severity.
type Breakpoints struct {
	Progress int
	Alert    int
}

// DefaultBreakpoints matches the regulatory monitoring bands.
var DefaultBreakpoints = Breakpoints{Progress: 25, Alert: 75}

// Monitor computes client accumulations against a loaded catalog.
type Monitor struct {
	catalog     *catalog.Catalog
	breakpoints Breakpoints
}

func NewMonitor(cat *catalog.Catalog) *Monitor {
	return &Monitor{catalog: cat, breakpoints: DefaultBreakpoints}
}

// NewMonitorWithBreakpoints overrides the monitoring bands, keeping the
// >=100 CRITICO boundary fixed.
func NewMonitorWithBreakpoints(cat *catalog.Catalog, bp Breakpoints) *Monitor {
	return &Monitor{catalog: cat, breakpoints: bp}
}

// Compute filters the operation set to the (client, activity) pair, sums
// amounts inside the rolling window ending at asOf, and expresses the sum
// as a percentage of the activity's reporting threshold.
//
// An empty operation set is a valid, reportable state (client not yet
// monitored) and yields a zero-accumulation result, not an error.
func (m *Monitor) Compute(operations []domain.Operation, clientRFC, activityType string, asOf time.Time) (*domain.ClientAccumulation, error) {
	cfg, err := m.catalog.Config(activityType)
	if err != nil {
		return nil, err
	}

	// Calendar-month subtraction, matching the regulatory wording
	// ("6 meses"), not a fixed day count.
	windowStart := asOf.AddDate(0, -cfg.WindowMonths, 0)

	var (
		total   = decimal.Zero
		count   int
		firstOp time.Time
		haveAny bool
	)
	for _, op := range operations {
		if op.ClientRFC != clientRFC || op.ActivityType != activityType {
			continue
		}
		if op.OperationDate.Before(windowStart) || op.OperationDate.After(asOf) {
			continue
		}
		total = total.Add(op.Amount)
		count++
		if !haveAny || op.OperationDate.Before(firstOp) {
			firstOp = op.OperationDate
			haveAny = true
		}
	}

	acc := &domain.ClientAccumulation{
		ClientRFC:          clientRFC,
		ActivityType:       activityType,
		WindowStart:        windowStart,
		WindowEnd:          asOf,
		AccumulatedAmount:  total,
		OperationCount:     count,
		PercentOfThreshold: decimal.Zero,
		MonitoringStatus:   domain.MonitoringNormal,
	}

	acc.PercentOfThreshold = m.percentOfThreshold(cfg, total, count)
	acc.MonitoringStatus = m.statusFor(acc.PercentOfThreshold)

	if haveAny {
		days := int(asOf.Sub(firstOp).Hours() / 24)
		maxDays := int(firstOp.AddDate(0, cfg.WindowMonths, 0).Sub(firstOp).Hours() / 24)
		if days > maxDays {
			days = maxDays
		}
		acc.DaysInMonitoring = days
		end := firstOp.AddDate(0, cfg.WindowMonths, 0)
		acc.MonitoringEndDate = &end
	}

	return acc, nil
}

// percentOfThreshold follows conservative compliance semantics: an
// always-report activity (zero threshold units) is at 100% as soon as any
// operation exists, and a degenerate zero-currency threshold with
// operations present also reads as 100% rather than dividing by zero.
func (m *Monitor) percentOfThreshold(cfg domain.ThresholdConfig, total decimal.Decimal, count int) decimal.Decimal {
	if cfg.ReportingThresholdUnits.IsZero() {
		if count > 0 {
			return hundred
		}
		return decimal.Zero
	}

	thresholdCurrency := catalog.UnitsToCurrency(cfg.ReportingThresholdUnits, cfg.UnitValue)
	if !thresholdCurrency.IsPositive() {
		if count > 0 {
			return hundred
		}
		return decimal.Zero
	}

	percent := total.Div(thresholdCurrency).Mul(hundred)
	if percent.GreaterThan(hundred) {
		return hundred
	}
	return percent.Round(2)
}

func (m *Monitor) statusFor(percent decimal.Decimal) domain.MonitoringStatus {
	switch {
	case percent.GreaterThanOrEqual(hundred):
		return domain.MonitoringCritico
	case percent.GreaterThanOrEqual(decimal.NewFromInt(int64(m.breakpoints.Alert))):
		return domain.MonitoringAlerta
	case percent.GreaterThanOrEqual(decimal.NewFromInt(int64(m.breakpoints.Progress))):
		return domain.MonitoringEnProgreso
	default:
		return domain.MonitoringNormal
	}
}

// GroupKey identifies one independent accumulation group.
type GroupKey struct {
	ClientRFC    string
	ActivityType string
}

// Groups splits an operation set into its (client, activity) groups.
// Groups are independent; batch recomputation can fan out per group.
func Groups(operations []domain.Operation) map[GroupKey][]domain.Operation {
	out := make(map[GroupKey][]domain.Operation)
	for _, op := range operations {
		key := GroupKey{ClientRFC: op.ClientRFC, ActivityType: op.ActivityType}
		out[key] = append(out[key], op)
	}
	return out
}
