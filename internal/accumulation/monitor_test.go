package accumulation

import (
	"testing"
	"time"

	"pld/internal/catalog"
	"pld/internal/domain"
	"pld/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testRFC      = "XAXX010101000"
	otherRFC     = "MABC850101AB1"
	testActivity = "games_raffles"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	tiers := []domain.TierRange{
		{Min: 0, Max: 40, Label: domain.RiskLevelLow},
		{Min: 41, Max: 70, Label: domain.RiskLevelMedium},
		{Min: 71, Max: 100, Label: domain.RiskLevelHigh},
	}
	matrices := map[string]domain.RiskMatrix{
		testActivity:        {ActivityType: testActivity, Factors: map[string]domain.RiskFactor{}, TierTable: tiers},
		"notarial_services": {ActivityType: "notarial_services", Factors: map[string]domain.RiskFactor{}, TierTable: tiers},
	}
	thresholds := map[string]domain.ThresholdConfig{
		// 645 units at 117.31 puts the reporting threshold at 75,664.95.
		testActivity: {
			ActivityType:            testActivity,
			ReportingThresholdUnits: decimal.NewFromInt(645),
			WindowMonths:            6,
			UnitValue:               decimal.RequireFromString("117.31"),
		},
		// Zero units: the reporting obligation always applies.
		"notarial_services": {
			ActivityType:            "notarial_services",
			ReportingThresholdUnits: decimal.Zero,
			WindowMonths:            6,
			UnitValue:               decimal.RequireFromString("117.31"),
		},
	}

	cat, err := catalog.New("test-1", nil, matrices, thresholds)
	require.NoError(t, err)
	return cat
}

func op(rfc, activity string, amount string, date time.Time) domain.Operation {
	return domain.Operation{
		ID:            uuid.New(),
		ClientRFC:     rfc,
		ActivityType:  activity,
		Amount:        decimal.RequireFromString(amount),
		Currency:      "MXN",
		OperationDate: date,
		Status:        domain.StatusPending,
	}
}

func TestComputeEmptySetIsNormal(t *testing.T) {
	monitor := NewMonitor(testCatalog(t))
	asOf := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	acc, err := monitor.Compute(nil, testRFC, testActivity, asOf)
	require.NoError(t, err)

	assert.Equal(t, 0, acc.OperationCount)
	assert.True(t, acc.AccumulatedAmount.IsZero())
	assert.True(t, acc.PercentOfThreshold.IsZero())
	assert.Equal(t, domain.MonitoringNormal, acc.MonitoringStatus)
	assert.Nil(t, acc.MonitoringEndDate)
}

func TestComputeCrossesThreshold(t *testing.T) {
	monitor := NewMonitor(testCatalog(t))
	asOf := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	// Three operations of 30,000 within the window total 90,000 against a
	// 75,664.95 threshold: capped at 100% and CRITICO.
	ops := []domain.Operation{
		op(testRFC, testActivity, "30000", asOf.AddDate(0, 0, -90)),
		op(testRFC, testActivity, "30000", asOf.AddDate(0, 0, -45)),
		op(testRFC, testActivity, "30000", asOf.AddDate(0, 0, -10)),
	}

	acc, err := monitor.Compute(ops, testRFC, testActivity, asOf)
	require.NoError(t, err)

	assert.Equal(t, 3, acc.OperationCount)
	assert.True(t, acc.AccumulatedAmount.Equal(decimal.NewFromInt(90000)))
	assert.True(t, acc.PercentOfThreshold.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, domain.MonitoringCritico, acc.MonitoringStatus)
}

func TestComputeMonitoringBands(t *testing.T) {
	monitor := NewMonitor(testCatalog(t))
	asOf := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		amount string
		status domain.MonitoringStatus
	}{
		{"well below progress", "10000", domain.MonitoringNormal},
		{"between progress and alert", "30000", domain.MonitoringEnProgreso},
		{"above alert", "60000", domain.MonitoringAlerta},
		{"at threshold", "75664.95", domain.MonitoringCritico},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops := []domain.Operation{op(testRFC, testActivity, tt.amount, asOf.AddDate(0, 0, -30))}
			acc, err := monitor.Compute(ops, testRFC, testActivity, asOf)
			require.NoError(t, err)
			assert.Equal(t, tt.status, acc.MonitoringStatus)
		})
	}
}

func TestComputeWindowExcludesOldOperations(t *testing.T) {
	monitor := NewMonitor(testCatalog(t))
	asOf := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	windowStart := asOf.AddDate(0, -6, 0)

	ops := []domain.Operation{
		// One second before the window opens: excluded.
		op(testRFC, testActivity, "50000", windowStart.Add(-time.Second)),
		// Exactly at the window boundary: included.
		op(testRFC, testActivity, "20000", windowStart),
		op(testRFC, testActivity, "10000", asOf.AddDate(0, -1, 0)),
	}

	acc, err := monitor.Compute(ops, testRFC, testActivity, asOf)
	require.NoError(t, err)

	assert.Equal(t, 2, acc.OperationCount)
	assert.True(t, acc.AccumulatedAmount.Equal(decimal.NewFromInt(30000)))
}

func TestComputeFiltersOtherClientsAndActivities(t *testing.T) {
	monitor := NewMonitor(testCatalog(t))
	asOf := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	ops := []domain.Operation{
		op(testRFC, testActivity, "10000", asOf.AddDate(0, 0, -5)),
		op(otherRFC, testActivity, "99999", asOf.AddDate(0, 0, -5)),
		op(testRFC, "notarial_services", "99999", asOf.AddDate(0, 0, -5)),
	}

	acc, err := monitor.Compute(ops, testRFC, testActivity, asOf)
	require.NoError(t, err)

	assert.Equal(t, 1, acc.OperationCount)
	assert.True(t, acc.AccumulatedAmount.Equal(decimal.NewFromInt(10000)))
}

func TestComputeZeroThresholdAlwaysReports(t *testing.T) {
	monitor := NewMonitor(testCatalog(t))
	asOf := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	// No operations: nothing to report yet.
	acc, err := monitor.Compute(nil, testRFC, "notarial_services", asOf)
	require.NoError(t, err)
	assert.Equal(t, domain.MonitoringNormal, acc.MonitoringStatus)

	// Any operation at all, whatever the amount, is immediately CRITICO.
	ops := []domain.Operation{op(testRFC, "notarial_services", "1", asOf.AddDate(0, 0, -1))}
	acc, err = monitor.Compute(ops, testRFC, "notarial_services", asOf)
	require.NoError(t, err)
	assert.True(t, acc.PercentOfThreshold.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, domain.MonitoringCritico, acc.MonitoringStatus)
}

func TestComputeIsIdempotent(t *testing.T) {
	monitor := NewMonitor(testCatalog(t))
	asOf := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	ops := []domain.Operation{
		op(testRFC, testActivity, "30000", asOf.AddDate(0, 0, -30)),
		op(testRFC, testActivity, "15000", asOf.AddDate(0, 0, -10)),
	}

	first, err := monitor.Compute(ops, testRFC, testActivity, asOf)
	require.NoError(t, err)
	second, err := monitor.Compute(ops, testRFC, testActivity, asOf)
	require.NoError(t, err)

	assert.True(t, first.AccumulatedAmount.Equal(second.AccumulatedAmount))
	assert.True(t, first.PercentOfThreshold.Equal(second.PercentOfThreshold))
	assert.Equal(t, first.MonitoringStatus, second.MonitoringStatus)
}

func TestComputeMonitoringEndDate(t *testing.T) {
	monitor := NewMonitor(testCatalog(t))
	asOf := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	firstOp := asOf.AddDate(0, 0, -40)

	ops := []domain.Operation{
		op(testRFC, testActivity, "10000", firstOp),
		op(testRFC, testActivity, "5000", asOf.AddDate(0, 0, -10)),
	}

	acc, err := monitor.Compute(ops, testRFC, testActivity, asOf)
	require.NoError(t, err)

	assert.Equal(t, 40, acc.DaysInMonitoring)
	require.NotNil(t, acc.MonitoringEndDate)
	assert.Equal(t, firstOp.AddDate(0, 6, 0), *acc.MonitoringEndDate)
}

func TestComputeUnknownActivity(t *testing.T) {
	monitor := NewMonitor(testCatalog(t))

	_, err := monitor.Compute(nil, testRFC, "casinos", time.Now().UTC())
	require.Error(t, err)

	var unknown *errors.UnknownActivityError
	assert.True(t, errors.As(err, &unknown))
}

func TestCustomBreakpoints(t *testing.T) {
	monitor := NewMonitorWithBreakpoints(testCatalog(t), Breakpoints{Progress: 10, Alert: 50})
	asOf := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	// ~53% of threshold: ALERTA under the tightened bands, EN_PROGRESO
	// under the defaults.
	ops := []domain.Operation{op(testRFC, testActivity, "40000", asOf.AddDate(0, 0, -30))}

	acc, err := monitor.Compute(ops, testRFC, testActivity, asOf)
	require.NoError(t, err)
	assert.Equal(t, domain.MonitoringAlerta, acc.MonitoringStatus)
}

func TestGroups(t *testing.T) {
	now := time.Now().UTC()
	ops := []domain.Operation{
		op(testRFC, testActivity, "100", now),
		op(testRFC, testActivity, "200", now),
		op(testRFC, "notarial_services", "300", now),
		op(otherRFC, testActivity, "400", now),
	}

	groups := Groups(ops)

	assert.Len(t, groups, 3)
	assert.Len(t, groups[GroupKey{ClientRFC: testRFC, ActivityType: testActivity}], 2)
	assert.Len(t, groups[GroupKey{ClientRFC: otherRFC, ActivityType: testActivity}], 1)
}
