package catalog

import (
	"fmt"
	"sort"

	"pld/internal/domain"
	"pld/pkg/errors"
)

// validate enforces the catalog invariants at load time: every severity
// weight in [0,100], every tier table contiguous from 0 to 100 with no
// gaps or overlaps, and a threshold entry for every matrix.
func (c *Catalog) validate() error {
	for id, f := range c.GeneralFactors {
		if err := validateFactor(id, f); err != nil {
			return err
		}
	}

	for activity, m := range c.Matrices {
		for id, f := range m.Factors {
			if err := validateFactor(id, f); err != nil {
				return errors.Wrap(err, fmt.Sprintf("matrix %s", activity))
			}
		}
		if err := validateTierTable(activity, m.TierTable); err != nil {
			return err
		}
		if _, ok := c.Thresholds[activity]; !ok {
			return fmt.Errorf("matrix %s has no threshold configuration", activity)
		}
	}

	for activity, t := range c.Thresholds {
		if t.ReportingThresholdUnits.IsNegative() || t.IdentificationThresholdUnits.IsNegative() {
			return fmt.Errorf("threshold for %s must not be negative", activity)
		}
		if t.WindowMonths < 1 {
			return fmt.Errorf("threshold for %s has invalid window of %d months", activity, t.WindowMonths)
		}
		if !t.UnitValue.IsPositive() {
			return fmt.Errorf("threshold for %s has non-positive unit value", activity)
		}
	}

	return nil
}

func validateFactor(id string, f domain.RiskFactor) error {
	if id == "" || f.ID == "" {
		return fmt.Errorf("risk factor with empty id")
	}
	if id != f.ID {
		return fmt.Errorf("risk factor keyed as %s but declares id %s", id, f.ID)
	}
	if f.SeverityWeight < 0 || f.SeverityWeight > 100 {
		return fmt.Errorf("risk factor %s has weight %d outside [0,100]", id, f.SeverityWeight)
	}
	return nil
}

func validateTierTable(activity string, table []domain.TierRange) error {
	if len(table) == 0 {
		return &errors.TierConfigError{Activity: activity, Reason: "empty tier table"}
	}

	sorted := make([]domain.TierRange, len(table))
	copy(sorted, table)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Min < sorted[j].Min })

	if sorted[0].Min != 0 {
		return &errors.TierConfigError{Activity: activity, Score: 0, Reason: "tier table must start at 0"}
	}
	if sorted[len(sorted)-1].Max != 100 {
		return &errors.TierConfigError{Activity: activity, Score: 100, Reason: "tier table must end at 100"}
	}

	for i, r := range sorted {
		if r.Min > r.Max {
			return &errors.TierConfigError{Activity: activity, Score: r.Min, Reason: "range min exceeds max"}
		}
		if r.Label == "" {
			return &errors.TierConfigError{Activity: activity, Score: r.Min, Reason: "range has no tier label"}
		}
		if i > 0 {
			prev := sorted[i-1]
			if r.Min != prev.Max+1 {
				return &errors.TierConfigError{
					Activity: activity,
					Score:    r.Min,
					Reason:   fmt.Sprintf("range starting at %d does not follow range ending at %d", r.Min, prev.Max),
				}
			}
		}
	}

	return nil
}
