// Package catalog holds the regulatory configuration: risk factors, tier
// tables, and monetary thresholds expressed in UMA units. Content is
// validated once at load time; the engines trust a loaded Catalog.
package catalog

import (
	"sort"

	"pld/internal/domain"
	"pld/pkg/errors"

	"github.com/shopspring/decimal"
)

// Catalog is an explicitly-loaded, versioned snapshot of the compliance
// configuration. Historical operations can be re-scored against the
// catalog version active at the time.
type Catalog struct {
	Version        string
	GeneralFactors map[string]domain.RiskFactor
	Matrices       map[string]domain.RiskMatrix
	Thresholds     map[string]domain.ThresholdConfig
}

// New validates the given content and returns a Catalog.
// Returns TierConfigError or a validation error on invariant violations.
func New(version string, general map[string]domain.RiskFactor, matrices map[string]domain.RiskMatrix, thresholds map[string]domain.ThresholdConfig) (*Catalog, error) {
	c := &Catalog{
		Version:        version,
		GeneralFactors: general,
		Matrices:       matrices,
		Thresholds:     thresholds,
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	for activity, m := range c.Matrices {
		sort.Slice(m.TierTable, func(i, j int) bool {
			return m.TierTable[i].Min < m.TierTable[j].Min
		})
		c.Matrices[activity] = m
	}
	return c, nil
}

// Factor looks up a factor by id across the general set and every
// activity-specific set.
func (c *Catalog) Factor(id string) (domain.RiskFactor, error) {
	if f, ok := c.GeneralFactors[id]; ok {
		return f, nil
	}
	for _, m := range c.Matrices {
		if f, ok := m.Factors[id]; ok {
			return f, nil
		}
	}
	return domain.RiskFactor{}, errors.ErrFactorNotFound
}

// Matrix returns the risk matrix configured for the activity.
func (c *Catalog) Matrix(activityType string) (domain.RiskMatrix, error) {
	m, ok := c.Matrices[activityType]
	if !ok {
		return domain.RiskMatrix{}, &errors.UnknownActivityError{Activity: activityType}
	}
	return m, nil
}

// Config returns the threshold configuration for the activity. Callers
// must not default on a miss.
func (c *Catalog) Config(activityType string) (domain.ThresholdConfig, error) {
	t, ok := c.Thresholds[activityType]
	if !ok {
		return domain.ThresholdConfig{}, &errors.UnknownActivityError{Activity: activityType}
	}
	return t, nil
}

// Activities lists the configured activity types in stable order.
func (c *Catalog) Activities() []string {
	out := make([]string, 0, len(c.Thresholds))
	for a := range c.Thresholds {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// MergedFactors returns the general factor set merged with the activity's
// specific set. Specific factors win on id collision.
func (c *Catalog) MergedFactors(activityType string) (map[string]domain.RiskFactor, error) {
	m, err := c.Matrix(activityType)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]domain.RiskFactor, len(c.GeneralFactors)+len(m.Factors))
	for id, f := range c.GeneralFactors {
		merged[id] = f
	}
	for id, f := range m.Factors {
		merged[id] = f
	}
	return merged, nil
}

// UnitsToCurrency converts a UMA-denominated amount into currency using
// the fiscal year's unit value. Pure conversion; no time lookups here.
func UnitsToCurrency(units, unitValue decimal.Decimal) decimal.Decimal {
	return units.Mul(unitValue)
}

// ApplyUnitValue rewrites every threshold's unit value for the active
// fiscal year before the catalog is handed to the engines.
func (c *Catalog) ApplyUnitValue(unitValue decimal.Decimal) {
	for activity, t := range c.Thresholds {
		t.UnitValue = unitValue
		c.Thresholds[activity] = t
	}
}
