package catalog

import (
	"encoding/json"
	"os"

	"pld/internal/domain"
	"pld/pkg/errors"

	"github.com/shopspring/decimal"
)

// File is the on-disk catalog format consumed by cmd/seed and tests.
type File struct {
	Version        string              `json:"version"`
	GeneralFactors []domain.RiskFactor `json:"general_factors"`
	Activities     []FileActivity      `json:"activities"`
}

// FileActivity bundles one activity's matrix and thresholds.
type FileActivity struct {
	ActivityType                 string              `json:"activity_type"`
	Factors                      []domain.RiskFactor `json:"factors"`
	TierTable                    []domain.TierRange  `json:"tier_table"`
	IdentificationThresholdUnits decimal.Decimal     `json:"identification_threshold_units"`
	ReportingThresholdUnits      decimal.Decimal     `json:"reporting_threshold_units"`
	WindowMonths                 int                 `json:"window_months"`
	UnitValue                    decimal.Decimal     `json:"unit_value"`
}

// LoadFile reads and validates a catalog file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read catalog file")
	}
	return Parse(data)
}

// Parse builds a validated Catalog from raw JSON.
func Parse(data []byte) (*Catalog, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "failed to parse catalog")
	}
	return FromFile(&f)
}

// FromFile converts the file representation into a validated Catalog.
func FromFile(f *File) (*Catalog, error) {
	general := make(map[string]domain.RiskFactor, len(f.GeneralFactors))
	for _, rf := range f.GeneralFactors {
		general[rf.ID] = rf
	}

	matrices := make(map[string]domain.RiskMatrix, len(f.Activities))
	thresholds := make(map[string]domain.ThresholdConfig, len(f.Activities))
	for _, a := range f.Activities {
		factors := make(map[string]domain.RiskFactor, len(a.Factors))
		for _, rf := range a.Factors {
			factors[rf.ID] = rf
		}
		matrices[a.ActivityType] = domain.RiskMatrix{
			ActivityType: a.ActivityType,
			Factors:      factors,
			TierTable:    a.TierTable,
		}
		windowMonths := a.WindowMonths
		if windowMonths == 0 {
			windowMonths = 6
		}
		thresholds[a.ActivityType] = domain.ThresholdConfig{
			ActivityType:                 a.ActivityType,
			IdentificationThresholdUnits: a.IdentificationThresholdUnits,
			ReportingThresholdUnits:      a.ReportingThresholdUnits,
			WindowMonths:                 windowMonths,
			UnitValue:                    a.UnitValue,
		}
	}

	return New(f.Version, general, matrices, thresholds)
}
