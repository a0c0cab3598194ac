package accumulation

import (
	"pld/internal/domain"

	"github.com/shopspring/decimal"
)

// Summary is the dashboard aggregation over an operation set.
type Summary struct {
	ByRiskLevel        map[domain.RiskLevel]int       `json:"by_risk_level"`
	ByStatus           map[domain.OperationStatus]int `json:"by_status"`
	PendingReportCount int                            `json:"pending_report_count"`
	TotalAmount        decimal.Decimal                `json:"total_amount"`
	OperationCount     int                            `json:"operation_count"`
}

// Summarize aggregates operations by risk level and pipeline status.
func Summarize(operations []domain.Operation) Summary {
	s := Summary{
		ByRiskLevel: make(map[domain.RiskLevel]int),
		ByStatus:    make(map[domain.OperationStatus]int),
		TotalAmount: decimal.Zero,
	}

	for _, op := range operations {
		s.ByRiskLevel[op.RiskLevel]++
		s.ByStatus[op.Status]++
		if op.Status == domain.StatusPendingReport {
			s.PendingReportCount++
		}
		s.TotalAmount = s.TotalAmount.Add(op.Amount)
		s.OperationCount++
	}

	return s
}
