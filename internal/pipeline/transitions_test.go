package pipeline

import (
	"testing"

	"pld/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestTargetFor(t *testing.T) {
	tests := []struct {
		name            string
		action          Action
		from            domain.OperationStatus
		zeroDeclaration bool
		want            domain.OperationStatus
		ok              bool
	}{
		{"review from pending_review", ActionMarkReviewed, domain.StatusPendingReview, false, domain.StatusPending, true},
		{"review from pending rejected", ActionMarkReviewed, domain.StatusPending, false, "", false},
		{"review from pending_report rejected", ActionMarkReviewed, domain.StatusPendingReport, false, "", false},
		{"review from reported rejected", ActionMarkReviewed, domain.StatusReported, false, "", false},

		{"escalate from pending", ActionEscalate, domain.StatusPending, false, domain.StatusPendingReport, true},
		{"escalate from pending_review", ActionEscalate, domain.StatusPendingReview, false, domain.StatusPendingReport, true},
		{"escalate from pending_report rejected", ActionEscalate, domain.StatusPendingReport, false, "", false},
		{"escalate from reported rejected", ActionEscalate, domain.StatusReported, false, "", false},

		{"report from pending_report", ActionMarkReported, domain.StatusPendingReport, false, domain.StatusReported, true},
		{"report from pending needs zero declaration", ActionMarkReported, domain.StatusPending, false, "", false},
		{"zero declaration report from pending", ActionMarkReported, domain.StatusPending, true, domain.StatusReported, true},
		{"report from pending_review rejected", ActionMarkReported, domain.StatusPendingReview, false, "", false},
		{"report from reported rejected", ActionMarkReported, domain.StatusReported, false, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := targetFor(tt.action, tt.from, tt.zeroDeclaration)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
