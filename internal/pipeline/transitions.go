package pipeline

import "pld/internal/domain"

// Action names the pipeline operations for audit records and errors.
type Action string

const (
	ActionIngest       Action = "ingest"
	ActionMarkReviewed Action = "mark_reviewed"
	ActionEscalate     Action = "escalate"
	ActionMarkReported Action = "mark_reported"
)

type transition struct {
	From domain.OperationStatus
	To   domain.OperationStatus
}

// allowedTransitions is the full legal transition table. Escalation is
// one-way: once an operation is flagged for mandatory reporting, only the
// external reporting workflow may close it out. There is no de-escalate.
var allowedTransitions = map[Action][]transition{
	ActionMarkReviewed: {
		{domain.StatusPendingReview, domain.StatusPending},
	},
	ActionEscalate: {
		{domain.StatusPending, domain.StatusPendingReport},
		{domain.StatusPendingReview, domain.StatusPendingReport},
	},
	ActionMarkReported: {
		{domain.StatusPendingReport, domain.StatusReported},
		// Zero-declaration filings: a period report is due even though no
		// operations pushed the client past review.
		{domain.StatusPending, domain.StatusReported},
	},
}

// targetFor returns the destination status for an action from the given
// state, or false when the transition is not legal.
func targetFor(action Action, from domain.OperationStatus, zeroDeclaration bool) (domain.OperationStatus, bool) {
	for _, t := range allowedTransitions[action] {
		if t.From != from {
			continue
		}
		if action == ActionMarkReported && from == domain.StatusPending && !zeroDeclaration {
			continue
		}
		return t.To, true
	}
	return "", false
}
