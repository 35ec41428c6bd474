package types

import "time"

// ApprovalStatus is the lifecycle state of an approval request.
// Transitions exactly once from pending to a terminal state.
type ApprovalStatus string

const (
	ApprovalPending   ApprovalStatus = "pending"
	ApprovalApproved  ApprovalStatus = "approved"
	ApprovalRejected  ApprovalStatus = "rejected"
	ApprovalExpired   ApprovalStatus = "expired"
	ApprovalWithdrawn ApprovalStatus = "withdrawn"
)

// Terminal reports whether the status is a terminal state.
func (s ApprovalStatus) Terminal() bool {
	return s != ApprovalPending
}

// ApprovalRequest is a time-boxed request for human sign-off on an agent
// action. Owned exclusively by the approval manager for its lifetime.
type ApprovalRequest struct {
	ID              string         `json:"id"`
	AgentInstanceID string         `json:"agentInstanceID"`
	Action          AgentAction    `json:"action"`
	Scope           ApprovalScope  `json:"scope"`
	Status          ApprovalStatus `json:"status"`
	CreatedAt       time.Time      `json:"createdAt"`
	ExpiresAt       time.Time      `json:"expiresAt"`
	ResolvedAt      *time.Time     `json:"resolvedAt,omitempty"`
	RespondedBy     string         `json:"respondedBy,omitempty"`
	Feedback        string         `json:"feedback,omitempty"`
}

// ApprovalResolution is delivered to the caller awaiting an approval.
type ApprovalResolution struct {
	RequestID string         `json:"requestID"`
	Status    ApprovalStatus `json:"status"`
	Approved  bool           `json:"approved"`
	Feedback  string         `json:"feedback,omitempty"`

	// EscalationSuggested is set when the agent has crossed the configured
	// consecutive-rejection threshold. Signal only; enforcement is the
	// caller's policy.
	EscalationSuggested bool `json:"escalationSuggested,omitempty"`
}
