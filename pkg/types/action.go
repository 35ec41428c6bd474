package types

import "time"

// ActionType is the kind of operation an agent proposes.
type ActionType string

const (
	ActionWrite         ActionType = "write"
	ActionEdit          ActionType = "edit"
	ActionDelete        ActionType = "delete"
	ActionResearch      ActionType = "research"
	ActionGenerateImage ActionType = "generate_image"
	ActionGenerateAudio ActionType = "generate_audio"
	ActionExternalAPI   ActionType = "external_api"
)

// Valid reports whether the action type is recognized.
func (t ActionType) Valid() bool {
	switch t {
	case ActionWrite, ActionEdit, ActionDelete, ActionResearch,
		ActionGenerateImage, ActionGenerateAudio, ActionExternalAPI:
		return true
	}
	return false
}

// TargetScope is the document region an action targets.
type TargetScope string

const (
	TargetDocument  TargetScope = "document"
	TargetSection   TargetScope = "section"
	TargetParagraph TargetScope = "paragraph"
	TargetSentence  TargetScope = "sentence"
)

// AgentAction is a proposed operation. Immutable once created; one action
// maps to exactly one permission decision. Word and length figures are the
// agent's declared estimates; policy thresholds are evaluated against the
// estimate, never against post-generation actuals.
type AgentAction struct {
	ID          string      `json:"id"`
	Type        ActionType  `json:"type"`
	DocumentID  string      `json:"documentID"`
	TargetScope TargetScope `json:"targetScope,omitempty"`

	Position      int `json:"position,omitempty"`
	Length        int `json:"length,omitempty"`
	ContentLength int `json:"contentLength,omitempty"`

	EstimatedWords     int   `json:"estimatedWords,omitempty"`
	EstimatedTokens    int   `json:"estimatedTokens,omitempty"`
	EstimatedCostCents int64 `json:"estimatedCostCents,omitempty"`

	// OldText and NewText carry the edited fragment when the caller has it,
	// enabling edit-distance based minor-edit detection.
	OldText string `json:"oldText,omitempty"`
	NewText string `json:"newText,omitempty"`

	RequestedAt time.Time  `json:"requestedAt"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

// ActionContext is a read-only snapshot supplied by the caller at evaluation
// time. Never persisted; reconstructed per call.
type ActionContext struct {
	UserID   string `json:"userID"`
	UserTier string `json:"userTier,omitempty"`

	DocumentID    string   `json:"documentID"`
	DocumentSize  int      `json:"documentSize,omitempty"`
	Collaborators []string `json:"collaborators,omitempty"`

	SessionID        string    `json:"sessionID"`
	SessionStart     time.Time `json:"sessionStart,omitempty"`
	SessionWords     int       `json:"sessionWords,omitempty"`
	SessionCostCents int64     `json:"sessionCostCents,omitempty"`

	DayWords     int   `json:"dayWords,omitempty"`
	DayCostCents int64 `json:"dayCostCents,omitempty"`

	Now                time.Time `json:"now"`
	RecentApprovalRate float64   `json:"recentApprovalRate,omitempty"`
}

// Decision is the outcome class of a permission evaluation.
type Decision string

const (
	DecisionAllowed          Decision = "allowed"
	DecisionDenied           Decision = "denied"
	DecisionRequiresApproval Decision = "requires_approval"
	DecisionRateLimited      Decision = "rate_limited"
	DecisionCostLimited      Decision = "cost_limited"
)

// EvaluationResult is the outcome of a permission evaluation. Value type,
// never mutated after construction.
type EvaluationResult struct {
	Decision Decision `json:"decision"`
	Reason   string   `json:"reason"`

	ApprovalScope   ApprovalScope `json:"approvalScope,omitempty"`
	ApprovalTimeout time.Duration `json:"approvalTimeout,omitempty"`

	// LimitType names the exhausted budget for rate/cost limited results,
	// e.g. "session_words" or "daily_cost".
	LimitType            string        `json:"limitType,omitempty"`
	RetryAfter           time.Duration `json:"retryAfter,omitempty"`
	RemainingWords       int           `json:"remainingWords,omitempty"`
	RemainingBudgetCents int64         `json:"remainingBudgetCents,omitempty"`
}

// Allowed is shorthand for a plain allowed result.
func Allowed(reason string) EvaluationResult {
	return EvaluationResult{Decision: DecisionAllowed, Reason: reason}
}

// Denied is shorthand for a denial with the given reason.
func Denied(reason string) EvaluationResult {
	return EvaluationResult{Decision: DecisionDenied, Reason: reason}
}

// NeedsApproval is shorthand for a requires-approval result at a scope.
func NeedsApproval(reason string, scope ApprovalScope) EvaluationResult {
	return EvaluationResult{Decision: DecisionRequiresApproval, Reason: reason, ApprovalScope: scope}
}
