package event

import (
	"time"

	"github.com/inkwell-ai/inkwell/pkg/types"
)

// DocumentCreatedData is the payload for document.created events.
type DocumentCreatedData struct {
	State *types.DocumentState `json:"state"`
}

// DocumentChangeAppliedData is the payload for document.change.applied
// events, matching the presentation-surface contract.
type DocumentChangeAppliedData struct {
	ChangeID   string         `json:"changeID"`
	DocumentID string         `json:"documentID"`
	ActorID    string         `json:"actorID"`
	Operation  types.ChangeOp `json:"operation"`
	Position   int            `json:"position"`
	Length     int            `json:"length,omitempty"`
	Content    string         `json:"content,omitempty"`
	Version    int64          `json:"version"`
	Timestamp  time.Time      `json:"timestamp"`
}

// DocumentRevertedData is the payload for document.reverted events.
type DocumentRevertedData struct {
	DocumentID  string `json:"documentID"`
	FromVersion int64  `json:"fromVersion"`
	ToVersion   int64  `json:"toVersion"`
	ActorID     string `json:"actorID"`
}

// ApprovalRequestedData is the payload for approval.requested events,
// matching the notification-sink contract.
type ApprovalRequestedData struct {
	RequestID          string              `json:"requestID"`
	AgentInstanceID    string              `json:"agentID"`
	DocumentID         string              `json:"documentID,omitempty"`
	ActionType         types.ActionType    `json:"actionType"`
	ActionDescription  string              `json:"actionDescription"`
	ApprovalScope      types.ApprovalScope `json:"approvalScope"`
	ExpiresAt          time.Time           `json:"expiresAt"`
	EstimatedCostCents int64               `json:"estimatedCost,omitempty"`
}

// ApprovalResolvedData is the payload for approval.resolved events.
type ApprovalResolvedData struct {
	RequestID           string               `json:"requestID"`
	AgentInstanceID     string               `json:"agentID"`
	Status              types.ApprovalStatus `json:"status"`
	RespondedBy         string               `json:"respondedBy,omitempty"`
	EscalationSuggested bool                 `json:"escalationSuggested,omitempty"`
}

// PermissionUpdatedData is the payload for permission.updated events.
type PermissionUpdatedData struct {
	AgentInstanceID string    `json:"agentID"`
	UpdatedBy       string    `json:"updatedBy"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// UsageRecordedData is the payload for usage.recorded events.
type UsageRecordedData struct {
	AgentInstanceID string `json:"agentID"`
	SessionID       string `json:"sessionID"`
	Words           int    `json:"words"`
	CostCents       int64  `json:"costCents"`
}
