package types

import (
	"fmt"
	"time"
)

// AutonomyLevel is the tier of independence granted to an agent on a document.
// Levels are ordered: assistant < collaborative < semi_autonomous < fully_autonomous.
type AutonomyLevel string

const (
	LevelAssistant       AutonomyLevel = "assistant"
	LevelCollaborative   AutonomyLevel = "collaborative"
	LevelSemiAutonomous  AutonomyLevel = "semi_autonomous"
	LevelFullyAutonomous AutonomyLevel = "fully_autonomous"
)

// Valid reports whether the level is one of the recognized tiers.
func (l AutonomyLevel) Valid() bool {
	switch l {
	case LevelAssistant, LevelCollaborative, LevelSemiAutonomous, LevelFullyAutonomous:
		return true
	}
	return false
}

// ApprovalScope is the granularity at which a pending action is presented
// for human approval.
type ApprovalScope string

const (
	ScopeAction    ApprovalScope = "action"
	ScopeParagraph ApprovalScope = "paragraph"
	ScopeSection   ApprovalScope = "section"
	ScopeDocument  ApprovalScope = "document"
	ScopeProject   ApprovalScope = "project"
)

// Valid reports whether the scope is recognized.
func (s ApprovalScope) Valid() bool {
	switch s {
	case ScopeAction, ScopeParagraph, ScopeSection, ScopeDocument, ScopeProject:
		return true
	}
	return false
}

// DefaultScopeForLevel returns the approval scope applied when a permission
// record does not name one explicitly.
func DefaultScopeForLevel(level AutonomyLevel) ApprovalScope {
	switch level {
	case LevelAssistant:
		return ScopeAction
	case LevelCollaborative:
		return ScopeParagraph
	case LevelSemiAutonomous:
		return ScopeSection
	case LevelFullyAutonomous:
		return ScopeDocument
	}
	return ScopeAction
}

// Capabilities are the per-operation flags an agent may be granted.
type Capabilities struct {
	Write         bool `json:"write"`
	Edit          bool `json:"edit"`
	Delete        bool `json:"delete"`
	Research      bool `json:"research"`
	GenerateImage bool `json:"generateImage"`
	GenerateAudio bool `json:"generateAudio"`
	ExternalAPI   bool `json:"externalAPI"`
}

// Allows reports whether the capability flag for the given action type is set.
func (c Capabilities) Allows(t ActionType) bool {
	switch t {
	case ActionWrite:
		return c.Write
	case ActionEdit:
		return c.Edit
	case ActionDelete:
		return c.Delete
	case ActionResearch:
		return c.Research
	case ActionGenerateImage:
		return c.GenerateImage
	case ActionGenerateAudio:
		return c.GenerateAudio
	case ActionExternalAPI:
		return c.ExternalAPI
	}
	return false
}

// WorkingHours restricts agent activity to a daily window. Hours are in UTC.
// A window may wrap midnight (StartHour > EndHour).
type WorkingHours struct {
	StartHour int `json:"startHour"`
	EndHour   int `json:"endHour"`
}

// Contains reports whether t falls inside the window.
func (w WorkingHours) Contains(t time.Time) bool {
	h := t.UTC().Hour()
	if w.StartHour <= w.EndHour {
		return h >= w.StartHour && h < w.EndHour
	}
	return h >= w.StartHour || h < w.EndHour
}

// ContentFilterLevel controls downstream content-safety strictness.
type ContentFilterLevel string

const (
	FilterOff      ContentFilterLevel = "off"
	FilterStandard ContentFilterLevel = "standard"
	FilterStrict   ContentFilterLevel = "strict"
)

// AgentPermissions is the user-owned permission configuration attached to one
// agent-instance/document pair. The engine never mutates it; usage counters
// live in the usage tracker, not here. All cost figures are integer cents.
type AgentPermissions struct {
	AgentInstanceID string        `json:"agentInstanceID"`
	AutonomyLevel   AutonomyLevel `json:"autonomyLevel"`
	ApprovalScope   ApprovalScope `json:"approvalScope,omitempty"`

	Capabilities Capabilities `json:"capabilities"`

	MaxWordsPerAction  int `json:"maxWordsPerAction,omitempty"`
	MaxWordsPerSession int `json:"maxWordsPerSession,omitempty"`
	MaxWordsPerDay     int `json:"maxWordsPerDay,omitempty"`

	MaxCostCentsPerAction  int64 `json:"maxCostCentsPerAction,omitempty"`
	MaxCostCentsPerSession int64 `json:"maxCostCentsPerSession,omitempty"`
	MaxCostCentsPerDay     int64 `json:"maxCostCentsPerDay,omitempty"`

	WorkingHours *WorkingHours `json:"workingHours,omitempty"`

	ContentFilter          ContentFilterLevel `json:"contentFilter,omitempty"`
	ApprovalTimeoutMinutes int                `json:"approvalTimeoutMinutes,omitempty"`
	AutoApproveMinorEdits  bool               `json:"autoApproveMinorEdits"`
	PreferredProviders     []string           `json:"preferredProviders,omitempty"`

	// AllowedDocuments holds doublestar glob patterns the target document id
	// must match. Empty means any document.
	AllowedDocuments []string `json:"allowedDocuments,omitempty"`

	UpdatedAt time.Time `json:"updatedAt,omitempty"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
}

// Validate checks internal consistency and fills the default approval scope.
func (p *AgentPermissions) Validate() error {
	if p.AgentInstanceID == "" {
		return fmt.Errorf("agentInstanceID is required")
	}
	if !p.AutonomyLevel.Valid() {
		return fmt.Errorf("unrecognized autonomy level %q", p.AutonomyLevel)
	}
	if p.ApprovalScope == "" {
		p.ApprovalScope = DefaultScopeForLevel(p.AutonomyLevel)
	} else if !p.ApprovalScope.Valid() {
		return fmt.Errorf("unrecognized approval scope %q", p.ApprovalScope)
	}
	if p.MaxWordsPerSession > 0 && p.MaxWordsPerDay > 0 && p.MaxWordsPerSession > p.MaxWordsPerDay {
		return fmt.Errorf("session word limit %d exceeds daily limit %d", p.MaxWordsPerSession, p.MaxWordsPerDay)
	}
	if p.MaxCostCentsPerSession > 0 && p.MaxCostCentsPerDay > 0 && p.MaxCostCentsPerSession > p.MaxCostCentsPerDay {
		return fmt.Errorf("session cost limit %d exceeds daily limit %d", p.MaxCostCentsPerSession, p.MaxCostCentsPerDay)
	}
	if p.ContentFilter == "" {
		p.ContentFilter = FilterStandard
	}
	return nil
}

// ApprovalTimeout returns the configured approval timeout, or fallback when
// the permission record does not set one.
func (p *AgentPermissions) ApprovalTimeout(fallback time.Duration) time.Duration {
	if p.ApprovalTimeoutMinutes > 0 {
		return time.Duration(p.ApprovalTimeoutMinutes) * time.Minute
	}
	return fallback
}

// DefaultPermissions returns a conservative permission record for the given
// level: all content capabilities on, external API off, no limits.
func DefaultPermissions(agentInstanceID string, level AutonomyLevel) *AgentPermissions {
	return &AgentPermissions{
		AgentInstanceID: agentInstanceID,
		AutonomyLevel:   level,
		ApprovalScope:   DefaultScopeForLevel(level),
		Capabilities: Capabilities{
			Write:         true,
			Edit:          true,
			Delete:        true,
			Research:      true,
			GenerateImage: true,
			GenerateAudio: true,
		},
		ContentFilter: FilterStandard,
	}
}
