package permission

import (
	"fmt"

	"github.com/agnivade/levenshtein"

	"github.com/inkwell-ai/inkwell/pkg/types"
)

// Evaluator encodes the approval policy of one autonomy level. Evaluators
// are pure functions, invoked only after the engine's capability, budget,
// and time checks have passed.
type Evaluator interface {
	Evaluate(p *types.AgentPermissions, a types.AgentAction, ctx types.ActionContext) types.EvaluationResult
}

// newEvaluators builds the per-level dispatch table. Adding a level is a new
// entry here, not a scattered edit.
func newEvaluators(cfg types.EngineConfig) map[types.AutonomyLevel]Evaluator {
	return map[types.AutonomyLevel]Evaluator{
		types.LevelAssistant:       assistantEvaluator{},
		types.LevelCollaborative:   collaborativeEvaluator{minorThreshold: cfg.MinorEditThreshold},
		types.LevelSemiAutonomous:  semiAutonomousEvaluator{moderateThreshold: cfg.ModerateEditThreshold},
		types.LevelFullyAutonomous: fullyAutonomousEvaluator{},
	}
}

// contentEstimate is the declared size the thresholds are evaluated against.
// Actual generated length exceeding the estimate is a post-hoc policy
// violation reported elsewhere, never a reason to re-gate here.
func contentEstimate(a types.AgentAction) int {
	if a.ContentLength > 0 {
		return a.ContentLength
	}
	return a.EstimatedWords
}

// assistantEvaluator: every action needs approval, no exceptions.
type assistantEvaluator struct{}

func (assistantEvaluator) Evaluate(p *types.AgentPermissions, a types.AgentAction, ctx types.ActionContext) types.EvaluationResult {
	return types.NeedsApproval(
		fmt.Sprintf("assistant level requires approval for every %s action", a.Type),
		types.ScopeAction,
	)
}

// collaborativeEvaluator: research runs free, small edits may be
// auto-approved, all other content mutations need paragraph-scoped approval.
type collaborativeEvaluator struct {
	minorThreshold int
}

func (e collaborativeEvaluator) Evaluate(p *types.AgentPermissions, a types.AgentAction, ctx types.ActionContext) types.EvaluationResult {
	switch a.Type {
	case types.ActionResearch:
		return types.Allowed("research is unrestricted at collaborative level")
	case types.ActionEdit:
		if p.AutoApproveMinorEdits && e.isMinorEdit(a) {
			return types.Allowed("minor edit auto-approved")
		}
		return types.NeedsApproval("edits require approval at collaborative level", types.ScopeParagraph)
	case types.ActionWrite, types.ActionDelete:
		return types.NeedsApproval(
			fmt.Sprintf("%s requires approval at collaborative level", a.Type),
			types.ScopeParagraph,
		)
	default:
		return types.Allowed(fmt.Sprintf("%s permitted at collaborative level", a.Type))
	}
}

// isMinorEdit prefers the real edit distance when the caller supplied the
// edited fragment, and falls back to the declared content length.
func (e collaborativeEvaluator) isMinorEdit(a types.AgentAction) bool {
	if a.OldText != "" && a.NewText != "" {
		return levenshtein.ComputeDistance(a.OldText, a.NewText) <= e.minorThreshold
	}
	return contentEstimate(a) <= e.minorThreshold
}

// semiAutonomousEvaluator: moderate writes and edits run free, large ones
// need section-scoped approval, deletes always need sign-off.
type semiAutonomousEvaluator struct {
	moderateThreshold int
}

func (e semiAutonomousEvaluator) Evaluate(p *types.AgentPermissions, a types.AgentAction, ctx types.ActionContext) types.EvaluationResult {
	switch a.Type {
	case types.ActionResearch, types.ActionGenerateImage, types.ActionGenerateAudio:
		return types.Allowed(fmt.Sprintf("%s is unrestricted at semi-autonomous level", a.Type))
	case types.ActionWrite, types.ActionEdit:
		if contentEstimate(a) <= e.moderateThreshold {
			return types.Allowed(fmt.Sprintf("%s within autonomous threshold", a.Type))
		}
		return types.NeedsApproval(
			fmt.Sprintf("%s of %d units exceeds the %d unit threshold", a.Type, contentEstimate(a), e.moderateThreshold),
			types.ScopeSection,
		)
	case types.ActionDelete:
		return types.NeedsApproval("deletes require approval at semi-autonomous level", types.ScopeAction)
	default:
		return types.Allowed(fmt.Sprintf("%s permitted at semi-autonomous level", a.Type))
	}
}

// fullyAutonomousEvaluator: content operations run free; document-scale
// deletes and ungranted external API calls still need approval. The external
// API case is deliberate defense-in-depth: the capability check would deny
// it outright, approval offers an override path.
type fullyAutonomousEvaluator struct{}

func (fullyAutonomousEvaluator) Evaluate(p *types.AgentPermissions, a types.AgentAction, ctx types.ActionContext) types.EvaluationResult {
	switch a.Type {
	case types.ActionDelete:
		if a.TargetScope == types.TargetDocument || a.TargetScope == types.TargetSection {
			return types.NeedsApproval("large-scale deletes require approval even at full autonomy", types.ScopeDocument)
		}
		return types.Allowed("delete permitted at fully-autonomous level")
	case types.ActionExternalAPI:
		if !p.Capabilities.ExternalAPI {
			return types.NeedsApproval("external API access is not granted; approval may override", types.ScopeAction)
		}
		return types.Allowed("external API permitted at fully-autonomous level")
	default:
		return types.Allowed(fmt.Sprintf("%s permitted at fully-autonomous level", a.Type))
	}
}
