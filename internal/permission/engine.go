package permission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"github.com/inkwell-ai/inkwell/internal/event"
	"github.com/inkwell-ai/inkwell/internal/logging"
	"github.com/inkwell-ai/inkwell/internal/storage"
	"github.com/inkwell-ai/inkwell/internal/usage"
	"github.com/inkwell-ai/inkwell/pkg/types"
)

// Engine evaluates whether a proposed agent action is allowed, denied,
// budget-limited, or needs human approval. Evaluation is read-only: usage is
// committed separately, after the action actually executed.
type Engine struct {
	store *storage.Storage
	usage *usage.Tracker
	bus   event.Broadcaster
	cache *permCache

	mu         sync.RWMutex
	cfg        types.EngineConfig
	usageCfg   types.UsageConfig
	evaluators map[types.AutonomyLevel]Evaluator

	log zerolog.Logger
}

// NewEngine creates an Engine. bus may be nil.
func NewEngine(store *storage.Storage, tracker *usage.Tracker, bus event.Broadcaster, cfg types.EngineConfig, usageCfg types.UsageConfig) *Engine {
	return &Engine{
		store:      store,
		usage:      tracker,
		bus:        bus,
		cache:      newPermCache(cfg.PermissionCacheTTL()),
		cfg:        cfg,
		usageCfg:   usageCfg,
		evaluators: newEvaluators(cfg),
		log:        logging.For("permission"),
	}
}

// Reconfigure swaps engine tunables, e.g. after a config reload.
func (e *Engine) Reconfigure(cfg types.EngineConfig, usageCfg types.UsageConfig) {
	e.mu.Lock()
	e.cfg = cfg
	e.usageCfg = usageCfg
	e.evaluators = newEvaluators(cfg)
	e.mu.Unlock()
	e.cache.setTTL(cfg.PermissionCacheTTL())
}

// Permissions resolves the stored permission record for an agent instance,
// consulting the cache first.
func (e *Engine) Permissions(ctx context.Context, agentID string) (*types.AgentPermissions, error) {
	if p, ok := e.cache.get(agentID); ok {
		return p, nil
	}

	var p types.AgentPermissions
	if err := e.store.Get(ctx, []string{"permission", agentID}, &p); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrPermissionsNotFound
		}
		return nil, err
	}
	e.cache.set(agentID, &p)
	return &p, nil
}

// UpdatePermissions validates and persists a permission record. The cache
// entry is invalidated synchronously before returning, so a reader can never
// observe permissions staler than this write.
func (e *Engine) UpdatePermissions(ctx context.Context, p *types.AgentPermissions, updatedBy string) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid permissions: %w", err)
	}
	p.UpdatedAt = time.Now()
	p.UpdatedBy = updatedBy

	if err := e.store.Put(ctx, []string{"permission", p.AgentInstanceID}, p); err != nil {
		return fmt.Errorf("persist permissions: %w", err)
	}
	e.cache.invalidate(p.AgentInstanceID)

	if e.bus != nil {
		e.bus.Publish(event.Event{
			Type: event.PermissionUpdated,
			Data: event.PermissionUpdatedData{
				AgentInstanceID: p.AgentInstanceID,
				UpdatedBy:       updatedBy,
				UpdatedAt:       p.UpdatedAt,
			},
		})
	}
	return nil
}

// Evaluate runs the full decision pipeline for one proposed action:
// permission lookup (fail closed), document scoping, capability flags, word
// budgets, cost budgets, working hours, then the level evaluator.
func (e *Engine) Evaluate(ctx context.Context, agentID string, action types.AgentAction, actx types.ActionContext) types.EvaluationResult {
	perms, err := e.Permissions(ctx, agentID)
	if err != nil {
		if !errors.Is(err, ErrPermissionsNotFound) {
			e.log.Error().Err(err).Str("agent", agentID).Msg("permission lookup failed")
		}
		return types.Denied("permissions not found")
	}

	e.mu.RLock()
	cfg := e.cfg
	usageCfg := e.usageCfg
	evaluator := e.evaluators[perms.AutonomyLevel]
	e.mu.RUnlock()

	if res, ok := e.checkDocumentScope(perms, action); !ok {
		return res
	}
	if res, ok := e.checkCapability(perms, action); !ok {
		return res
	}

	report := e.usage.Check(agentID, actx.SessionID)

	if res, ok := e.checkWordBudgets(perms, action, report, usageCfg); !ok {
		return res
	}
	if res, ok := e.checkCostBudgets(perms, action, report, usageCfg); !ok {
		return res
	}
	if res, ok := e.checkWorkingHours(perms, actx); !ok {
		return res
	}

	if evaluator == nil {
		// Unrecognized level in a stored record; fail closed.
		return types.Denied(fmt.Sprintf("unrecognized autonomy level %q", perms.AutonomyLevel))
	}

	result := evaluator.Evaluate(perms, action, actx)
	if result.Decision == types.DecisionRequiresApproval {
		if result.ApprovalScope == "" {
			result.ApprovalScope = perms.ApprovalScope
		}
		result.ApprovalTimeout = perms.ApprovalTimeout(cfg.DefaultApprovalTimeout())
	}
	return result
}

// checkDocumentScope enforces the AllowedDocuments glob patterns.
func (e *Engine) checkDocumentScope(p *types.AgentPermissions, a types.AgentAction) (types.EvaluationResult, bool) {
	if len(p.AllowedDocuments) == 0 || a.DocumentID == "" {
		return types.EvaluationResult{}, true
	}
	for _, pattern := range p.AllowedDocuments {
		if ok, err := doublestar.Match(pattern, a.DocumentID); err == nil && ok {
			return types.EvaluationResult{}, true
		}
	}
	return types.Denied(fmt.Sprintf("document %s is outside the agent's allowed scope", a.DocumentID)), false
}

// checkCapability enforces capability flags. An ungranted external API call
// at full autonomy is passed through so the level evaluator can route it to
// approval instead of a flat denial.
func (e *Engine) checkCapability(p *types.AgentPermissions, a types.AgentAction) (types.EvaluationResult, bool) {
	if !a.Type.Valid() {
		return types.Denied(fmt.Sprintf("unrecognized action type %q", a.Type)), false
	}
	if p.Capabilities.Allows(a.Type) {
		return types.EvaluationResult{}, true
	}
	if a.Type == types.ActionExternalAPI && p.AutonomyLevel == types.LevelFullyAutonomous {
		return types.EvaluationResult{}, true
	}
	return types.Denied(fmt.Sprintf("capability %s is not granted", a.Type)), false
}

// checkWordBudgets enforces per-action, session, and daily word caps, in
// that order. Per-action overage is a denial; window overages are rate
// limits with a concrete retry hint.
func (e *Engine) checkWordBudgets(p *types.AgentPermissions, a types.AgentAction, rep usage.Report, usageCfg types.UsageConfig) (types.EvaluationResult, bool) {
	words := a.EstimatedWords
	if words == 0 {
		words = a.ContentLength
	}
	if words == 0 {
		return types.EvaluationResult{}, true
	}

	if p.MaxWordsPerAction > 0 && words > p.MaxWordsPerAction {
		return types.Denied(fmt.Sprintf("action of %d words exceeds the %d word per-action cap", words, p.MaxWordsPerAction)), false
	}
	if p.MaxWordsPerSession > 0 && rep.SessionWords+words > p.MaxWordsPerSession {
		return types.EvaluationResult{
			Decision:       types.DecisionRateLimited,
			Reason:         fmt.Sprintf("session word budget exhausted (%d/%d used)", rep.SessionWords, p.MaxWordsPerSession),
			LimitType:      usage.LimitSessionWords,
			RetryAfter:     usageCfg.SessionRetry(),
			RemainingWords: p.MaxWordsPerSession - rep.SessionWords,
		}, false
	}
	if p.MaxWordsPerDay > 0 && rep.DayWords+words > p.MaxWordsPerDay {
		return types.EvaluationResult{
			Decision:       types.DecisionRateLimited,
			Reason:         fmt.Sprintf("daily word budget exhausted (%d/%d used)", rep.DayWords, p.MaxWordsPerDay),
			LimitType:      usage.LimitDailyWords,
			RetryAfter:     rep.DayResetsIn,
			RemainingWords: p.MaxWordsPerDay - rep.DayWords,
		}, false
	}
	return types.EvaluationResult{}, true
}

// checkCostBudgets mirrors the word checks for cost, in integer cents.
func (e *Engine) checkCostBudgets(p *types.AgentPermissions, a types.AgentAction, rep usage.Report, usageCfg types.UsageConfig) (types.EvaluationResult, bool) {
	cost := a.EstimatedCostCents
	if cost == 0 {
		return types.EvaluationResult{}, true
	}

	if p.MaxCostCentsPerAction > 0 && cost > p.MaxCostCentsPerAction {
		return types.Denied(fmt.Sprintf("estimated cost %d¢ exceeds the %d¢ per-action cap", cost, p.MaxCostCentsPerAction)), false
	}
	if p.MaxCostCentsPerSession > 0 && rep.SessionCostCents+cost > p.MaxCostCentsPerSession {
		return types.EvaluationResult{
			Decision:             types.DecisionCostLimited,
			Reason:               fmt.Sprintf("session cost budget exhausted (%d¢/%d¢ used)", rep.SessionCostCents, p.MaxCostCentsPerSession),
			LimitType:            usage.LimitSessionCost,
			RetryAfter:           usageCfg.SessionRetry(),
			RemainingBudgetCents: p.MaxCostCentsPerSession - rep.SessionCostCents,
		}, false
	}
	if p.MaxCostCentsPerDay > 0 && rep.DayCostCents+cost > p.MaxCostCentsPerDay {
		return types.EvaluationResult{
			Decision:             types.DecisionCostLimited,
			Reason:               fmt.Sprintf("daily cost budget exhausted (%d¢/%d¢ used)", rep.DayCostCents, p.MaxCostCentsPerDay),
			LimitType:            usage.LimitDailyCost,
			RetryAfter:           rep.DayResetsIn,
			RemainingBudgetCents: p.MaxCostCentsPerDay - rep.DayCostCents,
		}, false
	}
	return types.EvaluationResult{}, true
}

// checkWorkingHours denies actions outside the configured daily window.
func (e *Engine) checkWorkingHours(p *types.AgentPermissions, actx types.ActionContext) (types.EvaluationResult, bool) {
	if p.WorkingHours == nil {
		return types.EvaluationResult{}, true
	}
	now := actx.Now
	if now.IsZero() {
		now = time.Now()
	}
	if p.WorkingHours.Contains(now) {
		return types.EvaluationResult{}, true
	}
	return types.Denied(fmt.Sprintf("outside working hours (%02d:00-%02d:00 UTC)", p.WorkingHours.StartHour, p.WorkingHours.EndHour)), false
}
