// Package approval manages time-boxed human approval requests for agent
// actions. Each request transitions exactly once from pending to approved,
// rejected, expired, or withdrawn; a waiting caller is always released by a
// response, the expiry timer, or its own cancellation.
package approval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/inkwell-ai/inkwell/internal/event"
	"github.com/inkwell-ai/inkwell/internal/logging"
	"github.com/inkwell-ai/inkwell/internal/storage"
	"github.com/inkwell-ai/inkwell/pkg/types"
)

var (
	// ErrNotFound is returned for a request id that was never created.
	ErrNotFound = errors.New("approval request not found")
	// ErrAlreadyResolved is returned when responding to a request that has
	// already reached a terminal state. The second response has no effect.
	ErrAlreadyResolved = errors.New("approval request already resolved")
	// ErrExpired is returned when responding after the request's deadline.
	ErrExpired = errors.New("approval request expired")
)

// pending is a live request with its delivery channel and expiry timer.
type pending struct {
	req   types.ApprovalRequest
	ch    chan types.ApprovalResolution
	timer *time.Timer
}

// Pending is the caller's handle on an outstanding request.
type Pending struct {
	ID  string
	mgr *Manager
	ch  <-chan types.ApprovalResolution
}

// Await blocks until the request resolves or ctx is cancelled. Cancellation
// withdraws the request so it is never left orphaned.
func (p *Pending) Await(ctx context.Context) (types.ApprovalResolution, error) {
	select {
	case res := <-p.ch:
		return res, nil
	case <-ctx.Done():
		p.mgr.Withdraw(p.ID)
		return types.ApprovalResolution{}, ctx.Err()
	}
}

// Manager owns all approval requests for their lifetime.
type Manager struct {
	store         *storage.Storage
	bus           event.Broadcaster
	escalateAfter int

	mu         sync.Mutex
	pending    map[string]*pending
	terminal   map[string]types.ApprovalRequest // resolved, archive not yet landed
	rejections map[string]int                   // consecutive explicit rejections per agent
	closed     bool

	wg  sync.WaitGroup
	log zerolog.Logger
}

// NewManager creates a Manager. escalateAfter is the consecutive-rejection
// count at which resolutions start carrying an escalation signal. bus may be
// nil.
func NewManager(store *storage.Storage, bus event.Broadcaster, escalateAfter int) *Manager {
	return &Manager{
		store:         store,
		bus:           bus,
		escalateAfter: escalateAfter,
		pending:       make(map[string]*pending),
		terminal:      make(map[string]types.ApprovalRequest),
		rejections:    make(map[string]int),
		log:           logging.For("approval"),
	}
}

// Close stops expiry timers and waits for in-flight archives. Pending
// requests are left unresolved; their awaiters are released by their own
// contexts.
func (m *Manager) Close() {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		for _, p := range m.pending {
			p.timer.Stop()
		}
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// Request creates a pending approval, notifies the notification sink, and
// arms the expiry timer. The caller awaits the returned handle.
func (m *Manager) Request(ctx context.Context, agentID string, action types.AgentAction, scope types.ApprovalScope, timeout time.Duration) (*Pending, error) {
	if timeout <= 0 {
		return nil, fmt.Errorf("approval timeout must be positive, got %s", timeout)
	}

	now := time.Now()
	id := ulid.Make().String()
	p := &pending{
		req: types.ApprovalRequest{
			ID:              id,
			AgentInstanceID: agentID,
			Action:          action,
			Scope:           scope,
			Status:          types.ApprovalPending,
			CreatedAt:       now,
			ExpiresAt:       now.Add(timeout),
		},
		ch: make(chan types.ApprovalResolution, 1),
	}
	p.timer = time.AfterFunc(timeout, func() { m.expire(id) })

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		p.timer.Stop()
		return nil, fmt.Errorf("approval manager is shut down")
	}
	m.pending[id] = p
	m.mu.Unlock()

	m.log.Info().
		Str("request", id).
		Str("agent", agentID).
		Str("action", string(action.Type)).
		Time("expires", p.req.ExpiresAt).
		Msg("approval requested")

	if m.bus != nil {
		m.bus.Publish(event.Event{
			Type: event.ApprovalRequested,
			Data: event.ApprovalRequestedData{
				RequestID:          id,
				AgentInstanceID:    agentID,
				DocumentID:         action.DocumentID,
				ActionType:         action.Type,
				ActionDescription:  describeAction(action),
				ApprovalScope:      scope,
				ExpiresAt:          p.req.ExpiresAt,
				EstimatedCostCents: action.EstimatedCostCents,
			},
		})
	}

	return &Pending{ID: id, mgr: m, ch: p.ch}, nil
}

// Respond records a user's decision. A second response to the same request
// fails with ErrAlreadyResolved and changes nothing; a response after the
// deadline fails with ErrExpired.
func (m *Manager) Respond(requestID, userID string, approved bool, feedback string) (types.ApprovalResolution, error) {
	m.mu.Lock()
	p, ok := m.pending[requestID]
	if !ok {
		// Resolved requests stay in the terminal map until their archive
		// lands, so a racing second responder never falls through the gap to
		// a not-found.
		resolved, done := m.terminal[requestID]
		m.mu.Unlock()
		if !done {
			if err := m.store.Get(context.Background(), []string{"approval", requestID}, &resolved); err != nil {
				return types.ApprovalResolution{}, ErrNotFound
			}
		}
		if resolved.Status == types.ApprovalExpired {
			return types.ApprovalResolution{}, ErrExpired
		}
		return types.ApprovalResolution{}, ErrAlreadyResolved
	}

	if time.Now().After(p.req.ExpiresAt) {
		m.resolveLocked(p, types.ApprovalExpired, "", "approval timed out")
		m.mu.Unlock()
		return types.ApprovalResolution{}, ErrExpired
	}

	status := types.ApprovalRejected
	if approved {
		status = types.ApprovalApproved
	}
	res := m.resolveLocked(p, status, userID, feedback)
	m.mu.Unlock()
	return res, nil
}

// Withdraw marks a request withdrawn, e.g. when the awaiting caller's task
// was cancelled. Safe to call on an already-resolved request.
func (m *Manager) Withdraw(requestID string) {
	m.mu.Lock()
	p, ok := m.pending[requestID]
	if ok {
		m.resolveLocked(p, types.ApprovalWithdrawn, "", "caller cancelled")
	}
	m.mu.Unlock()
}

// expire is the timer path: auto-reject and release the waiting caller.
func (m *Manager) expire(requestID string) {
	m.mu.Lock()
	p, ok := m.pending[requestID]
	if ok && !m.closed {
		m.resolveLocked(p, types.ApprovalExpired, "", "approval timed out")
	}
	m.mu.Unlock()
}

// resolveLocked performs the single permitted terminal transition. Caller
// holds m.mu.
func (m *Manager) resolveLocked(p *pending, status types.ApprovalStatus, userID, feedback string) types.ApprovalResolution {
	delete(m.pending, p.req.ID)
	p.timer.Stop()

	now := time.Now()
	p.req.Status = status
	p.req.ResolvedAt = &now
	p.req.RespondedBy = userID
	p.req.Feedback = feedback

	agent := p.req.AgentInstanceID
	switch status {
	case types.ApprovalApproved:
		m.rejections[agent] = 0
	case types.ApprovalRejected:
		m.rejections[agent]++
	}
	escalate := m.escalateAfter > 0 && m.rejections[agent] >= m.escalateAfter

	res := types.ApprovalResolution{
		RequestID:           p.req.ID,
		Status:              status,
		Approved:            status == types.ApprovalApproved,
		Feedback:            feedback,
		EscalationSuggested: escalate,
	}

	// Buffered channel: delivery never blocks resolution, and a caller that
	// already gave up simply never reads it.
	select {
	case p.ch <- res:
	default:
	}

	req := p.req
	m.terminal[req.ID] = req
	m.wg.Add(1)
	go m.archive(req)

	m.log.Info().
		Str("request", req.ID).
		Str("agent", agent).
		Str("status", string(status)).
		Bool("escalate", escalate).
		Msg("approval resolved")

	if m.bus != nil {
		m.bus.Publish(event.Event{
			Type: event.ApprovalResolved,
			Data: event.ApprovalResolvedData{
				RequestID:           req.ID,
				AgentInstanceID:     agent,
				Status:              status,
				RespondedBy:         userID,
				EscalationSuggested: escalate,
			},
		})
	}
	return res
}

// archive persists a terminal request for audit and late-responder lookup.
// The terminal-map entry is dropped only once the write landed; on failure
// it stays so in-memory lookups keep resolving.
func (m *Manager) archive(req types.ApprovalRequest) {
	defer m.wg.Done()
	if err := m.store.Put(context.Background(), []string{"approval", req.ID}, req); err != nil {
		m.log.Warn().Err(err).Str("request", req.ID).Msg("approval archive failed")
		return
	}
	m.mu.Lock()
	delete(m.terminal, req.ID)
	m.mu.Unlock()
}

// Get returns a request by id, live or archived.
func (m *Manager) Get(ctx context.Context, requestID string) (types.ApprovalRequest, error) {
	m.mu.Lock()
	if p, ok := m.pending[requestID]; ok {
		req := p.req
		m.mu.Unlock()
		return req, nil
	}
	if req, ok := m.terminal[requestID]; ok {
		m.mu.Unlock()
		return req, nil
	}
	m.mu.Unlock()

	var req types.ApprovalRequest
	if err := m.store.Get(ctx, []string{"approval", requestID}, &req); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return types.ApprovalRequest{}, ErrNotFound
		}
		return types.ApprovalRequest{}, err
	}
	return req, nil
}

// PendingRequests lists live requests, oldest first.
func (m *Manager) PendingRequests() []types.ApprovalRequest {
	m.mu.Lock()
	reqs := make([]types.ApprovalRequest, 0, len(m.pending))
	for _, p := range m.pending {
		reqs = append(reqs, p.req)
	}
	m.mu.Unlock()

	sort.Slice(reqs, func(i, j int) bool { return reqs[i].CreatedAt.Before(reqs[j].CreatedAt) })
	return reqs
}

// ConsecutiveRejections reports the agent's current rejection streak.
func (m *Manager) ConsecutiveRejections(agentID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rejections[agentID]
}

func describeAction(a types.AgentAction) string {
	switch a.Type {
	case types.ActionWrite:
		return fmt.Sprintf("write ~%d units at position %d", a.ContentLength, a.Position)
	case types.ActionEdit:
		return fmt.Sprintf("edit ~%d units at position %d", a.ContentLength, a.Position)
	case types.ActionDelete:
		return fmt.Sprintf("delete %d units at position %d", a.Length, a.Position)
	default:
		return string(a.Type)
	}
}
