package approval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-ai/inkwell/internal/storage"
	"github.com/inkwell-ai/inkwell/pkg/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(storage.New(t.TempDir()), nil, 3)
	t.Cleanup(m.Close)
	return m
}

func writeAction() types.AgentAction {
	return types.AgentAction{
		ID:            "action-1",
		Type:          types.ActionWrite,
		DocumentID:    "doc-1",
		ContentLength: 120,
	}
}

func TestApproveReleasesAwaiter(t *testing.T) {
	m := newTestManager(t)

	p, err := m.Request(context.Background(), "agent-1", writeAction(), types.ScopeParagraph, time.Minute)
	require.NoError(t, err)

	go func() {
		_, err := m.Respond(p.ID, "user-1", true, "looks good")
		assert.NoError(t, err)
	}()

	res, err := p.Await(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Approved)
	assert.Equal(t, types.ApprovalApproved, res.Status)
	assert.Equal(t, "looks good", res.Feedback)
}

func TestSecondResponseHasNoEffect(t *testing.T) {
	m := newTestManager(t)

	p, err := m.Request(context.Background(), "agent-1", writeAction(), types.ScopeAction, time.Minute)
	require.NoError(t, err)

	_, err = m.Respond(p.ID, "user-1", true, "")
	require.NoError(t, err)

	// The losing responder gets an error and cannot flip the outcome.
	_, err = m.Respond(p.ID, "user-2", false, "")
	assert.ErrorIs(t, err, ErrAlreadyResolved)

	res, err := p.Await(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Approved)

	req, err := m.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ApprovalApproved, req.Status)
}

func TestSecondResponderAlwaysSeesResolution(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	// The archive write is asynchronous; the losing responder must still see
	// the resolution, however quickly it follows the winner.
	for i := 0; i < 100; i++ {
		p, err := m.Request(ctx, "agent-1", writeAction(), types.ScopeAction, time.Minute)
		require.NoError(t, err)
		_, err = m.Respond(p.ID, "user-1", true, "")
		require.NoError(t, err)
		_, err = m.Respond(p.ID, "user-2", false, "")
		require.ErrorIs(t, err, ErrAlreadyResolved)
	}
}

func TestExpiryAutoRejects(t *testing.T) {
	m := newTestManager(t)

	p, err := m.Request(context.Background(), "agent-1", writeAction(), types.ScopeAction, 30*time.Millisecond)
	require.NoError(t, err)

	res, err := p.Await(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Approved)
	assert.Equal(t, types.ApprovalExpired, res.Status)

	// A response arriving after expiry is reported as expired, not lost.
	_, err = m.Respond(p.ID, "user-1", true, "")
	assert.ErrorIs(t, err, ErrExpired)
}

func TestAwaitCancellationWithdraws(t *testing.T) {
	m := newTestManager(t)

	p, err := m.Request(context.Background(), "agent-1", writeAction(), types.ScopeAction, time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.Await(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Empty(t, m.PendingRequests())
	req, err := m.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ApprovalWithdrawn, req.Status)
}

func TestCloseFlushesArchives(t *testing.T) {
	store := storage.New(t.TempDir())
	m := NewManager(store, nil, 3)

	p, err := m.Request(context.Background(), "agent-1", writeAction(), types.ScopeAction, time.Minute)
	require.NoError(t, err)
	_, err = m.Respond(p.ID, "user-1", true, "")
	require.NoError(t, err)

	m.Close()

	// The archive landed before Close returned.
	var archived types.ApprovalRequest
	require.NoError(t, store.Get(context.Background(), []string{"approval", p.ID}, &archived))
	assert.Equal(t, types.ApprovalApproved, archived.Status)

	// A closed manager takes no new requests.
	_, err = m.Request(context.Background(), "agent-1", writeAction(), types.ScopeAction, time.Minute)
	assert.Error(t, err)
}

func TestRespondUnknownRequest(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Respond("no-such-request", "user-1", true, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRejectionStreakTriggersEscalation(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	var last types.ApprovalResolution
	for i := 0; i < 3; i++ {
		p, err := m.Request(ctx, "agent-1", writeAction(), types.ScopeAction, time.Minute)
		require.NoError(t, err)
		last, err = m.Respond(p.ID, "user-1", false, "not like this")
		require.NoError(t, err)
	}

	assert.True(t, last.EscalationSuggested)
	assert.Equal(t, 3, m.ConsecutiveRejections("agent-1"))
}

func TestApprovalResetsRejectionStreak(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		p, err := m.Request(ctx, "agent-1", writeAction(), types.ScopeAction, time.Minute)
		require.NoError(t, err)
		_, err = m.Respond(p.ID, "user-1", false, "")
		require.NoError(t, err)
	}
	require.Equal(t, 2, m.ConsecutiveRejections("agent-1"))

	p, err := m.Request(ctx, "agent-1", writeAction(), types.ScopeAction, time.Minute)
	require.NoError(t, err)
	res, err := m.Respond(p.ID, "user-1", true, "")
	require.NoError(t, err)

	assert.False(t, res.EscalationSuggested)
	assert.Zero(t, m.ConsecutiveRejections("agent-1"))
}

func TestExpiryDoesNotCountAsRejection(t *testing.T) {
	m := newTestManager(t)

	p, err := m.Request(context.Background(), "agent-1", writeAction(), types.ScopeAction, 20*time.Millisecond)
	require.NoError(t, err)
	_, err = p.Await(context.Background())
	require.NoError(t, err)

	assert.Zero(t, m.ConsecutiveRejections("agent-1"))
}

func TestPendingRequestsOldestFirst(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	first, err := m.Request(ctx, "agent-1", writeAction(), types.ScopeAction, time.Minute)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := m.Request(ctx, "agent-2", writeAction(), types.ScopeAction, time.Minute)
	require.NoError(t, err)

	reqs := m.PendingRequests()
	require.Len(t, reqs, 2)
	assert.Equal(t, first.ID, reqs[0].ID)
	assert.Equal(t, second.ID, reqs[1].ID)
}

func TestRequestRejectsNonPositiveTimeout(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Request(context.Background(), "agent-1", writeAction(), types.ScopeAction, 0)
	assert.Error(t, err)
}
