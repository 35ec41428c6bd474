package document

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-ai/inkwell/internal/storage"
	"github.com/inkwell-ai/inkwell/pkg/types"
)

func newTestDocManager(t *testing.T) *Manager {
	t.Helper()
	cfg := types.DefaultConfig().Document
	return NewManager(storage.New(t.TempDir()), nil, cfg)
}

func TestCreateAndGetState(t *testing.T) {
	m := newTestDocManager(t)
	ctx := context.Background()

	state, err := m.Create(ctx, "doc-1", "Hello world", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), state.Version)
	assert.Equal(t, 2, state.WordCount)

	got, err := m.GetState(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Hello world", got.Content)

	// Returned state is a copy; mutating it does not leak back.
	got.Content = "tampered"
	again, err := m.GetState(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Hello world", again.Content)
}

func TestCreateDuplicateFails(t *testing.T) {
	m := newTestDocManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, "doc-1", "", "alice")
	require.NoError(t, err)
	_, err = m.Create(ctx, "doc-1", "", "alice")
	assert.Error(t, err)
}

func TestCreateGeneratesID(t *testing.T) {
	m := newTestDocManager(t)
	state, err := m.Create(context.Background(), "", "x", "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, state.ID)
}

func TestGetStateNotFound(t *testing.T) {
	m := newTestDocManager(t)
	_, err := m.GetState(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestApplyInsertDeleteReplace(t *testing.T) {
	m := newTestDocManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, "doc-1", "Hello world", "alice")
	require.NoError(t, err)

	state, err := m.Apply(ctx, types.DocumentChange{
		DocumentID: "doc-1",
		Op:         types.OpInsert,
		Position:   5,
		Content:    " brave",
		ActorID:    "alice",
		Source:     types.SourceHuman,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello brave world", state.Content)
	assert.Equal(t, int64(2), state.Version)

	state, err = m.Apply(ctx, types.DocumentChange{
		DocumentID: "doc-1",
		Op:         types.OpReplace,
		Position:   6,
		Length:     5,
		Content:    "cruel",
		ActorID:    "alice",
		Source:     types.SourceHuman,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello cruel world", state.Content)

	state, err = m.Apply(ctx, types.DocumentChange{
		DocumentID: "doc-1",
		Op:         types.OpDelete,
		Position:   5,
		Length:     6,
		ActorID:    "alice",
		Source:     types.SourceHuman,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello world", state.Content)
	assert.Equal(t, int64(4), state.Version)
}

func TestApplyRejectsInvalidChanges(t *testing.T) {
	m := newTestDocManager(t)
	ctx := context.Background()
	_, err := m.Create(ctx, "doc-1", "short", "alice")
	require.NoError(t, err)

	tests := []struct {
		name   string
		change types.DocumentChange
	}{
		{"unknown op", types.DocumentChange{DocumentID: "doc-1", Op: "rotate", ActorID: "a"}},
		{"negative position", types.DocumentChange{DocumentID: "doc-1", Op: types.OpInsert, Position: -1, ActorID: "a"}},
		{"insert beyond end", types.DocumentChange{DocumentID: "doc-1", Op: types.OpInsert, Position: 100, Content: "x", ActorID: "a"}},
		{"delete beyond end", types.DocumentChange{DocumentID: "doc-1", Op: types.OpDelete, Position: 3, Length: 50, ActorID: "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Apply(ctx, tt.change)
			assert.Error(t, err)
		})
	}
}

func TestApplyUnknownDocument(t *testing.T) {
	m := newTestDocManager(t)
	_, err := m.Apply(context.Background(), types.DocumentChange{
		DocumentID: "missing",
		Op:         types.OpInsert,
		Content:    "x",
		ActorID:    "a",
	})
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestNonOverlappingConcurrentChangesBothApply(t *testing.T) {
	m := newTestDocManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, "doc-1", "The quick brown fox jumps over the lazy dog", "system")
	require.NoError(t, err)

	_, err = m.Apply(ctx, types.DocumentChange{
		DocumentID: "doc-1",
		Op:         types.OpReplace,
		Position:   35,
		Length:     4,
		Content:    "sleepy",
		ActorID:    "alice",
		Source:     types.SourceHuman,
	})
	require.NoError(t, err)

	// Bob edits the head while alice edited the tail; neither blocks the other.
	state, err := m.Apply(ctx, types.DocumentChange{
		DocumentID: "doc-1",
		Op:         types.OpReplace,
		Position:   0,
		Length:     3,
		Content:    "A",
		ActorID:    "bob",
		Source:     types.SourceHuman,
	})
	require.NoError(t, err)
	assert.Equal(t, "A quick brown fox jumps over the sleepy dog", state.Content)
}

func TestOverlappingChangeFromSecondActorIsAdjusted(t *testing.T) {
	m := newTestDocManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, "doc-1", "Hello world", "system")
	require.NoError(t, err)

	_, err = m.Apply(ctx, types.DocumentChange{
		DocumentID: "doc-1",
		Op:         types.OpInsert,
		Position:   5,
		Content:    " there",
		ActorID:    "alice",
		Source:     types.SourceHuman,
	})
	require.NoError(t, err)

	// Bob targeted the same position; his insert lands after alice's.
	state, err := m.Apply(ctx, types.DocumentChange{
		DocumentID: "doc-1",
		Op:         types.OpInsert,
		Position:   5,
		Content:    " big",
		ActorID:    "bob",
		Source:     types.SourceHuman,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there big world", state.Content)
}

func TestUnresolvableConflictRejected(t *testing.T) {
	m := newTestDocManager(t)
	ctx := context.Background()

	content := strings.Repeat("a", 100)
	_, err := m.Create(ctx, "doc-1", content, "system")
	require.NoError(t, err)

	// Alice removes the tail paragraph bob is about to delete.
	_, err = m.Apply(ctx, types.DocumentChange{
		DocumentID: "doc-1",
		Op:         types.OpDelete,
		Position:   10,
		Length:     90,
		ActorID:    "alice",
		Source:     types.SourceHuman,
	})
	require.NoError(t, err)

	_, err = m.Apply(ctx, types.DocumentChange{
		DocumentID: "doc-1",
		Op:         types.OpDelete,
		Position:   50,
		Length:     40,
		ActorID:    "bob",
		Source:     types.SourceHuman,
	})
	assert.ErrorIs(t, err, ErrConflictUnresolvable)
}

func TestSignificantChangeCreatesSnapshot(t *testing.T) {
	m := newTestDocManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, "doc-1", "seed", "system")
	require.NoError(t, err)

	// Well past the snapshot threshold.
	_, err = m.Apply(ctx, types.DocumentChange{
		DocumentID: "doc-1",
		Op:         types.OpInsert,
		Position:   4,
		Content:    strings.Repeat(" lorem ipsum", 50),
		ActorID:    "alice",
		Source:     types.SourceHuman,
	})
	require.NoError(t, err)

	snaps, err := m.ListSnapshots(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, int64(2), snaps[0].Version)
}

func TestSmallChangeSkipsSnapshot(t *testing.T) {
	m := newTestDocManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, "doc-1", "seed text", "system")
	require.NoError(t, err)

	_, err = m.Apply(ctx, types.DocumentChange{
		DocumentID: "doc-1",
		Op:         types.OpInsert,
		Position:   0,
		Content:    "tiny ",
		ActorID:    "alice",
		Source:     types.SourceHuman,
	})
	require.NoError(t, err)

	snaps, err := m.ListSnapshots(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestRevertRestoresSnapshotContent(t *testing.T) {
	m := newTestDocManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, "doc-1", "original", "system")
	require.NoError(t, err)

	big := strings.Repeat(" expansion", 60)
	_, err = m.Apply(ctx, types.DocumentChange{
		DocumentID: "doc-1",
		Op:         types.OpInsert,
		Position:   8,
		Content:    big,
		ActorID:    "agent-1",
		Source:     types.SourceAgent,
	})
	require.NoError(t, err)

	snaps, err := m.ListSnapshots(ctx, "doc-1")
	require.NoError(t, err)
	require.NotEmpty(t, snaps)
	target := snaps[0]

	// The agent then guts the document; the human reverts to the snapshot.
	_, err = m.Apply(ctx, types.DocumentChange{
		DocumentID: "doc-1",
		Op:         types.OpDelete,
		Position:   0,
		Length:     len("original") + len(big),
		ActorID:    "agent-1",
		Source:     types.SourceAgent,
	})
	require.NoError(t, err)

	state, err := m.RevertToVersion(ctx, "doc-1", target.Version, "alice")
	require.NoError(t, err)
	assert.Equal(t, target.Content, state.Content)
	// Reverting moves the version forward, never back.
	assert.Greater(t, state.Version, target.Version)
}

func TestRevertRangeSizedAtApplyTime(t *testing.T) {
	m := newTestDocManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, "doc-1", "0123456789", "system")
	require.NoError(t, err)

	// A revert carries whatever range its originator computed from a
	// possibly stale read; Apply must replace the whole current content
	// regardless, leaving no tail behind.
	state, err := m.Apply(ctx, types.DocumentChange{
		DocumentID: "doc-1",
		Op:         types.OpReplace,
		Position:   4,
		Length:     2,
		Content:    "restored",
		ActorID:    "alice",
		Source:     types.SourceRevert,
	})
	require.NoError(t, err)
	assert.Equal(t, "restored", state.Content)
}

func TestRevertToUnknownVersion(t *testing.T) {
	m := newTestDocManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, "doc-1", "x", "system")
	require.NoError(t, err)

	_, err = m.RevertToVersion(ctx, "doc-1", 99, "alice")
	assert.Error(t, err)
}
