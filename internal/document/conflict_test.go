package document

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-ai/inkwell/pkg/types"
)

func TestCheckConflictsDetectsOverlap(t *testing.T) {
	r := NewResolver(30 * time.Second)

	r.Record("doc-1", types.DocumentChange{
		ActorID:  "alice",
		Op:       types.OpInsert,
		Position: 10,
		Content:  "hello",
	})

	// Same position, different actor.
	conflicts := r.CheckConflicts("doc-1", types.DocumentChange{
		ActorID:  "bob",
		Op:       types.OpInsert,
		Position: 10,
		Content:  "world",
	})
	assert.Len(t, conflicts, 1)

	// Disjoint range.
	conflicts = r.CheckConflicts("doc-1", types.DocumentChange{
		ActorID:  "bob",
		Op:       types.OpDelete,
		Position: 100,
		Length:   5,
	})
	assert.Empty(t, conflicts)
}

func TestCheckConflictsSkipsSameActor(t *testing.T) {
	r := NewResolver(30 * time.Second)

	r.Record("doc-1", types.DocumentChange{ActorID: "alice", Op: types.OpInsert, Position: 10, Content: "x"})

	conflicts := r.CheckConflicts("doc-1", types.DocumentChange{
		ActorID:  "alice",
		Op:       types.OpInsert,
		Position: 10,
		Content:  "y",
	})
	assert.Empty(t, conflicts)
}

func TestCheckConflictsScopedPerDocument(t *testing.T) {
	r := NewResolver(30 * time.Second)

	r.Record("doc-1", types.DocumentChange{ActorID: "alice", Op: types.OpInsert, Position: 0, Content: "x"})

	conflicts := r.CheckConflicts("doc-2", types.DocumentChange{
		ActorID:  "bob",
		Op:       types.OpInsert,
		Position: 0,
		Content:  "y",
	})
	assert.Empty(t, conflicts)
}

func TestCheckConflictsPrunesOutsideWindow(t *testing.T) {
	r := NewResolver(30 * time.Second)
	base := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }

	r.Record("doc-1", types.DocumentChange{ActorID: "alice", Op: types.OpInsert, Position: 5, Content: "x"})

	r.now = func() time.Time { return base.Add(time.Minute) }
	conflicts := r.CheckConflicts("doc-1", types.DocumentChange{
		ActorID:  "bob",
		Op:       types.OpInsert,
		Position: 5,
		Content:  "y",
	})
	assert.Empty(t, conflicts)
}

func TestResolveShiftsPastEarlierInsert(t *testing.T) {
	r := NewResolver(30 * time.Second)
	content := "Hello brave new world"

	prior := types.DocumentChange{ActorID: "alice", Op: types.OpInsert, Position: 6, Content: "brave "}
	incoming := types.DocumentChange{ActorID: "bob", Op: types.OpInsert, Position: 6, Content: "cruel "}

	adjusted := r.Resolve(incoming, []types.DocumentChange{prior}, content)
	require.NotNil(t, adjusted)
	assert.Equal(t, 12, adjusted.Position)
}

func TestResolveShiftsPastDelete(t *testing.T) {
	r := NewResolver(30 * time.Second)
	content := "Hello"

	prior := types.DocumentChange{ActorID: "alice", Op: types.OpDelete, Position: 5, Length: 6}
	incoming := types.DocumentChange{ActorID: "bob", Op: types.OpInsert, Position: 11, Content: "!"}

	adjusted := r.Resolve(incoming, []types.DocumentChange{prior}, content)
	require.NotNil(t, adjusted)
	assert.Equal(t, 5, adjusted.Position)
}

func TestResolveClampsInsertToContentEnd(t *testing.T) {
	r := NewResolver(30 * time.Second)
	content := "short"

	incoming := types.DocumentChange{ActorID: "bob", Op: types.OpInsert, Position: 4, Content: "!"}
	prior := types.DocumentChange{ActorID: "alice", Op: types.OpInsert, Position: 0, Content: "xxxxxxxxxx"}

	adjusted := r.Resolve(incoming, []types.DocumentChange{prior}, content)
	require.NotNil(t, adjusted)
	assert.Equal(t, len(content), adjusted.Position)
}

func TestResolveRejectsDeleteOfRemovedTarget(t *testing.T) {
	r := NewResolver(30 * time.Second)
	content := "Hi" // the paragraph bob targeted is gone

	prior := types.DocumentChange{ActorID: "alice", Op: types.OpDelete, Position: 0, Length: 50}
	incoming := types.DocumentChange{ActorID: "bob", Op: types.OpDelete, Position: 20, Length: 10}

	adjusted := r.Resolve(incoming, []types.DocumentChange{prior}, content)
	assert.Nil(t, adjusted)
}

func TestResolveRelocatesByExpectedText(t *testing.T) {
	r := NewResolver(30 * time.Second)
	// Alice's insert at the front pushed bob's target right.
	content := "PREFIX the quick brown fox"

	prior := types.DocumentChange{ActorID: "alice", Op: types.OpInsert, Position: 0, Content: "PREFIX "}
	incoming := types.DocumentChange{
		ActorID:  "bob",
		Op:       types.OpReplace,
		Position: 4,
		Length:   5,
		Content:  "slow",
		Expected: "quick",
	}

	adjusted := r.Resolve(incoming, []types.DocumentChange{prior}, content)
	require.NotNil(t, adjusted)
	assert.Equal(t, 11, adjusted.Position)
	assert.Equal(t, "quick", content[adjusted.Position:adjusted.Position+adjusted.Length])
}

func TestResolveRejectsWhenExpectedTextGone(t *testing.T) {
	r := NewResolver(30 * time.Second)
	content := "completely different text now"

	prior := types.DocumentChange{ActorID: "alice", Op: types.OpReplace, Position: 0, Length: 20, Content: "completely different"}
	incoming := types.DocumentChange{
		ActorID:  "bob",
		Op:       types.OpReplace,
		Position: 0,
		Length:   9,
		Content:  "x",
		Expected: "zzzzqqqqvvvv",
	}

	adjusted := r.Resolve(incoming, []types.DocumentChange{prior}, content)
	assert.Nil(t, adjusted)
}

func TestResolveRelocatesMultiByteExpectedText(t *testing.T) {
	r := NewResolver(30 * time.Second)

	// 20 three-byte runes: longer than the bitap pattern cap, and the cap
	// lands mid-rune without boundary handling.
	expected := strings.Repeat("€", 20)
	content := "PREFIX " + expected + " tail"

	prior := types.DocumentChange{ActorID: "alice", Op: types.OpInsert, Position: 0, Content: "PREFIX "}
	incoming := types.DocumentChange{
		ActorID:  "bob",
		Op:       types.OpReplace,
		Position: 0,
		Length:   len(expected),
		Content:  "x",
		Expected: expected,
	}

	adjusted := r.Resolve(incoming, []types.DocumentChange{prior}, content)
	require.NotNil(t, adjusted)
	assert.Equal(t, len("PREFIX "), adjusted.Position)
	assert.Equal(t, expected, content[adjusted.Position:adjusted.Position+adjusted.Length])
}

func TestConflictsSortedByTimestamp(t *testing.T) {
	r := NewResolver(30 * time.Second)
	base := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	r.Record("doc-1", types.DocumentChange{ActorID: "alice", Op: types.OpInsert, Position: 10, Content: "b", Timestamp: base.Add(time.Second)})
	r.Record("doc-1", types.DocumentChange{ActorID: "carol", Op: types.OpInsert, Position: 10, Content: "a", Timestamp: base})

	conflicts := r.CheckConflicts("doc-1", types.DocumentChange{ActorID: "bob", Op: types.OpInsert, Position: 10, Content: "c"})
	require.Len(t, conflicts, 2)
	assert.Equal(t, "carol", conflicts[0].ActorID)
	assert.Equal(t, "alice", conflicts[1].ActorID)
}
