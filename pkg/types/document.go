package types

import (
	"strings"
	"time"
)

// ChangeOp is the textual operation kind of a document change.
type ChangeOp string

const (
	OpInsert  ChangeOp = "insert"
	OpDelete  ChangeOp = "delete"
	OpReplace ChangeOp = "replace"
)

// Valid reports whether the operation is recognized.
func (o ChangeOp) Valid() bool {
	return o == OpInsert || o == OpDelete || o == OpReplace
}

// ChangeSource tags where a change originated.
type ChangeSource string

const (
	SourceHuman  ChangeSource = "human"
	SourceAgent  ChangeSource = "agent"
	SourceRevert ChangeSource = "revert"
)

// DocumentChange is one textual operation against a document. Produced by a
// human edit or an approved agent action; consumed exactly once by the
// document state manager.
type DocumentChange struct {
	ID         string       `json:"id"`
	DocumentID string       `json:"documentID"`
	Op         ChangeOp     `json:"op"`
	Position   int          `json:"position"`
	Length     int          `json:"length,omitempty"`
	Content    string       `json:"content,omitempty"`

	// Expected is the text the change believes occupies the target range.
	// Optional; when present the conflict resolver can relocate the change
	// after concurrent edits shifted it.
	Expected string `json:"expected,omitempty"`

	ActorID   string       `json:"actorID"`
	Source    ChangeSource `json:"source"`
	Timestamp time.Time    `json:"timestamp"`
}

// NetDelta is the signed content-length change the operation produces.
func (c DocumentChange) NetDelta() int {
	switch c.Op {
	case OpInsert:
		return len(c.Content)
	case OpDelete:
		return -c.Length
	case OpReplace:
		return len(c.Content) - c.Length
	}
	return 0
}

// End returns the exclusive end offset of the affected range.
func (c DocumentChange) End() int {
	if c.Op == OpInsert {
		return c.Position
	}
	return c.Position + c.Length
}

// DocumentState is the authoritative state of one document. All mutation
// goes through the state manager; readers receive copies.
type DocumentState struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Version    int64     `json:"version"`
	WordCount  int       `json:"wordCount"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
	ModifiedBy string    `json:"modifiedBy,omitempty"`
}

// Clone returns an independent copy safe to hand to readers.
func (d *DocumentState) Clone() *DocumentState {
	cp := *d
	return &cp
}

// DocumentSnapshot is a restorable full-content version capture.
type DocumentSnapshot struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"documentID"`
	Version    int64     `json:"version"`
	Content    string    `json:"content"`
	WordCount  int       `json:"wordCount"`
	CreatedAt  time.Time `json:"createdAt"`
	Reason     string    `json:"reason,omitempty"`
}

// CountWords counts whitespace-separated words.
func CountWords(s string) int {
	return len(strings.Fields(s))
}
