package document

import (
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/inkwell-ai/inkwell/pkg/types"
)

// Resolver detects overlapping concurrent edits within a trailing window of
// applied changes and adjusts an incoming change so both survive. This is a
// textual-offset merge, not an operational-transform CRDT: approval gating
// already serializes most agent writes, so simultaneous human edits are the
// primary case this guards.
type Resolver struct {
	window time.Duration

	mu     sync.Mutex
	recent map[string][]appliedChange

	dmp *diffmatchpatch.DiffMatchPatch
	now func() time.Time
}

type appliedChange struct {
	change    types.DocumentChange
	appliedAt time.Time
}

// NewResolver creates a Resolver with the given lookback window.
func NewResolver(window time.Duration) *Resolver {
	return &Resolver{
		window: window,
		recent: make(map[string][]appliedChange),
		dmp:    diffmatchpatch.New(),
		now:    time.Now,
	}
}

// Record remembers an applied change for future conflict checks. Must be
// called under the same per-document serialization as Apply.
func (r *Resolver) Record(docID string, change types.DocumentChange) {
	now := r.now()
	r.mu.Lock()
	r.recent[docID] = append(r.pruneLocked(docID, now), appliedChange{change: change, appliedAt: now})
	r.mu.Unlock()
}

// CheckConflicts returns the recently applied changes whose ranges overlap
// the incoming change, in application order.
func (r *Resolver) CheckConflicts(docID string, change types.DocumentChange) []types.DocumentChange {
	now := r.now()
	r.mu.Lock()
	kept := r.pruneLocked(docID, now)
	r.recent[docID] = kept

	var conflicts []types.DocumentChange
	for _, prior := range kept {
		if prior.change.ActorID == change.ActorID {
			continue
		}
		if overlaps(prior.change, change) {
			conflicts = append(conflicts, prior.change)
		}
	}
	r.mu.Unlock()

	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].Timestamp.Before(conflicts[j].Timestamp)
	})
	return conflicts
}

// pruneLocked drops entries older than the window. Caller holds r.mu.
func (r *Resolver) pruneLocked(docID string, now time.Time) []appliedChange {
	kept := r.recent[docID][:0]
	for _, ac := range r.recent[docID] {
		if now.Sub(ac.appliedAt) <= r.window {
			kept = append(kept, ac)
		}
	}
	return kept
}

// overlaps reports whether two changes collide: identical positions always
// conflict, otherwise their half-open affected ranges must intersect.
func overlaps(a, b types.DocumentChange) bool {
	if a.Position == b.Position {
		return true
	}
	return a.Position < b.End() && b.Position < a.End()
}

// Resolve shifts an incoming change past conflicting priors and returns the
// adjusted change, or nil when no non-overlapping result exists and the
// originator must resubmit against current state. content is the document
// text after the priors were applied.
func (r *Resolver) Resolve(change types.DocumentChange, conflicts []types.DocumentChange, content string) *types.DocumentChange {
	adjusted := change

	// Priors that landed at or before the incoming position move it by
	// their net length delta.
	for _, prior := range conflicts {
		if prior.Position <= adjusted.Position {
			adjusted.Position += prior.NetDelta()
		}
	}
	if adjusted.Position < 0 {
		return nil
	}

	if adjusted.Op == types.OpInsert {
		if adjusted.Position > len(content) {
			adjusted.Position = len(content)
		}
		return &adjusted
	}

	// Delete/replace must still address a live range. If the caller told us
	// what text it expects there, verify and fuzzily relocate; otherwise
	// bounds are the only signal we have.
	if adjusted.Position+adjusted.Length > len(content) {
		if adjusted.Expected == "" {
			return nil
		}
	}
	if adjusted.Expected != "" {
		loc := r.locate(content, adjusted.Expected, adjusted.Position)
		if loc < 0 {
			return nil
		}
		adjusted.Position = loc
		if adjusted.Position+adjusted.Length > len(content) {
			return nil
		}
	}
	return &adjusted
}

// locate finds where expected now lives in content, searching near hint.
// Bitap match patterns are capped at diffmatchpatch.MatchMaxBits, cut on a
// rune boundary so a multi-byte character is never split.
func (r *Resolver) locate(content, expected string, hint int) int {
	pattern := expected
	if len(pattern) > r.dmp.MatchMaxBits {
		cut := r.dmp.MatchMaxBits
		for cut > 0 && !utf8.RuneStart(pattern[cut]) {
			cut--
		}
		pattern = pattern[:cut]
	}
	if hint > len(content) {
		hint = len(content)
	}
	return r.dmp.MatchMain(content, pattern, hint)
}
