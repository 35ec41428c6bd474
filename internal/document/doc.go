// Package document owns authoritative document state and reconciles
// concurrent edits. The Manager serializes writes per document, bumps a
// monotonic version on every applied change, snapshots significant edits,
// and broadcasts applied changes in order; the Resolver performs
// textual-offset conflict detection and merge over a trailing window of
// recent changes.
package document
