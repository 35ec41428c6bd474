package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/inkwell-ai/inkwell/internal/event"
	"github.com/inkwell-ai/inkwell/internal/logging"
	"github.com/inkwell-ai/inkwell/internal/storage"
	"github.com/inkwell-ai/inkwell/pkg/types"
)

var (
	// ErrDocumentNotFound is returned for an unknown document id.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrConflictUnresolvable is returned when a change cannot be merged
	// with concurrent edits; the caller must refetch state and resubmit.
	ErrConflictUnresolvable = errors.New("change conflicts with concurrent edits and could not be merged")
)

const lockStripes = 64

// Manager owns authoritative document state. Apply serializes writes per
// document while different documents proceed in parallel; readers get
// TTL-cached copies.
type Manager struct {
	store    *storage.Storage
	bus      event.Broadcaster
	resolver *Resolver
	cfg      types.DocumentConfig

	cacheMu sync.RWMutex
	cache   map[string]cachedState

	locks [lockStripes]sync.Mutex

	dmp *diffmatchpatch.DiffMatchPatch
	log zerolog.Logger
}

type cachedState struct {
	state   *types.DocumentState
	expires time.Time
}

// NewManager creates a Manager. bus may be nil.
func NewManager(store *storage.Storage, bus event.Broadcaster, cfg types.DocumentConfig) *Manager {
	return &Manager{
		store:    store,
		bus:      bus,
		resolver: NewResolver(cfg.ConflictWindow()),
		cfg:      cfg,
		cache:    make(map[string]cachedState),
		dmp:      diffmatchpatch.New(),
		log:      logging.For("document"),
	}
}

// Resolver exposes the conflict resolver for pre-flight checks.
func (m *Manager) Resolver() *Resolver {
	return m.resolver
}

func (m *Manager) lockFor(docID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(docID))
	return &m.locks[h.Sum32()%lockStripes]
}

// Create initializes a new document. An empty id gets a generated one.
func (m *Manager) Create(ctx context.Context, docID, content, actorID string) (*types.DocumentState, error) {
	if docID == "" {
		docID = ulid.Make().String()
	}
	if m.store.Exists(ctx, []string{"document", docID}) {
		return nil, fmt.Errorf("document %s already exists", docID)
	}

	now := time.Now()
	state := &types.DocumentState{
		ID:         docID,
		Content:    content,
		Version:    1,
		WordCount:  types.CountWords(content),
		CreatedAt:  now,
		ModifiedAt: now,
		ModifiedBy: actorID,
	}
	if err := m.store.Put(ctx, []string{"document", docID}, state); err != nil {
		return nil, fmt.Errorf("persist document: %w", err)
	}
	m.cacheSet(state)

	if m.bus != nil {
		m.bus.Publish(event.Event{
			Type: event.DocumentCreated,
			Data: event.DocumentCreatedData{State: state.Clone()},
		})
	}
	return state.Clone(), nil
}

// GetState returns a copy of the document's current state, from cache when
// fresh, otherwise from the store.
func (m *Manager) GetState(ctx context.Context, docID string) (*types.DocumentState, error) {
	m.cacheMu.RLock()
	c, ok := m.cache[docID]
	m.cacheMu.RUnlock()
	if ok && time.Now().Before(c.expires) {
		return c.state.Clone(), nil
	}
	return m.loadAndCache(ctx, docID)
}

func (m *Manager) loadAndCache(ctx context.Context, docID string) (*types.DocumentState, error) {
	var state types.DocumentState
	if err := m.store.Get(ctx, []string{"document", docID}, &state); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	m.cacheSet(&state)
	return state.Clone(), nil
}

func (m *Manager) cacheSet(state *types.DocumentState) {
	m.cacheMu.Lock()
	m.cache[state.ID] = cachedState{state: state.Clone(), expires: time.Now().Add(m.cfg.StateCacheTTL())}
	m.cacheMu.Unlock()
}

// Apply merges and applies one change, bumps the version, persists, and
// broadcasts the result. Conflict checking and mutation happen under one
// per-document lock so two changes can never each be checked against a state
// the other has not yet reached.
func (m *Manager) Apply(ctx context.Context, change types.DocumentChange) (*types.DocumentState, error) {
	if !change.Op.Valid() {
		return nil, fmt.Errorf("unrecognized change op %q", change.Op)
	}
	if change.Position < 0 {
		return nil, fmt.Errorf("negative change position %d", change.Position)
	}

	mu := m.lockFor(change.DocumentID)
	mu.Lock()
	defer mu.Unlock()

	state, err := m.loadAndCache(ctx, change.DocumentID)
	if err != nil {
		return nil, err
	}

	// Reverts are authoritative full-content writes; merging them against
	// the edits being reverted would defeat the point. Their range is sized
	// here, against the state they actually apply to, never against whatever
	// state their originator last read.
	if change.Source == types.SourceRevert {
		change.Position = 0
		change.Length = len(state.Content)
	} else if conflicts := m.resolver.CheckConflicts(change.DocumentID, change); len(conflicts) > 0 {
		adjusted := m.resolver.Resolve(change, conflicts, state.Content)
		if adjusted == nil {
			return nil, ErrConflictUnresolvable
		}
		change = *adjusted
	}

	oldContent := state.Content
	newContent, err := applyOp(oldContent, change)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if change.ID == "" {
		change.ID = ulid.Make().String()
	}
	if change.Timestamp.IsZero() {
		change.Timestamp = now
	}

	state.Content = newContent
	state.Version++
	state.WordCount = types.CountWords(newContent)
	state.ModifiedAt = now
	state.ModifiedBy = change.ActorID

	if err := m.store.Put(ctx, []string{"document", state.ID}, state); err != nil {
		return nil, fmt.Errorf("persist document: %w", err)
	}
	m.cacheSet(state)
	m.resolver.Record(state.ID, change)

	if m.bus != nil {
		// Synchronous publish: the presentation surface must see changes in
		// Apply order.
		m.bus.PublishSync(event.Event{
			Type: event.DocumentChangeApplied,
			Data: event.DocumentChangeAppliedData{
				ChangeID:   change.ID,
				DocumentID: state.ID,
				ActorID:    change.ActorID,
				Operation:  change.Op,
				Position:   change.Position,
				Length:     change.Length,
				Content:    change.Content,
				Version:    state.Version,
				Timestamp:  change.Timestamp,
			},
		})
	}

	if m.isSignificant(oldContent, newContent) {
		m.snapshot(ctx, state, fmt.Sprintf("significant change by %s", change.ActorID))
	}

	return state.Clone(), nil
}

// applyOp performs the textual operation.
func applyOp(content string, c types.DocumentChange) (string, error) {
	switch c.Op {
	case types.OpInsert:
		if c.Position > len(content) {
			return "", fmt.Errorf("insert position %d beyond content length %d", c.Position, len(content))
		}
		return content[:c.Position] + c.Content + content[c.Position:], nil
	case types.OpDelete:
		if c.Position+c.Length > len(content) {
			return "", fmt.Errorf("delete range [%d,%d) beyond content length %d", c.Position, c.Position+c.Length, len(content))
		}
		return content[:c.Position] + content[c.Position+c.Length:], nil
	case types.OpReplace:
		if c.Position+c.Length > len(content) {
			return "", fmt.Errorf("replace range [%d,%d) beyond content length %d", c.Position, c.Position+c.Length, len(content))
		}
		return content[:c.Position] + c.Content + content[c.Position+c.Length:], nil
	}
	return "", fmt.Errorf("unrecognized change op %q", c.Op)
}

// isSignificant measures the edit distance between old and new content
// against the snapshot threshold.
func (m *Manager) isSignificant(oldContent, newContent string) bool {
	if m.cfg.SnapshotCharDelta <= 0 {
		return false
	}
	diffs := m.dmp.DiffMain(oldContent, newContent, false)
	return m.dmp.DiffLevenshtein(diffs) >= m.cfg.SnapshotCharDelta
}

// snapshot stores a restorable version capture. Failure is logged, never
// surfaced: losing a snapshot must not fail the applied change.
func (m *Manager) snapshot(ctx context.Context, state *types.DocumentState, reason string) {
	snap := types.DocumentSnapshot{
		ID:         ulid.Make().String(),
		DocumentID: state.ID,
		Version:    state.Version,
		Content:    state.Content,
		WordCount:  state.WordCount,
		CreatedAt:  time.Now(),
		Reason:     reason,
	}
	if err := m.store.Put(ctx, []string{"snapshot", state.ID, snap.ID}, snap); err != nil {
		m.log.Warn().Err(err).Str("document", state.ID).Msg("snapshot failed")
		return
	}
	m.log.Debug().Str("document", state.ID).Int64("version", snap.Version).Msg("snapshot created")
}

// ListSnapshots returns a document's snapshots ordered by version.
func (m *Manager) ListSnapshots(ctx context.Context, docID string) ([]types.DocumentSnapshot, error) {
	var snaps []types.DocumentSnapshot
	err := m.store.Scan(ctx, []string{"snapshot", docID}, func(key string, data json.RawMessage) error {
		var s types.DocumentSnapshot
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		snaps = append(snaps, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Version < snaps[j].Version })
	return snaps, nil
}

// RevertToVersion synthesizes a full-content replace from the snapshot at
// version and routes it through Apply, so reverts audit like ordinary edits.
func (m *Manager) RevertToVersion(ctx context.Context, docID string, version int64, actorID string) (*types.DocumentState, error) {
	snaps, err := m.ListSnapshots(ctx, docID)
	if err != nil {
		return nil, err
	}
	var target *types.DocumentSnapshot
	for i := range snaps {
		if snaps[i].Version == version {
			target = &snaps[i]
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("no snapshot for document %s at version %d", docID, version)
	}

	// Position and length are filled in by Apply under the document lock.
	change := types.DocumentChange{
		DocumentID: docID,
		Op:         types.OpReplace,
		Content:    target.Content,
		ActorID:    actorID,
		Source:     types.SourceRevert,
		Timestamp:  time.Now(),
	}
	state, err := m.Apply(ctx, change)
	if err != nil {
		return nil, err
	}

	if m.bus != nil {
		m.bus.Publish(event.Event{
			Type: event.DocumentReverted,
			Data: event.DocumentRevertedData{
				DocumentID:  docID,
				FromVersion: state.Version - 1,
				ToVersion:   version,
				ActorID:     actorID,
			},
		})
	}
	return state, nil
}
