// Package usage tracks per-agent word and cost consumption across session
// and daily windows. It is pure bookkeeping: limit policy lives in the
// permission engine, which reads reports from here.
package usage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/inkwell-ai/inkwell/internal/event"
	"github.com/inkwell-ai/inkwell/internal/logging"
	"github.com/inkwell-ai/inkwell/internal/storage"
	"github.com/inkwell-ai/inkwell/pkg/types"
)

// Report is a read-only snapshot of an agent's counters.
type Report struct {
	AgentInstanceID  string        `json:"agentInstanceID"`
	SessionID        string        `json:"sessionID"`
	SessionWords     int           `json:"sessionWords"`
	SessionCostCents int64         `json:"sessionCostCents"`
	DayWords         int           `json:"dayWords"`
	DayCostCents     int64         `json:"dayCostCents"`
	DayResetsIn      time.Duration `json:"dayResetsIn"`
}

// record is the persisted form of a bucket.
type record struct {
	AgentInstanceID  string    `json:"agentInstanceID"`
	SessionID        string    `json:"sessionID"`
	DayKey           string    `json:"dayKey"`
	SessionWords     int       `json:"sessionWords"`
	SessionCostCents int64     `json:"sessionCostCents"`
	DayWords         int       `json:"dayWords"`
	DayCostCents     int64     `json:"dayCostCents"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// bucket holds live counters for one agent instance. All cost arithmetic is
// integer cents; no floating point.
type bucket struct {
	mu sync.Mutex

	sessionID        string
	sessionWords     int
	sessionCostCents int64

	dayKey       string
	dayWords     int
	dayCostCents int64
}

// roll resets whichever windows have moved on.
func (b *bucket) roll(sessionID, dayKey string) {
	if sessionID != "" && sessionID != b.sessionID {
		b.sessionID = sessionID
		b.sessionWords = 0
		b.sessionCostCents = 0
	}
	if dayKey != b.dayKey {
		b.dayKey = dayKey
		b.dayWords = 0
		b.dayCostCents = 0
	}
}

// Tracker maintains counters for all agent instances.
type Tracker struct {
	store     *storage.Storage
	bus       event.Broadcaster
	resetHour int

	mu      sync.Mutex
	buckets map[string]*bucket

	wg  sync.WaitGroup
	log zerolog.Logger
	now func() time.Time
}

// NewTracker creates a tracker. resetHour is the UTC hour of the daily
// rollover. bus may be nil.
func NewTracker(store *storage.Storage, bus event.Broadcaster, resetHour int) *Tracker {
	return &Tracker{
		store:     store,
		bus:       bus,
		resetHour: resetHour,
		buckets:   make(map[string]*bucket),
		log:       logging.For("usage"),
		now:       time.Now,
	}
}

// dayKey maps a moment to its usage day, shifted by the reset hour.
func (t *Tracker) dayKey(now time.Time) string {
	return now.UTC().Add(-time.Duration(t.resetHour) * time.Hour).Format("2006-01-02")
}

// NextDayReset returns the time remaining until the daily counters roll.
func (t *Tracker) NextDayReset(now time.Time) time.Duration {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), t.resetHour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}

// bucketFor returns the live bucket for an agent, seeding it from the store
// on first sight so counters survive restarts.
func (t *Tracker) bucketFor(agentID string) *bucket {
	t.mu.Lock()
	b, ok := t.buckets[agentID]
	if !ok {
		b = &bucket{}
		var rec record
		if err := t.store.Get(context.Background(), []string{"usage", agentID}, &rec); err == nil {
			b.sessionID = rec.SessionID
			b.sessionWords = rec.SessionWords
			b.sessionCostCents = rec.SessionCostCents
			b.dayKey = rec.DayKey
			b.dayWords = rec.DayWords
			b.dayCostCents = rec.DayCostCents
		}
		t.buckets[agentID] = b
	}
	t.mu.Unlock()
	return b
}

// Check returns current counters for an agent without mutating anything
// beyond window rollover.
func (t *Tracker) Check(agentID, sessionID string) Report {
	now := t.now()
	b := t.bucketFor(agentID)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.roll(sessionID, t.dayKey(now))

	return Report{
		AgentInstanceID:  agentID,
		SessionID:        b.sessionID,
		SessionWords:     b.sessionWords,
		SessionCostCents: b.sessionCostCents,
		DayWords:         b.dayWords,
		DayCostCents:     b.dayCostCents,
		DayResetsIn:      t.NextDayReset(now),
	}
}

// Record commits actual usage after an action executed. The increment and
// the limit comparison happen under one lock, and an increment that lands
// past a limit is rolled back, so two concurrent recorders cannot both slip
// under the same stale counter. limits may be nil to record unconditionally.
func (t *Tracker) Record(agentID, sessionID string, words int, costCents int64, limits *types.AgentPermissions) error {
	now := t.now()
	b := t.bucketFor(agentID)

	b.mu.Lock()
	b.roll(sessionID, t.dayKey(now))

	b.sessionWords += words
	b.sessionCostCents += costCents
	b.dayWords += words
	b.dayCostCents += costCents

	if limits != nil {
		if over := t.overage(b, limits); over != nil {
			b.sessionWords -= words
			b.sessionCostCents -= costCents
			b.dayWords -= words
			b.dayCostCents -= costCents
			b.mu.Unlock()
			return over
		}
	}

	rec := record{
		AgentInstanceID:  agentID,
		SessionID:        b.sessionID,
		DayKey:           b.dayKey,
		SessionWords:     b.sessionWords,
		SessionCostCents: b.sessionCostCents,
		DayWords:         b.dayWords,
		DayCostCents:     b.dayCostCents,
		UpdatedAt:        now,
	}
	b.mu.Unlock()

	// Persistence is reconciled in the background; a bookkeeping hiccup must
	// never fail an already-executed action.
	t.wg.Add(1)
	go t.persist(rec)

	if t.bus != nil {
		t.bus.Publish(event.Event{
			Type: event.UsageRecorded,
			Data: event.UsageRecordedData{
				AgentInstanceID: agentID,
				SessionID:       sessionID,
				Words:           words,
				CostCents:       costCents,
			},
		})
	}
	return nil
}

func (t *Tracker) overage(b *bucket, p *types.AgentPermissions) *BudgetError {
	if p.MaxWordsPerSession > 0 && b.sessionWords > p.MaxWordsPerSession {
		return &BudgetError{LimitType: LimitSessionWords}
	}
	if p.MaxWordsPerDay > 0 && b.dayWords > p.MaxWordsPerDay {
		return &BudgetError{LimitType: LimitDailyWords}
	}
	if p.MaxCostCentsPerSession > 0 && b.sessionCostCents > p.MaxCostCentsPerSession {
		return &BudgetError{LimitType: LimitSessionCost}
	}
	if p.MaxCostCentsPerDay > 0 && b.dayCostCents > p.MaxCostCentsPerDay {
		return &BudgetError{LimitType: LimitDailyCost}
	}
	return nil
}

// Close waits for in-flight usage persists to finish.
func (t *Tracker) Close() {
	t.wg.Wait()
}

// persist writes a usage record with exponential backoff.
func (t *Tracker) persist(rec record) {
	defer t.wg.Done()
	op := func() error {
		return t.store.Put(context.Background(), []string{"usage", rec.AgentInstanceID}, rec)
	}
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
	if err := backoff.Retry(op, bo); err != nil {
		t.log.Error().Err(err).Str("agent", rec.AgentInstanceID).Msg("usage persist failed")
	}
}

// StartJanitor schedules the daily archive/prune at the reset hour and runs
// until ctx is cancelled.
func (t *Tracker) StartJanitor(ctx context.Context) error {
	c := cron.New()
	spec := fmt.Sprintf("0 %d * * *", t.resetHour)
	if _, err := c.AddFunc(spec, t.archiveFinishedDays); err != nil {
		return fmt.Errorf("schedule usage janitor: %w", err)
	}
	c.Start()
	go func() {
		<-ctx.Done()
		c.Stop()
	}()
	return nil
}

// archiveFinishedDays moves counters from completed days into history and
// drops now-empty buckets.
func (t *Tracker) archiveFinishedDays() {
	now := t.now()
	current := t.dayKey(now)

	t.mu.Lock()
	stale := make(map[string]*bucket)
	for id, b := range t.buckets {
		stale[id] = b
	}
	t.mu.Unlock()

	for id, b := range stale {
		b.mu.Lock()
		if b.dayKey == "" || b.dayKey == current {
			b.mu.Unlock()
			continue
		}
		rec := record{
			AgentInstanceID: id,
			DayKey:          b.dayKey,
			DayWords:        b.dayWords,
			DayCostCents:    b.dayCostCents,
			UpdatedAt:       now,
		}
		b.dayKey = current
		b.dayWords = 0
		b.dayCostCents = 0
		b.mu.Unlock()

		if err := t.store.Put(context.Background(), []string{"usage_history", id, rec.DayKey}, rec); err != nil {
			t.log.Warn().Err(err).Str("agent", id).Msg("usage archive failed")
		}
	}
}
