package persist

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/l1jgo/wavecore/internal/core/event"
	"github.com/l1jgo/wavecore/internal/stage"
	"github.com/l1jgo/wavecore/internal/wave"
	"go.uber.org/zap"
)

// Journal entry kinds.
const (
	KindSpawn   = "spawn"
	KindRemoved = "removed"
	KindState   = "state"
)

// JournalEntry is one campaign_journal row.
type JournalEntry struct {
	At     time.Duration // game time from campaign start
	Kind   string
	WaveID int
	Key    string
	Entity uint64
	Detail string
}

var journalColumns = []string{"run_id", "at_ms", "kind", "wave_id", "entity_key", "entity_id", "detail"}

// RunJournal buffers the events of one campaign run and writes them to
// campaign_journal in batches. Entries stay buffered until a flush succeeds.
type RunJournal struct {
	db    *DB
	log   *zap.Logger
	batch int

	mu    sync.Mutex
	runID int64
	buf   []JournalEntry
}

func NewRunJournal(db *DB, batch int, log *zap.Logger) *RunJournal {
	if log == nil {
		log = zap.NewNop()
	}
	if batch <= 0 {
		batch = 64
	}
	return &RunJournal{db: db, log: log, batch: batch}
}

// Begin opens a campaign_runs row for stageID. Entries recorded before Begin
// are discarded.
func (j *RunJournal) Begin(ctx context.Context, stageID int) error {
	var runID int64
	err := j.db.Pool.QueryRow(ctx,
		`INSERT INTO campaign_runs (stage_id) VALUES ($1) RETURNING run_id`, stageID,
	).Scan(&runID)
	if err != nil {
		return fmt.Errorf("begin run for stage %d: %w", stageID, err)
	}
	j.mu.Lock()
	j.runID = runID
	j.buf = j.buf[:0]
	j.mu.Unlock()
	j.log.Info("campaign run opened", zap.Int64("run", runID), zap.Int("stage", stageID))
	return nil
}

// RunID returns the open run, or 0 before Begin.
func (j *RunJournal) RunID() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runID
}

func (j *RunJournal) Spawned(rec wave.SpawnRecord) {
	detail := ""
	if rec.Boss {
		detail = "boss"
	}
	j.append(JournalEntry{
		At:     rec.At,
		Kind:   KindSpawn,
		WaveID: rec.WaveID,
		Key:    rec.Key.String(),
		Entity: uint64(rec.Entity),
		Detail: detail,
	})
}

func (j *RunJournal) Removed(at time.Duration, ev event.EntityRemoved) {
	detail := ""
	if ev.Boss {
		detail = "boss"
	}
	j.append(JournalEntry{
		At:     at,
		Kind:   KindRemoved,
		Key:    ev.Key,
		Entity: uint64(ev.EntityID),
		Detail: detail,
	})
}

func (j *RunJournal) StateChanged(at time.Duration, ev stage.StateChanged) {
	j.append(JournalEntry{
		At:     at,
		Kind:   KindState,
		Detail: fmt.Sprintf("%s->%s (%s)", ev.From, ev.To, ev.Cause),
	})
}

func (j *RunJournal) append(e JournalEntry) {
	j.mu.Lock()
	j.buf = append(j.buf, e)
	j.mu.Unlock()
}

// Pending returns buffered entries not yet written.
func (j *RunJournal) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.buf)
}

// Due reports whether a full batch is waiting.
func (j *RunJournal) Due() bool {
	return j.Pending() >= j.batch
}

// Flush writes every buffered entry with a single COPY.
func (j *RunJournal) Flush(ctx context.Context) error {
	j.mu.Lock()
	entries := make([]JournalEntry, len(j.buf))
	copy(entries, j.buf)
	runID := j.runID
	j.mu.Unlock()
	if len(entries) == 0 {
		return nil
	}
	if runID == 0 {
		return fmt.Errorf("journal flush: no open run")
	}

	n, err := j.db.Pool.CopyFrom(ctx, pgx.Identifier{"campaign_journal"}, journalColumns,
		pgx.CopyFromSlice(len(entries), func(i int) ([]any, error) {
			e := entries[i]
			return []any{runID, e.At.Milliseconds(), e.Kind, e.WaveID, e.Key, int64(e.Entity), e.Detail}, nil
		}))
	if err != nil {
		return fmt.Errorf("journal flush: %w", err)
	}

	j.mu.Lock()
	j.buf = j.buf[len(entries):]
	j.mu.Unlock()
	j.log.Debug("journal flushed", zap.Int64("run", runID), zap.Int64("rows", n))
	return nil
}

// RecordOutcome flushes the remaining entries and closes the run with its
// result.
func (j *RunJournal) RecordOutcome(ctx context.Context, res stage.Result) error {
	if err := j.Flush(ctx); err != nil {
		return err
	}
	runID := j.RunID()
	if runID == 0 {
		return fmt.Errorf("record outcome: no open run")
	}
	_, err := j.db.Pool.Exec(ctx,
		`UPDATE campaign_runs
		 SET finished_at = now(), state = $2, cause = $3, elapsed_ms = $4,
		     kills = $5, remaining = $6, spawned = $7, defense_ratio = $8
		 WHERE run_id = $1`,
		runID, res.State.String(), res.Cause.String(), res.Elapsed.Milliseconds(),
		res.Kills, res.Remaining, res.Spawned, res.DefenseRatio,
	)
	if err != nil {
		return fmt.Errorf("record outcome of run %d: %w", runID, err)
	}
	j.log.Info("campaign run closed",
		zap.Int64("run", runID),
		zap.Stringer("state", res.State),
		zap.Stringer("cause", res.Cause))
	return nil
}
