package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/l1jgo/wavecore/internal/data"
)

var ErrStageNotFound = errors.New("stage not found")

// WaveRepo reads and writes stage wave lists.
type WaveRepo struct {
	db *DB
}

func NewWaveRepo(db *DB) *WaveRepo {
	return &WaveRepo{db: db}
}

// LoadStage loads a stage and its waves in play order.
func (r *WaveRepo) LoadStage(ctx context.Context, stageID int) (*data.StageEntry, []data.WaveEntry, error) {
	var (
		s        data.StageEntry
		limitMs  int64
		bossTier int32
	)
	err := r.db.Pool.QueryRow(ctx,
		`SELECT stage_id, name, chapter, time_limit_ms, barrier_hp, boss, boss_template, boss_tier
		 FROM stages WHERE stage_id = $1`, stageID,
	).Scan(&s.StageID, &s.Name, &s.Chapter, &limitMs, &s.BarrierHP, &s.Boss, &s.BossTpl, &bossTier)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, fmt.Errorf("stage %d: %w", stageID, ErrStageNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load stage %d: %w", stageID, err)
	}
	s.TimeLimit = msToSeconds(limitMs)
	s.BossTier = int(bossTier)

	rows, err := r.db.Pool.Query(ctx,
		`SELECT wave_id, entity, template, count, tier, offset_ms, interval_ms, boss
		 FROM stage_waves WHERE stage_id = $1 ORDER BY seq`, stageID)
	if err != nil {
		return nil, nil, fmt.Errorf("load waves of stage %d: %w", stageID, err)
	}
	defer rows.Close()

	var waves []data.WaveEntry
	for rows.Next() {
		var (
			w                  data.WaveEntry
			count, tier        int32
			offsetMs, interval int64
		)
		if err := rows.Scan(&w.WaveID, &w.Entity, &w.Template, &count, &tier, &offsetMs, &interval, &w.Boss); err != nil {
			return nil, nil, err
		}
		w.Count = int(count)
		w.Tier = int(tier)
		w.Offset = msToSeconds(offsetMs)
		w.Interval = msToSeconds(interval)
		waves = append(waves, w)
		s.WaveIDs = append(s.WaveIDs, w.WaveID)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return &s, waves, nil
}

// ImportStage replaces a stage and its waves in a single transaction.
func (r *WaveRepo) ImportStage(ctx context.Context, s *data.StageEntry, waves []data.WaveEntry) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("import begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM stages WHERE stage_id = $1`, s.StageID); err != nil {
		return fmt.Errorf("import stage %d: %w", s.StageID, err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO stages (stage_id, name, chapter, time_limit_ms, barrier_hp, boss, boss_template, boss_tier)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.StageID, s.Name, s.Chapter, secondsToMs(s.TimeLimit), s.BarrierHP, s.Boss, s.BossTpl, s.BossTier,
	); err != nil {
		return fmt.Errorf("import stage %d: %w", s.StageID, err)
	}

	batch := &pgx.Batch{}
	for i, w := range waves {
		batch.Queue(
			`INSERT INTO stage_waves (stage_id, seq, wave_id, entity, template, count, tier, offset_ms, interval_ms, boss)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			s.StageID, i, w.WaveID, w.Entity, w.Template, w.Count, w.Tier,
			secondsToMs(w.Offset), secondsToMs(w.Interval), w.Boss,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("import waves of stage %d: %w", s.StageID, err)
	}

	return tx.Commit(ctx)
}

func msToSeconds(ms int64) float64 { return float64(ms) / 1000 }

func secondsToMs(s float64) int64 { return int64(s*1000 + 0.5) }
