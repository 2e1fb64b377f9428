package data

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/l1jgo/wavecore/internal/pool"
	"github.com/l1jgo/wavecore/internal/wave"
	"gopkg.in/yaml.v3"
)

// StageEntry is one row of the stage table.
type StageEntry struct {
	StageID   int     `yaml:"stage_id"`
	Name      string  `yaml:"name"`
	Chapter   int     `yaml:"chapter"`
	WaveIDs   []int   `yaml:"waves"`
	TimeLimit float64 `yaml:"time_limit"` // seconds, 0 = unlimited
	BarrierHP float64 `yaml:"barrier_hp"`
	Boss      string  `yaml:"boss"`          // content key, empty = no boss
	BossTpl   string  `yaml:"boss_template"` // defaults to boss
	BossTier  int     `yaml:"boss_tier"`
}

type stageListFile struct {
	Stages []StageEntry `yaml:"stages"`
}

// StageTable holds all stages indexed by StageID.
type StageTable struct {
	stages map[int]*StageEntry
}

// LoadStageTable loads stages from a YAML file.
func LoadStageTable(path string) (*StageTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stage_list: %w", err)
	}
	var f stageListFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse stage_list: %w", err)
	}
	t := &StageTable{stages: make(map[int]*StageEntry, len(f.Stages))}
	for i := range f.Stages {
		s := &f.Stages[i]
		t.stages[s.StageID] = s
	}
	return t, nil
}

// Get returns a stage by ID, or nil if not found.
func (t *StageTable) Get(stageID int) *StageEntry {
	return t.stages[stageID]
}

// Count returns the number of loaded stages.
func (t *StageTable) Count() int {
	return len(t.stages)
}

// IDs returns every stage ID in ascending order.
func (t *StageTable) IDs() []int {
	ids := make([]int, 0, len(t.stages))
	for id := range t.stages {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Limit returns the stage's time limit.
func (s *StageEntry) Limit() time.Duration {
	return seconds(s.TimeLimit)
}

// BossSpec returns the stage boss, or nil when the stage has none.
func (s *StageEntry) BossSpec() *wave.BossSpec {
	if s.Boss == "" {
		return nil
	}
	return &wave.BossSpec{
		Key:    pool.ContentKey(s.Boss),
		Source: s.BossTpl,
		Tier:   s.BossTier,
	}
}
