package data

import (
	"fmt"
	"sort"
	"time"

	"github.com/l1jgo/wavecore/internal/pool"
	"github.com/l1jgo/wavecore/internal/wave"
	"gopkg.in/yaml.v3"
)

// WaveEntry is one row of the wave table.
type WaveEntry struct {
	WaveID   int     `yaml:"wave_id"`
	Entity   string  `yaml:"entity"`   // content key of the spawned monster
	Template string  `yaml:"template"` // template source, defaults to entity
	Count    int     `yaml:"count"`
	Tier     int     `yaml:"tier"`
	Offset   float64 `yaml:"offset"`   // seconds from campaign start
	Interval float64 `yaml:"interval"` // seconds between spawns
	Boss     bool    `yaml:"boss"`
}

type waveListFile struct {
	Waves []WaveEntry `yaml:"waves"`
}

// WaveTable holds all wave rows indexed by WaveID.
type WaveTable struct {
	waves map[int]*WaveEntry
}

// LoadWaveTable loads wave rows from a YAML file. enc names the file's text
// encoding ("" for UTF-8, "euc-kr" for legacy exports).
func LoadWaveTable(path, enc string) (*WaveTable, error) {
	data, err := readText(path, enc)
	if err != nil {
		return nil, fmt.Errorf("read wave_list: %w", err)
	}
	var f waveListFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse wave_list: %w", err)
	}
	t := &WaveTable{waves: make(map[int]*WaveEntry, len(f.Waves))}
	for i := range f.Waves {
		w := &f.Waves[i]
		if _, dup := t.waves[w.WaveID]; dup {
			return nil, fmt.Errorf("parse wave_list: duplicate wave_id %d", w.WaveID)
		}
		t.waves[w.WaveID] = w
	}
	return t, nil
}

// Get returns a wave row by ID, or nil if not found.
func (t *WaveTable) Get(waveID int) *WaveEntry {
	return t.waves[waveID]
}

// Count returns the number of loaded waves.
func (t *WaveTable) Count() int {
	return len(t.waves)
}

// IDs returns every wave ID in ascending order.
func (t *WaveTable) IDs() []int {
	ids := make([]int, 0, len(t.waves))
	for id := range t.waves {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Descriptor converts a row into an orchestrator wave.
func (w *WaveEntry) Descriptor() wave.Descriptor {
	return wave.Descriptor{
		ID:       w.WaveID,
		Key:      pool.ContentKey(w.Entity),
		Source:   w.Template,
		Count:    w.Count,
		Tier:     w.Tier,
		Offset:   seconds(w.Offset),
		Interval: seconds(w.Interval),
		Boss:     w.Boss,
	}
}

// Descriptors resolves wave IDs into descriptors, in the given order.
func (t *WaveTable) Descriptors(ids []int) ([]wave.Descriptor, error) {
	out := make([]wave.Descriptor, 0, len(ids))
	for _, id := range ids {
		w := t.waves[id]
		if w == nil {
			return nil, fmt.Errorf("wave %d not in wave table", id)
		}
		out = append(out, w.Descriptor())
	}
	return out, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
