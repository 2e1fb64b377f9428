package data

import (
	"fmt"
	"os"

	"github.com/l1jgo/wavecore/internal/pool"
	"gopkg.in/yaml.v3"
)

// TierEntry scales template stats for one monster level.
type TierEntry struct {
	Level  int     `yaml:"level"`
	HP     float64 `yaml:"hp"`
	Speed  float64 `yaml:"move_speed"`
	Damage float64 `yaml:"atk"`
	Exp    int     `yaml:"exp"`
}

type tierListFile struct {
	Tiers []TierEntry `yaml:"tiers"`
}

// TierTable holds monster level scaling indexed by level.
type TierTable struct {
	tiers map[int]*TierEntry
}

// LoadTierTable loads monster level scaling from a YAML file.
func LoadTierTable(path string) (*TierTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tier_list: %w", err)
	}
	var f tierListFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse tier_list: %w", err)
	}
	t := &TierTable{tiers: make(map[int]*TierEntry, len(f.Tiers))}
	for i := range f.Tiers {
		e := &f.Tiers[i]
		// Omitted multipliers mean no scaling.
		if e.HP == 0 {
			e.HP = 1
		}
		if e.Speed == 0 {
			e.Speed = 1
		}
		if e.Damage == 0 {
			e.Damage = 1
		}
		t.tiers[e.Level] = e
	}
	return t, nil
}

// Count returns the number of loaded tiers.
func (t *TierTable) Count() int {
	return len(t.tiers)
}

// Tier returns the scaling for level. Unknown levels are unscaled.
func (t *TierTable) Tier(level int) pool.Tier {
	e := t.tiers[level]
	if e == nil {
		return pool.BaseTier(level)
	}
	return pool.Tier{
		Level:  level,
		HP:     e.HP,
		Speed:  e.Speed,
		Damage: e.Damage,
		Exp:    e.Exp,
	}
}
