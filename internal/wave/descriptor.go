// Package wave turns wave tables into timed spawns: the plan and its
// schedule, the orchestrator that drives it against the game clock, and the
// tracker that reports when every spawn has been defeated.
package wave

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/l1jgo/wavecore/internal/pool"
)

var (
	ErrInvalidWave = errors.New("invalid wave descriptor")
	ErrEmptyPlan   = errors.New("plan has no waves")
)

// Descriptor is one wave row. It is never mutated after it reaches a Plan.
type Descriptor struct {
	ID       int
	Key      pool.Key
	Source   string // template source, defaults to the key name
	Count    int
	Tier     int
	Offset   time.Duration // from campaign start
	Interval time.Duration // between spawns of this wave
	Boss     bool          // spawns count against the boss counter
}

// TemplateSource returns the source the key's template loads from.
func (d Descriptor) TemplateSource() string {
	if d.Source != "" {
		return d.Source
	}
	return d.Key.Name
}

func (d Descriptor) Validate() error {
	switch {
	case !d.Key.Valid():
		return fmt.Errorf("%w: wave %d has no entity key", ErrInvalidWave, d.ID)
	case d.Count < 0:
		return fmt.Errorf("%w: wave %d count %d", ErrInvalidWave, d.ID, d.Count)
	case d.Offset < 0:
		return fmt.Errorf("%w: wave %d offset %s", ErrInvalidWave, d.ID, d.Offset)
	case d.Interval < 0:
		return fmt.Errorf("%w: wave %d interval %s", ErrInvalidWave, d.ID, d.Interval)
	}
	return nil
}

// BossSpec is the single boss spawned after the last wave.
type BossSpec struct {
	Key    pool.Key
	Source string
	Tier   int
}

func (b BossSpec) TemplateSource() string {
	if b.Source != "" {
		return b.Source
	}
	return b.Key.Name
}

// WarmUpPolicy decides how same-key waves add up when sizing a pool.
type WarmUpPolicy string

const (
	// WarmUpMax sizes each pool for its largest wave. Waves run one after
	// another, so peak demand per key is one wave.
	WarmUpMax WarmUpPolicy = "max"
	// WarmUpSum sizes each pool for every wave of the key at once.
	WarmUpSum WarmUpPolicy = "sum"
)

func ParseWarmUpPolicy(s string) (WarmUpPolicy, error) {
	switch WarmUpPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", WarmUpMax:
		return WarmUpMax, nil
	case WarmUpSum:
		return WarmUpSum, nil
	}
	return WarmUpMax, fmt.Errorf("unknown warm-up policy %q", s)
}

// Plan is a validated campaign: waves sorted by offset plus an optional
// boss.
type Plan struct {
	waves []Descriptor
	boss  *BossSpec
}

// NewPlan validates and orders waves. Waves with equal offsets keep their
// table order.
func NewPlan(waves []Descriptor, boss *BossSpec) (*Plan, error) {
	if len(waves) == 0 && boss == nil {
		return nil, ErrEmptyPlan
	}
	sorted := make([]Descriptor, len(waves))
	copy(sorted, waves)
	for _, w := range sorted {
		if err := w.Validate(); err != nil {
			return nil, err
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})
	p := &Plan{waves: sorted}
	if boss != nil {
		if !boss.Key.Valid() {
			return nil, fmt.Errorf("%w: boss has no entity key", ErrInvalidWave)
		}
		b := *boss
		p.boss = &b
	}
	return p, nil
}

// Waves returns the ordered waves.
func (p *Plan) Waves() []Descriptor {
	return append([]Descriptor(nil), p.waves...)
}

// Boss returns the final boss, or nil.
func (p *Plan) Boss() *BossSpec {
	if p.boss == nil {
		return nil
	}
	b := *p.boss
	return &b
}

// DistinctKeys returns every key the plan spawns, in first-use order.
func (p *Plan) DistinctKeys() []pool.Key {
	seen := make(map[pool.Key]bool)
	var keys []pool.Key
	for _, w := range p.waves {
		if !seen[w.Key] {
			seen[w.Key] = true
			keys = append(keys, w.Key)
		}
	}
	if p.boss != nil && !seen[p.boss.Key] {
		keys = append(keys, p.boss.Key)
	}
	return keys
}

// Sources maps each key to the template source of its first use.
func (p *Plan) Sources() map[pool.Key]string {
	src := make(map[pool.Key]string)
	for _, w := range p.waves {
		if _, ok := src[w.Key]; !ok {
			src[w.Key] = w.TemplateSource()
		}
	}
	if p.boss != nil {
		if _, ok := src[p.boss.Key]; !ok {
			src[p.boss.Key] = p.boss.TemplateSource()
		}
	}
	return src
}

// WarmUpCounts returns how many instances to pre-construct per key.
func (p *Plan) WarmUpCounts(policy WarmUpPolicy) map[pool.Key]int {
	counts := make(map[pool.Key]int)
	for _, w := range p.waves {
		switch policy {
		case WarmUpSum:
			counts[w.Key] += w.Count
		default:
			if w.Count > counts[w.Key] {
				counts[w.Key] = w.Count
			}
		}
	}
	if p.boss != nil {
		if policy == WarmUpSum || counts[p.boss.Key] < 1 {
			counts[p.boss.Key]++
		}
	}
	return counts
}

// TotalCount returns the standard and boss spawns the plan will make.
func (p *Plan) TotalCount() (standard, boss int) {
	for _, w := range p.waves {
		if w.Boss {
			boss += w.Count
		} else {
			standard += w.Count
		}
	}
	if p.boss != nil {
		boss++
	}
	return standard, boss
}
