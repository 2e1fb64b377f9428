// Package template holds the read-only blueprints that pooled instances are
// built from, the reference-counted handles that own them, and the loaders
// that produce them asynchronously.
package template

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Class separates standard spawns from bosses for completion tracking.
type Class uint8

const (
	ClassStandard Class = iota
	ClassBoss
)

func (c Class) String() string {
	if c == ClassBoss {
		return "boss"
	}
	return "standard"
}

// ParseClass accepts "standard", "normal", "boss", "mid_boss" and
// "final_boss" (the monster grades used by the content tables).
func ParseClass(s string) (Class, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "normal":
		return ClassStandard, nil
	case "boss", "mid_boss", "final_boss":
		return ClassBoss, nil
	}
	return ClassStandard, fmt.Errorf("unknown entity class %q", s)
}

// Stats are the base combat numbers of a blueprint before tier scaling.
type Stats struct {
	HP             float64       `yaml:"hp"`
	Speed          float64       `yaml:"speed"` // units per second
	Damage         float64       `yaml:"damage"`
	AttackInterval time.Duration `yaml:"attack_interval"`
	Exp            int           `yaml:"exp"`
}

// Template is the blueprint a pool constructs instances from.
type Template struct {
	Source string
	Name   string
	Class  Class
	Stats  Stats
	Digest string // content fingerprint, empty for in-memory templates
}

// Loader produces templates for a source identifier. Load may block and is
// always called off the game loop; Release is called on the game loop once
// the last reference to the template is dropped.
type Loader interface {
	Load(ctx context.Context, source string) (*Template, error)
	Release(tpl *Template)
}
