package event

import "github.com/l1jgo/wavecore/internal/core/ecs"

// EntitySpawned is emitted by the wave orchestrator after an instance has
// been activated and handed to autonomous behaviour.
type EntitySpawned struct {
	EntityID ecs.EntityID
	Key      string
	WaveID   int
	Index    int
	Boss     bool
}

// EntityRemoved is emitted when a spawned instance reports death or removal.
type EntityRemoved struct {
	EntityID ecs.EntityID
	Key      string
	Boss     bool
}

// AllDefeated is raised once per campaign when every standard and boss
// spawn has been removed.
type AllDefeated struct{}

// BossDefeated is raised for each boss removal.
type BossDefeated struct {
	Remaining int
}

// DefenseDestroyed is raised when the defense target's HP reaches zero.
type DefenseDestroyed struct{}

// TimeExpired is raised when the campaign timer runs out.
type TimeExpired struct{}
