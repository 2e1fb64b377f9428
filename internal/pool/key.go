package pool

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Space separates the two registries: static entity types known at compile
// time and content keys coming from data tables.
type Space uint8

const (
	SpaceType Space = iota + 1
	SpaceContent
)

func (s Space) String() string {
	switch s {
	case SpaceType:
		return "type"
	case SpaceContent:
		return "content"
	}
	return "invalid"
}

// Kind enumerates the statically pooled gameplay objects.
type Kind uint8

const (
	KindProjectile Kind = iota + 1
	KindFloatingText
	KindMonster
	KindBossMonster
)

func (k Kind) String() string {
	switch k {
	case KindProjectile:
		return "projectile"
	case KindFloatingText:
		return "floating_text"
	case KindMonster:
		return "monster"
	case KindBossMonster:
		return "boss_monster"
	}
	return "unknown"
}

// Key names one pool. Equal names in different spaces are different keys.
type Key struct {
	Space Space
	Name  string
}

// TypeKey addresses the pool of a static entity type.
func TypeKey(k Kind) Key {
	return Key{Space: SpaceType, Name: k.String()}
}

// ContentKey addresses a data-driven pool. Names are trimmed and NFC
// normalised so keys typed in different tools compare equal.
func ContentKey(name string) Key {
	return Key{Space: SpaceContent, Name: norm.NFC.String(strings.TrimSpace(name))}
}

func (k Key) Valid() bool {
	return (k.Space == SpaceType || k.Space == SpaceContent) && k.Name != ""
}

func (k Key) String() string {
	return k.Space.String() + ":" + k.Name
}
