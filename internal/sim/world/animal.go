package world

import (
	"fmt"
	"math"
)

// Species tags the three agent kinds. Per-species parameters live in tuning;
// behavior logic switches on the tag rather than dispatching through a type
// hierarchy.
type Species uint8

const (
	SpeciesPenguin Species = iota
	SpeciesSeal
	SpeciesFish
	numSpecies
)

func (s Species) String() string {
	switch s {
	case SpeciesPenguin:
		return "penguin"
	case SpeciesSeal:
		return "seal"
	case SpeciesFish:
		return "fish"
	}
	return fmt.Sprintf("species(%d)", uint8(s))
}

func (s Species) idPrefix() byte {
	switch s {
	case SpeciesPenguin:
		return 'P'
	case SpeciesSeal:
		return 'S'
	default:
		return 'F'
	}
}

// Habitat is the land/sea classification, recomputed from floe geometry once
// per tick by the engine.
type Habitat uint8

const (
	HabitatLand Habitat = iota
	HabitatSea
)

func (h Habitat) String() string {
	if h == HabitatLand {
		return "land"
	}
	return "sea"
}

// Behavior is the resolver state. Transition priority per tick:
// Fleeing > Targeting > Social > Searching > Idle.
type Behavior uint8

const (
	BehaviorIdle Behavior = iota
	BehaviorSearching
	BehaviorTargeting
	BehaviorFleeing
	BehaviorSocial
)

func (b Behavior) String() string {
	switch b {
	case BehaviorSearching:
		return "searching"
	case BehaviorTargeting:
		return "targeting"
	case BehaviorFleeing:
		return "fleeing"
	case BehaviorSocial:
		return "social"
	}
	return "idle"
}

func behaviorFromString(s string) Behavior {
	switch s {
	case "searching":
		return BehaviorSearching
	case "targeting":
		return BehaviorTargeting
	case "fleeing":
		return BehaviorFleeing
	case "social":
		return BehaviorSocial
	}
	return BehaviorIdle
}

// Animal is a plain data record. All agents live in one flat id-keyed
// collection on the World; the spatial index holds ids only.
type Animal struct {
	ID      string
	Species Species

	X, Y      float64
	Energy    float64
	MaxEnergy float64
	Age       int
	MaxAge    int

	MaturityAge int
	Habitat     Habitat
	Behavior    Behavior

	// BreedCooldown blocks breeding until it reaches zero. FleeCooldown is
	// the refractory window after a flee ends, preventing oscillation on the
	// same cleared threat. Both tick down in the age/recover phase.
	BreedCooldown int
	FleeCooldown  int

	// Resolver scratch, reset on state transitions.
	heading      float64
	headingTicks int
	targetID     string
}

func (a *Animal) alive() bool {
	return a.Energy > 0 && a.Age <= a.MaxAge
}

func (a *Animal) juvenile() bool {
	return a.Age < a.MaturityAge
}

func (a *Animal) gainEnergy(v float64) {
	a.Energy = math.Min(a.MaxEnergy, a.Energy+v)
}

func (a *Animal) consumeEnergy(v float64) {
	a.Energy = math.Max(0, a.Energy-v)
}

func (a *Animal) distanceTo(b *Animal) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
