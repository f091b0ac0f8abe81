package world

import "math"

type intentKind uint8

const (
	intentNone intentKind = iota
	intentHunt
	intentBreed
)

// decision is one agent's plan for the tick, computed against pre-move
// positions for every agent before any movement applies.
type decision struct {
	id       string
	tx, ty   float64
	move     bool
	behavior Behavior
	kind     intentKind
	otherID  string
}

// decide runs the behavior resolver for one agent. Transition priority is
// fixed: Fleeing > Targeting > Social > Searching > Idle. The resolver may
// mutate the agent's own scratch fields only; all cross-agent effects go
// through the returned decision.
func (w *World) decide(a *Animal) decision {
	if a.Species == SpeciesFish {
		return w.decideFish(a)
	}
	return w.decideHunter(a)
}

func (w *World) decideHunter(a *Animal) decision {
	p := w.params[a.Species]
	b := w.tune.Behavior
	perception := p.PerceptionLand
	if a.Habitat == HabitatSea {
		perception = p.PerceptionSea
	}

	// Threat check first. A nearby predator overrides everything else, but a
	// fresh flee is suppressed during the refractory window after the last
	// one ended, and a starving agent stops running entirely.
	desperate := a.Energy < b.LowEnergyFrac*a.MaxEnergy
	if threatID, _, ok := w.nearestPredator(a, perception); ok && !desperate {
		if a.Behavior == BehaviorFleeing || a.FleeCooldown == 0 {
			return w.fleeFrom(a, threatID)
		}
	} else if a.Behavior == BehaviorFleeing {
		// Threat cleared. Drop out of fleeing and arm the refractory window.
		a.FleeCooldown = b.FleeCooldownTicks
	}

	// Hungry hunters track prey.
	if a.Energy < b.HuntEnergyFrac*a.MaxEnergy {
		if d, ok := w.pursuePrey(a, perception); ok {
			return d
		}
	}

	// Well-fed adults pair up.
	if w.breedEligible(a) {
		if d, ok := w.seekMate(a, perception); ok {
			return d
		}
	}

	// Nearly full agents group up with conspecifics, then rest; everyone
	// else wanders.
	if a.Energy >= b.SocialEnergyFrac*a.MaxEnergy {
		a.targetID = ""
		if d, ok := w.joinGroup(a, perception); ok {
			return d
		}
		return decision{id: a.ID, behavior: BehaviorIdle}
	}
	return w.wander(a)
}

// joinGroup steers an isolated agent toward the nearest conspecific when the
// local group is below the crowd limit. Agents already in company stay put.
func (w *World) joinGroup(a *Animal, perception float64) (decision, bool) {
	b := w.tune.Behavior
	radius := b.SocialRadiusSea
	if a.Habitat == HabitatLand {
		radius = b.SocialRadiusLand
	}
	company := 0
	for _, id := range w.grid.QueryRadius(a.X, a.Y, radius) {
		if o := w.animals[id]; o != nil && o.ID != a.ID && o.Species == a.Species {
			company++
		}
	}
	if company > 0 && company >= b.CrowdLimit {
		return decision{}, false
	}
	id, dist, ok := w.grid.Nearest(a.X, a.Y, perception, func(id string) bool {
		o := w.animals[id]
		return o != nil && o.ID != a.ID && o.Species == a.Species
	})
	if !ok || dist <= radius {
		return decision{}, false
	}
	o := w.animals[id]
	tx, ty := w.constrainInward(a, o.X, o.Y)
	return decision{id: a.ID, tx: tx, ty: ty, move: true, behavior: BehaviorSocial}, true
}

func (w *World) decideFish(a *Animal) decision {
	p := w.params[a.Species]
	b := w.tune.Behavior

	if threatID, _, ok := w.nearestPredator(a, p.PerceptionSea); ok {
		if a.Behavior == BehaviorFleeing || a.FleeCooldown == 0 {
			return w.fleeFrom(a, threatID)
		}
	} else if a.Behavior == BehaviorFleeing {
		a.FleeCooldown = b.FleeCooldownTicks
	}

	if w.breedEligible(a) {
		if d, ok := w.seekMate(a, p.PerceptionSea); ok {
			return d
		}
	}

	// Schooling: drift toward the nearest conspecific in the outer half of
	// the perception range, rest when already close.
	if mateID, dist, ok := w.grid.Nearest(a.X, a.Y, p.PerceptionSea, func(id string) bool {
		o := w.animals[id]
		return o != nil && o.ID != a.ID && o.Species == SpeciesFish
	}); ok && dist > p.PerceptionSea/2 {
		o := w.animals[mateID]
		return decision{id: a.ID, tx: o.X, ty: o.Y, move: true, behavior: BehaviorSocial}
	}
	return w.wander(a)
}

// nearestPredator finds the closest agent of a species that preys on a's
// species, within range.
func (w *World) nearestPredator(a *Animal, rng float64) (string, float64, bool) {
	hunters := w.huntersOf(a.Species)
	if len(hunters) == 0 {
		return "", 0, false
	}
	return w.grid.Nearest(a.X, a.Y, rng, func(id string) bool {
		o := w.animals[id]
		if o == nil || o.ID == a.ID {
			return false
		}
		for _, h := range hunters {
			if o.Species == h {
				return true
			}
		}
		return false
	})
}

func (w *World) huntersOf(prey Species) []Species {
	var out []Species
	for pred, rules := range w.predates {
		for _, r := range rules {
			if r.prey == prey {
				out = append(out, pred)
				break
			}
		}
	}
	return out
}

// fleeFrom plans an escape step directly away from the threat with a random
// angular jitter. Penguins at sea bias toward the nearest floe when one is in
// reach; hauling out ends the chase.
func (w *World) fleeFrom(a *Animal, threatID string) decision {
	b := w.tune.Behavior
	t := w.animals[threatID]
	away := math.Atan2(a.Y-t.Y, a.X-t.X)
	away += (w.rng.Float64()*2 - 1) * b.FleeAngleJitter
	step := b.FleeStepMin + w.rng.Float64()*(b.FleeStepMax-b.FleeStepMin)
	tx := a.X + math.Cos(away)*step
	ty := a.Y + math.Sin(away)*step

	if a.Species == SpeciesPenguin && a.Habitat == HabitatSea {
		if i := w.env.nearestFloe(a.X, a.Y); i >= 0 {
			f := &w.env.Floes[i]
			if math.Hypot(f.X-a.X, f.Y-a.Y) <= b.FleeFloeRange {
				tx, ty = f.X, f.Y
			}
		}
	}

	a.targetID = ""
	tx, ty = w.constrainInward(a, tx, ty)
	return decision{id: a.ID, tx: tx, ty: ty, move: true, behavior: BehaviorFleeing}
}

// pursuePrey keeps or acquires a prey target and plans an approach. The hunt
// converts to a strike intent once the prey is inside the rule's range.
// Hunting happens at sea only: a hunter standing on a floe forms no hunt
// intent, and prey that reached land is out of reach, so hauling out is a
// real refuge.
func (w *World) pursuePrey(a *Animal, perception float64) (decision, bool) {
	b := w.tune.Behavior
	rules := w.predates[a.Species]
	if len(rules) == 0 || a.Habitat != HabitatSea {
		return decision{}, false
	}

	isPrey := func(id string) bool {
		o := w.animals[id]
		if o == nil || o.ID == a.ID || o.Habitat != HabitatSea {
			return false
		}
		for _, r := range rules {
			if o.Species == r.prey {
				return true
			}
		}
		return false
	}

	// Keep a held target while it remains in retarget range and in the water;
	// drop it when it vanished, hauled out or slipped too far, then look again.
	if a.targetID != "" {
		o := w.animals[a.targetID]
		if o == nil || o.Habitat != HabitatSea || a.distanceTo(o) > b.RetargetRange {
			a.targetID = ""
		}
	}
	if a.targetID == "" {
		searchRange := math.Min(perception, b.PreySearchRange)
		id, _, ok := w.grid.Nearest(a.X, a.Y, searchRange, isPrey)
		if !ok {
			return decision{}, false
		}
		a.targetID = id
	}

	o := w.animals[a.targetID]
	dist := a.distanceTo(o)
	if dist > b.TrackingLimit {
		a.targetID = ""
		return decision{}, false
	}
	for _, r := range rules {
		if o.Species == r.prey && dist <= r.strikeRange {
			return decision{
				id: a.ID, tx: o.X, ty: o.Y, move: true,
				behavior: BehaviorTargeting, kind: intentHunt, otherID: o.ID,
			}, true
		}
	}
	tx, ty := w.constrainInward(a, o.X, o.Y)
	return decision{id: a.ID, tx: tx, ty: ty, move: true, behavior: BehaviorTargeting}, true
}

// seekMate pairs an eligible agent with the nearest eligible conspecific.
// Within breed proximity the move becomes a breed intent for the resolution
// phase; farther out it is an approach.
func (w *World) seekMate(a *Animal, perception float64) (decision, bool) {
	p := w.params[a.Species]
	id, dist, ok := w.grid.Nearest(a.X, a.Y, perception, func(id string) bool {
		o := w.animals[id]
		return o != nil && o.ID != a.ID && o.Species == a.Species && w.breedEligible(o)
	})
	if !ok {
		return decision{}, false
	}
	o := w.animals[id]
	if dist <= p.BreedProximity {
		return decision{
			id: a.ID, tx: o.X, ty: o.Y, move: true,
			behavior: BehaviorSocial, kind: intentBreed, otherID: o.ID,
		}, true
	}
	tx, ty := w.constrainInward(a, o.X, o.Y)
	return decision{id: a.ID, tx: tx, ty: ty, move: true, behavior: BehaviorSocial}, true
}

// wander plans exploratory movement: hold a random heading for a random
// number of ticks, then pick a new one.
func (w *World) wander(a *Animal) decision {
	b := w.tune.Behavior
	if a.headingTicks <= 0 {
		a.heading = w.rng.Float64() * 2 * math.Pi
		a.headingTicks = b.SearchTicksMin + w.rng.Intn(b.SearchTicksMax-b.SearchTicksMin+1)
	}
	a.headingTicks--
	step := b.SearchStepMin + w.rng.Float64()*(b.SearchStepMax-b.SearchStepMin)
	tx := a.X + math.Cos(a.heading)*step
	ty := a.Y + math.Sin(a.heading)*step
	ctx, cty := w.constrainInward(a, tx, ty)
	if ctx != tx || cty != ty {
		// Bounced off the margin band; abandon the heading next tick.
		a.headingTicks = 0
	}
	return decision{id: a.ID, tx: ctx, ty: cty, move: true, behavior: BehaviorSearching}
}

// breedEligible reports whether the agent may breed this tick: mature, off
// cooldown, energetic enough and standing in its species' breeding habitat.
func (w *World) breedEligible(a *Animal) bool {
	p := w.params[a.Species]
	if a.juvenile() || a.BreedCooldown > 0 || a.Energy < p.BreedMinEnergy {
		return false
	}
	want := HabitatSea
	if p.BreedsOn == "land" {
		want = HabitatLand
	}
	return a.Habitat == want
}

// constrainInward pulls a movement target back inside the edge-margin band.
// Agents already inside the band get their target clamped to the band's inner
// box so motion always has an inward component; everyone else is only kept
// within the world.
func (w *World) constrainInward(a *Animal, tx, ty float64) (float64, float64) {
	m := w.tune.World.EdgeMargin
	wd, ht := w.env.Width, w.env.Height
	if a.X < m || a.X > wd-m {
		tx = clampF(tx, m, wd-m)
	}
	if a.Y < m || a.Y > ht-m {
		ty = clampF(ty, m, ht-m)
	}
	return clampF(tx, 0, wd-1), clampF(ty, 0, ht-1)
}
