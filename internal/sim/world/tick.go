package world

import "math"

// Tick advances the simulation by exactly one step. Phase order is fixed and
// load-bearing for determinism:
//
//  1. decide + move     (all decisions read pre-move positions)
//  2. predation         (first hunter in id order wins, prey consumed once)
//  3. breeding          (eligibility revalidated, proximity is not)
//  4. fish restock
//  5. environment advance + habitat reclassification
//  6. aging, idle recovery, cooldown decrements
//  7. cull
func (w *World) Tick() {
	ids := w.sortedIDs()

	decisions := make([]decision, 0, len(ids))
	for _, id := range ids {
		decisions = append(decisions, w.decide(w.animals[id]))
	}
	for _, d := range decisions {
		w.applyMove(w.animals[d.id], d)
	}

	w.resolvePredation(decisions)
	w.resolveBreeding(decisions)
	w.restockFish()

	w.env.advance()
	w.classifyHabitats()

	for _, id := range ids {
		a, ok := w.animals[id]
		if !ok {
			continue // eaten this tick
		}
		a.Age++
		if a.Behavior == BehaviorIdle {
			a.gainEnergy(w.params[a.Species].IdleRecovery)
		}
		if a.BreedCooldown > 0 {
			a.BreedCooldown--
		}
		if a.FleeCooldown > 0 && a.Behavior != BehaviorFleeing {
			a.FleeCooldown--
		}
	}

	w.cull()
	w.tick++
}

// Step advances by n ticks. n must be positive; the state is untouched
// otherwise.
func (w *World) Step(n int) error {
	if n <= 0 {
		return ErrInvalidStep
	}
	for i := 0; i < n; i++ {
		w.Tick()
	}
	return nil
}

// applyMove charges the basal cost, executes the planned movement speed-
// normalized, and commits the new behavior state.
func (w *World) applyMove(a *Animal, d decision) {
	a.Behavior = d.behavior
	a.consumeEnergy(w.tune.Energy.TickCost)
	if !d.move {
		return
	}

	p := w.params[a.Species]
	speed := p.SpeedLand
	if a.Habitat == HabitatSea {
		speed = p.SpeedSea
	}
	if a.juvenile() {
		speed *= p.JuvenileSpeedFrac
	}
	speed = math.Max(speed, 0.1)

	dx := d.tx - a.X
	dy := d.ty - a.Y
	dist := math.Hypot(dx, dy)
	if dist == 0 {
		return
	}
	// Far targets get an urgency boost, capped at triple speed; near targets
	// are approached without overshoot.
	var step float64
	if dist > 3*speed {
		step = speed * math.Min(3, 1+dist/(10*speed))
	} else {
		step = math.Min(speed, dist)
	}

	nx := clampF(a.X+dx/dist*step, 0, w.env.Width-1)
	ny := clampF(a.Y+dy/dist*step, 0, w.env.Height-1)
	if a.Species == SpeciesFish && w.env.IsLand(nx, ny) {
		return // fish never beach themselves
	}
	moved := math.Hypot(nx-a.X, ny-a.Y)
	a.X, a.Y = nx, ny
	a.consumeEnergy(w.tune.Energy.MoveCost * moved)
	w.grid.Update(a.ID, a.X, a.Y)
}

// resolvePredation applies hunt intents in id order. Each prey dies at most
// once; a hunter whose prey was already taken simply misses. Strike distance
// was verified at decision time against pre-move positions and is not
// re-checked here, so two hunters striking the same prey resolve without
// ordering ambiguity.
func (w *World) resolvePredation(decisions []decision) {
	for _, d := range decisions {
		if d.kind != intentHunt {
			continue
		}
		hunter, ok := w.animals[d.id]
		if !ok || hunter.Energy <= 0 {
			continue
		}
		prey, ok := w.animals[d.otherID]
		if !ok {
			continue
		}
		for _, r := range w.predates[hunter.Species] {
			if r.prey == prey.Species {
				hunter.gainEnergy(r.meal)
				w.removeAnimal(prey)
				break
			}
		}
	}
}

// resolveBreeding applies breed intents in id order. Both partners must still
// exist and pass the eligibility gate; each agent parents at most one
// offspring per tick. Fish additionally roll their per-pair breed chance.
func (w *World) resolveBreeding(decisions []decision) {
	bred := make(map[string]bool)
	for _, d := range decisions {
		if d.kind != intentBreed {
			continue
		}
		if bred[d.id] || bred[d.otherID] {
			continue
		}
		a, ok := w.animals[d.id]
		if !ok {
			continue
		}
		b, ok := w.animals[d.otherID]
		if !ok {
			continue
		}
		if !w.breedEligible(a) || !w.breedEligible(b) {
			continue
		}
		p := w.params[a.Species]
		if p.BreedChance < 1 && w.rng.Float64() >= p.BreedChance {
			continue
		}

		bred[a.ID] = true
		bred[b.ID] = true
		a.consumeEnergy(p.BreedCost)
		b.consumeEnergy(p.BreedCost)
		a.BreedCooldown = p.BreedCooldown
		b.BreedCooldown = p.BreedCooldown

		jx := (w.rng.Float64()*2 - 1) * p.OffspringJitter
		jy := (w.rng.Float64()*2 - 1) * p.OffspringJitter
		child := w.spawn(a.Species, (a.X+b.X)/2+jx, (a.Y+b.Y)/2+jy, p.OffspringEnergy)
		child.BreedCooldown = p.BreedCooldown
	}
}

// restockFish trickles replacement fish into open water while the population
// sits below the floor, bounded by the hard cap.
func (w *World) restockFish() {
	s := w.tune.Spawning
	if w.counts[SpeciesFish] >= s.FishFloor || w.counts[SpeciesFish] >= s.FishMax {
		return
	}
	if w.rng.Float64() < s.FishChance {
		x, y := w.seaPosition()
		f := w.spawn(SpeciesFish, x, y, 20+w.rng.Float64()*20)
		f.Age = f.MaturityAge
	}
}

// classifyHabitats recomputes the land/sea tag for every agent from the
// current floe geometry. Runs after the environment advances so habitat
// always reflects this tick's ice.
func (w *World) classifyHabitats() {
	for _, a := range w.animals {
		if w.env.IsLand(a.X, a.Y) {
			a.Habitat = HabitatLand
		} else {
			a.Habitat = HabitatSea
		}
	}
}

// cull removes agents that starved or aged out this tick.
func (w *World) cull() {
	for _, id := range w.sortedIDs() {
		a := w.animals[id]
		if !a.alive() {
			w.removeAnimal(a)
		}
	}
}
