package world

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"floeworld/internal/protocol"
)

// Snapshot materializes the complete world state as the wire/persistence
// contract type. Agents are listed per species in ascending id order, so two
// identical worlds produce byte-identical encodings.
func (w *World) Snapshot() protocol.WorldState {
	st := protocol.WorldState{
		Tick:        w.tick,
		Penguins:    make([]protocol.AnimalState, 0, w.counts[SpeciesPenguin]),
		Seals:       make([]protocol.AnimalState, 0, w.counts[SpeciesSeal]),
		Fish:        make([]protocol.AnimalState, 0, w.counts[SpeciesFish]),
		Environment: w.env.snapshot(),
	}
	for _, id := range w.sortedIDs() {
		a := w.animals[id]
		as := animalState(a)
		switch a.Species {
		case SpeciesPenguin:
			st.Penguins = append(st.Penguins, as)
		case SpeciesSeal:
			st.Seals = append(st.Seals, as)
		case SpeciesFish:
			st.Fish = append(st.Fish, as)
		}
	}
	return st
}

func animalState(a *Animal) protocol.AnimalState {
	return protocol.AnimalState{
		ID:            a.ID,
		X:             a.X,
		Y:             a.Y,
		Energy:        a.Energy,
		MaxEnergy:     a.MaxEnergy,
		Age:           a.Age,
		Habitat:       a.Habitat.String(),
		Behavior:      a.Behavior.String(),
		IsJuvenile:    a.juvenile(),
		BreedCooldown: a.BreedCooldown,
		FleeCooldown:  a.FleeCooldown,
	}
}

// Import replaces the world's population and environment with a snapshot.
// The tuning currently loaded stays in force; only state is restored. Id
// counters resume past the highest imported id so new ids never collide.
func (w *World) Import(st protocol.WorldState) error {
	if st.Environment.Width <= 0 || st.Environment.Height <= 0 {
		return fmt.Errorf("import: bad environment dimensions %vx%v", st.Environment.Width, st.Environment.Height)
	}
	w.tick = st.Tick
	w.env = environmentFromState(st.Environment, w.tune.World.SeasonCycleTicks, w.tune.World.FloeDrift)
	w.animals = make(map[string]*Animal)
	w.grid = newSpatialGrid(w.env.Width, w.env.Height, w.tune.World.CellSize)
	w.counts = [numSpecies]int{}
	w.nextID = [numSpecies]uint64{}

	restore := func(sp Species, list []protocol.AnimalState) error {
		p := w.params[sp]
		for _, as := range list {
			if _, dup := w.animals[as.ID]; dup {
				return fmt.Errorf("import: duplicate id %s", as.ID)
			}
			a := &Animal{
				ID:            as.ID,
				Species:       sp,
				X:             as.X,
				Y:             as.Y,
				Energy:        as.Energy,
				MaxEnergy:     as.MaxEnergy,
				Age:           as.Age,
				MaxAge:        p.MaxAge,
				MaturityAge:   p.MaturityAge,
				Behavior:      behaviorFromString(as.Behavior),
				BreedCooldown: as.BreedCooldown,
				FleeCooldown:  as.FleeCooldown,
			}
			if as.Habitat == "land" {
				a.Habitat = HabitatLand
			} else {
				a.Habitat = HabitatSea
			}
			w.animals[a.ID] = a
			w.grid.Add(a.ID, a.X, a.Y)
			w.counts[sp]++
			if n := parseIDNum(a.ID); n > w.nextID[sp] {
				w.nextID[sp] = n
			}
		}
		return nil
	}
	if err := restore(SpeciesPenguin, st.Penguins); err != nil {
		return err
	}
	if err := restore(SpeciesSeal, st.Seals); err != nil {
		return err
	}
	if err := restore(SpeciesFish, st.Fish); err != nil {
		return err
	}
	return nil
}

// Digest hashes the canonical snapshot encoding. Equal digests mean equal
// observable state; used by the determinism tests.
func (w *World) Digest() string {
	raw, err := json.Marshal(w.Snapshot())
	if err != nil {
		panic(fmt.Sprintf("world: snapshot encode: %v", err))
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
