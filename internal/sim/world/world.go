// Package world implements the deterministic tick-based ecosystem core:
// three species of agents moving over an evolving polar environment, with
// predation, breeding and seasonal ice driven from one seeded random source.
//
// A World is single-threaded by contract. Callers must serialize Tick/Step/
// Reset; Snapshot returns a fully materialized copy safe to hand elsewhere.
package world

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strconv"

	"floeworld/internal/protocol"
	"floeworld/internal/sim/tuning"
)

// ErrInvalidStep is returned for non-positive step counts; the world state is
// left untouched in that case.
var ErrInvalidStep = errors.New("step count must be positive")

type Config struct {
	Seed   int64
	Width  float64 // 0 = tuning default
	Height float64 // 0 = tuning default
}

// World is the simulation engine. It is an independently constructible value
// owned by its caller; multiple instances coexist freely.
type World struct {
	cfg  Config
	tune tuning.Tuning
	rng  *rand.Rand

	tick    uint64
	env     *Environment
	animals map[string]*Animal
	grid    *spatialGrid

	counts   [numSpecies]int
	nextID   [numSpecies]uint64
	params   [numSpecies]tuning.SpeciesParams
	predates map[Species][]predationRule
}

type predationRule struct {
	prey        Species
	strikeRange float64
	meal        float64
}

func New(cfg Config, tune tuning.Tuning) (*World, error) {
	if cfg.Width > 0 {
		tune.World.Width = cfg.Width
	}
	if cfg.Height > 0 {
		tune.World.Height = cfg.Height
	}
	if err := tune.Validate(); err != nil {
		return nil, fmt.Errorf("world config: %w", err)
	}
	w := &World{cfg: cfg, tune: tune}
	w.resolveSpecies()
	w.seed()
	return w, nil
}

// Reset reinitializes the engine to a freshly seeded initial population and
// environment, discarding all prior state.
func (w *World) Reset() {
	w.seed()
}

func (w *World) seed() {
	w.rng = rand.New(rand.NewSource(w.cfg.Seed))
	w.tick = 0
	w.animals = make(map[string]*Animal)
	w.grid = newSpatialGrid(w.tune.World.Width, w.tune.World.Height, w.tune.World.CellSize)
	w.counts = [numSpecies]int{}
	w.nextID = [numSpecies]uint64{}
	w.env = newEnvironment(w.rng, w.tune.World)
	w.populate()
}

func (w *World) resolveSpecies() {
	w.params[SpeciesPenguin] = w.tune.Species["penguin"]
	w.params[SpeciesSeal] = w.tune.Species["seal"]
	w.params[SpeciesFish] = w.tune.Species["fish"]
	w.predates = make(map[Species][]predationRule)
	for _, r := range w.tune.Predation {
		pred := speciesFromString(r.Predator)
		w.predates[pred] = append(w.predates[pred], predationRule{
			prey:        speciesFromString(r.Prey),
			strikeRange: r.StrikeRange,
			meal:        r.Meal,
		})
	}
}

func (w *World) populate() {
	// Penguins start on floes, seals and fish in open water.
	for i := 0; i < w.tune.World.InitialPenguins; i++ {
		x, y := w.landPosition()
		w.spawn(SpeciesPenguin, x, y, 50+w.rng.Float64()*50)
	}
	for i := 0; i < w.tune.World.InitialSeals; i++ {
		x, y := w.seaPosition()
		w.spawn(SpeciesSeal, x, y, 80+w.rng.Float64()*70)
	}
	for i := 0; i < w.tune.World.InitialFish; i++ {
		x, y := w.seaPosition()
		w.spawn(SpeciesFish, x, y, 20+w.rng.Float64()*20)
	}
	// Founders are adults; newborns earn maturity by aging.
	for _, id := range w.sortedIDs() {
		a := w.animals[id]
		if a.MaturityAge > 0 {
			a.Age = a.MaturityAge
		}
	}
	w.classifyHabitats()
}

func (w *World) spawn(sp Species, x, y, energy float64) *Animal {
	p := w.params[sp]
	w.nextID[sp]++
	a := &Animal{
		ID:          fmt.Sprintf("%c%06d", sp.idPrefix(), w.nextID[sp]),
		Species:     sp,
		X:           clampF(x, 0, w.env.Width-1),
		Y:           clampF(y, 0, w.env.Height-1),
		Energy:      energy,
		MaxEnergy:   p.MaxEnergy,
		MaxAge:      p.MaxAge,
		MaturityAge: p.MaturityAge,
		Habitat:     HabitatSea,
	}
	if a.Energy > a.MaxEnergy {
		a.Energy = a.MaxEnergy
	}
	if w.env.IsLand(a.X, a.Y) {
		a.Habitat = HabitatLand
	}
	w.animals[a.ID] = a
	w.grid.Add(a.ID, a.X, a.Y)
	w.counts[sp]++
	return a
}

func (w *World) removeAnimal(a *Animal) {
	if _, ok := w.animals[a.ID]; !ok {
		return
	}
	delete(w.animals, a.ID)
	if !w.grid.Remove(a.ID) {
		// Index desync means the fixed tick ordering has been violated
		// somewhere; continuing would silently corrupt the simulation.
		panic(fmt.Sprintf("world: spatial index missing entry for %s", a.ID))
	}
	w.counts[a.Species]--
}

// seaPosition samples a random open-water position, falling back to the right
// half of the world if sampling keeps landing on floes.
func (w *World) seaPosition() (float64, float64) {
	for i := 0; i < 50; i++ {
		x := w.rng.Float64() * w.env.Width
		y := w.rng.Float64() * w.env.Height
		if !w.env.IsLand(x, y) {
			return x, y
		}
	}
	return w.env.Width/2 + w.rng.Float64()*w.env.Width/2, w.rng.Float64() * w.env.Height
}

// landPosition samples a point on a random floe, or anywhere if there are
// no floes.
func (w *World) landPosition() (float64, float64) {
	if len(w.env.Floes) == 0 {
		return w.rng.Float64() * w.env.Width, w.rng.Float64() * w.env.Height
	}
	f := &w.env.Floes[w.rng.Intn(len(w.env.Floes))]
	r := f.BaseRadius * w.env.floeScale * 0.7 * w.rng.Float64()
	ang := w.rng.Float64() * 2 * math.Pi
	return clampF(f.X+math.Cos(ang)*r, 0, w.env.Width-1), clampF(f.Y+math.Sin(ang)*r, 0, w.env.Height-1)
}

func (w *World) sortedIDs() []string {
	ids := make([]string, 0, len(w.animals))
	for id := range w.animals {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Tick returns the current tick counter.
func (w *World) TickCount() uint64 { return w.tick }

// Counts returns the live population per species.
func (w *World) Counts() (penguins, seals, fish int) {
	return w.counts[SpeciesPenguin], w.counts[SpeciesSeal], w.counts[SpeciesFish]
}

// AnimalByID looks up a single agent. A miss is an expected race between
// external readers and the running simulation, reported as absence rather
// than an error.
func (w *World) AnimalByID(id string) (protocol.AnimalState, bool) {
	a, ok := w.animals[id]
	if !ok {
		return protocol.AnimalState{}, false
	}
	return animalState(a), true
}

func speciesFromString(s string) Species {
	switch s {
	case "penguin":
		return SpeciesPenguin
	case "seal":
		return SpeciesSeal
	default:
		return SpeciesFish
	}
}

// selfCheck verifies the structural invariants: agent/index bijection, energy
// and position ranges. It is a development assertion; any violation is fatal
// in the caller.
func (w *World) selfCheck() error {
	if w.grid.Len() != len(w.animals) {
		return fmt.Errorf("index size %d != population %d", w.grid.Len(), len(w.animals))
	}
	counts := [numSpecies]int{}
	for id, a := range w.animals {
		if !w.grid.Contains(id) {
			return fmt.Errorf("agent %s missing from spatial index", id)
		}
		if a.Energy < 0 || a.Energy > a.MaxEnergy {
			return fmt.Errorf("agent %s energy %v out of [0, %v]", id, a.Energy, a.MaxEnergy)
		}
		if a.X < 0 || a.X > w.env.Width || a.Y < 0 || a.Y > w.env.Height {
			return fmt.Errorf("agent %s position (%v, %v) out of bounds", id, a.X, a.Y)
		}
		counts[a.Species]++
	}
	if counts != w.counts {
		return fmt.Errorf("species counts drifted: %v != %v", counts, w.counts)
	}
	return nil
}

func parseIDNum(id string) uint64 {
	if len(id) < 2 {
		return 0
	}
	n, err := strconv.ParseUint(id[1:], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
