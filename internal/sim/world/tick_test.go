package world

import (
	"errors"
	"testing"

	"floeworld/internal/sim/tuning"
)

func defaultWorld(t *testing.T, seed int64) *World {
	t.Helper()
	w, err := New(Config{Seed: seed}, tuning.Defaults())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

func TestDeterminism_SameSeedSameDigest(t *testing.T) {
	w1 := defaultWorld(t, 7)
	w2 := defaultWorld(t, 7)

	if w1.Digest() != w2.Digest() {
		t.Fatal("fresh worlds with equal seeds differ")
	}
	if err := w1.Step(200); err != nil {
		t.Fatal(err)
	}
	if err := w2.Step(200); err != nil {
		t.Fatal(err)
	}
	if w1.Digest() != w2.Digest() {
		t.Fatal("worlds with equal seeds diverged after 200 ticks")
	}
}

func TestDeterminism_DifferentSeedsDiffer(t *testing.T) {
	w1 := defaultWorld(t, 1)
	w2 := defaultWorld(t, 2)
	if w1.Digest() == w2.Digest() {
		t.Fatal("different seeds produced identical initial state")
	}
}

func TestStep_MatchesRepeatedTick(t *testing.T) {
	stepped := defaultWorld(t, 11)
	ticked := defaultWorld(t, 11)

	if err := stepped.Step(50); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 50; i++ {
		ticked.Tick()
	}
	if stepped.Digest() != ticked.Digest() {
		t.Fatal("Step(50) differs from 50 calls to Tick")
	}
	if stepped.TickCount() != 50 {
		t.Fatalf("tick count = %d, want 50", stepped.TickCount())
	}
}

func TestStep_RejectsNonPositive(t *testing.T) {
	w := defaultWorld(t, 3)
	before := w.Digest()

	for _, n := range []int{0, -1, -100} {
		if err := w.Step(n); !errors.Is(err, ErrInvalidStep) {
			t.Fatalf("Step(%d) error = %v, want ErrInvalidStep", n, err)
		}
	}
	if w.Digest() != before {
		t.Fatal("rejected Step mutated the world")
	}
	if w.TickCount() != 0 {
		t.Fatalf("tick count = %d after rejected steps", w.TickCount())
	}
}

func TestTick_StructuralInvariantsHold(t *testing.T) {
	w := defaultWorld(t, 5)
	for i := 0; i < 300; i++ {
		w.Tick()
		if err := w.selfCheck(); err != nil {
			t.Fatalf("tick %d: %v", i+1, err)
		}
	}
}

func TestTick_HabitatMatchesGeometry(t *testing.T) {
	w := defaultWorld(t, 17)
	for i := 0; i < 100; i++ {
		w.Tick()
	}
	for _, id := range w.sortedIDs() {
		a := w.animals[id]
		want := HabitatSea
		if w.env.IsLand(a.X, a.Y) {
			want = HabitatLand
		}
		if a.Habitat != want {
			t.Fatalf("%s at (%v, %v): habitat %v, geometry says %v", id, a.X, a.Y, a.Habitat, want)
		}
	}
}

func TestReset_RestoresInitialState(t *testing.T) {
	w := defaultWorld(t, 9)
	initial := w.Digest()

	if err := w.Step(40); err != nil {
		t.Fatal(err)
	}
	if w.Digest() == initial {
		t.Fatal("world did not change over 40 ticks")
	}
	w.Reset()
	if w.Digest() != initial {
		t.Fatal("Reset did not restore the seeded initial state")
	}
}

func TestStarvation_AgentsDieWhenEnergyRunsOut(t *testing.T) {
	w := emptyWorld(t, func(tn *tuning.Tuning) {
		tn.Energy.TickCost = 0.05
		tn.Energy.MoveCost = 0
	})
	for i := 0; i < 10; i++ {
		w.spawn(SpeciesPenguin, 100+float64(i)*50, 300, 1)
	}

	ticks := 0
	for ; ticks < 25; ticks++ {
		p, s, f := w.Counts()
		if p+s+f == 0 {
			break
		}
		w.Tick()
	}
	if p, s, f := w.Counts(); p+s+f != 0 {
		t.Fatalf("agents survived starvation: %d/%d/%d after %d ticks", p, s, f, ticks)
	}
	if ticks > 22 {
		t.Fatalf("starvation took %d ticks, expected about 20", ticks)
	}
}

func TestPredation_PreyConsumedOnce(t *testing.T) {
	w := emptyWorld(t, nil)
	w.spawn(SpeciesPenguin, 400, 300, 100)
	s1 := w.spawn(SpeciesSeal, 398, 300, 50)
	s2 := w.spawn(SpeciesSeal, 402, 300, 50)

	w.Tick()

	p, s, _ := w.Counts()
	if p != 0 {
		t.Fatalf("penguin count = %d, want 0", p)
	}
	if s != 2 {
		t.Fatalf("seal count = %d, want 2", s)
	}
	// Exactly one seal got the meal; the second strike found no prey.
	if s1.Energy <= s2.Energy {
		t.Fatalf("expected first seal to feed: %v vs %v", s1.Energy, s2.Energy)
	}
	if s1.Energy < 85 {
		t.Fatalf("fed seal energy = %v, want roughly 50+40 minus costs", s1.Energy)
	}
	if s2.Energy > 50 {
		t.Fatalf("unfed seal gained energy: %v", s2.Energy)
	}
}

// singleFloe drops one circular floe into an otherwise empty sea so tests can
// stage land/sea constellations precisely.
func singleFloe(w *World, x, y, r float64) {
	w.env.Floes = []IceFloe{{X: x, Y: y, Shape: ShapeCircle, BaseRadius: r, BaseRadiusX: r, BaseRadiusY: r}}
}

func TestPredation_LandIsRefuge(t *testing.T) {
	w := emptyWorld(t, nil)
	singleFloe(w, 400, 300, 50)

	// Hungry seal right next to a penguin, both hauled out on the floe.
	w.spawn(SpeciesPenguin, 402, 300, 100)
	w.spawn(SpeciesSeal, 400, 300, 50)

	w.Tick()

	if p, _, _ := w.Counts(); p != 1 {
		t.Fatalf("penguin count = %d, want 1: penguin was eaten on land", p)
	}
}

func TestPredation_PreyOnLandOutOfReach(t *testing.T) {
	w := emptyWorld(t, nil)
	singleFloe(w, 400, 300, 50)

	// Penguin on the floe edge, hungry seal in the water beside it, well
	// inside strike range.
	w.spawn(SpeciesPenguin, 454, 300, 100)
	w.spawn(SpeciesSeal, 460, 300, 50)

	w.Tick()

	if p, _, _ := w.Counts(); p != 1 {
		t.Fatalf("penguin count = %d, want 1: hauled-out penguin was struck from the water", p)
	}
}

func TestPredation_HunterMustBeAtSea(t *testing.T) {
	w := emptyWorld(t, nil)
	singleFloe(w, 400, 300, 50)

	// Starving penguin on the floe edge, fish in the water inside strike
	// range. The penguin must enter the water before it can hunt.
	hunter := w.spawn(SpeciesPenguin, 454, 300, 20)
	hunter.Age = hunter.MaturityAge
	w.spawn(SpeciesFish, 458, 300, 30)

	w.Tick()

	if _, _, f := w.Counts(); f != 1 {
		t.Fatalf("fish count = %d, want 1: penguin on land struck prey in the water", f)
	}
}

func TestBreeding_PairProducesOneOffspring(t *testing.T) {
	w := emptyWorld(t, func(tn *tuning.Tuning) {
		sp := tn.Species["penguin"]
		sp.BreedsOn = "sea"
		tn.Species["penguin"] = sp
	})
	p1 := w.spawn(SpeciesPenguin, 400, 300, 100)
	p2 := w.spawn(SpeciesPenguin, 405, 300, 100)
	p1.Age = p1.MaturityAge
	p2.Age = p2.MaturityAge

	w.Tick()

	p, _, _ := w.Counts()
	if p != 3 {
		t.Fatalf("penguin count = %d, want 3 (one offspring)", p)
	}
	if p1.Energy > 75 || p2.Energy > 75 {
		t.Fatalf("parents did not pay breeding cost: %v, %v", p1.Energy, p2.Energy)
	}
	if p1.BreedCooldown == 0 || p2.BreedCooldown == 0 {
		t.Fatal("parents left without breed cooldown")
	}
	child, ok := w.animals["P000003"]
	if !ok {
		t.Fatal("offspring P000003 missing")
	}
	if !child.juvenile() {
		t.Fatal("offspring should start as a juvenile")
	}
	if child.Energy != w.params[SpeciesPenguin].OffspringEnergy {
		t.Fatalf("offspring energy = %v", child.Energy)
	}
}

func TestRestock_TricklesFishBelowFloor(t *testing.T) {
	w := emptyWorld(t, func(tn *tuning.Tuning) {
		tn.Spawning.FishChance = 1
		sp := tn.Species["fish"]
		sp.BreedChance = 0
		tn.Species["fish"] = sp
	})

	for i := 0; i < 10; i++ {
		w.Tick()
	}
	if _, _, f := w.Counts(); f != 10 {
		t.Fatalf("fish count = %d after 10 restock ticks, want 10", f)
	}
}

func TestScenario_FishCapHoldsWithoutBreeding(t *testing.T) {
	w := emptyWorld(t, func(tn *tuning.Tuning) {
		tn.World.InitialPenguins = 10
		tn.World.InitialSeals = 5
		tn.World.InitialFish = 50
		tn.World.FloeCountMin = 4
		tn.World.FloeCountMax = 7
		sp := tn.Species["fish"]
		sp.BreedChance = 0
		tn.Species["fish"] = sp
	})

	if err := w.Step(100); err != nil {
		t.Fatal(err)
	}
	if w.TickCount() != 100 {
		t.Fatalf("tick count = %d, want 100", w.TickCount())
	}
	if _, _, f := w.Counts(); f > 50 {
		t.Fatalf("fish count = %d, want at most the initial 50", f)
	}
}
