package world

import (
	"testing"

	"floeworld/internal/sim/tuning"
)

// emptyWorld builds an all-sea world with no initial population so tests can
// stage exact constellations of agents.
func emptyWorld(t *testing.T, mutate func(*tuning.Tuning)) *World {
	t.Helper()
	tn := tuning.Defaults()
	tn.World.InitialPenguins = 0
	tn.World.InitialSeals = 0
	tn.World.InitialFish = 0
	tn.World.FloeCountMin = 0
	tn.World.FloeCountMax = 0
	tn.Spawning.FishChance = 0
	if mutate != nil {
		mutate(&tn)
	}
	w, err := New(Config{Seed: 42}, tn)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

func TestDecide_FleePreemptsHunting(t *testing.T) {
	w := emptyWorld(t, nil)
	p := w.spawn(SpeciesPenguin, 400, 300, 50)
	p.Age = p.MaturityAge
	w.spawn(SpeciesSeal, 420, 300, 180)
	w.spawn(SpeciesFish, 404, 300, 30)

	d := w.decide(p)
	if d.behavior != BehaviorFleeing {
		t.Fatalf("behavior = %v, want fleeing", d.behavior)
	}
	if d.kind != intentNone {
		t.Fatalf("fleeing agent should carry no intent, got %v", d.kind)
	}
}

func TestDecide_StarvingHunterIgnoresThreat(t *testing.T) {
	w := emptyWorld(t, nil)
	p := w.spawn(SpeciesPenguin, 400, 300, 20) // below the low-energy line
	p.Age = p.MaturityAge
	w.spawn(SpeciesSeal, 420, 300, 180)
	fish := w.spawn(SpeciesFish, 404, 300, 30)

	d := w.decide(p)
	if d.kind != intentHunt || d.otherID != fish.ID {
		t.Fatalf("decision = %+v, want hunt intent on %s", d, fish.ID)
	}
	if d.behavior != BehaviorTargeting {
		t.Fatalf("behavior = %v, want targeting", d.behavior)
	}
}

func TestDecide_FleeRefractoryBlocksReentry(t *testing.T) {
	w := emptyWorld(t, nil)
	p := w.spawn(SpeciesPenguin, 400, 300, 50)
	p.Age = p.MaturityAge
	p.FleeCooldown = 5
	w.spawn(SpeciesSeal, 420, 300, 180)

	d := w.decide(p)
	if d.behavior == BehaviorFleeing {
		t.Fatal("refractory agent re-entered fleeing")
	}
}

func TestDecide_FleeExitArmsRefractory(t *testing.T) {
	w := emptyWorld(t, nil)
	p := w.spawn(SpeciesPenguin, 400, 300, 50)
	p.Age = p.MaturityAge
	p.Behavior = BehaviorFleeing

	d := w.decide(p)
	if d.behavior == BehaviorFleeing {
		t.Fatal("agent kept fleeing with no threat present")
	}
	if p.FleeCooldown != w.tune.Behavior.FleeCooldownTicks {
		t.Fatalf("FleeCooldown = %d, want %d", p.FleeCooldown, w.tune.Behavior.FleeCooldownTicks)
	}
}

func TestBreedEligible_Gates(t *testing.T) {
	w := emptyWorld(t, func(tn *tuning.Tuning) {
		sp := tn.Species["penguin"]
		sp.BreedsOn = "sea"
		tn.Species["penguin"] = sp
	})
	p := w.spawn(SpeciesPenguin, 400, 300, 100)
	p.Age = p.MaturityAge

	if !w.breedEligible(p) {
		t.Fatal("adult at full criteria should be eligible")
	}
	p.Age = 0
	if w.breedEligible(p) {
		t.Fatal("juvenile should not be eligible")
	}
	p.Age = p.MaturityAge
	p.BreedCooldown = 1
	if w.breedEligible(p) {
		t.Fatal("agent on cooldown should not be eligible")
	}
	p.BreedCooldown = 0
	p.Energy = 10
	if w.breedEligible(p) {
		t.Fatal("low-energy agent should not be eligible")
	}
}

func TestBreedEligible_HabitatMustMatch(t *testing.T) {
	w := emptyWorld(t, nil) // penguins breed on land; this world is all sea
	p := w.spawn(SpeciesPenguin, 400, 300, 100)
	p.Age = p.MaturityAge
	if w.breedEligible(p) {
		t.Fatal("penguin at sea should not be breed-eligible")
	}
}

func TestSeekMate_ProximityYieldsBreedIntent(t *testing.T) {
	w := emptyWorld(t, func(tn *tuning.Tuning) {
		sp := tn.Species["penguin"]
		sp.BreedsOn = "sea"
		tn.Species["penguin"] = sp
	})
	p1 := w.spawn(SpeciesPenguin, 400, 300, 100)
	p2 := w.spawn(SpeciesPenguin, 405, 300, 100)
	p1.Age = p1.MaturityAge
	p2.Age = p2.MaturityAge

	d := w.decide(p1)
	if d.kind != intentBreed || d.otherID != p2.ID {
		t.Fatalf("decision = %+v, want breed intent on %s", d, p2.ID)
	}
}

func TestConstrainInward_MarginBand(t *testing.T) {
	w := emptyWorld(t, nil)
	a := w.spawn(SpeciesPenguin, 10, 300, 100)

	tx, _ := w.constrainInward(a, 0, 300)
	if tx != w.tune.World.EdgeMargin {
		t.Fatalf("target x = %v, want clamped to margin %v", tx, w.tune.World.EdgeMargin)
	}

	// Agents away from the edges only get world-bounds clamping.
	b := w.spawn(SpeciesPenguin, 400, 300, 100)
	tx, _ = w.constrainInward(b, -100, 300)
	if tx != 0 {
		t.Fatalf("interior agent target x = %v, want 0", tx)
	}
}

func TestDecideFish_SchoolsTowardConspecific(t *testing.T) {
	w := emptyWorld(t, nil)
	f1 := w.spawn(SpeciesFish, 400, 300, 20) // below breed energy, no threat
	w.spawn(SpeciesFish, 425, 300, 20)       // inside perception, outside rest range

	d := w.decide(f1)
	if d.behavior != BehaviorSocial || !d.move {
		t.Fatalf("decision = %+v, want social approach", d)
	}
	if d.tx != 425 || d.ty != 300 {
		t.Fatalf("target = (%v, %v), want (425, 300)", d.tx, d.ty)
	}
}
