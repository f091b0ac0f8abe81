// Package tuning externalizes the simulation's numeric constants. The values
// are a tuning concern, not part of the core contract: the engine reads
// whatever it is handed at construction time.
package tuning

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Tuning struct {
	World     WorldTuning              `yaml:"world"`
	Energy    EnergyTuning             `yaml:"energy"`
	Behavior  BehaviorTuning           `yaml:"behavior"`
	Spawning  SpawningTuning           `yaml:"spawning"`
	Species   map[string]SpeciesParams `yaml:"species"`
	Predation []PredationRule          `yaml:"predation"`
}

type WorldTuning struct {
	Width              float64 `yaml:"width"`
	Height             float64 `yaml:"height"`
	CellSize           float64 `yaml:"cell_size"`
	EdgeMargin         float64 `yaml:"edge_margin"`
	SeaLevel           float64 `yaml:"sea_level"`
	SeasonCycleTicks   int     `yaml:"season_cycle_ticks"`
	InitialTemperature float64 `yaml:"initial_temperature"`
	InitialIceCoverage float64 `yaml:"initial_ice_coverage"`
	InitialPenguins    int     `yaml:"initial_penguins"`
	InitialSeals       int     `yaml:"initial_seals"`
	InitialFish        int     `yaml:"initial_fish"`
	FloeCountMin       int     `yaml:"floe_count_min"`
	FloeCountMax       int     `yaml:"floe_count_max"`
	FloeRadiusMin      float64 `yaml:"floe_radius_min"`
	FloeRadiusMax      float64 `yaml:"floe_radius_max"`
	FloeDrift          float64 `yaml:"floe_drift"`
}

type EnergyTuning struct {
	TickCost float64 `yaml:"tick_cost"` // basal metabolic cost per tick
	MoveCost float64 `yaml:"move_cost"` // cost per world unit moved
}

type BehaviorTuning struct {
	FleeCooldownTicks int     `yaml:"flee_cooldown_ticks"`
	FleeStepMin       float64 `yaml:"flee_step_min"`
	FleeStepMax       float64 `yaml:"flee_step_max"`
	FleeAngleJitter   float64 `yaml:"flee_angle_jitter"`
	FleeFloeRange     float64 `yaml:"flee_floe_range"`
	SearchTicksMin    int     `yaml:"search_ticks_min"`
	SearchTicksMax    int     `yaml:"search_ticks_max"`
	SearchStepMin     float64 `yaml:"search_step_min"`
	SearchStepMax     float64 `yaml:"search_step_max"`
	PreySearchRange   float64 `yaml:"prey_search_range"`
	RetargetRange     float64 `yaml:"retarget_range"`
	TrackingLimit     float64 `yaml:"tracking_limit"`
	SocialRadiusLand  float64 `yaml:"social_radius_land"`
	SocialRadiusSea   float64 `yaml:"social_radius_sea"`
	CrowdLimit        int     `yaml:"crowd_limit"`
	LowEnergyFrac     float64 `yaml:"low_energy_frac"`
	HuntEnergyFrac    float64 `yaml:"hunt_energy_frac"`
	SocialEnergyFrac  float64 `yaml:"social_energy_frac"`
}

type SpawningTuning struct {
	FishFloor  int     `yaml:"fish_floor"`
	FishChance float64 `yaml:"fish_chance"`
	FishMax    int     `yaml:"fish_max"`
}

// SpeciesParams is the per-species capability record. Behavior logic switches
// on the species tag and reads these, rather than dispatching through a type
// hierarchy.
type SpeciesParams struct {
	MaxEnergy         float64 `yaml:"max_energy"`
	MaxAge            int     `yaml:"max_age"`
	MaturityAge       int     `yaml:"maturity_age"`
	PerceptionLand    float64 `yaml:"perception_land"`
	PerceptionSea     float64 `yaml:"perception_sea"`
	SpeedLand         float64 `yaml:"speed_land"`
	SpeedSea          float64 `yaml:"speed_sea"`
	JuvenileSpeedFrac float64 `yaml:"juvenile_speed_frac"`
	IdleRecovery      float64 `yaml:"idle_recovery"`
	BreedsOn          string  `yaml:"breeds_on"` // "land" | "sea"
	BreedMinEnergy    float64 `yaml:"breed_min_energy"`
	BreedCost         float64 `yaml:"breed_cost"`
	BreedCooldown     int     `yaml:"breed_cooldown_ticks"`
	BreedProximity    float64 `yaml:"breed_proximity"`
	BreedChance       float64 `yaml:"breed_chance"`
	OffspringEnergy   float64 `yaml:"offspring_energy"`
	OffspringJitter   float64 `yaml:"offspring_jitter"`
}

type PredationRule struct {
	Predator    string  `yaml:"predator"`
	Prey        string  `yaml:"prey"`
	StrikeRange float64 `yaml:"strike_range"`
	Meal        float64 `yaml:"meal"`
}

// Defaults returns the embedded default tuning.
func Defaults() Tuning {
	var t Tuning
	if err := yaml.Unmarshal(defaultsYAML, &t); err != nil {
		panic(fmt.Sprintf("tuning: embedded defaults: %v", err))
	}
	return t
}

// Load reads a tuning file, applied over the embedded defaults so a partial
// file only overrides what it names.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning %s: %w", path, err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.World.Width <= 0 || t.World.Height <= 0 {
		return fmt.Errorf("world dimensions must be positive")
	}
	if t.World.CellSize <= 0 {
		return fmt.Errorf("cell_size must be positive")
	}
	if t.World.SeasonCycleTicks <= 0 {
		return fmt.Errorf("season_cycle_ticks must be positive")
	}
	for _, name := range []string{"penguin", "seal", "fish"} {
		sp, ok := t.Species[name]
		if !ok {
			return fmt.Errorf("species %q missing", name)
		}
		if sp.MaxEnergy <= 0 {
			return fmt.Errorf("species %q: max_energy must be positive", name)
		}
		if sp.MaxAge <= 0 {
			return fmt.Errorf("species %q: max_age must be positive", name)
		}
		if sp.BreedsOn != "land" && sp.BreedsOn != "sea" {
			return fmt.Errorf("species %q: breeds_on must be land or sea", name)
		}
	}
	for _, r := range t.Predation {
		if _, ok := t.Species[r.Predator]; !ok {
			return fmt.Errorf("predation: unknown predator %q", r.Predator)
		}
		if _, ok := t.Species[r.Prey]; !ok {
			return fmt.Errorf("predation: unknown prey %q", r.Prey)
		}
		if r.StrikeRange <= 0 {
			return fmt.Errorf("predation %s->%s: strike_range must be positive", r.Predator, r.Prey)
		}
	}
	return nil
}
