package protocol

// WorldState is the serializable snapshot of the simulation. It is the sole
// contract between the core and its consumers (transport, renderer, snapshot
// files); schema changes must be additive.
type WorldState struct {
	Tick        uint64           `json:"tick"`
	Penguins    []AnimalState    `json:"penguins"`
	Seals       []AnimalState    `json:"seals"`
	Fish        []AnimalState    `json:"fish"`
	Environment EnvironmentState `json:"environment"`
}

type AnimalState struct {
	ID         string  `json:"id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Energy     float64 `json:"energy"`
	MaxEnergy  float64 `json:"max_energy"`
	Age        int     `json:"age"`
	Habitat    string  `json:"location"` // "land" | "sea"
	Behavior   string  `json:"behavior_state"`
	IsJuvenile bool    `json:"is_juvenile"`

	// Internal counters carried so a snapshot round-trips losslessly.
	BreedCooldown int `json:"breed_cooldown,omitempty"`
	FleeCooldown  int `json:"flee_cooldown,omitempty"`
}

type EnvironmentState struct {
	Width       float64        `json:"width"`
	Height      float64        `json:"height"`
	Temperature float64        `json:"temperature"`
	Season      int            `json:"season"`
	IceCoverage float64        `json:"ice_coverage"`
	SeaLevel    float64        `json:"sea_level"`
	IceFloes    []IceFloeState `json:"ice_floes"`
}

// IceFloeState describes one floe. Radii are the full-ice base values; the
// effective geometry at the snapshot's ice coverage is radius * (0.8 +
// 0.4 * ice_coverage), kept derivable so the round trip stays exact.
type IceFloeState struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	Radius       float64 `json:"radius"`
	Shape        string  `json:"shape"` // "circle" | "ellipse" | "irregular"
	RadiusX      float64 `json:"radius_x"`
	RadiusY      float64 `json:"radius_y"`
	Rotation     float64 `json:"rotation"`
	Irregularity float64 `json:"irregularity,omitempty"`
}

// Counts returns the per-species population sizes of the snapshot.
func (s *WorldState) Counts() (penguins, seals, fish int) {
	return len(s.Penguins), len(s.Seals), len(s.Fish)
}
