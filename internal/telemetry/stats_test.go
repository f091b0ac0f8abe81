package telemetry

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"floeworld/internal/protocol"
)

func sampleState() protocol.WorldState {
	return protocol.WorldState{
		Tick: 42,
		Penguins: []protocol.AnimalState{
			{ID: "P000001", Energy: 100, Habitat: "land", IsJuvenile: true},
			{ID: "P000002", Energy: 50, Habitat: "sea"},
		},
		Seals: []protocol.AnimalState{
			{ID: "S000001", Energy: 120, Habitat: "sea"},
		},
		Environment: protocol.EnvironmentState{Temperature: -5, IceCoverage: 0.7, Season: 900},
	}
}

func TestCollect(t *testing.T) {
	s := Collect(sampleState())

	if s.Tick != 42 || s.Penguins != 2 || s.Seals != 1 || s.Fish != 0 {
		t.Fatalf("counts wrong: %+v", s)
	}
	if math.Abs(s.PenguinEnergyMean-75) > 1e-9 {
		t.Fatalf("penguin mean = %v, want 75", s.PenguinEnergyMean)
	}
	if s.PenguinEnergyMin != 50 || s.PenguinEnergyMax != 100 {
		t.Fatalf("penguin min/max = %v/%v", s.PenguinEnergyMin, s.PenguinEnergyMax)
	}
	if s.FishEnergyMean != 0 || s.FishEnergyMin != 0 {
		t.Fatal("empty species should report zeroed energy stats")
	}
	if s.Juveniles != 1 || s.OnLand != 1 {
		t.Fatalf("juveniles/on_land = %d/%d", s.Juveniles, s.OnLand)
	}
	if s.Temperature != -5 || s.Season != 900 {
		t.Fatalf("environment fields wrong: %+v", s)
	}
}

func TestOutputManager_WritesCSV(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}

	if err := om.Write(Collect(sampleState())); err != nil {
		t.Fatal(err)
	}
	st := sampleState()
	st.Tick = 43
	if err := om.Write(Collect(st)); err != nil {
		t.Fatal(err)
	}
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "telemetry.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if !strings.Contains(lines[0], "penguin_energy_mean") {
		t.Fatalf("header missing expected column: %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], "42,") || !strings.HasPrefix(lines[2], "43,") {
		t.Fatalf("rows out of order: %v", lines[1:])
	}
}

func TestOutputManager_NilIsDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil {
		t.Fatal(err)
	}
	if om != nil {
		t.Fatal("empty dir should disable output")
	}
	if err := om.Write(SampleStats{}); err != nil {
		t.Fatal("nil manager Write should be a no-op")
	}
	if err := om.Close(); err != nil {
		t.Fatal("nil manager Close should be a no-op")
	}
}
