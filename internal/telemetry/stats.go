// Package telemetry aggregates per-sample ecosystem statistics and writes
// them to CSV for offline analysis.
package telemetry

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"floeworld/internal/protocol"
)

// SampleStats is one observation row, taken from a world snapshot.
type SampleStats struct {
	Tick uint64 `csv:"tick"`

	Penguins int `csv:"penguins"`
	Seals    int `csv:"seals"`
	Fish     int `csv:"fish"`

	PenguinEnergyMean float64 `csv:"penguin_energy_mean"`
	PenguinEnergyMin  float64 `csv:"penguin_energy_min"`
	PenguinEnergyMax  float64 `csv:"penguin_energy_max"`
	PenguinEnergyStd  float64 `csv:"penguin_energy_std"`

	SealEnergyMean float64 `csv:"seal_energy_mean"`
	SealEnergyMin  float64 `csv:"seal_energy_min"`
	SealEnergyMax  float64 `csv:"seal_energy_max"`
	SealEnergyStd  float64 `csv:"seal_energy_std"`

	FishEnergyMean float64 `csv:"fish_energy_mean"`
	FishEnergyMin  float64 `csv:"fish_energy_min"`
	FishEnergyMax  float64 `csv:"fish_energy_max"`
	FishEnergyStd  float64 `csv:"fish_energy_std"`

	Juveniles int `csv:"juveniles"`
	OnLand    int `csv:"on_land"`

	Temperature float64 `csv:"temperature"`
	IceCoverage float64 `csv:"ice_coverage"`
	Season      int     `csv:"season"`
}

type energySummary struct {
	mean, min, max, std float64
}

func summarize(list []protocol.AnimalState) energySummary {
	if len(list) == 0 {
		return energySummary{}
	}
	xs := make([]float64, len(list))
	for i, a := range list {
		xs[i] = a.Energy
	}
	return energySummary{
		mean: stat.Mean(xs, nil),
		min:  floats.Min(xs),
		max:  floats.Max(xs),
		std:  stat.StdDev(xs, nil),
	}
}

// Collect computes the stats row for a snapshot.
func Collect(st protocol.WorldState) SampleStats {
	s := SampleStats{
		Tick:        st.Tick,
		Penguins:    len(st.Penguins),
		Seals:       len(st.Seals),
		Fish:        len(st.Fish),
		Temperature: st.Environment.Temperature,
		IceCoverage: st.Environment.IceCoverage,
		Season:      st.Environment.Season,
	}

	pe := summarize(st.Penguins)
	s.PenguinEnergyMean, s.PenguinEnergyMin, s.PenguinEnergyMax, s.PenguinEnergyStd = pe.mean, pe.min, pe.max, pe.std
	se := summarize(st.Seals)
	s.SealEnergyMean, s.SealEnergyMin, s.SealEnergyMax, s.SealEnergyStd = se.mean, se.min, se.max, se.std
	fe := summarize(st.Fish)
	s.FishEnergyMean, s.FishEnergyMin, s.FishEnergyMax, s.FishEnergyStd = fe.mean, fe.min, fe.max, fe.std

	for _, list := range [][]protocol.AnimalState{st.Penguins, st.Seals, st.Fish} {
		for _, a := range list {
			if a.IsJuvenile {
				s.Juveniles++
			}
			if a.Habitat == "land" {
				s.OnLand++
			}
		}
	}
	return s
}
