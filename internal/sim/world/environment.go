package world

import (
	"math"
	"math/rand"

	"floeworld/internal/protocol"
	"floeworld/internal/sim/tuning"
)

// Floe shapes.
const (
	ShapeCircle    = "circle"
	ShapeEllipse   = "ellipse"
	ShapeIrregular = "irregular"
)

// IceFloe is a localized land patch within the sea. Base radii are fixed at
// generation; the effective geometry scales with ice coverage each tick.
type IceFloe struct {
	X, Y         float64
	BaseRadius   float64
	Shape        string
	BaseRadiusX  float64
	BaseRadiusY  float64
	Rotation     float64
	Irregularity float64
}

// Environment holds seasonal/thermal/ice state, independent of agents.
// Mutated once per tick by the engine only.
type Environment struct {
	Width, Height float64
	Temperature   float64
	Season        int
	SeasonCycle   int
	IceCoverage   float64
	SeaLevel      float64
	Floes         []IceFloe
	FloeDrift     float64

	floeScale float64
}

func newEnvironment(rng *rand.Rand, wt tuning.WorldTuning) *Environment {
	env := &Environment{
		Width:       wt.Width,
		Height:      wt.Height,
		Temperature: wt.InitialTemperature,
		SeasonCycle: wt.SeasonCycleTicks,
		IceCoverage: wt.InitialIceCoverage,
		SeaLevel:    wt.SeaLevel,
		FloeDrift:   wt.FloeDrift,
	}
	env.floeScale = floeScaleFor(env.IceCoverage)
	env.generateFloes(rng, wt)
	return env
}

func (e *Environment) generateFloes(rng *rand.Rand, wt tuning.WorldTuning) {
	n := wt.FloeCountMin
	if wt.FloeCountMax > wt.FloeCountMin {
		n += rng.Intn(wt.FloeCountMax - wt.FloeCountMin + 1)
	}
	margin := math.Min(100, e.Width/4)
	e.Floes = make([]IceFloe, 0, n)
	for i := 0; i < n; i++ {
		base := wt.FloeRadiusMin + rng.Float64()*(wt.FloeRadiusMax-wt.FloeRadiusMin)
		f := IceFloe{
			X: margin + rng.Float64()*(e.Width-2*margin),
			Y: margin + rng.Float64()*(e.Height-2*margin),
		}
		// Shape weights: circle 1, ellipse 2, irregular 1.
		switch rng.Intn(4) {
		case 0:
			f.Shape = ShapeCircle
			f.BaseRadius = base
			f.BaseRadiusX = base
			f.BaseRadiusY = base
		case 1, 2:
			f.Shape = ShapeEllipse
			f.BaseRadiusX = base
			f.BaseRadiusY = base * (0.6 + rng.Float64()*0.4)
			f.BaseRadius = math.Max(f.BaseRadiusX, f.BaseRadiusY)
			f.Rotation = rng.Float64() * 2 * math.Pi
		default:
			f.Shape = ShapeIrregular
			f.BaseRadiusX = base * (0.8 + rng.Float64()*0.4)
			f.BaseRadiusY = base * (0.7 + rng.Float64()*0.4)
			f.BaseRadius = math.Max(f.BaseRadiusX, f.BaseRadiusY) * 1.1
			f.Rotation = rng.Float64() * 2 * math.Pi
			f.Irregularity = 0.1 + rng.Float64()*0.2
		}
		e.Floes = append(e.Floes, f)
	}
}

// IsLand reports whether the position lies on any floe, testing the bounding
// circle first and the exact (possibly rotated) shape second.
func (e *Environment) IsLand(x, y float64) bool {
	for i := range e.Floes {
		f := &e.Floes[i]
		dx := x - f.X
		dy := y - f.Y
		r := f.BaseRadius * e.floeScale
		if dx*dx+dy*dy > r*r {
			continue
		}
		switch f.Shape {
		case ShapeCircle:
			return true
		case ShapeEllipse:
			if e.insideEllipse(f, dx, dy) <= 1.0 {
				return true
			}
		case ShapeIrregular:
			v := e.insideEllipse(f, dx, dy)
			lx, ly := rotateInto(f, dx, dy)
			ang := math.Atan2(ly, lx)
			bound := 1.0 + f.Irregularity*math.Sin(ang*3)*math.Cos(ang*2)
			if v <= bound {
				return true
			}
		}
	}
	return false
}

func (e *Environment) IsSea(x, y float64) bool { return !e.IsLand(x, y) }

// insideEllipse returns the ellipse-equation value for the offset (dx, dy);
// values <= 1 are inside.
func (e *Environment) insideEllipse(f *IceFloe, dx, dy float64) float64 {
	lx, ly := rotateInto(f, dx, dy)
	rx := f.BaseRadiusX * e.floeScale
	ry := f.BaseRadiusY * e.floeScale
	return (lx/rx)*(lx/rx) + (ly/ry)*(ly/ry)
}

func rotateInto(f *IceFloe, dx, dy float64) (float64, float64) {
	c := math.Cos(-f.Rotation)
	s := math.Sin(-f.Rotation)
	return dx*c - dy*s, dx*s + dy*c
}

// nearestFloe returns the index of the floe whose center is closest to the
// point, or -1 when there are no floes.
func (e *Environment) nearestFloe(x, y float64) int {
	best := -1
	bestD := math.MaxFloat64
	for i := range e.Floes {
		dx := e.Floes[i].X - x
		dy := e.Floes[i].Y - y
		d := dx*dx + dy*dy
		if d < bestD {
			bestD = d
			best = i
		}
	}
	return best
}

// advance moves the environment one tick: season counter, seasonal
// temperature, ice coverage and floe geometry derived from it, slow floe
// drift with wraparound.
func (e *Environment) advance() {
	e.Season = (e.Season + 1) % e.SeasonCycle
	e.Temperature = e.seasonalTemperature()
	e.IceCoverage = clamp01(0.5 - e.Temperature/25)
	e.floeScale = floeScaleFor(e.IceCoverage)
	for i := range e.Floes {
		e.Floes[i].X += e.FloeDrift
		if e.Floes[i].X > e.Width {
			e.Floes[i].X = 0
		}
	}
}

// seasonalTemperature is piecewise linear over the four quarters of the
// season cycle: spring -5..0, summer 0..5, autumn 5..0, winter 0..-10.
func (e *Environment) seasonalTemperature() float64 {
	q := float64(e.SeasonCycle) / 4
	f := float64(e.Season) / q
	switch {
	case f < 1:
		return -5 + f*5
	case f < 2:
		return (f - 1) * 5
	case f < 3:
		return 5 - (f-2)*5
	default:
		return -(f - 3) * 10
	}
}

// floeScaleFor maps ice coverage to the multiplier applied to floe radii,
// so floes shrink in warm seasons and grow in cold ones.
func floeScaleFor(coverage float64) float64 {
	return 0.8 + 0.4*clamp01(coverage)
}

// snapshot exports the environment. Floe radii are the base (full-ice)
// values; the effective geometry is derived from ice coverage, so the
// round trip through a snapshot is exact.
func (e *Environment) snapshot() protocol.EnvironmentState {
	floes := make([]protocol.IceFloeState, len(e.Floes))
	for i, f := range e.Floes {
		floes[i] = protocol.IceFloeState{
			X:            f.X,
			Y:            f.Y,
			Radius:       f.BaseRadius,
			Shape:        f.Shape,
			RadiusX:      f.BaseRadiusX,
			RadiusY:      f.BaseRadiusY,
			Rotation:     f.Rotation,
			Irregularity: f.Irregularity,
		}
	}
	return protocol.EnvironmentState{
		Width:       e.Width,
		Height:      e.Height,
		Temperature: e.Temperature,
		Season:      e.Season,
		IceCoverage: e.IceCoverage,
		SeaLevel:    e.SeaLevel,
		IceFloes:    floes,
	}
}

func environmentFromState(st protocol.EnvironmentState, seasonCycle int, drift float64) *Environment {
	env := &Environment{
		Width:       st.Width,
		Height:      st.Height,
		Temperature: st.Temperature,
		Season:      st.Season,
		SeasonCycle: seasonCycle,
		IceCoverage: st.IceCoverage,
		SeaLevel:    st.SeaLevel,
		FloeDrift:   drift,
	}
	env.floeScale = floeScaleFor(env.IceCoverage)
	env.Floes = make([]IceFloe, len(st.IceFloes))
	for i, f := range st.IceFloes {
		env.Floes[i] = IceFloe{
			X:            f.X,
			Y:            f.Y,
			BaseRadius:   f.Radius,
			Shape:        f.Shape,
			BaseRadiusX:  f.RadiusX,
			BaseRadiusY:  f.RadiusY,
			Rotation:     f.Rotation,
			Irregularity: f.Irregularity,
		}
	}
	return env
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
