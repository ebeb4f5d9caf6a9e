// Package growth advances a logistic bacterial population under
// environmental stress and antibiotic pressure, tracking the drift of the
// population's average resistance.
package growth

import (
	"fmt"
	"math"
	"slices"

	"helixsim/internal/model"
	"helixsim/internal/rng"
)

const (
	CarryingCapacity     = 10000.0
	MaxGrowthRate        = 0.35
	HalfSaturation       = 20.0
	BaseMutationRate     = 0.005
	SelectionCoefficient = 0.1

	InitialPopulation     = 1000
	AntibioticOnDose      = 50.0
	MaxAdaptationLog      = 10
	InoculationLogMessage = "Culture inoculated."

	optimalTemperature = 37.0
	minTemperature     = 10.0
	maxTemperature     = 46.0
	temperatureSigma   = 5.0
	optimalPH          = 7.0
	phWidth            = 2.5
	oxygenThreshold    = 5.0
	anaerobicFactor    = 0.1
	atmosphericOxygen  = 21.0

	baseMIC            = 10.0
	micPerResistance   = 90.0
	hillCoefficient    = 2.0
	maxKillRate        = 0.4
	selectionThreshold = 0.01
	selectionLogChance = 0.1
	resistanceDecay    = 0.001
	mutationGain       = 0.01
	stressMultiplier   = 5.0
	consumptionRatio   = 0.05
)

type EventKind string

const (
	EventSelection EventKind = "selection"
	EventMutation  EventKind = "mutation"
	EventCollapse  EventKind = "collapse"
)

type Event struct {
	Kind    EventKind `json:"kind"`
	Step    int       `json:"step"`
	Message string    `json:"message"`
}

// State is the population half of the model. Tick never modifies the slices
// of the State it is given.
type State struct {
	Population    int                 `json:"population"`
	TimeStep      int                 `json:"timeStep"`
	Resistance    float64             `json:"resistance"`
	GrowthHistory []model.GrowthPoint `json:"growthHistory"`
	AdaptationLog []string            `json:"adaptationLog"`
	Collapsed     bool                `json:"collapsed"`
}

// NewState inoculates a fresh culture of strain.
func NewState(strain model.Strain) State {
	return State{
		Population:    InitialPopulation,
		Resistance:    strain.BaselineResistance,
		AdaptationLog: []string{InoculationLogMessage},
	}
}

// DefaultEnvironment returns the standard setpoints with the temperature set
// to the strain's optimum.
func DefaultEnvironment(strain model.Strain) model.Environment {
	env := model.Environment{
		Temperature: optimalTemperature,
		PH:          optimalPH,
		Nutrients:   100,
		Oxygen:      atmosphericOxygen,
	}
	if strain.OptimalTemperature != 0 {
		env.Temperature = strain.OptimalTemperature
	}
	return env
}

// ResistanceLevel is the resistance as a rounded percentage.
func (s State) ResistanceLevel() int {
	return int(math.Round(s.Resistance * 100))
}

// Tick advances the culture by one time step.
func Tick(state State, env model.Environment, src rng.Source) (State, model.Environment, []Event) {
	next := state
	next.TimeStep++
	step := next.TimeStep
	var events []Event
	logLines := slices.Clone(state.AdaptationLog)

	tempK := TemperatureCoeff(env.Temperature)
	phK := PHCoeff(env.PH)
	nutrientK := NutrientCoeff(env.Nutrients)
	oxygenK := OxygenCoeff(env.Oxygen)

	population := float64(state.Population)
	rate := MaxGrowthRate * tempK * phK * nutrientK * oxygenK
	growth := population * rate * (1 - population/CarryingCapacity)

	killRate := KillRate(env.AntibioticConcentration, state.Resistance)
	death := population * killRate

	if killRate > selectionThreshold && population > 0 {
		next.Resistance = math.Min(1, next.Resistance+killRate*SelectionCoefficient)
		if src.Float64() < selectionLogChance {
			msg := fmt.Sprintf("Step %d: Selection → Resistance %.1f%%", step, next.Resistance*100)
			logLines = append(logLines, msg)
			events = append(events, Event{Kind: EventSelection, Step: step, Message: msg})
		}
	} else if next.Resistance > 0 {
		next.Resistance = math.Max(0, next.Resistance-resistanceDecay)
	}

	stress := 1 - tempK*phK
	if src.Float64() < BaseMutationRate*(1+stress*stressMultiplier) {
		next.Resistance = math.Min(1, next.Resistance+mutationGain)
		msg := fmt.Sprintf("Step %d: Mutation detected.", step)
		logLines = append(logLines, msg)
		events = append(events, Event{Kind: EventMutation, Step: step, Message: msg})
	}

	if growth > 0 {
		env.Nutrients = math.Max(0, env.Nutrients-growth*consumptionRatio)
	}

	next.Population = int(math.Max(0, math.Round(population+growth-death)))
	if len(logLines) > MaxAdaptationLog {
		logLines = logLines[len(logLines)-MaxAdaptationLog:]
	}
	next.AdaptationLog = logLines
	next.GrowthHistory = append(slices.Clip(state.GrowthHistory), model.GrowthPoint{Time: step, Population: next.Population})

	if next.Population == 0 && !state.Collapsed {
		next.Collapsed = true
		events = append(events, Event{
			Kind:    EventCollapse,
			Step:    step,
			Message: fmt.Sprintf("Step %d: Population collapsed.", step),
		})
	}
	return next, env, events
}

// TemperatureCoeff is a Gaussian around 37°C that is zero at or beyond the
// 10°C and 46°C limits.
func TemperatureCoeff(t float64) float64 {
	if t <= minTemperature || t >= maxTemperature {
		return 0
	}
	d := (t - optimalTemperature) / temperatureSigma
	return math.Exp(-0.5 * d * d)
}

func PHCoeff(ph float64) float64 {
	d := (ph - optimalPH) / phWidth
	return math.Max(0, 1-d*d)
}

// NutrientCoeff follows Monod kinetics.
func NutrientCoeff(s float64) float64 {
	if s <= 0 {
		return 0
	}
	return s / (HalfSaturation + s)
}

func OxygenCoeff(o2 float64) float64 {
	if o2 > oxygenThreshold {
		return 1
	}
	return anaerobicFactor
}

// KillRate applies a Hill function of the dose against a MIC that rises with
// resistance.
func KillRate(dose, resistance float64) float64 {
	if dose <= 0 {
		return 0
	}
	mic := baseMIC + resistance*micPerResistance
	d := math.Pow(dose, hillCoefficient)
	efficacy := d / (math.Pow(mic, hillCoefficient) + d)
	return maxKillRate * efficacy
}

type StressLevels struct {
	Temperature float64 `json:"temperature"`
	PH          float64 `json:"ph"`
	Nutrients   float64 `json:"nutrients"`
	Oxygen      float64 `json:"oxygen"`
}

func Stress(env model.Environment) StressLevels {
	return StressLevels{
		Temperature: 1 - TemperatureCoeff(env.Temperature),
		PH:          1 - PHCoeff(env.PH),
		Nutrients:   1 - NutrientCoeff(env.Nutrients),
		Oxygen:      math.Abs(env.Oxygen-atmosphericOxygen) / atmosphericOxygen,
	}
}

// Warnings lists setpoints outside the physiological range. They never stop
// a tick; the coefficients already fall to zero there.
func Warnings(env model.Environment) []string {
	var out []string
	switch {
	case env.Temperature < minTemperature:
		out = append(out, "Temperature too low - min 10°C")
	case env.Temperature > maxTemperature:
		out = append(out, "Temperature too high - max 46°C")
	}
	switch {
	case env.PH < 5:
		out = append(out, "pH too low - min 5.0")
	case env.PH > 9:
		out = append(out, "pH too high - max 9.0")
	}
	return out
}
