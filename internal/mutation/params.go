package mutation

import (
	"errors"
	"fmt"
	"math"

	"helixsim/internal/model"
	"helixsim/internal/numeric"
)

const (
	MinGenerations      = 1
	MaxGenerations      = 10
	MaxSubstitutionRate = 10.0

	// DefaultNonCodingTail is the length of the trailing region labelled
	// non-coding. It is a placeholder for real ORF detection.
	DefaultNonCodingTail = 100

	transitionProbability = 0.66
	referenceTemperature  = 37.0
	temperatureStep       = 5.0
	temperatureFactor     = 1.1
)

var ErrInvalidParameter = errors.New("invalid simulation parameter")

func DefaultParameters() model.SimulationParameters {
	return model.SimulationParameters{
		Temperature:      37,
		TempUnit:         model.Celsius,
		SubstitutionRate: 0.01,
		NumGenerations:   5,
		PH:               7.0,
		Nutrients:        model.NutrientMedium,
		Oxygen:           model.OxygenNormal,
	}
}

// NormalizeParameters validates p and clamps the generation count and
// substitution rate into their supported ranges.
func NormalizeParameters(p model.SimulationParameters) (model.SimulationParameters, error) {
	if !numeric.Finite(p.Temperature) {
		return model.SimulationParameters{}, fmt.Errorf("%w: temperature must be finite", ErrInvalidParameter)
	}
	if !numeric.Finite(p.SubstitutionRate) {
		return model.SimulationParameters{}, fmt.Errorf("%w: substitution rate must be finite", ErrInvalidParameter)
	}
	if !numeric.Finite(p.PH) {
		return model.SimulationParameters{}, fmt.Errorf("%w: pH must be finite", ErrInvalidParameter)
	}
	unit, err := model.ParseTempUnit(string(p.TempUnit))
	if err != nil {
		return model.SimulationParameters{}, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	nutrients, err := model.ParseNutrientLevel(string(p.Nutrients))
	if err != nil {
		return model.SimulationParameters{}, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	oxygen, err := model.ParseOxygenLevel(string(p.Oxygen))
	if err != nil {
		return model.SimulationParameters{}, fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}

	p.TempUnit = unit
	p.Nutrients = nutrients
	p.Oxygen = oxygen
	p.NumGenerations = numeric.Clamp(p.NumGenerations, MinGenerations, MaxGenerations)
	p.SubstitutionRate = numeric.Clamp(p.SubstitutionRate, 0, MaxSubstitutionRate)
	return p, nil
}

// EffectiveRate scales the substitution rate by 1.1 per 5 degrees Celsius
// away from 37. The result is not clamped and may exceed 1.
func EffectiveRate(p model.SimulationParameters) float64 {
	celsius := p.TempUnit.ToCelsius(p.Temperature)
	return p.SubstitutionRate * math.Pow(temperatureFactor, (celsius-referenceTemperature)/temperatureStep)
}
