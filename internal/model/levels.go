package model

import (
	"fmt"
	"strings"
)

type TempUnit string

const (
	Celsius    TempUnit = "C"
	Fahrenheit TempUnit = "F"
)

func ParseTempUnit(raw string) (TempUnit, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", "C":
		return Celsius, nil
	case "F":
		return Fahrenheit, nil
	default:
		return "", fmt.Errorf("unsupported temperature unit: %s", raw)
	}
}

// ToCelsius converts a temperature expressed in unit u.
func (u TempUnit) ToCelsius(v float64) float64 {
	if u == Fahrenheit {
		return (v - 32) * 5 / 9
	}
	return v
}

type NutrientLevel string

const (
	NutrientLow    NutrientLevel = "Low"
	NutrientMedium NutrientLevel = "Medium"
	NutrientHigh   NutrientLevel = "High"
	NutrientExcess NutrientLevel = "Excess"
)

func ParseNutrientLevel(raw string) (NutrientLevel, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return NutrientLow, nil
	case "", "medium":
		return NutrientMedium, nil
	case "high":
		return NutrientHigh, nil
	case "excess":
		return NutrientExcess, nil
	default:
		return "", fmt.Errorf("unsupported nutrient level: %s", raw)
	}
}

// Concentration maps the categorical level onto the substrate concentration
// used by the growth model.
func (l NutrientLevel) Concentration() float64 {
	switch l {
	case NutrientLow:
		return 25
	case NutrientHigh:
		return 100
	case NutrientExcess:
		return 200
	default:
		return 50
	}
}

type OxygenLevel string

const (
	OxygenAnaerobic OxygenLevel = "Anaerobic"
	OxygenLow       OxygenLevel = "Low"
	OxygenNormal    OxygenLevel = "Normal"
	OxygenHigh      OxygenLevel = "High"
)

func ParseOxygenLevel(raw string) (OxygenLevel, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "anaerobic", "none":
		return OxygenAnaerobic, nil
	case "low":
		return OxygenLow, nil
	case "", "normal":
		return OxygenNormal, nil
	case "high":
		return OxygenHigh, nil
	default:
		return "", fmt.Errorf("unsupported oxygen level: %s", raw)
	}
}

// Concentration is the oxygen percentage the level stands for.
func (l OxygenLevel) Concentration() float64 {
	switch l {
	case OxygenAnaerobic:
		return 0
	case OxygenLow:
		return 5
	case OxygenHigh:
		return 40
	default:
		return 21
	}
}
