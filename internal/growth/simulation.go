package growth

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"helixsim/internal/model"
	"helixsim/internal/numeric"
	"helixsim/internal/rng"
)

// EnvironmentUpdate carries a partial change to the environment. Nil fields
// are left untouched; AntibioticOn overrides AntibioticConcentration.
// NutrientLevel and OxygenLevel name a categorical level that resolves to a
// concentration, and are exclusive with the raw field they stand for.
type EnvironmentUpdate struct {
	Temperature             *float64 `json:"temperature,omitempty"`
	PH                      *float64 `json:"pH,omitempty"`
	Nutrients               *float64 `json:"nutrients,omitempty"`
	NutrientLevel           *string  `json:"nutrientLevel,omitempty"`
	Oxygen                  *float64 `json:"oxygen,omitempty"`
	OxygenLevel             *string  `json:"oxygenLevel,omitempty"`
	AntibioticConcentration *float64 `json:"antibioticConc,omitempty"`
	AntibioticOn            *bool    `json:"antibioticOn,omitempty"`
}

// Apply returns env with the update applied. Non-finite values and unknown
// level names are rejected.
func (u EnvironmentUpdate) Apply(env model.Environment) (model.Environment, error) {
	if err := u.resolveLevels(); err != nil {
		return model.Environment{}, err
	}
	fields := []struct {
		name string
		src  *float64
		dst  *float64
	}{
		{"temperature", u.Temperature, &env.Temperature},
		{"pH", u.PH, &env.PH},
		{"nutrients", u.Nutrients, &env.Nutrients},
		{"oxygen", u.Oxygen, &env.Oxygen},
		{"antibiotic concentration", u.AntibioticConcentration, &env.AntibioticConcentration},
	}
	for _, f := range fields {
		if f.src == nil {
			continue
		}
		if !numeric.Finite(*f.src) {
			return model.Environment{}, fmt.Errorf("%s must be finite", f.name)
		}
		*f.dst = *f.src
	}
	if u.AntibioticOn != nil {
		env.AntibioticConcentration = antibioticDose(*u.AntibioticOn)
	}
	return env, nil
}

// resolveLevels replaces level names with their concentrations.
func (u *EnvironmentUpdate) resolveLevels() error {
	if u.NutrientLevel != nil {
		if u.Nutrients != nil {
			return errors.New("set nutrients or nutrientLevel, not both")
		}
		level, err := model.ParseNutrientLevel(*u.NutrientLevel)
		if err != nil {
			return err
		}
		v := level.Concentration()
		u.Nutrients = &v
	}
	if u.OxygenLevel != nil {
		if u.Oxygen != nil {
			return errors.New("set oxygen or oxygenLevel, not both")
		}
		level, err := model.ParseOxygenLevel(*u.OxygenLevel)
		if err != nil {
			return err
		}
		v := level.Concentration()
		u.Oxygen = &v
	}
	return nil
}

func antibioticDose(on bool) float64 {
	if on {
		return AntibioticOnDose
	}
	return 0
}

// Snapshot is the externally visible view of a simulation.
type Snapshot struct {
	Strain          model.Strain        `json:"strain"`
	Population      int                 `json:"population"`
	TimeStep        int                 `json:"timeStep"`
	ResistanceLevel int                 `json:"resistanceLevel"`
	Resistance      float64             `json:"resistance"`
	GrowthHistory   []model.GrowthPoint `json:"growthHistory"`
	AdaptationLog   []string            `json:"adaptationLog"`
	StressLevels    StressLevels        `json:"stressLevels"`
	Environment     model.Environment   `json:"environment"`
	Warnings        []string            `json:"warnings,omitempty"`
	Collapsed       bool                `json:"collapsed"`
}

// Simulation serializes ticks and environment changes over one culture.
type Simulation struct {
	mu     sync.Mutex
	strain model.Strain
	src    *rng.LCG
	state  State
	env    model.Environment
}

func NewSimulation(strain model.Strain, seed int64) *Simulation {
	s := &Simulation{src: rng.New(seed)}
	s.resetLocked(strain)
	return s
}

func (s *Simulation) Seed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Seed()
}

func (s *Simulation) Tick() (Snapshot, []Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var events []Event
	s.state, s.env, events = Tick(s.state, s.env, s.src)
	return s.snapshotLocked(), events
}

func (s *Simulation) UpdateEnvironment(u EnvironmentUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	env, err := u.Apply(s.env)
	if err != nil {
		return err
	}
	s.env = env
	return nil
}

func (s *Simulation) SetAntibiotic(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.env.AntibioticConcentration = antibioticDose(on)
}

// Reset reinoculates the current strain and reseeds the random stream.
func (s *Simulation) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked(s.strain)
}

// SelectStrain swaps the strain, which always resets the culture.
func (s *Simulation) SelectStrain(strain model.Strain) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked(strain)
}

func (s *Simulation) resetLocked(strain model.Strain) {
	s.strain = strain
	s.state = NewState(strain)
	s.env = DefaultEnvironment(strain)
	s.src.Reseed(s.src.Seed())
}

func (s *Simulation) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Simulation) snapshotLocked() Snapshot {
	return Snapshot{
		Strain:          s.strain,
		Population:      s.state.Population,
		TimeStep:        s.state.TimeStep,
		ResistanceLevel: s.state.ResistanceLevel(),
		Resistance:      s.state.Resistance,
		GrowthHistory:   append([]model.GrowthPoint(nil), s.state.GrowthHistory...),
		AdaptationLog:   append([]string(nil), s.state.AdaptationLog...),
		StressLevels:    Stress(s.env),
		Environment:     s.env,
		Warnings:        Warnings(s.env),
		Collapsed:       s.state.Collapsed,
	}
}

func (s *Simulation) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.GrowthHistory = append([]model.GrowthPoint(nil), st.GrowthHistory...)
	st.AdaptationLog = append([]string(nil), st.AdaptationLog...)
	return st
}

func (s *Simulation) Environment() model.Environment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.env
}

func (s *Simulation) StressLevels() StressLevels {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stress(s.env)
}

func (s *Simulation) WriteCSV(w io.Writer) error {
	snap := s.Snapshot()
	return WriteCSV(w, snap.GrowthHistory, snap.ResistanceLevel)
}

// Record converts the simulation into its persisted form. Identity fields
// are left for the caller to assign.
func (s *Simulation) Record() model.GrowthRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.GrowthRun{
		Strain:          s.strain,
		Seed:            s.src.Seed(),
		Ticks:           s.state.TimeStep,
		FinalPopulation: s.state.Population,
		FinalResistance: s.state.Resistance,
		Collapsed:       s.state.Collapsed,
		Environment:     s.env,
		GrowthHistory:   append([]model.GrowthPoint(nil), s.state.GrowthHistory...),
		AdaptationLog:   append([]string(nil), s.state.AdaptationLog...),
	}
}

// WriteCSV writes the growth history. Every row carries the same, current,
// resistance percentage.
func WriteCSV(w io.Writer, history []model.GrowthPoint, resistanceLevel int) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Time", "Population", "Resistance(%)"}); err != nil {
		return err
	}
	level := strconv.Itoa(resistanceLevel)
	for _, p := range history {
		if err := cw.Write([]string{strconv.Itoa(p.Time), strconv.Itoa(p.Population), level}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
