package platform

import (
	"context"

	"helixsim/internal/growth"
	"helixsim/internal/mutation"
)

// MutationStepper drives a mutation run one generation per step.
type MutationStepper struct {
	Run          *mutation.Run
	OnGeneration func(mutation.GenerationResult)
}

func (m *MutationStepper) Step(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	result, advanced := m.Run.Step()
	if advanced && m.OnGeneration != nil {
		m.OnGeneration(result)
	}
	return m.Run.Done(), nil
}

func (m *MutationStepper) Reset() {
	m.Run.Reset()
}

// GrowthStepper drives a growth simulation one tick per step. MaxTicks of
// zero runs until stopped.
type GrowthStepper struct {
	Sim      *growth.Simulation
	MaxTicks int
	OnTick   func(growth.Snapshot, []growth.Event)
	OnReset  func(growth.Snapshot)
}

func (g *GrowthStepper) Step(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	snap, events := g.Sim.Tick()
	if g.OnTick != nil {
		g.OnTick(snap, events)
	}
	return g.MaxTicks > 0 && snap.TimeStep >= g.MaxTicks, nil
}

func (g *GrowthStepper) Reset() {
	g.Sim.Reset()
	if g.OnReset != nil {
		g.OnReset(g.Sim.Snapshot())
	}
}
