// Package platform runs simulations over wall-clock time: a Driver steps a
// simulation at a fixed cadence under pause/resume/reset/stop control, and a
// Supervisor keeps the serve process's long-running tasks alive.
package platform

import (
	"context"
	"sync"
	"time"
)

const (
	MutationInterval = 800 * time.Millisecond
	GrowthInterval   = 300 * time.Millisecond
)

// Stepper is one simulation as seen by the driver.
type Stepper interface {
	// Step advances one unit of simulated time and reports whether the
	// simulation has finished.
	Step(ctx context.Context) (done bool, err error)
	Reset()
}

type Command string

const (
	CommandPause  Command = "pause"
	CommandResume Command = "resume"
	CommandReset  Command = "reset"
	CommandStop   Command = "stop"
)

type DriverState string

const (
	StateIdle    DriverState = "idle"
	StateRunning DriverState = "running"
	StatePaused  DriverState = "paused"
	StateDone    DriverState = "done"
	StateStopped DriverState = "stopped"
)

type DriverStatus struct {
	State DriverState `json:"state"`
	Steps int         `json:"steps"`
}

// Driver calls Step at a fixed interval. An interval of zero steps as fast
// as possible. Steps never overlap and commands are applied between steps.
type Driver struct {
	interval time.Duration
	commands chan Command

	mu       sync.Mutex
	state    DriverState
	steps    int
	onChange func(DriverStatus)
}

func NewDriver(interval time.Duration) *Driver {
	if interval < 0 {
		interval = 0
	}
	return &Driver{
		interval: interval,
		commands: make(chan Command, 16),
		state:    StateIdle,
	}
}

// OnChange registers a callback invoked after every state change and step.
// It must be set before Run.
func (d *Driver) OnChange(fn func(DriverStatus)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onChange = fn
}

func (d *Driver) Pause()  { d.send(CommandPause) }
func (d *Driver) Resume() { d.send(CommandResume) }
func (d *Driver) Reset()  { d.send(CommandReset) }
func (d *Driver) Stop()   { d.send(CommandStop) }

// send drops the command when the queue is full; a caller flooding the
// driver gets the commands already queued applied first.
func (d *Driver) send(cmd Command) {
	select {
	case d.commands <- cmd:
	default:
	}
}

func (d *Driver) Status() DriverStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DriverStatus{State: d.state, Steps: d.steps}
}

// Run steps s until it reports done, a stop command arrives or ctx is
// cancelled. A reset rewinds s and leaves the driver paused until resumed.
func (d *Driver) Run(ctx context.Context, s Stepper) error {
	return d.run(ctx, s, false)
}

// Serve is Run for long-lived simulations: when s reports done the driver
// stays in StateDone and keeps taking commands, so a reset rewinds s and
// a later resume steps it again. Serve returns on stop or cancellation.
func (d *Driver) Serve(ctx context.Context, s Stepper) error {
	return d.run(ctx, s, true)
}

func (d *Driver) run(ctx context.Context, s Stepper, hold bool) error {
	d.setState(StateRunning)

	var tick <-chan time.Time
	if d.interval > 0 {
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if d.Status().State == StatePaused {
			select {
			case <-ctx.Done():
				d.setState(StateStopped)
				return ctx.Err()
			case cmd := <-d.commands:
				if stop := d.apply(cmd, s); stop {
					return nil
				}
			}
			continue
		}

		if tick != nil {
			select {
			case <-ctx.Done():
				d.setState(StateStopped)
				return ctx.Err()
			case cmd := <-d.commands:
				if stop := d.apply(cmd, s); stop {
					return nil
				}
				continue
			case <-tick:
			}
		} else {
			select {
			case <-ctx.Done():
				d.setState(StateStopped)
				return ctx.Err()
			case cmd := <-d.commands:
				if stop := d.apply(cmd, s); stop {
					return nil
				}
				continue
			default:
			}
		}

		done, err := s.Step(ctx)
		if err != nil {
			d.setState(StateStopped)
			return err
		}
		d.mu.Lock()
		d.steps++
		d.mu.Unlock()
		if done {
			d.setState(StateDone)
			if !hold {
				return nil
			}
			if stop, err := d.awaitReset(ctx, s); stop {
				return err
			}
			continue
		}
		d.notify()
	}
}

// awaitReset blocks a finished driver until a reset or stop arrives.
// Pause and resume have nothing to act on and are dropped.
func (d *Driver) awaitReset(ctx context.Context, s Stepper) (stop bool, err error) {
	for {
		select {
		case <-ctx.Done():
			d.setState(StateStopped)
			return true, ctx.Err()
		case cmd := <-d.commands:
			if cmd == CommandReset || cmd == CommandStop {
				return d.apply(cmd, s), nil
			}
		}
	}
}

func (d *Driver) apply(cmd Command, s Stepper) (stop bool) {
	switch cmd {
	case CommandPause:
		d.setState(StatePaused)
	case CommandResume:
		d.setState(StateRunning)
	case CommandReset:
		s.Reset()
		d.mu.Lock()
		d.steps = 0
		d.mu.Unlock()
		d.setState(StatePaused)
	case CommandStop:
		d.setState(StateStopped)
		return true
	}
	return false
}

func (d *Driver) setState(state DriverState) {
	d.mu.Lock()
	d.state = state
	d.mu.Unlock()
	d.notify()
}

func (d *Driver) notify() {
	d.mu.Lock()
	fn := d.onChange
	status := DriverStatus{State: d.state, Steps: d.steps}
	d.mu.Unlock()
	if fn != nil {
		fn(status)
	}
}
