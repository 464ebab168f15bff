package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/evacsim/internal/timeutil"
)

// ErrStopped is returned by Runner.Run when the run was stopped by command.
var ErrStopped = errors.New("simulation stopped")

type commandKind int

const (
	cmdPause commandKind = iota
	cmdResume
	cmdSpeed
	cmdStop
)

type command struct {
	kind  commandKind
	speed float64
}

// Runner paces a started Controller at a fixed frame interval, publishing a
// snapshot after every tick. Commands sent from other goroutines are applied
// between ticks.
type Runner struct {
	ctrl     *Controller
	clock    timeutil.Clock
	interval time.Duration
	onFrame  func(Snapshot)
	cmds     chan command
	done     chan struct{}
}

// NewRunner wraps ctrl. onFrame may be nil. A non-positive interval uses the
// controller's configured frame interval.
func NewRunner(ctrl *Controller, clock timeutil.Clock, interval time.Duration, onFrame func(Snapshot)) *Runner {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if interval <= 0 {
		interval = ctrl.cfg.FrameInterval
	}
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	return &Runner{
		ctrl:     ctrl,
		clock:    clock,
		interval: interval,
		onFrame:  onFrame,
		cmds:     make(chan command, 8),
		done:     make(chan struct{}),
	}
}

func (r *Runner) send(c command) {
	select {
	case r.cmds <- c:
	case <-r.done:
	}
}

// Pause asks the runner to pause at the next tick boundary.
func (r *Runner) Pause() { r.send(command{kind: cmdPause}) }

// Resume asks the runner to resume a paused run.
func (r *Runner) Resume() { r.send(command{kind: cmdResume}) }

// SetSpeed changes the speed multiplier at the next tick boundary.
func (r *Runner) SetSpeed(s float64) { r.send(command{kind: cmdSpeed, speed: s}) }

// Stop abandons the run at the next tick boundary. No result is produced.
func (r *Runner) Stop() { r.send(command{kind: cmdStop}) }

// Run drives the controller until it finishes, is stopped, or ctx is done.
// The controller must already be started.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	defer close(r.done)

	if s := r.ctrl.State(); s != StateRunning && s != StatePaused {
		return nil, fmt.Errorf("runner start while %s: %w", s, ErrInvalidState)
	}

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.ctrl.Stop()
			return nil, ctx.Err()

		case c := <-r.cmds:
			switch c.kind {
			case cmdPause:
				if err := r.ctrl.Pause(); err != nil {
					diagf("runner pause ignored: %v", err)
				}
			case cmdResume:
				if err := r.ctrl.Resume(); err != nil {
					diagf("runner resume ignored: %v", err)
				}
			case cmdSpeed:
				applied := r.ctrl.SetSpeed(c.speed)
				diagf("runner speed set to %.2fx", applied)
			case cmdStop:
				r.ctrl.Stop()
				return nil, ErrStopped
			}

		case <-ticker.C():
			if r.ctrl.State() != StateRunning {
				continue
			}
			done, err := r.ctrl.Step()
			if err != nil {
				return nil, err
			}
			if r.onFrame != nil {
				r.onFrame(r.ctrl.Snapshot())
			}
			if done {
				return r.ctrl.Result(), nil
			}
		}
	}
}

// RunToCompletion steps a started controller as fast as possible until it
// finishes. maxTicks of zero means no limit beyond the configured time limit.
func RunToCompletion(ctx context.Context, ctrl *Controller, maxTicks int) (*Result, error) {
	for n := 0; maxTicks <= 0 || n < maxTicks; n++ {
		if n%256 == 0 {
			if err := ctx.Err(); err != nil {
				ctrl.Stop()
				return nil, err
			}
		}
		done, err := ctrl.Step()
		if err != nil {
			return nil, err
		}
		if done {
			return ctrl.Result(), nil
		}
	}
	return nil, fmt.Errorf("run %s did not finish within %d ticks", ctrl.RunID(), maxTicks)
}
