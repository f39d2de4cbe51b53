// Package tracer drives a stopped target one instruction at a time and
// appends a register dump to a trace after every stop.
package tracer

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/pekd/trace86/pkg/logflags"
	"github.com/pekd/trace86/pkg/proc"
	"github.com/pekd/trace86/pkg/proc/amd64util"
	"github.com/pekd/trace86/pkg/snapshot"
	"github.com/pekd/trace86/pkg/traceformat"
)

// ErrAlreadyRun is returned by Run on a controller that already ran.
var ErrAlreadyRun = errors.New("trace already recorded")

// Target is a process stopped under the control of a backend.
type Target interface {
	Pid() int
	// Registers returns the register state of the stopped target.
	Registers() (*amd64util.Registers, error)
	// Step resumes the target for one instruction delivering sig, 0 for
	// none.
	Step(sig syscall.Signal) error
	// Wait blocks until the target stops or terminates.
	Wait() (proc.StopEvent, error)
	// Kill terminates the target, the termination is reported by Wait.
	Kill() error
}

// State is the position of the controller in its lifecycle.
type State uint8

const (
	StateLaunched State = iota // target created and stopped at exec, nothing recorded
	StateStopped               // target stopped, its registers can be read
	StateRunning               // target resumed for one instruction
	StateFinished              // target gone or abandoned, trace ended
)

func (s State) String() string {
	switch s {
	case StateLaunched:
		return "launched"
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Config changes how a trace is recorded.
type Config struct {
	// MaxSteps bounds the number of single-steps, 0 means no bound. When
	// the bound is reached the target is killed.
	MaxSteps uint64
	// ForwardSignals delivers signals received by the target back to it,
	// otherwise they are suppressed.
	ForwardSignals bool
	// OnEvent is called for stops the tracer did not cause.
	OnEvent func(proc.StopEvent)
	// OnTransition is called on every state change.
	OnTransition func(from, to State)
}

// Summary describes a finished trace.
type Summary struct {
	Steps  uint64 // single-steps issued
	Rows   int    // register dumps written
	Events int    // unsolicited stops observed
	// Exited is set when the target terminated while traced, ExitStatus
	// and Signal describe how.
	Exited     bool
	ExitStatus int
	Signal     syscall.Signal
	// Truncated is set when MaxSteps ended the trace.
	Truncated bool
}

// Controller records the execution of one target.
type Controller struct {
	target Target
	w      *traceformat.Writer
	enc    *snapshot.Encoder
	cfg    Config

	state State
	sum   Summary
	log   logflags.Logger
}

// New returns a controller for target, which must be stopped right after
// launch. Rows are encoded with enc and appended to w, whose header has
// not been written yet.
func New(target Target, w *traceformat.Writer, enc *snapshot.Encoder, cfg Config) *Controller {
	return &Controller{
		target: target,
		w:      w,
		enc:    enc,
		cfg:    cfg,
		state:  StateLaunched,
		log:    logflags.TracerLogger().WithField("pid", target.Pid()),
	}
}

// State returns the current state of the controller.
func (c *Controller) State() State {
	return c.state
}

func (c *Controller) transition(to State) {
	from := c.state
	c.state = to
	if c.cfg.OnTransition != nil {
		c.cfg.OnTransition(from, to)
	}
}

// Run single-steps the target until it terminates, the step bound is
// reached or the target is lost. The End record is written on every path
// once the header made it to the trace.
func (c *Controller) Run() (*Summary, error) {
	if c.state != StateLaunched {
		return nil, ErrAlreadyRun
	}
	if err := c.w.WriteHeader(); err != nil {
		c.transition(StateFinished)
		_ = c.target.Kill()
		return nil, err
	}
	err := c.loop()
	if err != nil {
		c.log.WithError(err).Error("tracing stopped")
		if !c.sum.Exited {
			_ = c.target.Kill()
		}
	}
	if endErr := c.w.WriteEnd(); err == nil {
		err = endErr
	}
	c.transition(StateFinished)
	c.log.Debugf("trace finished: %d steps, %d rows", c.sum.Steps, c.sum.Rows)
	return &c.sum, err
}

func lost(op string, err error) error {
	if errors.Is(err, proc.ErrTargetLost) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", proc.ErrTargetLost, op, err)
}

func (c *Controller) loop() error {
	ev := proc.StopEvent{Kind: proc.StopLaunch}
	c.transition(StateStopped)
	for {
		if err := c.stopped(ev); err != nil {
			return err
		}
		if c.cfg.MaxSteps > 0 && c.sum.Steps >= c.cfg.MaxSteps {
			return c.truncate()
		}

		sig := ev.ForwardSignal()
		if sig != 0 && !c.cfg.ForwardSignals {
			if logflags.Tracer() {
				c.log.Debugf("suppressing %v", sig)
			}
			sig = 0
		}
		if err := c.target.Step(sig); err != nil {
			return lost("step", err)
		}
		c.sum.Steps++
		c.transition(StateRunning)

		var err error
		ev, err = c.target.Wait()
		if err != nil {
			return lost("wait", err)
		}
		if ev.Terminated() {
			c.terminated(ev)
			return nil
		}
		c.transition(StateStopped)
	}
}

// stopped records the registers of the stopped target.
func (c *Controller) stopped(ev proc.StopEvent) error {
	if ev.Unsolicited() {
		c.sum.Events++
		c.log.Infof("%v", ev)
		if c.cfg.OnEvent != nil {
			c.cfg.OnEvent(ev)
		}
	}
	r, err := c.target.Registers()
	if err != nil {
		return lost("registers", err)
	}
	if err := c.w.WriteDump(c.enc.Encode(r)); err != nil {
		return err
	}
	c.sum.Rows++
	return nil
}

func (c *Controller) truncate() error {
	c.log.Debugf("step bound %d reached, killing target", c.cfg.MaxSteps)
	c.sum.Truncated = true
	if err := c.target.Kill(); err != nil {
		return lost("kill", err)
	}
	c.transition(StateRunning)
	for {
		ev, err := c.target.Wait()
		if err != nil {
			return lost("wait", err)
		}
		if ev.Terminated() {
			c.terminated(ev)
			return nil
		}
	}
}

func (c *Controller) terminated(ev proc.StopEvent) {
	c.log.Debugf("%v", ev)
	c.sum.Exited = true
	c.sum.ExitStatus = ev.ExitStatus
	if ev.Kind == proc.StopKilled {
		c.sum.Signal = ev.Signal
	}
}
