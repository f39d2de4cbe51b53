package proc

import (
	"fmt"
	"syscall"
)

// StopKind classifies why the target stopped or terminated.
type StopKind uint8

const (
	// StopLaunch is the stop right after the target was started, before
	// it executed its first instruction.
	StopLaunch StopKind = iota
	// StopStep is the completion of a single-step (SIGTRAP, TRAP_TRACE).
	StopStep
	// StopBreakpoint is a breakpoint trap (SIGTRAP, TRAP_BRKPT). The tracer
	// never sets breakpoints, so this always comes from the target itself.
	StopBreakpoint
	// StopTrap is a SIGTRAP with any other code.
	StopTrap
	// StopSignal is the delivery of any other signal.
	StopSignal
	// StopExited means the target exited normally.
	StopExited
	// StopKilled means the target was terminated by a signal.
	StopKilled
)

func (k StopKind) String() string {
	switch k {
	case StopLaunch:
		return "launch"
	case StopStep:
		return "step"
	case StopBreakpoint:
		return "breakpoint"
	case StopTrap:
		return "trap"
	case StopSignal:
		return "signal"
	case StopExited:
		return "exited"
	case StopKilled:
		return "killed"
	}
	return fmt.Sprintf("StopKind(%d)", uint8(k))
}

// Trap codes carried by SIGTRAP in si_code, see sigaction(2).
const (
	TrapBrkpt = 1
	TrapTrace = 2
)

// StopEvent is one observation of the target state.
type StopEvent struct {
	Kind StopKind
	// Signal is the stop signal, or the terminating signal for StopKilled.
	Signal syscall.Signal
	// Code is si_code of the stop signal.
	Code int32
	// ExitStatus is the exit status for StopExited.
	ExitStatus int
	// GroupStop is set when the target entered a group-stop. Its signal
	// has already been delivered and must not be injected again.
	GroupStop bool
}

// ForwardSignal returns the signal that should be delivered to the target
// when it is resumed after this stop, or 0.
func (ev StopEvent) ForwardSignal() syscall.Signal {
	if ev.Kind != StopSignal || ev.GroupStop {
		return 0
	}
	return ev.Signal
}

// Terminated reports whether the target no longer exists.
func (ev StopEvent) Terminated() bool {
	return ev.Kind == StopExited || ev.Kind == StopKilled
}

// Unsolicited reports whether the stop was not caused by the tracer.
func (ev StopEvent) Unsolicited() bool {
	switch ev.Kind {
	case StopBreakpoint, StopTrap, StopSignal:
		return true
	}
	return false
}

func (ev StopEvent) String() string {
	switch ev.Kind {
	case StopBreakpoint:
		return "Breakpoint? We didn't set one!"
	case StopTrap:
		return fmt.Sprintf("unknown SIGTRAP code: %d", ev.Code)
	case StopSignal:
		if ev.Signal == syscall.SIGSEGV {
			return fmt.Sprintf("SIGSEGV: %d", ev.Code)
		}
		return fmt.Sprintf("Got signal %s", ev.Signal)
	case StopExited:
		return fmt.Sprintf("exited with status %d", ev.ExitStatus)
	case StopKilled:
		return fmt.Sprintf("killed by signal %s", ev.Signal)
	}
	return ev.Kind.String()
}
