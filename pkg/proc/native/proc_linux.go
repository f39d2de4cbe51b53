//go:build linux && amd64

package native

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	sys "golang.org/x/sys/unix"

	"github.com/pekd/trace86/pkg/logflags"
	"github.com/pekd/trace86/pkg/proc"
	"github.com/pekd/trace86/pkg/proc/amd64util"
)

const (
	personalityGetPersonality = 0xffffffff // argument to pass to personality syscall to get the current personality
	_ADDR_NO_RANDOMIZE        = 0x0040000  // ADDR_NO_RANDOMIZE linux constant
)

// LaunchConfig holds the options used to start a target.
type LaunchConfig struct {
	// WorkingDir is the working directory of the target, empty for the
	// current one.
	WorkingDir string
	// DisableASLR turns off address space randomization for the target.
	DisableASLR bool
	// Stdin, Stdout and Stderr default to the ones of this process.
	Stdin, Stdout, Stderr *os.File
}

// Launch starts cmd[0] with arguments cmd under ptrace. When Launch
// returns the target is stopped right after execve, before executing its
// first instruction.
func Launch(cmd []string, cfg LaunchConfig) (*Process, error) {
	if len(cmd) == 0 {
		return nil, fmt.Errorf("no program to launch")
	}
	var (
		process *exec.Cmd
		err     error
	)

	dbp := newProcess(0)
	dbp.execPtraceFunc(func() {
		if cfg.DisableASLR {
			oldPersonality, _, err := syscall.Syscall(sys.SYS_PERSONALITY, personalityGetPersonality, 0, 0)
			if err == syscall.Errno(0) {
				newPersonality := oldPersonality | _ADDR_NO_RANDOMIZE
				syscall.Syscall(sys.SYS_PERSONALITY, newPersonality, 0, 0)
				defer syscall.Syscall(sys.SYS_PERSONALITY, oldPersonality, 0, 0)
			}
		}

		process = exec.Command(cmd[0])
		process.Args = cmd
		process.Stdin = orFile(cfg.Stdin, os.Stdin)
		process.Stdout = orFile(cfg.Stdout, os.Stdout)
		process.Stderr = orFile(cfg.Stderr, os.Stderr)
		process.SysProcAttr = &syscall.SysProcAttr{Ptrace: true}
		if cfg.WorkingDir != "" {
			process.Dir = cfg.WorkingDir
		}
		err = process.Start()
	})
	if err != nil {
		dbp.postExit()
		return nil, err
	}
	dbp.pid = process.Process.Pid
	dbp.log = dbp.log.WithField("pid", dbp.pid)

	ev, err := dbp.Wait()
	if err != nil {
		_ = dbp.Kill()
		return nil, fmt.Errorf("waiting for target execve failed: %w", err)
	}
	if ev.Terminated() {
		return nil, proc.ErrProcessExited{Pid: dbp.pid, Status: ev.ExitStatus}
	}
	dbp.log.Debugf("launched %q, stopped at execve (%v)", cmd[0], ev.Kind)
	return dbp, nil
}

func orFile(f, def *os.File) *os.File {
	if f != nil {
		return f
	}
	return def
}

// Wait blocks until the target stops or terminates and classifies the
// reason.
func (dbp *Process) Wait() (proc.StopEvent, error) {
	if dbp.exited {
		return proc.StopEvent{}, proc.ErrProcessExited{Pid: dbp.pid}
	}
	var status sys.WaitStatus
	for {
		_, err := sys.Wait4(dbp.pid, &status, sys.WALL, nil)
		if err == sys.EINTR {
			continue
		}
		if err != nil {
			return proc.StopEvent{}, fmt.Errorf("%w: wait4(%d): %v", proc.ErrTargetLost, dbp.pid, err)
		}
		break
	}

	switch {
	case status.Exited():
		dbp.postExit()
		return proc.StopEvent{Kind: proc.StopExited, ExitStatus: status.ExitStatus()}, nil
	case status.Signaled():
		dbp.postExit()
		return proc.StopEvent{Kind: proc.StopKilled, Signal: status.Signal(), ExitStatus: -int(status.Signal())}, nil
	case status.Stopped():
	default:
		return proc.StopEvent{}, fmt.Errorf("%w: unexpected wait status %#x", proc.ErrTargetLost, uint32(status))
	}

	stepping := dbp.stepping
	dbp.stepping = false

	sig := status.StopSignal()
	var (
		info siginfo
		err  error
	)
	dbp.execPtraceFunc(func() { err = ptraceGetSiginfo(dbp.pid, &info) })
	if err == sys.EINVAL {
		// group-stop, there is no siginfo
		dbp.log.Debugf("group-stop %v", sig)
		return proc.StopEvent{Kind: proc.StopSignal, Signal: sig, GroupStop: true}, nil
	}
	if err != nil {
		return proc.StopEvent{}, fmt.Errorf("%w: PTRACE_GETSIGINFO: %v", proc.ErrTargetLost, err)
	}
	ev := classify(sig, info.Code)
	if ev.Kind == proc.StopBreakpoint && stepping {
		prev, err := dbp.prevInstructionByte()
		if err != nil {
			return proc.StopEvent{}, fmt.Errorf("%w: reading instruction before pc: %v", proc.ErrTargetLost, err)
		}
		ev = stepTrap(ev, prev)
	}
	if logflags.Native() {
		dbp.log.Debugf("stop %v signal=%v code=%d", ev.Kind, sig, info.Code)
	}
	return ev, nil
}

// breakpointInstruction is int3.
const breakpointInstruction = 0xCC

// stepTrap reclassifies a TRAP_BRKPT stop that followed a single-step.
// Stepping over a syscall instruction reports TRAP_BRKPT instead of
// TRAP_TRACE, so the stop is a breakpoint only if the instruction ending
// right before the program counter, whose last byte is prev, is int3.
func stepTrap(ev proc.StopEvent, prev byte) proc.StopEvent {
	if prev != breakpointInstruction {
		ev.Kind = proc.StopStep
	}
	return ev
}

func (dbp *Process) prevInstructionByte() (byte, error) {
	var (
		regs amd64util.PtraceRegs
		buf  [1]byte
		err  error
	)
	dbp.execPtraceFunc(func() {
		if err = ptraceGetRegs(dbp.pid, &regs); err != nil {
			return
		}
		_, err = sys.PtracePeekData(dbp.pid, uintptr(regs.Rip-1), buf[:])
	})
	return buf[0], err
}

func classify(sig syscall.Signal, code int32) proc.StopEvent {
	ev := proc.StopEvent{Signal: sig, Code: code}
	if sig != sys.SIGTRAP {
		ev.Kind = proc.StopSignal
		return ev
	}
	switch code {
	case proc.TrapTrace:
		ev.Kind = proc.StopStep
	case proc.TrapBrkpt:
		ev.Kind = proc.StopBreakpoint
	default:
		ev.Kind = proc.StopTrap
	}
	return ev
}

// Step resumes the target for exactly one instruction, delivering sig
// (0 for none).
func (dbp *Process) Step(sig syscall.Signal) error {
	if dbp.exited {
		return proc.ErrProcessExited{Pid: dbp.pid}
	}
	var err error
	dbp.execPtraceFunc(func() { err = ptraceSingleStep(dbp.pid, int(sig)) })
	if err != nil {
		return fmt.Errorf("%w: PTRACE_SINGLESTEP: %v", proc.ErrTargetLost, err)
	}
	dbp.stepping = true
	return nil
}

// Kill terminates the target. Its exit still has to be collected with
// Wait.
func (dbp *Process) Kill() error {
	if dbp.exited {
		return nil
	}
	return killProcess(dbp.pid)
}
