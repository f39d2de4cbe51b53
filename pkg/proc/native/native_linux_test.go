//go:build linux && amd64

package native

import (
	"errors"
	"os"
	"syscall"
	"testing"

	sys "golang.org/x/sys/unix"

	"github.com/pekd/trace86/pkg/proc"
)

func launchTrue(t *testing.T, cfg LaunchConfig) *Process {
	t.Helper()
	p, err := Launch([]string{"/bin/true"}, cfg)
	if errors.Is(err, syscall.EPERM) {
		t.Skip("ptrace not permitted")
	}
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLaunchStepKill(t *testing.T) {
	p := launchTrue(t, LaunchConfig{DisableASLR: true})
	r, err := p.Registers()
	if err != nil {
		t.Fatal(err)
	}
	if r.PC() == 0 || r.SP() == 0 {
		t.Fatalf("unexpected registers at exec stop: pc %#x sp %#x", r.PC(), r.SP())
	}
	pc := r.PC()

	for i := 0; i < 10; i++ {
		if err := p.Step(0); err != nil {
			t.Fatal(err)
		}
		ev, err := p.Wait()
		if err != nil {
			t.Fatal(err)
		}
		if ev.Kind != proc.StopStep {
			t.Fatalf("expected %v; but was %v (%v)", proc.StopStep, ev.Kind, ev)
		}
	}
	r, err = p.Registers()
	if err != nil {
		t.Fatal(err)
	}
	if r.PC() == pc {
		t.Fatalf("program counter did not move from %#x", pc)
	}

	if err := p.Kill(); err != nil {
		t.Fatal(err)
	}
	ev, err := p.Wait()
	if err != nil {
		t.Fatal(err)
	}
	if ev.Kind != proc.StopKilled || ev.Signal != syscall.SIGKILL {
		t.Fatalf("expected SIGKILL termination; but was %v", ev)
	}
	if !p.Exited() {
		t.Fatalf("process not marked as exited")
	}
	if _, err := p.Registers(); !errors.As(err, &proc.ErrProcessExited{}) {
		t.Fatalf("expected ErrProcessExited; but was %v", err)
	}
}

// isSyscall reports whether the instruction at pc is syscall.
func isSyscall(t *testing.T, p *Process, pc uint64) bool {
	t.Helper()
	var (
		buf [2]byte
		err error
	)
	p.execPtraceFunc(func() { _, err = sys.PtracePeekData(p.pid, uintptr(pc), buf[:]) })
	if err != nil {
		t.Fatalf("reading instruction at %#x: %v", pc, err)
	}
	return buf == [2]byte{0x0f, 0x05}
}

func TestRunToExit(t *testing.T) {
	p := launchTrue(t, LaunchConfig{})
	steps, syscalls := 0, 0
	for {
		r, err := p.Registers()
		if err != nil {
			t.Fatal(err)
		}
		if isSyscall(t, p, r.PC()) {
			syscalls++
		}
		if err := p.Step(0); err != nil {
			t.Fatal(err)
		}
		steps++
		ev, err := p.Wait()
		if err != nil {
			t.Fatal(err)
		}
		if ev.Kind == proc.StopExited {
			if ev.ExitStatus != 0 {
				t.Fatalf("expected exit status 0; but was %d", ev.ExitStatus)
			}
			break
		}
		// steps over syscall instructions included
		if ev.Kind != proc.StopStep || ev.Unsolicited() {
			t.Fatalf("unexpected stop after %d instructions: %v", steps, ev)
		}
	}
	if steps < 100 {
		t.Fatalf("expected at least 100 instructions; but was %d", steps)
	}
	if syscalls == 0 {
		t.Fatalf("expected the program to execute syscall instructions")
	}
}

func TestLaunchErrors(t *testing.T) {
	if _, err := Launch(nil, LaunchConfig{}); err == nil {
		t.Fatalf("expected error for empty command")
	}
	if _, err := Launch([]string{"/nonexistent/program"}, LaunchConfig{}); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected <%v>; but was <%v>", os.ErrNotExist, err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		sig  syscall.Signal
		code int32
		kind proc.StopKind
	}{
		{"single-step", syscall.SIGTRAP, proc.TrapTrace, proc.StopStep},
		{"breakpoint", syscall.SIGTRAP, proc.TrapBrkpt, proc.StopBreakpoint},
		{"other trap", syscall.SIGTRAP, 0x80, proc.StopTrap},
		{"segfault", syscall.SIGSEGV, 1, proc.StopSignal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ev := classify(tc.sig, tc.code)
			if ev.Kind != tc.kind || ev.Signal != tc.sig || ev.Code != tc.code {
				t.Fatalf("expected %v; but was %+v", tc.kind, ev)
			}
		})
	}
}

func TestStepTrap(t *testing.T) {
	brkpt := proc.StopEvent{Kind: proc.StopBreakpoint, Signal: syscall.SIGTRAP, Code: proc.TrapBrkpt}
	tests := []struct {
		name string
		prev byte
		kind proc.StopKind
	}{
		{"after syscall", 0x05, proc.StopStep},
		{"after int3", breakpointInstruction, proc.StopBreakpoint},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ev := stepTrap(brkpt, tc.prev)
			if ev.Kind != tc.kind || ev.Signal != brkpt.Signal || ev.Code != brkpt.Code {
				t.Fatalf("expected %v; but was %+v", tc.kind, ev)
			}
		})
	}
}
