//go:build linux && amd64

package native

import (
	"syscall"
	"unsafe"

	sys "golang.org/x/sys/unix"

	"github.com/pekd/trace86/pkg/proc/amd64util"
)

// ptraceSingleStep executes ptrace PTRACE_SINGLESTEP, delivering sig to
// the tracee (0 for none).
func ptraceSingleStep(pid, sig int) error {
	_, _, e1 := sys.Syscall6(sys.SYS_PTRACE, uintptr(sys.PTRACE_SINGLESTEP), uintptr(pid), uintptr(0), uintptr(sig), 0, 0)
	if e1 != 0 {
		return e1
	}
	return nil
}

// ptraceGetRegs executes ptrace PTRACE_GETREGS.
func ptraceGetRegs(pid int, regs *amd64util.PtraceRegs) error {
	return sys.PtraceGetRegs(pid, (*sys.PtraceRegs)(regs))
}

// ptraceGetFpRegs executes ptrace PTRACE_GETFPREGS.
func ptraceGetFpRegs(pid int, fpregs *amd64util.PtraceFpRegs) error {
	_, _, err := syscall.Syscall6(syscall.SYS_PTRACE, sys.PTRACE_GETFPREGS, uintptr(pid), uintptr(0), uintptr(unsafe.Pointer(fpregs)), 0, 0)
	if err != syscall.Errno(0) {
		return err
	}
	return nil
}

// siginfo mirrors the head of siginfo_t, which is all that is needed to
// classify a stop.
type siginfo struct {
	Signo int32
	Errno int32
	Code  int32
	_     int32
	_     [112]byte
}

// ptraceGetSiginfo executes ptrace PTRACE_GETSIGINFO. It fails with EINVAL
// for group-stops.
func ptraceGetSiginfo(pid int, info *siginfo) error {
	_, _, err := syscall.Syscall6(syscall.SYS_PTRACE, sys.PTRACE_GETSIGINFO, uintptr(pid), uintptr(0), uintptr(unsafe.Pointer(info)), 0, 0)
	if err != syscall.Errno(0) {
		return err
	}
	return nil
}

// killProcess sends SIGKILL to the target.
func killProcess(pid int) error {
	return sys.Kill(pid, sys.SIGKILL)
}
