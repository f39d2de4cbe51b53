package native

import (
	"fmt"

	"github.com/pekd/trace86/pkg/proc"
	"github.com/pekd/trace86/pkg/proc/amd64util"
)

// Registers reads the general purpose and floating point registers of the
// stopped target. Either both reads succeed or no state is returned.
func (dbp *Process) Registers() (*amd64util.Registers, error) {
	if dbp.exited {
		return nil, proc.ErrProcessExited{Pid: dbp.pid}
	}
	var (
		r   amd64util.Registers
		err error
	)
	dbp.execPtraceFunc(func() {
		err = ptraceGetRegs(dbp.pid, &r.Regs)
		if err != nil {
			err = fmt.Errorf("PTRACE_GETREGS: %v", err)
			return
		}
		err = ptraceGetFpRegs(dbp.pid, &r.Fpregs)
		if err != nil {
			err = fmt.Errorf("could not get floating point registers: %v", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", proc.ErrTargetLost, err)
	}
	return &r, nil
}
