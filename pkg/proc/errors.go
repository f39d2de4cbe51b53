package proc

import (
	"errors"
	"fmt"
)

// ErrTargetLost is returned when a ptrace request fails on a target that
// should still be alive and stopped.
var ErrTargetLost = errors.New("trace target lost")

// ErrProcessExited indicates that the target process has exited.
type ErrProcessExited struct {
	Pid    int
	Status int
}

func (pe ErrProcessExited) Error() string {
	return fmt.Sprintf("Process %d has exited with status %d", pe.Pid, pe.Status)
}
