//go:build !linux || !amd64

package native

import (
	"errors"
	"os"
	"syscall"

	"github.com/pekd/trace86/pkg/proc"
	"github.com/pekd/trace86/pkg/proc/amd64util"
)

var ErrNativeBackendDisabled = errors.New("native backend only available on linux/amd64")

// LaunchConfig holds the options used to start a target.
type LaunchConfig struct {
	WorkingDir            string
	DisableASLR           bool
	Stdin, Stdout, Stderr *os.File
}

// Process is never instantiated on this platform.
type Process struct{}

// Launch returns ErrNativeBackendDisabled.
func Launch(_ []string, _ LaunchConfig) (*Process, error) {
	return nil, ErrNativeBackendDisabled
}

func (*Process) Pid() int { return 0 }

func (*Process) Exited() bool { return true }

func (*Process) Wait() (proc.StopEvent, error) {
	return proc.StopEvent{}, ErrNativeBackendDisabled
}

func (*Process) Step(syscall.Signal) error { return ErrNativeBackendDisabled }

func (*Process) Kill() error { return ErrNativeBackendDisabled }

func (*Process) Registers() (*amd64util.Registers, error) {
	return nil, ErrNativeBackendDisabled
}
