package led

import (
	"errors"
	"fmt"

	"github.com/nerrad567/gpioled/internal/chardev"
)

// Per-request write errors. They wrap the chardev write errors so the node
// reports them to clients with the matching status.
var (
	// ErrInvalidCommand is returned for a control byte other than ON or OFF.
	ErrInvalidCommand = fmt.Errorf("led: invalid command: %w", chardev.ErrInvalidArgument)

	// ErrTransferFault is returned when no control byte could be read.
	ErrTransferFault = fmt.Errorf("led: transfer fault: %w", chardev.ErrFault)
)

// Lifecycle errors.
var (
	// ErrAlreadyLoaded is returned by Load on a loaded device.
	ErrAlreadyLoaded = errors.New("led: device already loaded")

	// ErrNotLoaded is returned by Unload on a device that is not loaded.
	ErrNotLoaded = errors.New("led: device not loaded")
)

// Step names a startup step.
type Step string

// Startup steps, in execution order.
const (
	StepAllocateIdentity  Step = "allocate identity"
	StepRegisterInterface Step = "register interface"
	StepPublishNode       Step = "publish node"
	StepResolveNode       Step = "resolve hardware node"
	StepResolvePin        Step = "resolve pin"
	StepClaimPin          Step = "claim pin"
	StepSetDirection      Step = "set direction"
	StepArmToggler        Step = "arm toggler"
)

// StartupError reports the step at which Load failed. Everything acquired
// before that step has been released by the time it is returned.
type StartupError struct {
	Step Step
	Err  error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("led: %s: %v", e.Step, e.Err)
}

func (e *StartupError) Unwrap() error {
	return e.Err
}
