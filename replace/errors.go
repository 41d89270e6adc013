package replace

import "fmt"

// Step names one stage of the replacement state machine.
type Step uint8

const (
	StepRename Step = iota + 1
	StepCreate
	StepStop
	StepStart
	StepRemoveOld
)

func (s Step) String() string {
	switch s {
	case StepRename:
		return "rename"
	case StepCreate:
		return "create"
	case StepStop:
		return "stop"
	case StepStart:
		return "start"
	case StepRemoveOld:
		return "remove-old"
	default:
		return "unknown"
	}
}

// StepError is a replacement step failure. When it reaches the caller the
// original container has been restored under its own name.
type StepError struct {
	Container string
	Step      Step
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("replace %q: %s failed: %v", e.Container, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// RollbackError means the rollback itself failed: the original container is
// stranded under its temporary name (or the half-built replacement still
// occupies the target name). This state is not retried; an operator has to
// resolve it.
type RollbackError struct {
	Container string
	TempName  string
	Cause     error // the step failure that triggered the rollback
	Err       error // the rollback failure
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("replace %q: rollback failed (%v) after %v; container left as %q",
		e.Container, e.Err, e.Cause, e.TempName)
}

func (e *RollbackError) Unwrap() error { return e.Err }
