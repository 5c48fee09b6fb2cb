package executor

import "fmt"

// Stage names the step of a replica trade that failed.
type Stage string

// Execution stages.
const (
	StageCredential Stage = "credential"
	StageQuote      Stage = "quote"
	StageBuild      Stage = "build"
	StageSubmit     Stage = "submit"
	StageConfirm    Stage = "confirm"
)

// ExecutionError is a failed replica trade.
type ExecutionError struct {
	Stage Stage
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
