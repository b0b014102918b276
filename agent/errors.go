package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingDataset is returned when a turn is started without a dataset.
	ErrMissingDataset = errors.New("no dataset loaded for this turn")

	// ErrModelNotConfigured is returned when the orchestrator has no model
	// provider to decide with.
	ErrModelNotConfigured = errors.New("no model provider configured")
)

// StepLimitError reports that a turn exceeded its decision budget before the
// model produced a final answer.
type StepLimitError struct {
	Limit int
}

func (e *StepLimitError) Error() string {
	return fmt.Sprintf("turn exceeded the step limit of %d without a final answer", e.Limit)
}
