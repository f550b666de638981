package signals

import (
	"fmt"
)

// #region signal

// PerformanceSignal is what the gate consumes for one pipeline run.
type PerformanceSignal struct {
	Improvement      float64 `json:"improvement"`       // candidate minus production accuracy
	AbsoluteAccuracy float64 `json:"absolute_accuracy"` // candidate accuracy
	FirstDeployment  bool    `json:"first_deployment"`  // no production baseline existed
}

// #endregion signal

// #region errors

// MissingInputError reports a signal that could not be read or parsed.
type MissingInputError struct {
	Name string
	Path string
	Err  error
}

func (e *MissingInputError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("missing input %s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("missing input %s (%s): %v", e.Name, e.Path, e.Err)
}

func (e *MissingInputError) Unwrap() error { return e.Err }

// OutOfRangeError reports a signal value outside its domain.
type OutOfRangeError struct {
	Name  string
	Value float64
	Min   float64
	Max   float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("%s=%v outside [%v, %v]", e.Name, e.Value, e.Min, e.Max)
}

// #endregion errors
