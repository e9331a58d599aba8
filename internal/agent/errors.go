package agent

import "fmt"

// MaxIterationsError is returned when the model keeps requesting
// capabilities past the configured iteration limit.
type MaxIterationsError struct {
	Limit int
}

func (e *MaxIterationsError) Error() string {
	return fmt.Sprintf("max iterations exceeded (%d)", e.Limit)
}
