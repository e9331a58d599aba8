package capability

import "fmt"

// NotFoundError is returned when no capability is registered under the requested name.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("capability not found: %s", e.Name)
}

// ExecutionError wraps any failure raised by a capability so callers see one error shape.
type ExecutionError struct {
	Name    string
	Message string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("capability %s failed: %s", e.Name, e.Message)
}
