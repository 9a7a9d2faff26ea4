package dispatch

import "fmt"

// ValidationError rejects a request before any agent is called.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// DispatchError wraps any failure that happened while an agent was running.
type DispatchError struct {
	Agent string
	Err   error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("agent %s: %v", e.Agent, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// UserMessage is the text shown to the user for this failure.
func (e *DispatchError) UserMessage() string {
	return "An error occurred: " + e.Err.Error()
}
