package generator

import "fmt"

// StatusError is returned when the endpoint answers with a non-200 status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chart service returned status %d", e.StatusCode)
}
