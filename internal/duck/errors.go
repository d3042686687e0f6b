package duck

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingToken is returned when a MotherDuck location is configured without a token.
	ErrMissingToken = errors.New("motherduck token is required for md: locations")

	// ErrReadOnlyMemory is returned when an in-memory database is requested in read-only mode.
	ErrReadOnlyMemory = errors.New("in-memory database cannot be opened read-only")
)

// ConnectionError reports that the engine could not be reached or configured.
type ConnectionError struct {
	Location string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.Location, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// InvalidStateError reports an operation attempted outside the state that allows it.
type InvalidStateError struct {
	Op    string
	State State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s: session is %s", e.Op, e.State)
}

// QueryError carries the engine's diagnostic for a failed statement. Error
// returns the diagnostic unaltered.
type QueryError struct {
	SQL string
	Err error
}

func (e *QueryError) Error() string {
	return e.Err.Error()
}

func (e *QueryError) Unwrap() error {
	return e.Err
}
