package simulation

import (
	"errors"
	"fmt"
)

// Parameter validation errors. A rejected setter leaves the simulation
// unchanged.
var (
	ErrOutOfRange       = errors.New("value out of range")
	ErrNotInteger       = errors.New("value is not an integer")
	ErrWrongType        = errors.New("value has wrong type")
	ErrUnknownParameter = errors.New("unknown parameter")
)

// Lifecycle errors returned by Update.
var (
	ErrUnloaded = errors.New("simulation unloaded")
	ErrBusy     = errors.New("simulation update already in progress")
)

// ParameterError reports a rejected parameter value.
type ParameterError struct {
	Name  string
	Value any
	Err   error
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("parameter %s=%v: %v", e.Name, e.Value, e.Err)
}

func (e *ParameterError) Unwrap() error {
	return e.Err
}

func paramErr(name string, value any, err error) error {
	return &ParameterError{Name: name, Value: value, Err: err}
}
