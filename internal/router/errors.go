package router

import (
	"errors"
	"fmt"

	"github.com/GriffinCanCode/plwatchdog/internal/router/client"
)

// ErrGaveUp is returned by Restart once every attempt failed.
var ErrGaveUp = errors.New("giving up on restarting router")

// ExtractionError reports that an expected fragment was missing from a
// scraped page, script or response.
type ExtractionError struct {
	What string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("could not extract %s: %v", e.What, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// TransportError reports a failed HTTP exchange during one protocol step.
type TransportError struct {
	Step   string
	Status int // 0 when no response arrived
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s failed with status %d: %v", e.Step, e.Status, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ScriptError reports a failure inside the script sandbox.
type ScriptError struct {
	Op  string
	Err error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("script %s failed: %v", e.Op, e.Err)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

// Kind classifies err for diagnostics.
func Kind(err error) string {
	var (
		extraction *ExtractionError
		transport  *TransportError
		script     *ScriptError
	)
	switch {
	case errors.As(err, &extraction):
		return "extraction"
	case errors.As(err, &transport):
		return "transport"
	case errors.As(err, &script):
		return "script"
	default:
		return "unknown"
	}
}

func transportError(step string, err error) error {
	te := &TransportError{Step: step, Err: err}
	var statusErr *client.StatusError
	if errors.As(err, &statusErr) {
		te.Status = statusErr.Status
	}
	return te
}
