package session

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidConfig          = errors.New("invalid recording config")
	ErrSessionAlreadyActive   = errors.New("a recording session is already active")
	ErrNoActiveSession        = errors.New("no active recording session")
	ErrCaptureSetupFailed     = errors.New("capture setup failed")
	ErrPauseUnsupported       = errors.New("pause is not supported by the encoder")
	ErrTeardownPartialFailure = errors.New("teardown partially failed")
	ErrEncoder                = errors.New("encoder error")
	ErrInvalidTransition      = errors.New("invalid state transition")
)

// TeardownStep names one resource released during teardown.
type TeardownStep string

const (
	StepFinalizeEncoder TeardownStep = "finalize encoder"
	StepReleaseSurface  TeardownStep = "release surface"
	StepReleaseGrant    TeardownStep = "release grant"
)

// StepError records one failed teardown step.
type StepError struct {
	Step TeardownStep
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// TeardownError aggregates every step that failed while releasing a
// session. It matches ErrTeardownPartialFailure with errors.Is.
type TeardownError struct {
	SessionID string
	Steps     []*StepError
}

func (e *TeardownError) Error() string {
	parts := make([]string, 0, len(e.Steps))
	for _, s := range e.Steps {
		parts = append(parts, s.Error())
	}
	return fmt.Sprintf("teardown of session %s partially failed: %s", e.SessionID, strings.Join(parts, "; "))
}

func (e *TeardownError) Unwrap() []error {
	errs := make([]error, 0, len(e.Steps)+1)
	errs = append(errs, ErrTeardownPartialFailure)
	for _, s := range e.Steps {
		errs = append(errs, s)
	}
	return errs
}

// Failed reports whether the given step is among the failures.
func (e *TeardownError) Failed(step TeardownStep) bool {
	for _, s := range e.Steps {
		if s.Step == step {
			return true
		}
	}
	return false
}

// Code maps an error onto its wire name. Unknown errors map to "error".
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, ErrSessionAlreadyActive):
		return "session_already_active"
	case errors.Is(err, ErrNoActiveSession):
		return "no_active_session"
	case errors.Is(err, ErrCaptureSetupFailed):
		return "capture_setup_failed"
	case errors.Is(err, ErrPauseUnsupported):
		return "pause_unsupported"
	case errors.Is(err, ErrTeardownPartialFailure):
		return "teardown_partial_failure"
	case errors.Is(err, ErrEncoder):
		return "encoder_error"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	}
	return "error"
}

// ErrorForCode is the inverse of Code for the session sentinels.
func ErrorForCode(code string) error {
	switch code {
	case "invalid_config":
		return ErrInvalidConfig
	case "session_already_active":
		return ErrSessionAlreadyActive
	case "no_active_session":
		return ErrNoActiveSession
	case "capture_setup_failed":
		return ErrCaptureSetupFailed
	case "pause_unsupported":
		return ErrPauseUnsupported
	case "teardown_partial_failure":
		return ErrTeardownPartialFailure
	case "encoder_error":
		return ErrEncoder
	case "invalid_transition":
		return ErrInvalidTransition
	}
	return nil
}
