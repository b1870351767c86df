package daemon

import (
	"errors"

	"github.com/schovi/screenrec/internal/capture"
	"github.com/schovi/screenrec/internal/library"
	"github.com/schovi/screenrec/internal/session"
)

const (
	CodeDeviceBusy = "device_busy"
	CodeNotFound   = "not_found"
	CodeBadRequest = "bad_request"
)

var (
	ErrAlreadyRunning = errors.New("daemon already running")
	ErrBadRequest     = errors.New("bad request")
)

func codeFor(err error) string {
	switch {
	case errors.Is(err, capture.ErrDeviceBusy):
		return CodeDeviceBusy
	case errors.Is(err, capture.ErrNoDisplay):
		return session.Code(session.ErrCaptureSetupFailed)
	case errors.Is(err, library.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrBadRequest):
		return CodeBadRequest
	}
	return session.Code(err)
}

// RemoteError is an error reported by the daemon. It unwraps to the
// sentinel its code names, so errors.Is works across the socket.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

func (e *RemoteError) Unwrap() error {
	switch e.Code {
	case CodeDeviceBusy:
		return capture.ErrDeviceBusy
	case CodeNotFound:
		return library.ErrNotFound
	case CodeBadRequest:
		return ErrBadRequest
	}
	return session.ErrorForCode(e.Code)
}

func errorResponse(err error) Response {
	return Response{Success: false, Error: err.Error(), Code: codeFor(err)}
}
