package renderer

import (
	"errors"
	"fmt"
)

// ErrSessionLost is returned by Render once the session has entered StateLost.
var ErrSessionLost = errors.New("renderer: session lost")

// ErrNotReady is returned by Render before construction has finished or after Release.
var ErrNotReady = errors.New("renderer: session not ready")

// FrameError is a failure while producing a single frame.
// A non-fatal FrameError means the frame was skipped and the next redraw may succeed.
type FrameError struct {
	Op    string
	Fatal bool
	Err   error
}

func (e *FrameError) Error() string {
	kind := "frame skipped"
	if e.Fatal {
		kind = "fatal"
	}
	return fmt.Sprintf("renderer: %s (%s): %v", e.Op, kind, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err should stop the frame loop. Errors that are not a *FrameError are fatal.
//
// Parameters:
//   - err: the error returned from Render or Resize
//
// Returns:
//   - bool: false for nil and for recoverable frame errors
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var fe *FrameError
	if errors.As(err, &fe) {
		return fe.Fatal
	}
	return true
}
