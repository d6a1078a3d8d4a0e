package supervisor

import "errors"

var (
	ErrAlreadyRunning = errors.New("supervisor: already running")
	ErrStopped        = errors.New("supervisor: stopped")
	ErrNotStarted     = errors.New("supervisor: manager not started")
)
