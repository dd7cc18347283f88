package domain

import "errors"

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNoProject        = errors.New("project id not confirmed")
	ErrWatcherStopped   = errors.New("watcher stopped")
)
