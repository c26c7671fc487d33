package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrNoMatch      = errors.New("no matching candidate")
	ErrNoTxHash     = errors.New("no transaction hash")
	ErrRateLimited  = errors.New("rate limited")
	ErrWSDisconnect = errors.New("websocket disconnected")
	ErrContextDone  = errors.New("context cancelled")
	ErrLockHeld     = errors.New("lock already held")
)
