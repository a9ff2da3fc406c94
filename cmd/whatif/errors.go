package main

import "errors"

// Run errors
var (
	ErrTraceFailed   = errors.New("tracing failed")
	ErrRerunFailed   = errors.New("rerun failed")
	ErrCreateJournal = errors.New("create journal")
	ErrWriteJournal  = errors.New("write journal")
	ErrBuildPolicy   = errors.New("build policy")
)

// History errors
var (
	ErrOpenHistory = errors.New("open history store")
	ErrSaveHistory = errors.New("save run to history")
	ErrLoadHistory = errors.New("load run from history")
	ErrBadDuration = errors.New("invalid duration")
)

// Replay errors
var (
	ErrReplaySource = errors.New("cannot locate recorded run")
)
