package history

import "errors"

var (
	ErrDBPathRequired  = errors.New("history database path is required")
	ErrOpenDB          = errors.New("failed to open history database")
	ErrConfigureDB     = errors.New("failed to configure history database")
	ErrMigrateDB       = errors.New("failed to migrate history database")
	ErrSaveRun         = errors.New("failed to save run")
	ErrLoadRun         = errors.New("failed to load run")
	ErrRunNotFound     = errors.New("run not found")
	ErrRemoveRun       = errors.New("failed to remove run")
	ErrOpenInitLock    = errors.New("failed to open history init lock")
	ErrAcquireInitLock = errors.New("failed to acquire history init lock")
)
