package ports

import "context"

// TaskRunner runs a registered task by name through a fresh plan.
type TaskRunner interface {
	RunTask(ctx context.Context, name string) error
}

// ChangeBatcher coalesces bursts of changed paths.
type ChangeBatcher interface {
	// Add records a changed path.
	Add(path string)
	// Stop discards pending paths.
	Stop()
}
