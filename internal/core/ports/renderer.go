package ports

import (
	"context"
	"time"
)

// Renderer turns the telemetry event stream into terminal output.
//
//go:generate mockgen -source=renderer.go -destination=mocks/mock_renderer.go -package=mocks
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// Stop flushes buffered output and stops accepting events.
	Stop() error

	// Wait blocks until the renderer has fully terminated.
	Wait() error

	// OnPlanEmit is called once the plan for a run is known.
	// steps are in execution order, deps maps a step to its predecessors.
	OnPlanEmit(steps []string, deps map[string][]string, targets []string)

	// OnTaskStart is called when a step begins execution.
	OnTaskStart(spanID, parentID, name string, startTime time.Time)

	// OnTaskLog is called when a step emits output.
	OnTaskLog(spanID string, data []byte)

	// OnTaskComplete is called when a step finishes. err is nil on success.
	OnTaskComplete(spanID string, endTime time.Time, err error)
}
