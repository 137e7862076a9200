package ports

import (
	"context"

	"go.trai.ch/kiln/internal/core/domain"
)

// Reloader notifies connected browser sessions.
// Both calls are non-blocking and safe before the server has started.
//
//go:generate mockgen -source=reloader.go -destination=mocks/mock_reloader.go -package=mocks
type Reloader interface {
	// Reload asks every client to reload the page.
	Reload()
	// Inject asks every client to refresh the given stylesheets in place.
	// Paths are absolute file paths of the written outputs.
	Inject(paths []string)
}

// ReloadServer is the process-wide live-reload server.
type ReloadServer interface {
	Reloader
	// Start serves root/spec.Root and returns the server URL once listening.
	// Serving stops when ctx is cancelled.
	Start(ctx context.Context, root string, spec domain.ServeSpec) (string, error)
	// Wait blocks until the server has shut down.
	Wait() error
}
