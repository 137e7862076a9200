package dispatch

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/internal/adapters/logger"  //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/adapters/reload"  //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/adapters/watcher" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/core/ports"
)

// NodeID is the unique identifier for the watch dispatcher Graft node.
const NodeID graft.ID = "engine.dispatch"

func init() {
	graft.Register(graft.Node[*Dispatcher]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			watcher.NodeID,
			reload.NodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Dispatcher, error) {
			w, err := graft.Dep[ports.Watcher](ctx)
			if err != nil {
				return nil, err
			}

			server, err := graft.Dep[*reload.Server](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			return New(w, server, log, Debounced), nil
		},
	})
}

// Debounced coalesces changes within watcher.DefaultDebounceWindow.
func Debounced(callback func(paths []string)) ports.ChangeBatcher {
	return watcher.NewDebouncer(watcher.DefaultDebounceWindow, callback)
}
