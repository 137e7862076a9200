package manifest

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/internal/core/ports"
)

// NodeID is the unique identifier for the output manifest Graft node.
const NodeID graft.ID = "adapter.output_store"

func init() {
	graft.Register(graft.Node[ports.OutputStore]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.OutputStore, error) {
			return NewStore(), nil
		},
	})
}
