package transform

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/internal/core/ports"
)

// NodeID is the unique identifier for the stage catalog Graft node.
const NodeID graft.ID = "adapter.transform"

func init() {
	graft.Register(graft.Node[ports.StageCatalog]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.StageCatalog, error) {
			return NewCatalog(), nil
		},
	})
}
