package pipeline

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/internal/adapters/fs"        //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/adapters/logger"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/adapters/manifest"  //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/adapters/reload"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/adapters/transform" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/core/ports"
)

// NodeID is the unique identifier for the pipeline runner Graft node.
const NodeID graft.ID = "engine.pipeline"

func init() {
	graft.Register(graft.Node[*Runner]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			fs.SourceNodeID,
			fs.SinkNodeID,
			transform.NodeID,
			manifest.NodeID,
			reload.NodeID,
			logger.NodeID,
		},
		Run: runNode,
	})
}

func runNode(ctx context.Context) (*Runner, error) {
	source, err := graft.Dep[ports.FileSource](ctx)
	if err != nil {
		return nil, err
	}

	sink, err := graft.Dep[ports.FileSink](ctx)
	if err != nil {
		return nil, err
	}

	catalog, err := graft.Dep[ports.StageCatalog](ctx)
	if err != nil {
		return nil, err
	}

	store, err := graft.Dep[ports.OutputStore](ctx)
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

	return NewRunner(source, sink, catalog, store, server, log), nil
}
