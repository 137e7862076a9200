package ports

import (
	"context"

	"go.trai.ch/kiln/internal/core/domain"
)

// Stage transforms one file record.
// Returning a nil file drops the record from the stream.
type Stage interface {
	Name() string
	Process(ctx context.Context, f *domain.File) (*domain.File, error)
}

// Finisher is implemented by stages that report once the stream has ended.
type Finisher interface {
	Finish(ctx context.Context) error
}

// StageEnv is what a stage may know about the task building it.
type StageEnv struct {
	// Task is the name of the pipeline task.
	Task string
	// Root is the absolute project root.
	Root string
	// Dest is the absolute destination directory of the pipeline.
	Dest   string
	Logger Logger
}

// StageCatalog builds stages from their configuration.
// A fresh stage is built for every pipeline run.
type StageCatalog interface {
	New(cfg domain.StageConfig, env StageEnv) (Stage, error)
}
