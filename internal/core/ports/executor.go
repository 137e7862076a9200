package ports

import (
	"context"
	"io"

	"go.trai.ch/kiln/internal/core/domain"
)

// Executor runs a single plan step.
//
//go:generate mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type Executor interface {
	// Execute runs the leaf task of step. Progress output goes to out.
	// Watch and serve steps return once their service is running.
	Execute(ctx context.Context, step domain.Step, out io.Writer) error
}
