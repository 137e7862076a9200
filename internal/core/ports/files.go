package ports

import (
	"context"
	"iter"

	"go.trai.ch/kiln/internal/core/domain"
)

// FileSource selects and reads the files a pipeline consumes.
type FileSource interface {
	// Files lazily yields the files under root matching patterns.
	// A pattern whose base directory does not exist yields nothing.
	Files(ctx context.Context, root string, patterns []domain.GlobPattern) iter.Seq2[*domain.File, error]
}

// FileSink writes pipeline outputs.
type FileSink interface {
	// Write stores f under destDir at f.Rel() and returns the written absolute path.
	Write(ctx context.Context, destDir string, f *domain.File) (string, error)
}
