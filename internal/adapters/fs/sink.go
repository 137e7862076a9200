package fs

import (
	"context"
	"os"
	"path/filepath"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.FileSink = (*Sink)(nil)

// Sink writes pipeline outputs below a destination directory.
type Sink struct{}

// NewSink creates a new Sink.
func NewSink() *Sink {
	return &Sink{}
}

// Write stores f at destDir/f.Rel(), creating parent directories.
// Existing files are overwritten and get a fresh modification time.
func (s *Sink) Write(ctx context.Context, destDir string, f *domain.File) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	out := filepath.Join(destDir, f.Rel())
	if err := os.MkdirAll(filepath.Dir(out), domain.DirPerm); err != nil {
		return "", zerr.With(domain.WrapAs(err, domain.ErrOutputWriteFailed), "file", out)
	}
	if err := os.WriteFile(out, f.Contents, domain.FilePerm); err != nil {
		return "", zerr.With(domain.WrapAs(err, domain.ErrOutputWriteFailed), "file", out)
	}

	return out, nil
}
