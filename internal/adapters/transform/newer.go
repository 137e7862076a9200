package transform

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

type newerOptions struct {
	Dest string `opt:"dest"`
	Ext  string `opt:"ext"`
}

// newer drops files whose destination counterpart is at least as recent as the source.
type newer struct {
	dest string
	ext  string
}

func newNewer(opts map[string]any, env ports.StageEnv) (ports.Stage, error) {
	var o newerOptions
	if err := decode(opts, &o); err != nil {
		return nil, err
	}

	dest := env.Dest
	if o.Dest != "" {
		dest = filepath.Join(env.Root, filepath.FromSlash(o.Dest))
	}
	return &newer{dest: dest, ext: o.Ext}, nil
}

func (s *newer) Name() string { return "newer" }

func (s *newer) Process(_ context.Context, f *domain.File) (*domain.File, error) {
	rel := f.Rel()
	if s.ext != "" {
		rel = rel[:len(rel)-len(filepath.Ext(rel))] + s.ext
	}

	info, err := os.Stat(filepath.Join(s.dest, rel))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return f, nil
	case err != nil:
		return nil, stageError(zerr.Wrap(err, "failed to stat destination"), s.Name(), f)
	case info.ModTime().Before(f.ModTime):
		return f, nil
	default:
		return nil, nil
	}
}
