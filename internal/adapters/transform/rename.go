package transform

import (
	"context"
	"path/filepath"
	"strings"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
)

type renameOptions struct {
	Prefix   string `opt:"prefix"`
	Suffix   string `opt:"suffix"`
	Basename string `opt:"basename"`
	Extname  string `opt:"extname"`
	Dirname  string `opt:"dirname"`
}

// rename rewrites the relative path as dirname/prefix+basename+suffix+extname.
type rename struct {
	opts renameOptions
}

func newRename(opts map[string]any, _ ports.StageEnv) (ports.Stage, error) {
	var o renameOptions
	if err := decode(opts, &o); err != nil {
		return nil, err
	}
	return &rename{opts: o}, nil
}

func (s *rename) Name() string { return "rename" }

func (s *rename) Process(_ context.Context, f *domain.File) (*domain.File, error) {
	dir := filepath.Dir(f.Rel())
	ext := filepath.Ext(f.Path)
	base := strings.TrimSuffix(filepath.Base(f.Path), ext)

	if s.opts.Dirname != "" {
		dir = filepath.FromSlash(s.opts.Dirname)
	}
	if s.opts.Basename != "" {
		base = s.opts.Basename
	}
	if s.opts.Extname != "" {
		ext = s.opts.Extname
	}

	name := s.opts.Prefix + base + s.opts.Suffix + ext
	f.Path = filepath.Join(f.Base, dir, name)
	return f, nil
}
