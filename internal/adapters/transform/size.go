package transform

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
)

type sizeOptions struct {
	ShowFiles bool   `opt:"showFiles"`
	ShowTotal bool   `opt:"showTotal"`
	Title     string `opt:"title"`
}

// size reports the size of every file reaching it and a total once the stream ends.
type size struct {
	opts   sizeOptions
	logger ports.Logger

	files int
	total uint64
}

func newSize(opts map[string]any, env ports.StageEnv) (ports.Stage, error) {
	o := sizeOptions{ShowTotal: true, Title: env.Task}
	if err := decode(opts, &o); err != nil {
		return nil, err
	}
	return &size{opts: o, logger: env.Logger}, nil
}

func (s *size) Name() string { return "size" }

func (s *size) Process(_ context.Context, f *domain.File) (*domain.File, error) {
	n := uint64(len(f.Contents))
	s.files++
	s.total += n

	if s.opts.ShowFiles && s.logger != nil {
		s.logger.Info(fmt.Sprintf("%s %s %s", s.opts.Title, f.SlashRel(), humanize.Bytes(n)))
	}
	return f, nil
}

// Finish logs the total unless nothing passed or a single file was already shown.
func (s *size) Finish(_ context.Context) error {
	if !s.opts.ShowTotal || s.logger == nil || s.files == 0 {
		return nil
	}
	if s.opts.ShowFiles && s.files == 1 {
		return nil
	}
	s.logger.Info(fmt.Sprintf("%s all files %s", s.opts.Title, humanize.Bytes(s.total)))
	return nil
}
