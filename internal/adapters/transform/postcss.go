package transform

import (
	"context"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
)

const mimeCSS = "text/css"

type browsersOptions struct {
	Browsers []string `opt:"browsers"`
}

// lowerCSS runs stylesheets through esbuild for a set of browser engines.
// Syntax the engines lack, such as nesting or modern color notations, is
// lowered and vendor prefixes they need are added.
type lowerCSS struct {
	name    string
	engines []api.Engine
}

func newLowerCSS(name string, opts map[string]any) (ports.Stage, error) {
	var o browsersOptions
	if err := decode(opts, &o); err != nil {
		return nil, err
	}
	engines, err := parseBrowsers(o.Browsers)
	if err != nil {
		return nil, err
	}
	return &lowerCSS{name: name, engines: engines}, nil
}

func newPresetEnv(opts map[string]any, _ ports.StageEnv) (ports.Stage, error) {
	return newLowerCSS("preset-env", opts)
}

func newAutoprefixer(opts map[string]any, _ ports.StageEnv) (ports.Stage, error) {
	return newLowerCSS("autoprefixer", opts)
}

func (s *lowerCSS) Name() string { return s.name }

func (s *lowerCSS) Process(_ context.Context, f *domain.File) (*domain.File, error) {
	result := api.Transform(string(f.Contents), api.TransformOptions{
		Loader:     api.LoaderCSS,
		Engines:    s.engines,
		Sourcefile: f.SlashRel(),
		LogLevel:   api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return nil, stageError(esbuildError(result.Errors), s.Name(), f)
	}
	f.Contents = result.Code
	return f, nil
}

type cssnanoOptions struct {
	Precision int  `opt:"precision"`
	KeepCSS2  bool `opt:"keepCSS2"`
}

// cssnano minifies stylesheets with the tdewolff css minifier.
type cssnano struct {
	m *minify.M
}

func newCSSNano(opts map[string]any, _ ports.StageEnv) (ports.Stage, error) {
	var o cssnanoOptions
	if err := decode(opts, &o); err != nil {
		return nil, err
	}

	m := minify.New()
	m.Add(mimeCSS, &css.Minifier{Precision: o.Precision, KeepCSS2: o.KeepCSS2})
	return &cssnano{m: m}, nil
}

func (s *cssnano) Name() string { return "cssnano" }

func (s *cssnano) Process(_ context.Context, f *domain.File) (*domain.File, error) {
	out, err := s.m.Bytes(mimeCSS, f.Contents)
	if err != nil {
		return nil, stageError(err, s.Name(), f)
	}
	f.Contents = out
	return f, nil
}
