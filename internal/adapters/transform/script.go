package transform

import (
	"context"
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/js"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

var scriptTargets = map[string]api.Target{
	"es5":    api.ES5,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

var scriptLoaders = map[string]api.Loader{
	".js":  api.LoaderJS,
	".mjs": api.LoaderJS,
	".cjs": api.LoaderJS,
	".jsx": api.LoaderJSX,
	".ts":  api.LoaderTS,
	".mts": api.LoaderTS,
	".tsx": api.LoaderTSX,
}

type transpileOptions struct {
	Target string `opt:"target"`
}

// transpile down-levels modern script syntax with esbuild.
type transpile struct {
	target api.Target
}

func newTranspile(opts map[string]any, _ ports.StageEnv) (ports.Stage, error) {
	o := transpileOptions{Target: "es2015"}
	if err := decode(opts, &o); err != nil {
		return nil, err
	}

	target, ok := scriptTargets[strings.ToLower(o.Target)]
	if !ok {
		return nil, domain.Annotate(domain.ErrInvalidStageOptions, "target", o.Target)
	}
	return &transpile{target: target}, nil
}

func (s *transpile) Name() string { return "transpile" }

func (s *transpile) Process(_ context.Context, f *domain.File) (*domain.File, error) {
	ext := f.Ext()
	loader, ok := scriptLoaders[ext]
	if !ok {
		loader = api.LoaderJS
	}

	result := api.Transform(string(f.Contents), api.TransformOptions{
		Loader:     loader,
		Target:     s.target,
		Sourcefile: f.SlashRel(),
		LogLevel:   api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		return nil, stageError(esbuildError(result.Errors), s.Name(), f)
	}

	f.Contents = result.Code
	if ext != ".js" {
		f.SetExt(".js")
	}
	return f, nil
}

// esbuildError turns the first esbuild message into an error carrying its position.
func esbuildError(msgs []api.Message) error {
	msg := msgs[0]
	err := zerr.New(msg.Text)
	if loc := msg.Location; loc != nil {
		err = zerr.With(err, "position", fmt.Sprintf("%s:%d:%d", loc.File, loc.Line, loc.Column))
	}
	if len(msgs) > 1 {
		err = zerr.With(err, "more_errors", len(msgs)-1)
	}
	return err
}

type uglifyOptions struct {
	Mangle bool `opt:"mangle"`
	// ECMA is the newest syntax year the output may use. Zero allows any.
	ECMA int `opt:"ecma"`
}

// uglify minifies scripts with the tdewolff js minifier.
type uglify struct {
	m *minify.M
}

func newUglify(opts map[string]any, _ ports.StageEnv) (ports.Stage, error) {
	o := uglifyOptions{Mangle: true, ECMA: 2015}
	if err := decode(opts, &o); err != nil {
		return nil, err
	}
	if o.ECMA != 0 && (o.ECMA < 2015 || o.ECMA > 2022) {
		return nil, domain.Annotate(domain.ErrInvalidStageOptions, "ecma", o.ECMA)
	}

	m := minify.New()
	m.Add("application/javascript", &js.Minifier{KeepVarNames: !o.Mangle, Version: o.ECMA})
	return &uglify{m: m}, nil
}

func (s *uglify) Name() string { return "uglify" }

func (s *uglify) Process(_ context.Context, f *domain.File) (*domain.File, error) {
	out, err := s.m.Bytes("application/javascript", f.Contents)
	if err != nil {
		return nil, stageError(err, s.Name(), f)
	}
	f.Contents = out
	return f, nil
}
