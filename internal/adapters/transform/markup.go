package transform

import (
	"context"
	"regexp"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
)

const mimeHTML = "text/html"

var scriptMime = regexp.MustCompile("^(application|text)/(x-)?(java|ecma)script$")

type markupOptions struct {
	CollapseWhitespace bool `opt:"collapseWhitespace"`
	RemoveComments     bool `opt:"removeComments"`
	MinifyJS           bool `opt:"minifyJS"`
	MinifyCSS          bool `opt:"minifyCSS"`
}

// markup minifies HTML documents. Anything not asked for is kept, so the
// output differs from the input only by the requested transformations.
type markup struct {
	m *minify.M
}

func newMarkup(opts map[string]any, _ ports.StageEnv) (ports.Stage, error) {
	var o markupOptions
	if err := decode(opts, &o); err != nil {
		return nil, err
	}

	m := minify.New()
	m.Add(mimeHTML, &html.Minifier{
		KeepComments:        !o.RemoveComments,
		KeepSpecialComments: true,
		KeepDefaultAttrVals: true,
		KeepDocumentTags:    true,
		KeepEndTags:         true,
		KeepQuotes:          true,
		KeepWhitespace:      !o.CollapseWhitespace,
	})
	if o.MinifyJS {
		m.AddRegexp(scriptMime, &js.Minifier{Version: 2015})
	}
	if o.MinifyCSS {
		m.AddFunc("text/css", css.Minify)
	}

	return &markup{m: m}, nil
}

func (s *markup) Name() string { return "htmlmin" }

func (s *markup) Process(_ context.Context, f *domain.File) (*domain.File, error) {
	out, err := s.m.Bytes(mimeHTML, f.Contents)
	if err != nil {
		return nil, stageError(err, s.Name(), f)
	}
	f.Contents = out
	return f, nil
}
