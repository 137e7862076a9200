package transform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

type sassOptions struct {
	ImagePath       string `opt:"imagePath"`
	Precision       int    `opt:"precision"`
	ErrLogToConsole bool   `opt:"errLogToConsole"`
	OutputStyle     string `opt:"outputStyle"`
}

// sass compiles stylesheets: it validates the token structure, resolves
// image-url() against imagePath, rounds numbers and drops partials.
type sass struct {
	opts   sassOptions
	logger ports.Logger
}

func newSass(opts map[string]any, env ports.StageEnv) (ports.Stage, error) {
	o := sassOptions{Precision: 5, OutputStyle: "nested"}
	if err := decode(opts, &o); err != nil {
		return nil, err
	}
	if o.Precision < 0 || o.Precision > 10 {
		return nil, domain.Annotate(domain.ErrInvalidStageOptions, "precision", o.Precision)
	}
	return &sass{opts: o, logger: env.Logger}, nil
}

func (s *sass) Name() string { return "sass" }

func (s *sass) Process(_ context.Context, f *domain.File) (*domain.File, error) {
	if strings.HasPrefix(filepath.Base(f.Path), "_") {
		return nil, nil
	}

	out, err := s.compile(f.Contents)
	if err != nil {
		err = zerr.With(err, "file", f.SlashRel())
		if s.opts.ErrLogToConsole && s.logger != nil {
			s.logger.Error(err)
			return nil, nil
		}
		return nil, stageError(err, s.Name(), f)
	}

	f.Contents = out
	switch f.Ext() {
	case ".scss", ".sass":
		f.SetExt(".css")
	}
	return f, nil
}

var closers = map[css.TokenType]css.TokenType{
	css.LeftBraceToken:       css.RightBraceToken,
	css.LeftBracketToken:     css.RightBracketToken,
	css.LeftParenthesisToken: css.RightParenthesisToken,
	css.FunctionToken:        css.RightParenthesisToken,
}

type opener struct {
	tt   css.TokenType
	line int
}

// compile rewrites in token by token. Every token is copied unless it is a
// number needing rounding or part of an image-url() call.
func (s *sass) compile(in []byte) ([]byte, error) {
	var (
		out   bytes.Buffer
		stack []opener
		line  = 1
		// Stack depth of the open image-url( call, zero outside one.
		imageURLDepth int
		imageURLArgs  []byte
	)

	l := css.NewLexer(parse.NewInputBytes(in))
	for {
		tt, data := l.Next()
		if tt == css.ErrorToken {
			if err := l.Err(); err != nil && !errors.Is(err, io.EOF) {
				return nil, syntaxError(err.Error(), line)
			}
			break
		}

		switch tt {
		case css.BadStringToken:
			return nil, syntaxError("unterminated string", line)
		case css.BadURLToken:
			return nil, syntaxError("malformed url()", line)
		case css.LeftBraceToken, css.LeftBracketToken, css.LeftParenthesisToken, css.FunctionToken:
			stack = append(stack, opener{tt: tt, line: line})
		case css.RightBraceToken, css.RightBracketToken, css.RightParenthesisToken:
			if len(stack) == 0 || closers[stack[len(stack)-1].tt] != tt {
				return nil, syntaxError(fmt.Sprintf("unexpected %q", data), line)
			}
			stack = stack[:len(stack)-1]
		}

		switch {
		case imageURLDepth > 0:
			if tt == css.RightParenthesisToken && len(stack) < imageURLDepth {
				out.WriteString(s.resolveImageURL(imageURLArgs))
				imageURLDepth, imageURLArgs = 0, nil
			} else {
				imageURLArgs = append(imageURLArgs, data...)
			}
		case tt == css.FunctionToken && strings.EqualFold(string(data), "image-url("):
			imageURLDepth = len(stack)
		case tt == css.NumberToken || tt == css.PercentageToken || tt == css.DimensionToken:
			out.Write(roundNumber(data, s.opts.Precision))
		default:
			out.Write(data)
		}

		line += bytes.Count(data, []byte{'\n'})
	}

	if len(stack) > 0 {
		open := stack[len(stack)-1]
		return nil, syntaxError("unclosed block", open.line)
	}
	return out.Bytes(), nil
}

func (s *sass) resolveImageURL(args []byte) string {
	arg := strings.TrimSpace(string(args))
	arg = string(unquote([]byte(arg)))
	return `url("` + s.opts.ImagePath + arg + `")`
}

func syntaxError(reason string, line int) error {
	err := domain.Annotate(domain.ErrStylesheetSyntax, "reason", reason)
	return zerr.With(err, "line", line)
}

// roundNumber rounds the numeric part of a number, percentage or dimension
// token to precision decimals, keeping the unit. Tokens already within
// precision are returned unchanged.
func roundNumber(tok []byte, precision int) []byte {
	end := numberEnd(tok)
	num, unit := tok[:end], tok[end:]

	dot := bytes.IndexByte(num, '.')
	if dot < 0 || len(num)-dot-1 <= precision || bytes.ContainsAny(num, "eE") {
		return tok
	}

	v, err := strconv.ParseFloat(string(num), 64)
	if err != nil {
		return tok
	}
	scale := math.Pow10(precision)
	v = math.Round(v*scale) / scale

	formatted := strconv.FormatFloat(v, 'f', -1, 64)
	if formatted == "-0" {
		formatted = "0"
	}
	return append([]byte(formatted), unit...)
}

// numberEnd returns the length of the leading CSS number in tok.
func numberEnd(tok []byte) int {
	i := 0
	if i < len(tok) && (tok[i] == '+' || tok[i] == '-') {
		i++
	}
	for i < len(tok) && (tok[i] >= '0' && tok[i] <= '9' || tok[i] == '.') {
		i++
	}
	if i < len(tok) && (tok[i] == 'e' || tok[i] == 'E') {
		j := i + 1
		if j < len(tok) && (tok[j] == '+' || tok[j] == '-') {
			j++
		}
		if j < len(tok) && tok[j] >= '0' && tok[j] <= '9' {
			for j < len(tok) && tok[j] >= '0' && tok[j] <= '9' {
				j++
			}
			i = j
		}
	}
	return i
}
