package transform

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	_ "image/gif" // Registers the GIF decoder for dimension helpers.
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

type assetsOptions struct {
	BasePath    string   `opt:"basePath"`
	LoadPaths   []string `opt:"loadPaths"`
	BaseURL     string   `opt:"baseUrl"`
	Cachebuster bool     `opt:"cachebuster"`
}

// assets resolves the resolve(), inline(), width(), height() and size()
// helpers against files below basePath.
type assets struct {
	opts assetsOptions
	base string
}

func newAssets(opts map[string]any, env ports.StageEnv) (ports.Stage, error) {
	o := assetsOptions{BasePath: ".", BaseURL: "/"}
	if err := decode(opts, &o); err != nil {
		return nil, err
	}
	if !strings.HasSuffix(o.BaseURL, "/") {
		o.BaseURL += "/"
	}
	return &assets{opts: o, base: filepath.Join(env.Root, filepath.FromSlash(o.BasePath))}, nil
}

func (s *assets) Name() string { return "assets" }

var assetHelpers = map[string]bool{
	"resolve(": true,
	"inline(":  true,
	"width(":   true,
	"height(":  true,
	"size(":    true,
}

func (s *assets) Process(_ context.Context, f *domain.File) (*domain.File, error) {
	var (
		out    bytes.Buffer
		helper string
		args   []byte
		depth  int
	)

	l := css.NewLexer(parse.NewInputBytes(f.Contents))
	for {
		tt, data := l.Next()
		if tt == css.ErrorToken {
			if err := l.Err(); err != nil && !errors.Is(err, io.EOF) {
				return nil, stageError(err, s.Name(), f)
			}
			break
		}

		if helper == "" {
			name := strings.ToLower(string(data))
			if tt == css.FunctionToken && assetHelpers[name] {
				helper, args, depth = name, nil, 1
				continue
			}
			out.Write(data)
			continue
		}

		switch tt {
		case css.FunctionToken, css.LeftParenthesisToken:
			depth++
		case css.RightParenthesisToken:
			depth--
		}
		if depth > 0 {
			args = append(args, data...)
			continue
		}

		value, err := s.expand(strings.TrimSuffix(helper, "("), string(args))
		if err != nil {
			return nil, stageError(err, s.Name(), f)
		}
		out.WriteString(value)
		helper = ""
	}

	if helper != "" {
		return nil, stageError(domain.Annotate(domain.ErrStylesheetSyntax, "reason", "unclosed "+helper+")"), s.Name(), f)
	}

	f.Contents = out.Bytes()
	return f, nil
}

func (s *assets) expand(helper, rawArgs string) (string, error) {
	// Only the first argument names the file; size helpers may carry a density.
	arg := strings.TrimSpace(strings.SplitN(rawArgs, ",", 2)[0])
	arg = string(unquote([]byte(arg)))

	file, rel, err := s.find(arg)
	if err != nil {
		return "", err
	}

	switch helper {
	case "resolve":
		u := s.opts.BaseURL + rel
		if s.opts.Cachebuster {
			data, err := os.ReadFile(file)
			if err != nil {
				return "", domain.Annotate(domain.ErrAssetNotFound, "asset", arg)
			}
			u += "?" + strconv.FormatUint(xxhash.Sum64(data), 36)
		}
		return `url("` + u + `")`, nil

	case "inline":
		//nolint:gosec // file is resolved below the configured base path
		data, err := os.ReadFile(file)
		if err != nil {
			return "", domain.Annotate(domain.ErrAssetNotFound, "asset", arg)
		}
		return `url("data:` + mimeType(file, data) + `;base64,` + base64.StdEncoding.EncodeToString(data) + `")`, nil

	default:
		w, h, err := dimensions(file)
		if err != nil {
			return "", zerr.With(zerr.Wrap(err, "failed to read image dimensions"), "asset", arg)
		}
		switch helper {
		case "width":
			return strconv.Itoa(w) + "px", nil
		case "height":
			return strconv.Itoa(h) + "px", nil
		default:
			return strconv.Itoa(w) + "px " + strconv.Itoa(h) + "px", nil
		}
	}
}

// find searches each load path below the base path, then the base path itself.
// It returns the absolute file and its slash path relative to the base path.
func (s *assets) find(name string) (string, string, error) {
	clean := path.Clean("/" + name)[1:]
	candidates := make([]string, 0, len(s.opts.LoadPaths)+1)
	for _, lp := range s.opts.LoadPaths {
		candidates = append(candidates, path.Join(filepath.ToSlash(lp), clean))
	}
	candidates = append(candidates, clean)

	for _, rel := range candidates {
		file := filepath.Join(s.base, filepath.FromSlash(rel))
		if info, err := os.Stat(file); err == nil && info.Mode().IsRegular() {
			return file, rel, nil
		}
	}
	return "", "", domain.Annotate(domain.ErrAssetNotFound, "asset", name)
}

func mimeType(file string, data []byte) string {
	if strings.EqualFold(filepath.Ext(file), ".svg") {
		return "image/svg+xml"
	}
	if t := mime.TypeByExtension(filepath.Ext(file)); t != "" {
		return strings.SplitN(t, ";", 2)[0]
	}
	return http.DetectContentType(data)
}

func dimensions(file string) (int, int, error) {
	//nolint:gosec // file is resolved below the configured base path
	fh, err := os.Open(file)
	if err != nil {
		return 0, 0, err
	}
	defer fh.Close()

	cfg, _, err := image.DecodeConfig(fh)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
