package transform

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/dustin/go-humanize"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/svg"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

const mimeSVG = "image/svg+xml"

type svgoOptions struct {
	RemoveViewBox bool `opt:"removeViewBox"`
	CleanupIDs    bool `opt:"cleanupIDs"`
}

type imageminOptions struct {
	SVGO        svgoOptions `opt:"svgo"`
	JPEGQuality int         `opt:"jpegQuality"`
	Verbose     bool        `opt:"verbose"`
}

// imagemin optimizes SVG, PNG and JPEG images. Other files pass through.
type imagemin struct {
	opts   imageminOptions
	logger ports.Logger
	m      *minify.M

	images int
	saved  int64
	before int64
}

func newImagemin(opts map[string]any, env ports.StageEnv) (ports.Stage, error) {
	o := imageminOptions{SVGO: svgoOptions{RemoveViewBox: true, CleanupIDs: true}}
	if err := decode(opts, &o); err != nil {
		return nil, err
	}
	if o.JPEGQuality < 0 || o.JPEGQuality > 100 {
		return nil, domain.Annotate(domain.ErrInvalidStageOptions, "jpegQuality", o.JPEGQuality)
	}

	m := minify.New()
	m.Add(mimeSVG, &svg.Minifier{})
	return &imagemin{opts: o, logger: env.Logger, m: m}, nil
}

func (s *imagemin) Name() string { return "imagemin" }

func (s *imagemin) Process(_ context.Context, f *domain.File) (*domain.File, error) {
	var (
		out []byte
		err error
	)

	switch f.Ext() {
	case ".svg":
		out, err = s.svg(f.Contents)
	case ".png":
		out, err = recodePNG(f.Contents)
	case ".jpg", ".jpeg":
		if s.opts.JPEGQuality > 0 {
			out, err = recodeJPEG(f.Contents, s.opts.JPEGQuality)
		}
	default:
		return f, nil
	}
	if err != nil {
		return nil, stageError(err, s.Name(), f)
	}

	before := int64(len(f.Contents))
	s.images++
	s.before += before

	// Optimizers never make a file larger.
	if out != nil && int64(len(out)) < before {
		s.saved += before - int64(len(out))
		f.Contents = out
	}

	if s.opts.Verbose && s.logger != nil {
		s.logger.Info(fmt.Sprintf("imagemin %s %s", f.SlashRel(), humanize.Bytes(uint64(len(f.Contents)))))
	}
	return f, nil
}

// Finish logs the summary line.
func (s *imagemin) Finish(_ context.Context) error {
	if s.logger == nil || s.images == 0 {
		return nil
	}

	noun := "images"
	if s.images == 1 {
		noun = "image"
	}
	percent := 0.0
	if s.before > 0 {
		percent = float64(s.saved) / float64(s.before) * 100
	}
	s.logger.Info(fmt.Sprintf("imagemin: Minified %d %s (saved %s - %.1f%%)",
		s.images, noun, humanize.Bytes(uint64(s.saved)), percent))
	return nil
}

func (s *imagemin) svg(in []byte) ([]byte, error) {
	pruned, err := pruneSVG(in, s.opts.SVGO.RemoveViewBox, s.opts.SVGO.CleanupIDs)
	if err != nil {
		return nil, err
	}
	return s.m.Bytes(mimeSVG, pruned)
}

func recodePNG(in []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(in))
	if err != nil {
		return nil, zerr.Wrap(err, "failed to decode png")
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, zerr.Wrap(err, "failed to encode png")
	}
	return buf.Bytes(), nil
}

func recodeJPEG(in []byte, quality int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(in))
	if err != nil {
		return nil, zerr.Wrap(err, "failed to decode jpeg")
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, zerr.Wrap(err, "failed to encode jpeg")
	}
	return buf.Bytes(), nil
}
