package transform_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/transform"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
)

// stage builds a stage from the default catalog.
func stage(t *testing.T, name string, opts map[string]any, env ports.StageEnv) ports.Stage {
	t.Helper()
	s, err := transform.NewCatalog().New(domain.StageConfig{Name: name, Options: opts}, env)
	require.NoError(t, err)
	return s
}

// file returns an in-memory record below base.
func file(base, rel, contents string) *domain.File {
	return &domain.File{
		Base:     base,
		Path:     filepath.Join(base, filepath.FromSlash(rel)),
		Source:   filepath.Join(base, filepath.FromSlash(rel)),
		Contents: []byte(contents),
		ModTime:  time.Now(),
		Mode:     0o644,
	}
}

func process(t *testing.T, s ports.Stage, f *domain.File) *domain.File {
	t.Helper()
	out, err := s.Process(context.Background(), f)
	require.NoError(t, err)
	return out
}

func write(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

// pngBytes encodes a w x h image with a little noise using the fastest compression.
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x % 4 * 60), G: uint8(y % 4 * 60), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	require.NoError(t, enc.Encode(&buf, img))
	return buf.Bytes()
}
