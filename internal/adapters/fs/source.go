package fs

import (
	"context"
	"iter"
	"os"
	"path/filepath"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.FileSource = (*Source)(nil)

// Source reads the files selected by glob patterns.
type Source struct {
	walker *Walker
}

// NewSource creates a Source walking with walker.
func NewSource(walker *Walker) *Source {
	return &Source{walker: walker}
}

// Files yields the files under root matching patterns.
// Positive patterns are walked in order from their base directory; a file
// matched by several patterns is yielded once and negated patterns exclude.
// Each record's Base is the base directory of the pattern that selected it.
func (s *Source) Files(ctx context.Context, root string, patterns []domain.GlobPattern) iter.Seq2[*domain.File, error] {
	return func(yield func(*domain.File, error) bool) {
		seen := make(map[string]bool)

		for _, p := range patterns {
			if p.Negated() {
				continue
			}

			base := filepath.Join(root, filepath.FromSlash(p.Base()))
			for path, err := range s.walker.WalkFiles(base) {
				if err != nil {
					yield(nil, zerr.With(domain.WrapAs(err, domain.ErrSourceReadFailed), "pattern", p.String()))
					return
				}
				if err := ctx.Err(); err != nil {
					yield(nil, err)
					return
				}

				rel, err := filepath.Rel(root, path)
				if err != nil {
					continue
				}
				rel = filepath.ToSlash(rel)
				if seen[rel] || !p.Match(rel) || excluded(patterns, rel) {
					continue
				}
				seen[rel] = true

				f, err := readFile(path, base)
				if !yield(f, err) || err != nil {
					return
				}
			}
		}
	}
}

func excluded(patterns []domain.GlobPattern, rel string) bool {
	for _, p := range patterns {
		if p.Negated() && p.Match(rel) {
			return true
		}
	}
	return false
}

func readFile(path, base string) (*domain.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, zerr.With(domain.WrapAs(err, domain.ErrSourceReadFailed), "file", path)
	}

	contents, err := os.ReadFile(path) //nolint:gosec // Path comes from a walk below the project root
	if err != nil {
		return nil, zerr.With(domain.WrapAs(err, domain.ErrSourceReadFailed), "file", path)
	}

	return &domain.File{
		Path:     path,
		Base:     base,
		Source:   path,
		Contents: contents,
		ModTime:  info.ModTime(),
		Mode:     info.Mode(),
	}, nil
}
