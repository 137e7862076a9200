package domain

import (
	"path"
	"slices"
	"strings"

	"github.com/gobwas/glob"
	"go.trai.ch/zerr"
)

// GlobPattern selects project relative, slash separated paths.
// It follows the conventions of stream based task runners: "**" matches any
// number of directories including none, and a leading "!" negates.
type GlobPattern struct {
	raw      string
	negated  bool
	base     string
	matchers []glob.Glob
}

// NewGlobPattern compiles raw into a GlobPattern.
func NewGlobPattern(raw string) (GlobPattern, error) {
	p := GlobPattern{raw: raw}

	body := raw
	if strings.HasPrefix(body, "!") {
		p.negated = true
		body = body[1:]
	}
	body = strings.TrimPrefix(path.Clean("/"+body), "/")
	if body == "" {
		return GlobPattern{}, Annotate(ErrInvalidGlob, "pattern", raw)
	}

	for _, variant := range expandGlob(body) {
		m, err := glob.Compile(variant, '/')
		if err != nil {
			return GlobPattern{}, zerr.With(WrapAs(err, ErrInvalidGlob), "pattern", raw)
		}
		p.matchers = append(p.matchers, m)
	}
	p.base = globBase(body)

	return p, nil
}

// MustGlobPattern is like NewGlobPattern but panics on error.
// It is meant for patterns that are compile time constants.
func MustGlobPattern(raw string) GlobPattern {
	p, err := NewGlobPattern(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// NewGlobPatterns compiles every pattern in raws.
func NewGlobPatterns(raws []string) ([]GlobPattern, error) {
	out := make([]GlobPattern, 0, len(raws))
	for _, r := range raws {
		p, err := NewGlobPattern(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// String returns the pattern as written.
func (p GlobPattern) String() string {
	return p.raw
}

// Negated reports whether the pattern excludes matches.
func (p GlobPattern) Negated() bool {
	return p.negated
}

// Base returns the static directory prefix of the pattern, "." when the
// pattern starts with a wildcard. Output paths are computed relative to it.
func (p GlobPattern) Base() string {
	return p.base
}

// Match reports whether rel matches the pattern, ignoring negation.
func (p GlobPattern) Match(rel string) bool {
	for _, m := range p.matchers {
		if m.Match(rel) {
			return true
		}
	}
	return false
}

// MatchAny reports whether rel matches at least one positive pattern and no
// negated pattern.
func MatchAny(patterns []GlobPattern, rel string) bool {
	matched := false
	for _, p := range patterns {
		if p.negated {
			if p.Match(rel) {
				return false
			}
			continue
		}
		if !matched && p.Match(rel) {
			matched = true
		}
	}
	return matched
}

// expandGlob returns the gobwas patterns equivalent to pattern. A "**"
// segment matches zero or more directories, so every such segment doubles
// the variants: one without it and one keeping it.
func expandGlob(pattern string) []string {
	variants := [][]string{{}}
	prev := ""
	for _, seg := range strings.Split(pattern, "/") {
		if seg == "**" && prev == "**" {
			continue
		}
		prev = seg
		if seg != "**" {
			for i := range variants {
				variants[i] = append(variants[i], seg)
			}
			continue
		}
		next := make([][]string, 0, len(variants)*2)
		for _, v := range variants {
			next = append(next, slices.Clone(v), append(slices.Clone(v), seg))
		}
		variants = next
	}

	out := make([]string, 0, len(variants))
	for _, v := range variants {
		if len(v) > 0 {
			out = append(out, strings.Join(v, "/"))
		}
	}
	return out
}

// globBase returns the directories preceding the first segment that
// contains a wildcard.
func globBase(pattern string) string {
	segs := strings.Split(pattern, "/")
	var static []string
	for i, seg := range segs {
		if strings.ContainsAny(seg, "*?[{") {
			break
		}
		if i == len(segs)-1 {
			// A literal file name: its parent is the base.
			break
		}
		static = append(static, seg)
	}
	if len(static) == 0 {
		return "."
	}
	return strings.Join(static, "/")
}
