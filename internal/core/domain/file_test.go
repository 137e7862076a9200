package domain_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/kiln/internal/core/domain"
)

func TestFile_RelAndExt(t *testing.T) {
	f := &domain.File{
		Base: filepath.FromSlash("/project/dev/js"),
		Path: filepath.FromSlash("/project/dev/js/lib/App.JS"),
	}

	assert.Equal(t, filepath.FromSlash("lib/App.JS"), f.Rel())
	assert.Equal(t, "lib/App.JS", f.SlashRel())
	assert.Equal(t, ".js", f.Ext())

	f.SetExt(".min.js")
	assert.Equal(t, "lib/App.min.js", f.SlashRel())
}

func TestFile_Clone(t *testing.T) {
	f := &domain.File{Path: "/a", Base: "/", Contents: []byte("body")}
	c := f.Clone()
	c.Contents[0] = 'B'

	assert.Equal(t, "body", string(f.Contents))
	assert.Equal(t, "Body", string(c.Contents))
}
