// Package transform provides the stages pipeline tasks are built from.
package transform

import (
	"maps"
	"slices"

	"github.com/go-viper/mapstructure/v2"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// Factory builds a stage from its decoded option bag.
type Factory func(opts map[string]any, env ports.StageEnv) (ports.Stage, error)

var _ ports.StageCatalog = (*Catalog)(nil)

// Catalog maps stage names to factories.
type Catalog struct {
	factories map[string]Factory
}

// NewCatalog returns a catalog holding every built-in stage.
func NewCatalog() *Catalog {
	c := &Catalog{factories: make(map[string]Factory)}

	c.Register("htmlmin", newMarkup)
	c.Register("transpile", newTranspile)
	c.Register("uglify", newUglify)
	c.Register("rename", newRename)
	c.Register("newer", newNewer)
	c.Register("imagemin", newImagemin)
	c.Register("size", newSize)
	c.Register("sass", newSass)
	c.Register("preset-env", newPresetEnv)
	c.Register("assets", newAssets)
	c.Register("autoprefixer", newAutoprefixer)
	c.Register("cssnano", newCSSNano)

	return c
}

// Register adds or replaces the factory for name.
func (c *Catalog) Register(name string, f Factory) {
	c.factories[name] = f
}

// Names returns the registered stage names in lexical order.
func (c *Catalog) Names() []string {
	return slices.Sorted(maps.Keys(c.factories))
}

// New builds the stage cfg names.
func (c *Catalog) New(cfg domain.StageConfig, env ports.StageEnv) (ports.Stage, error) {
	factory, ok := c.factories[cfg.Name]
	if !ok {
		return nil, domain.Annotate(domain.ErrUnknownStage, "stage", cfg.Name)
	}

	stage, err := factory(cfg.Options, env)
	if err != nil {
		return nil, domain.Annotate(err, "stage", cfg.Name)
	}
	return stage, nil
}

// decode fills target from an option bag. Unknown keys are rejected and
// scalars are converted where unambiguous, so "3" decodes into an int.
func decode(opts map[string]any, target any) error {
	if len(opts) == 0 {
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           target,
		TagName:          "opt",
	})
	if err != nil {
		return domain.WrapAs(err, domain.ErrInvalidStageOptions)
	}
	if err := dec.Decode(opts); err != nil {
		return domain.WrapAs(err, domain.ErrInvalidStageOptions)
	}
	return nil
}

// stageError wraps a per-file failure with stage and file metadata.
func stageError(err error, stage string, f *domain.File) error {
	return zerr.With(zerr.With(domain.WrapAs(err, domain.ErrStageFailed), "stage", stage), "file", f.SlashRel())
}
