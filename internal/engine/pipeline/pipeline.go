// Package pipeline runs read, transform, write tasks.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
)

// Runner executes pipeline tasks.
type Runner struct {
	source   ports.FileSource
	sink     ports.FileSink
	catalog  ports.StageCatalog
	store    ports.OutputStore
	reloader ports.Reloader
	logger   ports.Logger
	now      func() time.Time
}

// NewRunner creates a Runner. A nil reloader disables reload signals.
func NewRunner(
	source ports.FileSource,
	sink ports.FileSink,
	catalog ports.StageCatalog,
	store ports.OutputStore,
	reloader ports.Reloader,
	logger ports.Logger,
) *Runner {
	return &Runner{
		source:   source,
		sink:     sink,
		catalog:  catalog,
		store:    store,
		reloader: reloader,
		logger:   logger,
		now:      time.Now,
	}
}

// Result summarizes one pipeline run.
type Result struct {
	// Read counts the records the source yielded.
	Read int
	// Written holds the absolute paths of the outputs in write order.
	Written []string
}

// Run reads the sources of task, passes every record through its stages and
// writes the survivors below the destination. The first failing file stops
// the run; outputs written before it are kept.
func (r *Runner) Run(ctx context.Context, root string, task domain.Task, out io.Writer) (Result, error) {
	var res Result

	spec := task.Pipeline
	if spec == nil {
		return res, domain.Annotate(domain.ErrMissingDestination, "task", task.Name.String())
	}
	dest := filepath.Join(root, filepath.FromSlash(spec.Dest))

	stages, err := r.Build(spec.Stages, ports.StageEnv{
		Task:   task.Name.String(),
		Root:   root,
		Dest:   dest,
		Logger: r.logger,
	})
	if err != nil {
		return res, err
	}

	for f, err := range r.source.Files(ctx, root, spec.Sources) {
		if err != nil {
			return res, err
		}
		res.Read++

		result, err := Apply(ctx, stages, f)
		if err != nil {
			return res, err
		}
		if result == nil {
			continue
		}

		path, err := r.sink.Write(ctx, dest, result)
		if err != nil {
			return res, err
		}
		res.Written = append(res.Written, path)
		r.record(root, task.Name.String(), path, result.Contents)
	}

	for _, s := range stages {
		if fin, ok := s.(ports.Finisher); ok {
			if err := fin.Finish(ctx); err != nil {
				return res, domain.Annotate(err, "stage", s.Name())
			}
		}
	}

	if out != nil {
		_, _ = fmt.Fprintf(out, "%d of %d file(s) written to %s\n", len(res.Written), res.Read, spec.Dest)
	}

	r.signal(spec.Reload, res.Written)
	return res, nil
}

// Build instantiates the configured stages in order.
func (r *Runner) Build(configs []domain.StageConfig, env ports.StageEnv) ([]ports.Stage, error) {
	stages := make([]ports.Stage, 0, len(configs))
	for _, cfg := range configs {
		s, err := r.catalog.New(cfg, env)
		if err != nil {
			return nil, domain.Annotate(err, "task", env.Task)
		}
		stages = append(stages, s)
	}
	return stages, nil
}

// Apply passes f through stages in order. A nil file with a nil error means
// a stage dropped the record.
func Apply(ctx context.Context, stages []ports.Stage, f *domain.File) (*domain.File, error) {
	current := f
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := s.Process(ctx, current)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, nil
		}
		current = next
	}
	return current, nil
}

// record stores an output in the manifest. Failures only cost `kiln clean`
// its knowledge of the file, so they are logged and the run continues.
func (r *Runner) record(root, task, path string, contents []byte) {
	if r.store == nil {
		return
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	_, err = r.store.Put(root, domain.OutputRecord{
		Path:      filepath.ToSlash(rel),
		Task:      task,
		Hash:      fmt.Sprintf("%016x", xxhash.Sum64(contents)),
		Size:      int64(len(contents)),
		WrittenAt: r.now(),
	})
	if err != nil && r.logger != nil {
		r.logger.Error(err)
	}
}

func (r *Runner) signal(mode domain.ReloadMode, written []string) {
	if r.reloader == nil || len(written) == 0 {
		return
	}
	switch mode {
	case domain.ReloadFull:
		r.reloader.Reload()
	case domain.ReloadInject:
		r.reloader.Inject(written)
	case domain.ReloadNone:
	}
}
