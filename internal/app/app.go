// Package app implements the application layer for kiln.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/dustin/go-humanize"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/engine/executor"
	"go.trai.ch/kiln/internal/engine/scheduler"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// StepExecutor executes plan steps and owns the services they start.
type StepExecutor interface {
	ports.Executor
	SetTaskRunner(r ports.TaskRunner)
	SetServeOverrides(o executor.ServeOverrides)
	HasServices() bool
	Wait() error
}

var _ ports.TaskRunner = (*App)(nil)

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	executor     StepExecutor
	store        ports.OutputStore
	tracer       ports.Tracer
	renderer     ports.Renderer
	logger       ports.Logger
	dir          string

	mu          sync.RWMutex
	registry    *domain.Registry
	parallelism int
}

// New creates a new App instance and binds it as the task runner of exec.
func New(
	loader ports.ConfigLoader,
	exec StepExecutor,
	store ports.OutputStore,
	tracer ports.Tracer,
	renderer ports.Renderer,
	log ports.Logger,
) *App {
	a := &App{
		configLoader: loader,
		executor:     exec,
		store:        store,
		tracer:       tracer,
		renderer:     renderer,
		logger:       log,
		dir:          ".",
		parallelism:  runtime.NumCPU(),
	}
	exec.SetTaskRunner(a)
	return a
}

// WithDir sets the directory configuration discovery starts from.
func (a *App) WithDir(dir string) *App {
	a.dir = dir
	return a
}

// RunOptions configuration for the Run method.
type RunOptions struct {
	// Series runs the named tasks one after another instead of in parallel.
	Series bool
	// Parallelism bounds concurrently running steps. Zero means NumCPU.
	Parallelism int
	// Serve overrides the configured serve settings.
	Serve executor.ServeOverrides
}

// Run executes the named tasks. When a watch or serve step started a
// service, Run blocks until ctx is cancelled and the services stopped.
func (a *App) Run(ctx context.Context, taskNames []string, opts RunOptions) error {
	// 1. Load the registry
	registry, err := a.configLoader.Load(a.dir)
	if err != nil {
		return zerr.Wrap(err, "failed to load configuration")
	}

	// 2. Validate tasks
	if len(taskNames) == 0 {
		return domain.ErrNoTasksSpecified
	}
	graph, err := registry.Plan(taskNames, opts.Series)
	if err != nil {
		return err
	}

	parallelism := opts.Parallelism
	if parallelism < 1 {
		parallelism = runtime.NumCPU()
	}
	a.mu.Lock()
	a.registry = registry
	a.parallelism = parallelism
	a.mu.Unlock()
	a.executor.SetServeOverrides(opts.Serve)

	// 3. Run renderer and scheduler concurrently
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.renderer.Start(gctx); err != nil {
			return err
		}
		return a.renderer.Wait()
	})

	g.Go(func() error {
		defer func() {
			_ = a.renderer.Stop()
		}()

		runCtx, cancel := context.WithCancel(gctx)
		defer cancel()

		err := scheduler.NewScheduler(a.executor, a.tracer).Run(runCtx, graph, parallelism)
		if err != nil {
			cancel()
			_ = a.executor.Wait()
			if ctx.Err() != nil {
				// Interrupted by the user.
				return nil
			}
			return errors.Join(domain.ErrBuildExecutionFailed, err)
		}

		// 4. Keep watch and serve alive until shutdown
		if !a.executor.HasServices() {
			return nil
		}
		return a.executor.Wait()
	})

	return g.Wait()
}

// RunTask plans name and runs it to completion. Watch bindings trigger their
// tasks through it.
func (a *App) RunTask(ctx context.Context, name string) error {
	a.mu.RLock()
	registry, parallelism := a.registry, a.parallelism
	a.mu.RUnlock()
	if registry == nil {
		return domain.Annotate(domain.ErrTaskNotFound, "task", name)
	}

	graph, err := registry.Plan([]string{name}, true)
	if err != nil {
		return err
	}
	return scheduler.NewScheduler(a.executor, a.tracer).Run(ctx, graph, parallelism)
}

// Tasks prints the task tree to w.
func (a *App) Tasks(_ context.Context, w io.Writer) error {
	registry, err := a.configLoader.Load(a.dir)
	if err != nil {
		return zerr.Wrap(err, "failed to load configuration")
	}

	_, err = fmt.Fprintln(w, TaskTree(registry))
	return err
}

// Clean removes every output recorded in the manifest, then the manifest.
func (a *App) Clean(_ context.Context) error {
	registry, err := a.configLoader.Load(a.dir)
	if err != nil {
		return zerr.Wrap(err, "failed to load configuration")
	}
	root := registry.Root()

	records, err := a.store.All(root)
	if err != nil {
		return err
	}

	var (
		errs    error
		removed int
		freed   uint64
	)
	for _, rec := range records {
		path := filepath.Join(root, filepath.FromSlash(rec.Path))
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = errors.Join(errs, zerr.With(zerr.Wrap(err, "failed to remove output"), "path", rec.Path))
			continue
		}
		if err := a.store.Delete(root, rec.Path); err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		removed++
		if rec.Size > 0 {
			freed += uint64(rec.Size)
		}
	}
	if errs != nil {
		return errs
	}

	manifest := filepath.Join(root, domain.DefaultManifestPath())
	if err := os.Remove(manifest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return zerr.Wrap(err, "failed to remove output manifest")
	}
	// The state directory only goes away when nothing else lives in it.
	_ = os.Remove(filepath.Join(root, domain.DefaultStatePath()))

	a.logger.Info(fmt.Sprintf("removed %d output(s), %s", removed, humanize.Bytes(freed)))
	return nil
}
