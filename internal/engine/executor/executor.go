// Package executor runs single plan steps according to their task kind.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/engine/dispatch"
	"go.trai.ch/kiln/internal/engine/pipeline"
)

var _ ports.Executor = (*Executor)(nil)

// Executor implements ports.Executor.
//
// Pipeline steps run to completion. Watch and serve steps start their
// long-lived service and return; Wait blocks on those services.
type Executor struct {
	pipeline   *pipeline.Runner
	dispatcher *dispatch.Dispatcher
	server     ports.ReloadServer
	logger     ports.Logger

	mu       sync.Mutex
	runner   ports.TaskRunner
	serve    ServeOverrides
	services []func() error
}

// ServeOverrides replace configured serve settings for a run.
type ServeOverrides struct {
	// Port replaces the configured port when non-nil.
	Port *int
	// Browser replaces the configured browser when non-empty.
	Browser string
	// NoOpen keeps the browser closed.
	NoOpen bool
}

// Apply returns spec with the overrides applied.
func (o ServeOverrides) Apply(spec domain.ServeSpec) domain.ServeSpec {
	if o.Port != nil {
		spec.Port = *o.Port
	}
	if o.Browser != "" {
		spec.Browser = o.Browser
	}
	if o.NoOpen {
		spec.Open = false
	}
	return spec
}

// New creates an Executor.
func New(
	runner *pipeline.Runner,
	dispatcher *dispatch.Dispatcher,
	server ports.ReloadServer,
	logger ports.Logger,
) *Executor {
	return &Executor{
		pipeline:   runner,
		dispatcher: dispatcher,
		server:     server,
		logger:     logger,
	}
}

// SetTaskRunner sets what watch bindings run their tasks through.
func (e *Executor) SetTaskRunner(r ports.TaskRunner) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runner = r
}

// SetServeOverrides sets the overrides applied to serve steps.
func (e *Executor) SetServeOverrides(o ServeOverrides) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.serve = o
}

// Execute runs the leaf task of step.
func (e *Executor) Execute(ctx context.Context, step domain.Step, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}

	task := step.Task
	switch task.Kind {
	case domain.KindPipeline:
		_, err := e.pipeline.Run(ctx, step.Root, task, out)
		return err

	case domain.KindWatch:
		return e.startWatch(ctx, step, out)

	case domain.KindServe:
		return e.startServe(ctx, step, out)

	default:
		// Plans only contain leaves.
		return domain.Annotate(domain.ErrInvalidTaskKind, "task", task.Name.String())
	}
}

func (e *Executor) startWatch(ctx context.Context, step domain.Step, out io.Writer) error {
	e.mu.Lock()
	runner := e.runner
	e.mu.Unlock()
	if runner == nil {
		return domain.Annotate(domain.ErrWatchUnbound, "task", step.Task.Name.String())
	}

	if err := e.dispatcher.Start(ctx, step.Root, step.Task.Watch, runner); err != nil {
		return err
	}
	for _, line := range dispatch.Describe(step.Task.Watch) {
		_, _ = fmt.Fprintf(out, "watching %s\n", line)
	}

	e.track(e.dispatcher.Wait)
	return nil
}

func (e *Executor) startServe(ctx context.Context, step domain.Step, out io.Writer) error {
	spec := domain.ServeSpec{Port: domain.DefaultServePort}
	if step.Task.Serve != nil {
		spec = *step.Task.Serve
	}
	e.mu.Lock()
	spec = e.serve.Apply(spec)
	e.mu.Unlock()

	url, err := e.server.Start(ctx, step.Root, spec)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "serving %s at %s\n", spec.Root, url)
	if e.logger != nil {
		e.logger.Info("Local: " + url)
	}

	e.track(e.server.Wait)
	return nil
}

func (e *Executor) track(wait func() error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.services = append(e.services, wait)
}

// HasServices reports whether a watch or serve step has started a service.
func (e *Executor) HasServices() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.services) > 0
}

// Wait blocks until every started service has stopped. Services stop when
// the context they were started with is cancelled.
func (e *Executor) Wait() error {
	e.mu.Lock()
	services := append([]func() error(nil), e.services...)
	e.mu.Unlock()

	var errs error
	for _, wait := range services {
		errs = errors.Join(errs, wait())
	}
	return errs
}
