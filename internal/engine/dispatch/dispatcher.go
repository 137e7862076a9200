// Package dispatch re-runs tasks when the files they watch change.
package dispatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// State is the lifecycle state of a Dispatcher.
type State uint8

const (
	// StateIdle means Start has not been called or the dispatcher has stopped.
	StateIdle State = iota
	// StateWatching means bindings are registered and no task is running.
	StateWatching
	// StateDispatching means at least one bound task is running.
	StateDispatching
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateWatching:
		return "Watching"
	case StateDispatching:
		return "Dispatching"
	default:
		return "Idle"
	}
}

// BatcherFactory creates the coalescer change paths are fed through.
type BatcherFactory func(callback func(paths []string)) ports.ChangeBatcher

// Dispatcher maps file system changes to task runs.
//
// Every binding gets one worker and a queue of depth one: while its task
// runs, further triggers collapse into a single pending rerun. Different
// bindings run independently.
type Dispatcher struct {
	watcher    ports.Watcher
	reloader   ports.Reloader
	logger     ports.Logger
	newBatcher BatcherFactory

	mu       sync.Mutex
	started  bool
	root     string
	bindings []*binding
	batcher  ports.ChangeBatcher
	wg       sync.WaitGroup
	active   atomic.Int32
	stopped  atomic.Bool
	done     chan struct{}
}

type binding struct {
	domain.WatchBinding
	trigger chan struct{}
}

// New creates a Dispatcher. A nil reloader disables reload signals.
func New(watcher ports.Watcher, reloader ports.Reloader, logger ports.Logger, newBatcher BatcherFactory) *Dispatcher {
	return &Dispatcher{
		watcher:    watcher,
		reloader:   reloader,
		logger:     logger,
		newBatcher: newBatcher,
		done:       make(chan struct{}),
	}
}

// State reports the current lifecycle state.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	started := d.started
	d.mu.Unlock()

	switch {
	case !started || d.stopped.Load():
		return StateIdle
	case d.active.Load() > 0:
		return StateDispatching
	default:
		return StateWatching
	}
}

// Start registers bindings and begins watching. Tasks run through runner
// until ctx is cancelled. A dispatcher can only be started once.
func (d *Dispatcher) Start(ctx context.Context, root string, bindings []domain.WatchBinding, runner ports.TaskRunner) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return domain.Annotate(domain.ErrServiceAlreadyRunning, "service", "watch")
	}

	d.root = root
	d.bindings = make([]*binding, 0, len(bindings))
	for _, b := range bindings {
		d.bindings = append(d.bindings, &binding{WatchBinding: b, trigger: make(chan struct{}, 1)})
	}

	if err := d.watcher.Start(ctx, watchRoots(root, bindings)); err != nil {
		return err
	}

	d.started = true
	d.batcher = d.newBatcher(d.Trigger)

	for _, b := range d.bindings {
		d.wg.Add(1)
		go d.work(ctx, b, runner)
	}

	d.wg.Add(1)
	go d.consume(ctx)

	go func() {
		<-ctx.Done()
		_ = d.watcher.Stop()
		d.batcher.Stop()
	}()

	go func() {
		d.wg.Wait()
		d.stopped.Store(true)
		close(d.done)
	}()

	return nil
}

// Wait blocks until the dispatcher has stopped and its workers drained.
// It returns at once when the dispatcher never started.
func (d *Dispatcher) Wait() error {
	d.mu.Lock()
	started := d.started
	d.mu.Unlock()
	if !started {
		return nil
	}

	<-d.done
	return nil
}

// Trigger queues a run of every binding whose patterns match one of paths.
// Paths are slash separated and relative to the project root.
func (d *Dispatcher) Trigger(paths []string) {
	for _, b := range d.bindings {
		if !slices.ContainsFunc(paths, b.Matches) {
			continue
		}
		select {
		case b.trigger <- struct{}{}:
		default:
			// A rerun is already pending.
		}
	}
}

// consume feeds matching watcher events to the batcher.
func (d *Dispatcher) consume(ctx context.Context) {
	defer d.wg.Done()

	for event := range d.watcher.Events() {
		if ctx.Err() != nil {
			return
		}
		rel, ok := d.relative(event.Path)
		if !ok {
			continue
		}
		if d.matchesAny(rel) {
			d.batcher.Add(rel)
		}
	}
}

func (d *Dispatcher) work(ctx context.Context, b *binding, runner ports.TaskRunner) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.trigger:
		}

		d.active.Add(1)
		err := runner.RunTask(ctx, b.Task.String())
		d.active.Add(-1)

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// The binding stays registered after a failed run.
			if d.logger != nil {
				d.logger.Error(zerr.With(err, "watch", b.Task.String()))
			}
			continue
		}

		d.signal(b.Reload)
	}
}

// signal applies a binding's reload mode after a successful run.
// Inject without paths refreshes every stylesheet.
func (d *Dispatcher) signal(mode domain.ReloadMode) {
	if d.reloader == nil {
		return
	}
	switch mode {
	case domain.ReloadFull:
		d.reloader.Reload()
	case domain.ReloadInject:
		d.reloader.Inject(nil)
	case domain.ReloadNone:
	}
}

func (d *Dispatcher) matchesAny(rel string) bool {
	for _, b := range d.bindings {
		if b.Matches(rel) {
			return true
		}
	}
	return false
}

func (d *Dispatcher) relative(abs string) (string, bool) {
	rel, err := filepath.Rel(d.root, abs)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}

// watchRoots returns the nearest existing directory of every positive
// binding pattern base, deduplicated.
func watchRoots(root string, bindings []domain.WatchBinding) []string {
	seen := make(map[string]bool)
	var roots []string
	for _, b := range bindings {
		for _, p := range b.Patterns {
			if p.Negated() {
				continue
			}
			dir := nearestExisting(root, filepath.Join(root, filepath.FromSlash(p.Base())))
			if !seen[dir] {
				seen[dir] = true
				roots = append(roots, dir)
			}
		}
	}
	return roots
}

func nearestExisting(root, dir string) string {
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		if dir == root {
			return root
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return root
		}
		dir = parent
	}
}

// Describe lists the bindings in registration order, one per line.
func Describe(bindings []domain.WatchBinding) []string {
	lines := make([]string, 0, len(bindings))
	for _, b := range bindings {
		patterns := make([]string, len(b.Patterns))
		for i, p := range b.Patterns {
			patterns[i] = p.String()
		}
		line := fmt.Sprintf("%v -> %s", patterns, b.Task)
		if b.Reload != domain.ReloadNone {
			line += " (" + b.Reload.String() + ")"
		}
		lines = append(lines, line)
	}
	return lines
}
