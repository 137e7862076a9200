// Package scheduler executes plan DAGs with bounded parallelism.
package scheduler

import (
	"context"
	"errors"
	"sync"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// TaskStatus represents the status of a step.
type TaskStatus string

const (
	// StatusPending indicates the step is waiting to be executed.
	StatusPending TaskStatus = "Pending"
	// StatusRunning indicates the step is currently executing.
	StatusRunning TaskStatus = "Running"
	// StatusCompleted indicates the step has finished successfully.
	StatusCompleted TaskStatus = "Completed"
	// StatusFailed indicates the step execution failed.
	StatusFailed TaskStatus = "Failed"
	// StatusSkipped indicates the step never ran because a predecessor failed.
	StatusSkipped TaskStatus = "Skipped"
)

// Scheduler manages the execution of steps in a plan.
type Scheduler struct {
	executor ports.Executor
	tracer   ports.Tracer

	mu         sync.RWMutex
	taskStatus map[domain.InternedString]TaskStatus
}

// NewScheduler creates a new Scheduler with the given dependencies.
func NewScheduler(executor ports.Executor, tracer ports.Tracer) *Scheduler {
	return &Scheduler{
		executor:   executor,
		tracer:     tracer,
		taskStatus: make(map[domain.InternedString]TaskStatus),
	}
}

// initTaskStatuses resets the status of the given steps to Pending.
func (s *Scheduler) initTaskStatuses(steps []domain.InternedString) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.taskStatus)
	for _, step := range steps {
		s.taskStatus[step] = StatusPending
	}
}

// updateStatus updates the status of a step.
func (s *Scheduler) updateStatus(id domain.InternedString, status TaskStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taskStatus[id] = status
}

// Run executes every step of graph, starting a step only once all of its
// dependencies completed. A failed step stops its dependents; independent
// branches keep running. All failures are joined into the returned error.
func (s *Scheduler) Run(ctx context.Context, graph *domain.Graph, parallelism int) error {
	// Explicitly validate the graph to ensure the execution order is populated
	if err := graph.Validate(); err != nil {
		return err
	}
	if parallelism < 1 {
		parallelism = 1
	}

	state := s.newRunState(ctx, graph, parallelism)

	plannedSteps := make([]string, 0, len(state.order))
	depMap := make(map[string][]string, len(state.order))
	for _, id := range state.order {
		step := state.steps[id]
		plannedSteps = append(plannedSteps, id.String())
		deps := make([]string, len(step.Dependencies))
		for i, dep := range step.Dependencies {
			deps[i] = dep.String()
		}
		depMap[id.String()] = deps
	}
	s.tracer.EmitPlan(ctx, plannedSteps, depMap, graph.Targets())

	s.initTaskStatuses(state.order)

	return state.runExecutionLoop()
}

type result struct {
	step domain.InternedString
	err  error
}

type schedulerRunState struct {
	graph       *domain.Graph
	inDegree    map[domain.InternedString]int
	steps       map[domain.InternedString]domain.Step
	order       []domain.InternedString
	ready       []domain.InternedString
	active      int
	resultsCh   chan result
	errs        error
	ctx         context.Context
	parallelism int
	s           *Scheduler
}

func (s *Scheduler) newRunState(ctx context.Context, graph *domain.Graph, parallelism int) *schedulerRunState {
	count := graph.StepCount()
	inDegree := make(map[domain.InternedString]int, count)
	steps := make(map[domain.InternedString]domain.Step, count)
	order := make([]domain.InternedString, 0, count)

	var ready []domain.InternedString
	for step := range graph.Walk() {
		steps[step.ID] = step
		order = append(order, step.ID)
		inDegree[step.ID] = len(step.Dependencies)
		// Walk yields in topological order, so ready starts out deterministic.
		if len(step.Dependencies) == 0 {
			ready = append(ready, step.ID)
		}
	}

	return &schedulerRunState{
		graph:       graph,
		inDegree:    inDegree,
		steps:       steps,
		order:       order,
		ready:       ready,
		resultsCh:   make(chan result, parallelism),
		ctx:         ctx,
		parallelism: parallelism,
		s:           s,
	}
}

func (state *schedulerRunState) runExecutionLoop() error {
	for !state.isDone() {
		state.schedule()

		if state.isDone() {
			break
		}

		if state.ctx.Err() != nil {
			if state.active == 0 {
				return errors.Join(state.errs, state.ctx.Err())
			}
			// Nothing new starts once cancelled. Drain the running steps.
			state.handleResult(<-state.resultsCh)
			continue
		}

		select {
		case res := <-state.resultsCh:
			state.handleResult(res)
		case <-state.ctx.Done():
		}
	}

	if state.ctx.Err() != nil {
		state.errs = errors.Join(state.errs, state.ctx.Err())
	}

	return state.errs
}

func (state *schedulerRunState) isDone() bool {
	return state.active == 0 && len(state.ready) == 0
}

func (state *schedulerRunState) schedule() {
	for len(state.ready) > 0 && state.active < state.parallelism && state.ctx.Err() == nil {
		id := state.ready[0]
		state.ready = state.ready[1:]

		state.active++
		state.s.updateStatus(id, StatusRunning)

		step := state.steps[id]
		go state.executeStep(step)
	}
}

func (state *schedulerRunState) executeStep(step domain.Step) {
	// The span is ended before the result is sent so renderers have seen the
	// completion by the time Run returns.
	res := func() result {
		ctx, span := state.s.tracer.Start(state.ctx, step.ID.String(), ports.WithTask(step.Task.Name.String()))
		defer span.End()

		err := state.s.executor.Execute(ctx, step, span)
		if err != nil {
			span.RecordError(err)
		}
		return result{step: step.ID, err: err}
	}()

	state.resultsCh <- res
}

func (state *schedulerRunState) handleResult(res result) {
	state.active--

	if res.err != nil {
		enhancedErr := zerr.With(domain.WrapAs(res.err, domain.ErrTaskExecutionFailed), "task", res.step.String())
		state.errs = errors.Join(state.errs, enhancedErr)
		state.s.updateStatus(res.step, StatusFailed)
		state.skipDependents(res.step)
		return
	}

	state.s.updateStatus(res.step, StatusCompleted)
	for _, dep := range state.graph.Dependents(res.step) {
		state.inDegree[dep]--
		if state.inDegree[dep] == 0 {
			state.ready = append(state.ready, dep)
		}
	}
}

// skipDependents marks every transitive dependent of id as skipped.
func (state *schedulerRunState) skipDependents(id domain.InternedString) {
	queue := append([]domain.InternedString(nil), state.graph.Dependents(id)...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		state.s.mu.RLock()
		status := state.s.taskStatus[next]
		state.s.mu.RUnlock()
		if status != StatusPending {
			continue
		}
		state.s.updateStatus(next, StatusSkipped)
		queue = append(queue, state.graph.Dependents(next)...)
	}
}
