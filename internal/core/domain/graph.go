// Package domain contains the core domain models of kiln: tasks, plans, globs and file records.
package domain

import (
	"iter"

)

// Step is one leaf task invocation inside a plan.
type Step struct {
	// ID is unique within the plan. It equals the task name unless the task
	// appears more than once, in which case a "#n" suffix is added.
	ID           InternedString
	Task         Task
	Dependencies []InternedString
	// Root is the absolute project root the task's paths are relative to.
	Root string
}

// Graph is the execution plan of a run: a DAG of steps.
type Graph struct {
	steps          map[InternedString]Step
	insertion      []InternedString
	dependents     map[InternedString][]InternedString
	executionOrder []InternedString
	targets        []string
}

// NewGraph creates a new empty Graph.
func NewGraph() *Graph {
	return &Graph{
		steps:      make(map[InternedString]Step),
		dependents: make(map[InternedString][]InternedString),
	}
}

// AddStep adds a step to the graph.
// It returns an error if a step with the same ID already exists.
func (g *Graph) AddStep(s *Step) error {
	if _, exists := g.steps[s.ID]; exists {
		return Annotate(ErrStepAlreadyExists, "step", s.ID.String())
	}
	g.steps[s.ID] = *s
	g.insertion = append(g.insertion, s.ID)
	for _, dep := range s.Dependencies {
		g.dependents[dep] = append(g.dependents[dep], s.ID)
	}
	return nil
}

// GetStep returns the step with the given ID.
func (g *Graph) GetStep(id InternedString) (Step, bool) {
	s, ok := g.steps[id]
	return s, ok
}

// Dependents returns the IDs of steps that depend on id.
func (g *Graph) Dependents(id InternedString) []InternedString {
	return g.dependents[id]
}

// StepCount returns the number of steps in the plan.
func (g *Graph) StepCount() int {
	return len(g.steps)
}

// SetTargets records the task names the plan was built for.
func (g *Graph) SetTargets(targets []string) {
	g.targets = append([]string(nil), targets...)
}

// Targets returns the task names the plan was built for.
func (g *Graph) Targets() []string {
	return g.targets
}

// Validate checks for cycles and missing dependencies using a topological
// sort. It populates the execution order used by Walk.
func (g *Graph) Validate() error {
	g.executionOrder = make([]InternedString, 0, len(g.steps))
	visited := make(map[InternedString]int) // 0: unvisited, 1: visiting, 2: visited
	var path []InternedString

	var visit func(u InternedString) error
	visit = func(u InternedString) error {
		visited[u] = 1
		path = append(path, u)

		step, exists := g.steps[u]
		if !exists {
			return Annotate(ErrMissingDependency, "dependency", u.String())
		}

		for _, dep := range step.Dependencies {
			if visited[dep] == 1 {
				return g.buildCycleError(path, dep)
			}
			if visited[dep] == 0 {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		visited[u] = 2
		path = path[:len(path)-1]
		g.executionOrder = append(g.executionOrder, u)
		return nil
	}

	// Insertion order keeps the plan deterministic.
	for _, id := range g.insertion {
		if visited[id] == 0 {
			if err := visit(id); err != nil {
				return err
			}
		}
	}

	return nil
}

// buildCycleError constructs an error with cycle path metadata.
func (g *Graph) buildCycleError(path []InternedString, dep InternedString) error {
	return Annotate(ErrCycleDetected, "cycle", formatCycle(path, dep))
}

// formatCycle renders the part of path starting at dep as "a -> b -> a".
func formatCycle(path []InternedString, dep InternedString) string {
	cyclePath := ""
	startIdx := 0
	for i, node := range path {
		if node == dep {
			startIdx = i
			break
		}
	}
	for i := startIdx; i < len(path); i++ {
		cyclePath += path[i].String() + " -> "
	}
	cyclePath += dep.String()
	return cyclePath
}

// Walk returns an iterator that yields steps in execution order.
// It assumes Validate() has been called and returned nil.
func (g *Graph) Walk() iter.Seq[Step] {
	return func(yield func(Step) bool) {
		for _, id := range g.executionOrder {
			if !yield(g.steps[id]) {
				return
			}
		}
	}
}
