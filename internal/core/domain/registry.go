package domain

import (
	"slices"
	"strconv"
)

// DefaultTaskName is run when no task is named on the command line.
const DefaultTaskName = "default"

// Registry maps task names to tasks for one project.
type Registry struct {
	root  string
	tasks map[InternedString]Task
}

// NewRegistry creates an empty registry for the project rooted at root.
func NewRegistry(root string) *Registry {
	return &Registry{
		root:  root,
		tasks: make(map[InternedString]Task),
	}
}

// Root returns the absolute project root.
func (r *Registry) Root() string {
	return r.root
}

// Add registers a task. Names must be unique.
func (r *Registry) Add(t *Task) error {
	if _, exists := r.tasks[t.Name]; exists {
		return Annotate(ErrTaskAlreadyExists, "task_name", t.Name.String())
	}
	r.tasks[t.Name] = *t
	return nil
}

// Get returns the task registered under name.
func (r *Registry) Get(name string) (Task, bool) {
	t, ok := r.tasks[NewInternedString(name)]
	return t, ok
}

// Len returns the number of registered tasks.
func (r *Registry) Len() int {
	return len(r.tasks)
}

// Names returns all task names in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name.String())
	}
	slices.Sort(names)
	return names
}

// Validate checks that every reference resolves and that no composition
// contains itself.
func (r *Registry) Validate() error {
	for _, name := range r.Names() {
		task := r.tasks[NewInternedString(name)]
		for _, b := range task.Watch {
			if _, ok := r.tasks[b.Task]; !ok {
				err := Annotate(ErrMissingDependency, "dependency", b.Task.String())
				return Annotate(err, "task", name)
			}
		}
		if !task.Kind.IsComposite() {
			continue
		}
		if _, err := r.Plan([]string{name}, true); err != nil {
			return err
		}
	}
	return nil
}

// Plan flattens the named tasks into a DAG of leaf steps.
// Several targets run in parallel unless series is set.
func (r *Registry) Plan(targets []string, series bool) (*Graph, error) {
	if len(targets) == 0 {
		return nil, ErrNoTasksSpecified
	}

	p := &planner{
		registry: r,
		graph:    NewGraph(),
		counts:   make(map[InternedString]int),
	}

	var after []InternedString
	for _, target := range targets {
		name := NewInternedString(target)
		if _, ok := r.tasks[name]; !ok {
			return nil, Annotate(ErrTaskNotFound, "task", target)
		}
		sinks, err := p.expand(name, after)
		if err != nil {
			return nil, err
		}
		if series {
			after = sinks
		}
	}

	if err := p.graph.Validate(); err != nil {
		return nil, err
	}
	p.graph.SetTargets(targets)
	return p.graph, nil
}

type planner struct {
	registry *Registry
	graph    *Graph
	counts   map[InternedString]int
	stack    []InternedString
}

// expand adds the steps of name after the given predecessors and returns
// the steps that complete it.
func (p *planner) expand(name InternedString, after []InternedString) ([]InternedString, error) {
	if slices.Contains(p.stack, name) {
		return nil, Annotate(ErrCycleDetected, "cycle", formatCycle(p.stack, name))
	}

	task, ok := p.registry.tasks[name]
	if !ok {
		return nil, Annotate(ErrMissingDependency, "dependency", name.String())
	}

	switch task.Kind {
	case KindSeries:
		p.stack = append(p.stack, name)
		defer func() { p.stack = p.stack[:len(p.stack)-1] }()

		current := after
		for _, child := range task.Children {
			sinks, err := p.expand(child, current)
			if err != nil {
				return nil, err
			}
			current = sinks
		}
		return current, nil

	case KindParallel:
		p.stack = append(p.stack, name)
		defer func() { p.stack = p.stack[:len(p.stack)-1] }()

		var sinks []InternedString
		for _, child := range task.Children {
			s, err := p.expand(child, after)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, s...)
		}
		if len(sinks) == 0 {
			return after, nil
		}
		return sinks, nil

	default:
		step := &Step{
			ID:           p.nextID(name),
			Task:         task,
			Dependencies: slices.Clone(after),
			Root:         p.registry.root,
		}
		if err := p.graph.AddStep(step); err != nil {
			return nil, err
		}
		return []InternedString{step.ID}, nil
	}
}

func (p *planner) nextID(name InternedString) InternedString {
	p.counts[name]++
	n := p.counts[name]
	if n == 1 {
		return name
	}
	return NewInternedString(name.String() + "#" + strconv.Itoa(n))
}

// NewSeries builds a series composite from task names.
func NewSeries(name string, children ...string) *Task {
	return &Task{Name: NewInternedString(name), Kind: KindSeries, Children: internAll(children)}
}

// NewParallel builds a parallel composite from task names.
func NewParallel(name string, children ...string) *Task {
	return &Task{Name: NewInternedString(name), Kind: KindParallel, Children: internAll(children)}
}
