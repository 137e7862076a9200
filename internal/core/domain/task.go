package domain

// TaskKind identifies how a task is executed.
type TaskKind uint8

const (
	// KindPipeline reads matching files, runs them through stages and writes them out.
	KindPipeline TaskKind = iota
	// KindSeries runs its children one after another.
	KindSeries
	// KindParallel runs its children concurrently.
	KindParallel
	// KindWatch starts the watch dispatcher.
	KindWatch
	// KindServe starts the live-reload server.
	KindServe
)

// String returns the configuration keyword of the kind.
func (k TaskKind) String() string {
	switch k {
	case KindPipeline:
		return "pipeline"
	case KindSeries:
		return "series"
	case KindParallel:
		return "parallel"
	case KindWatch:
		return "watch"
	case KindServe:
		return "serve"
	default:
		return "unknown"
	}
}

// IsComposite reports whether the kind combines other tasks.
func (k TaskKind) IsComposite() bool {
	return k == KindSeries || k == KindParallel
}

// Task is a named unit of work in the registry.
// Composite tasks only carry Children; leaf tasks carry exactly one of
// Pipeline, Watch or Serve depending on their kind.
type Task struct {
	Name        InternedString
	Description string
	Kind        TaskKind
	Children    []InternedString
	Pipeline    *PipelineSpec
	Watch       []WatchBinding
	Serve       *ServeSpec
}

// PipelineSpec describes a read, transform, write task.
type PipelineSpec struct {
	// Sources are evaluated relative to the project root. Negated patterns exclude.
	Sources []GlobPattern
	// Dest is the output directory relative to the project root.
	Dest string
	// Stages run in order for every file.
	Stages []StageConfig
	// Reload is signalled once after the run when at least one file was written.
	Reload ReloadMode
}

// StageConfig names a stage and carries its raw option bag.
type StageConfig struct {
	Name    string
	Options map[string]any
}

// WatchBinding connects file patterns to the task they trigger.
type WatchBinding struct {
	Patterns []GlobPattern
	Task     InternedString
	// Reload is signalled after a successful run of Task.
	Reload ReloadMode
}

// Matches reports whether rel, a slash separated project relative path,
// matches any of the binding's patterns.
func (b WatchBinding) Matches(rel string) bool {
	return MatchAny(b.Patterns, rel)
}

// ServeSpec configures the live-reload server.
type ServeSpec struct {
	// Root is the served directory relative to the project root.
	Root string
	// Port is the first port tried. Zero picks an ephemeral port.
	Port int
	// Browser is an executable name, "default" for the system browser or "none".
	Browser string
	// Open controls whether a browser is launched once the server listens.
	Open bool
}

// DefaultServePort is the port the live-reload server tries first.
const DefaultServePort = 3000
