package domain

import (
	"errors"

	"go.trai.ch/zerr"
)

var (
	// ErrTaskAlreadyExists is returned when attempting to add a task with a name that already exists.
	ErrTaskAlreadyExists = zerr.New("task already exists")

	// ErrStepAlreadyExists is returned when a plan receives two steps with the same identifier.
	ErrStepAlreadyExists = zerr.New("step already exists")

	// ErrMissingDependency is returned when a composition references a task that is not registered.
	ErrMissingDependency = zerr.New("missing dependency")

	// ErrCycleDetected is returned when a task composition references itself.
	ErrCycleDetected = zerr.New("cycle detected")

	// ErrTaskNotFound is returned when a requested task is not found in the registry.
	ErrTaskNotFound = zerr.New("task not found")

	// ErrInvalidTaskName is returned when a task name contains invalid characters.
	ErrInvalidTaskName = zerr.New("invalid task name")

	// ErrInvalidTaskKind is returned when a task declares zero or several kinds.
	ErrInvalidTaskKind = zerr.New("task must declare exactly one of src, series, parallel, watch or serve")

	// ErrInvalidGlob is returned when a glob pattern cannot be compiled.
	ErrInvalidGlob = zerr.New("invalid glob pattern")

	// ErrInvalidReloadMode is returned when a reload mode is not recognized.
	ErrInvalidReloadMode = zerr.New("invalid reload mode")

	// ErrMissingDestination is returned when a pipeline task has no destination directory.
	ErrMissingDestination = zerr.New("pipeline task has no dest")

	// ErrEmptyWatchBinding is returned when a watch binding has no pattern or no task.
	ErrEmptyWatchBinding = zerr.New("watch binding needs a pattern and a task")

	// ErrConfigReadFailed is returned when the configuration file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read configuration file")

	// ErrConfigParseFailed is returned when the configuration file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse configuration file")

	// ErrUnknownStage is returned when a pipeline references a stage that does not exist.
	ErrUnknownStage = zerr.New("unknown stage")

	// ErrInvalidStageOptions is returned when stage options cannot be decoded.
	ErrInvalidStageOptions = zerr.New("invalid stage options")

	// ErrStageFailed is returned when a stage fails to transform a file.
	ErrStageFailed = zerr.New("stage failed")

	// ErrSourceReadFailed is returned when a matched source file cannot be read.
	ErrSourceReadFailed = zerr.New("failed to read source file")

	// ErrOutputWriteFailed is returned when an output file cannot be written.
	ErrOutputWriteFailed = zerr.New("failed to write output file")

	// ErrStylesheetSyntax is returned when a stylesheet cannot be compiled.
	ErrStylesheetSyntax = zerr.New("stylesheet syntax error")

	// ErrAssetNotFound is returned when a stylesheet references an asset that cannot be resolved.
	ErrAssetNotFound = zerr.New("asset not found or unreadable")

	// ErrTaskExecutionFailed is returned when a plan step fails.
	ErrTaskExecutionFailed = zerr.New("task execution failed")

	// ErrBuildExecutionFailed is returned when a run ends with at least one failed step.
	// Details were already reported by the renderer.
	ErrBuildExecutionFailed = zerr.New("build execution failed")

	// ErrNoTasksSpecified is returned when a run is requested without task names.
	ErrNoTasksSpecified = zerr.New("no tasks specified")

	// ErrServiceAlreadyRunning is returned when a watch or serve step is started twice.
	ErrServiceAlreadyRunning = zerr.New("service already running")

	// ErrWatchUnbound is returned when a watch step starts before a task runner is bound.
	ErrWatchUnbound = zerr.New("watch has no task runner")

	// ErrAlreadyServing is returned when the reload server is started twice.
	ErrAlreadyServing = zerr.New("reload server already started")

	// ErrStoreReadFailed is returned when the output manifest cannot be read.
	ErrStoreReadFailed = zerr.New("failed to read output manifest")

	// ErrStoreWriteFailed is returned when the output manifest cannot be written.
	ErrStoreWriteFailed = zerr.New("failed to write output manifest")

	// ErrStoreUnmarshalFailed is returned when the output manifest is malformed.
	ErrStoreUnmarshalFailed = zerr.New("failed to unmarshal output manifest")
)

// Annotate attaches key and value to err. Unlike zerr.With, the result keeps
// err itself in the chain, so sentinels still match with errors.Is.
func Annotate(err error, key string, value any) error {
	return zerr.With(zerr.Wrap(err, ""), key, value)
}

// WrapAs reports cause as an instance of sentinel. errors.Is matches both,
// and the message reads "sentinel: cause".
func WrapAs(cause, sentinel error) error {
	if cause == nil {
		return nil
	}
	return &sentinelError{sentinel: sentinel, cause: cause}
}

type sentinelError struct {
	sentinel error
	cause    error
}

func (e *sentinelError) Error() string { return e.sentinel.Error() + ": " + e.cause.Error() }

// Message reports the sentinel text alone, so chain walkers print the cause
// on its own line.
func (e *sentinelError) Message() string { return e.sentinel.Error() }

func (e *sentinelError) Unwrap() error { return e.cause }

func (e *sentinelError) Is(target error) bool { return errors.Is(e.sentinel, target) }
