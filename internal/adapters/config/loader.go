// Package config loads the kiln project definition.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// defaultKilnfile is used when no kiln.yaml exists above the working directory.
//
//go:embed defaults.yaml
var defaultKilnfile []byte

// supportedVersion is the only configuration version understood by this loader.
const supportedVersion = "1"

// defaultServeRoot is served when a serve task names no root.
const defaultServeRoot = "app"

var validTaskNameRegex = regexp.MustCompile("^[a-zA-Z0-9_-]+$")

// Loader implements ports.ConfigLoader using a YAML file.
type Loader struct {
	Logger ports.Logger
}

var _ ports.ConfigLoader = (*Loader)(nil)

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

// Load discovers kiln.yaml from cwd upwards and returns its task registry.
// Without a configuration file the built-in definition is rooted at cwd.
func (l *Loader) Load(cwd string) (*domain.Registry, error) {
	if abs, err := filepath.Abs(cwd); err == nil {
		cwd = abs
	}

	configPath, found := findConfiguration(cwd)
	if !found {
		return l.loadBytes(defaultKilnfile, cwd, "defaults.yaml")
	}

	// #nosec G304 -- configPath is found by walking up from cwd
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, zerr.With(domain.WrapAs(err, domain.ErrConfigReadFailed), "path", configPath)
	}
	return l.loadBytes(data, filepath.Dir(configPath), configPath)
}

func findConfiguration(cwd string) (string, bool) {
	currentDir := cwd
	for {
		candidate := filepath.Join(currentDir, domain.ConfigFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return "", false
		}
		currentDir = parentDir
	}
}

func (l *Loader) loadBytes(data []byte, configDir, source string) (*domain.Registry, error) {
	var kilnfile Kilnfile
	if err := yaml.Unmarshal(data, &kilnfile); err != nil {
		return nil, zerr.With(domain.WrapAs(err, domain.ErrConfigParseFailed), "path", source)
	}

	if kilnfile.Version != "" && kilnfile.Version != supportedVersion && l.Logger != nil {
		l.Logger.Warn(fmt.Sprintf("%s declares version %q, reading it as version %s",
			source, kilnfile.Version, supportedVersion))
	}

	reg := domain.NewRegistry(resolveRoot(configDir, kilnfile.Root))

	// Sorted for deterministic error reporting.
	names := make([]string, 0, len(kilnfile.Tasks))
	for name := range kilnfile.Tasks {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		task, err := buildTask(name, kilnfile.Tasks[name])
		if err != nil {
			return nil, domain.Annotate(err, "path", source)
		}
		if err := reg.Add(task); err != nil {
			return nil, err
		}
	}

	if err := reg.Validate(); err != nil {
		return nil, domain.Annotate(err, "path", source)
	}
	return reg, nil
}

func resolveRoot(configDir, configuredRoot string) string {
	if configuredRoot == "" {
		return filepath.Clean(configDir)
	}
	if filepath.IsAbs(configuredRoot) {
		return filepath.Clean(configuredRoot)
	}
	return filepath.Clean(filepath.Join(configDir, configuredRoot))
}

func buildTask(name string, dto *TaskDTO) (*domain.Task, error) {
	if err := validateTaskName(name); err != nil {
		return nil, err
	}
	if dto == nil {
		return nil, domain.Annotate(domain.ErrInvalidTaskKind, "task", name)
	}

	task := &domain.Task{
		Name:        domain.NewInternedString(name),
		Description: dto.Description,
	}

	kinds := 0
	for _, set := range []bool{len(dto.Src) > 0, dto.Series != nil, dto.Parallel != nil, dto.Watch != nil, dto.Serve != nil} {
		if set {
			kinds++
		}
	}
	if kinds != 1 {
		return nil, domain.Annotate(domain.ErrInvalidTaskKind, "task", name)
	}

	var err error
	switch {
	case len(dto.Src) > 0:
		task.Kind = domain.KindPipeline
		task.Pipeline, err = buildPipeline(dto)
	case dto.Series != nil:
		task.Kind = domain.KindSeries
		task.Children = canonicalizeStrings(dto.Series)
	case dto.Parallel != nil:
		task.Kind = domain.KindParallel
		task.Children = canonicalizeStrings(dto.Parallel)
	case dto.Watch != nil:
		task.Kind = domain.KindWatch
		task.Watch, err = buildWatch(dto.Watch)
	default:
		task.Kind = domain.KindServe
		task.Serve = buildServe(dto.Serve)
	}
	if err != nil {
		return nil, domain.Annotate(err, "task", name)
	}
	return task, nil
}

func buildPipeline(dto *TaskDTO) (*domain.PipelineSpec, error) {
	if dto.Dest == "" {
		return nil, domain.ErrMissingDestination
	}

	sources, err := domain.NewGlobPatterns(dto.Src)
	if err != nil {
		return nil, err
	}
	reload, err := domain.ParseReloadMode(dto.Reload)
	if err != nil {
		return nil, err
	}

	stages := make([]domain.StageConfig, 0, len(dto.Stages))
	for _, s := range dto.Stages {
		stages = append(stages, domain.StageConfig{Name: s.Name, Options: s.Options})
	}

	return &domain.PipelineSpec{
		Sources: sources,
		Dest:    filepath.FromSlash(dto.Dest),
		Stages:  stages,
		Reload:  reload,
	}, nil
}

func buildWatch(dtos []WatchDTO) ([]domain.WatchBinding, error) {
	bindings := make([]domain.WatchBinding, 0, len(dtos))
	for _, dto := range dtos {
		if len(dto.Pattern) == 0 || dto.Task == "" {
			return nil, domain.ErrEmptyWatchBinding
		}

		patterns, err := domain.NewGlobPatterns(dto.Pattern)
		if err != nil {
			return nil, err
		}
		reload, err := domain.ParseReloadMode(dto.Reload)
		if err != nil {
			return nil, err
		}

		bindings = append(bindings, domain.WatchBinding{
			Patterns: patterns,
			Task:     domain.NewInternedString(dto.Task),
			Reload:   reload,
		})
	}
	return bindings, nil
}

func buildServe(dto *ServeDTO) *domain.ServeSpec {
	spec := &domain.ServeSpec{
		Root:    filepath.FromSlash(dto.Root),
		Port:    domain.DefaultServePort,
		Browser: dto.Browser,
		Open:    true,
	}
	if spec.Root == "" {
		spec.Root = defaultServeRoot
	}
	if dto.Port != nil {
		spec.Port = *dto.Port
	}
	if spec.Browser == "" {
		spec.Browser = "default"
	}
	if dto.Open != nil {
		spec.Open = *dto.Open
	}
	return spec
}

func canonicalizeStrings(strs []string) []domain.InternedString {
	out := make([]domain.InternedString, 0, len(strs))
	for _, s := range strs {
		out = append(out, domain.NewInternedString(s))
	}
	return out
}

// validateTaskName rejects names that would clash with plan step identifiers.
func validateTaskName(name string) error {
	if !validTaskNameRegex.MatchString(name) {
		return domain.Annotate(domain.ErrInvalidTaskName, "task_name", name)
	}
	return nil
}
