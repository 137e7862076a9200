package config

import (
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Kilnfile represents the structure of the kiln.yaml configuration file.
type Kilnfile struct {
	Version string              `yaml:"version"`
	Root    string              `yaml:"root"`
	Tasks   map[string]*TaskDTO `yaml:"tasks"`
}

// TaskDTO represents a task definition in the configuration.
// Exactly one of Src, Series, Parallel, Watch or Serve must be set.
type TaskDTO struct {
	Description string     `yaml:"description"`
	Src         StringList `yaml:"src"`
	Dest        string     `yaml:"dest"`
	Stages      []StageDTO `yaml:"stages"`
	Reload      string     `yaml:"reload"`
	Series      []string   `yaml:"series"`
	Parallel    []string   `yaml:"parallel"`
	Watch       []WatchDTO `yaml:"watch"`
	Serve       *ServeDTO  `yaml:"serve"`
}

// WatchDTO binds file patterns to the task they trigger.
type WatchDTO struct {
	Pattern StringList `yaml:"pattern"`
	Task    string     `yaml:"task"`
	Reload  string     `yaml:"reload"`
}

// ServeDTO configures the live-reload server.
type ServeDTO struct {
	Root    string `yaml:"root"`
	Port    *int   `yaml:"port"`
	Browser string `yaml:"browser"`
	Open    *bool  `yaml:"open"`
}

// StageDTO is one pipeline stage, written either as a bare name
// ("cssnano") or as a single-key mapping ({rename: {suffix: .min}}).
type StageDTO struct {
	Name    string
	Options map[string]any
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StageDTO) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		s.Name = value.Value
		return nil
	case yaml.MappingNode:
		if len(value.Content) != 2 {
			return zerr.With(zerr.New("stage must have exactly one name"), "line", value.Line)
		}
		s.Name = value.Content[0].Value
		opts := value.Content[1]
		if opts.Kind == yaml.ScalarNode && opts.Tag == "!!null" {
			return nil
		}
		return opts.Decode(&s.Options)
	default:
		return zerr.With(zerr.New("stage must be a name or a mapping"), "line", value.Line)
	}
}

// StringList accepts either a single string or a sequence of strings.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*l = StringList{value.Value}
		return nil
	}
	var items []string
	if err := value.Decode(&items); err != nil {
		return err
	}
	*l = items
	return nil
}
