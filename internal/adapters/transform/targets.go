package transform

import (
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"go.trai.ch/kiln/internal/core/domain"
)

// DefaultBrowsers approximates the browserslist "defaults" query.
var DefaultBrowsers = []string{"chrome 87", "edge 88", "firefox 78", "safari 14", "ios 14", "opera 73"}

var engineNames = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"ff":      api.EngineFirefox,
	"safari":  api.EngineSafari,
	"ios":     api.EngineIOS,
	"ios_saf": api.EngineIOS,
	"opera":   api.EngineOpera,
	"ie":      api.EngineIE,
}

// parseBrowsers converts entries such as "chrome 87", "firefox >= 78" or
// "defaults" into esbuild engines.
func parseBrowsers(entries []string) ([]api.Engine, error) {
	if len(entries) == 0 {
		entries = DefaultBrowsers
	}

	var engines []api.Engine
	for _, entry := range entries {
		fields := strings.Fields(strings.ToLower(entry))
		if len(fields) == 1 && fields[0] == "defaults" {
			defaults, err := parseBrowsers(DefaultBrowsers)
			if err != nil {
				return nil, err
			}
			engines = append(engines, defaults...)
			continue
		}
		if len(fields) == 3 && fields[1] == ">=" {
			fields = []string{fields[0], fields[2]}
		}
		if len(fields) != 2 {
			return nil, domain.Annotate(domain.ErrInvalidStageOptions, "browser", entry)
		}

		name, ok := engineNames[fields[0]]
		if !ok {
			return nil, domain.Annotate(domain.ErrInvalidStageOptions, "browser", entry)
		}
		engines = append(engines, api.Engine{Name: name, Version: fields[1]})
	}
	return engines, nil
}
