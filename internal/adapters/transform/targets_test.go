package transform

import (
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBrowsers(t *testing.T) {
	engines, err := parseBrowsers([]string{"Chrome 90", "firefox >= 78", "ios_saf 14.5"})
	require.NoError(t, err)
	assert.Equal(t, []api.Engine{
		{Name: api.EngineChrome, Version: "90"},
		{Name: api.EngineFirefox, Version: "78"},
		{Name: api.EngineIOS, Version: "14.5"},
	}, engines)
}

func TestParseBrowsers_Defaults(t *testing.T) {
	fromEmpty, err := parseBrowsers(nil)
	require.NoError(t, err)
	fromKeyword, err := parseBrowsers([]string{"defaults"})
	require.NoError(t, err)

	assert.Len(t, fromEmpty, len(DefaultBrowsers))
	assert.Equal(t, fromEmpty, fromKeyword)
}

func TestParseBrowsers_Invalid(t *testing.T) {
	for _, entry := range []string{"netscape 4", "chrome", "> 1%"} {
		_, err := parseBrowsers([]string{entry})
		assert.Error(t, err, entry)
	}
}

func TestRoundNumber(t *testing.T) {
	tests := []struct {
		in        string
		precision int
		want      string
	}{
		{"1.23456", 3, "1.235"},
		{"33.333333%", 3, "33.333%"},
		{"0.12345em", 3, "0.123em"},
		{".55555px", 2, "0.56px"},
		{"-0.0001", 3, "0"},
		{"1.5px", 3, "1.5px"},
		{"10", 3, "10"},
		{"1.23456e3", 2, "1.23456e3"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, string(roundNumber([]byte(tt.in), tt.precision)))
		})
	}
}
