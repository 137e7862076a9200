package logger_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/kiln/internal/adapters/logger"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/zerr"
)

func TestCollectErrorEntries(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantMessages []string
	}{
		{
			name:         "single standard error",
			err:          errors.New("simple error"),
			wantMessages: []string{"simple error"},
		},
		{
			name:         "zerr single error",
			err:          zerr.New("stage failed"),
			wantMessages: []string{"stage failed"},
		},
		{
			name: "zerr wrapped chain",
			err: zerr.Wrap(
				zerr.Wrap(errors.New("unexpected EOF"), "stylesheet syntax error"),
				"task execution failed",
			),
			wantMessages: []string{"task execution failed", "stylesheet syntax error", "unexpected EOF"},
		},
		{
			name:         "nil error",
			err:          nil,
			wantMessages: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := logger.CollectErrorEntries(tt.err)
			if tt.err == nil {
				assert.Empty(t, entries)
				return
			}

			assert.Len(t, entries, len(tt.wantMessages))
			for i, want := range tt.wantMessages {
				assert.Equal(t, want, entries[i].Message, "message mismatch at index %d", i)
			}
		})
	}
}

func TestCollectErrorEntries_Metadata(t *testing.T) {
	inner := zerr.With(zerr.New("asset not found"), "asset", "logo.png")
	outer := zerr.With(zerr.Wrap(inner, "stage failed"), "stage", "assets")

	entries := logger.CollectErrorEntries(outer)

	assert.Len(t, entries, 2)
	assert.Equal(t, "assets", entries[0].Metadata["stage"])
	assert.Equal(t, "logo.png", entries[1].Metadata["asset"])
}

func TestCollectErrorEntries_SentinelLinks(t *testing.T) {
	cause := errors.New("permission denied")
	err := zerr.With(domain.WrapAs(cause, domain.ErrOutputWriteFailed), "file", "app/index.html")

	entries := logger.CollectErrorEntries(err)

	assert.Len(t, entries, 2)
	assert.Equal(t, "failed to write output file", entries[0].Message)
	assert.Equal(t, "app/index.html", entries[0].Metadata["file"])
	assert.Equal(t, "permission denied", entries[1].Message)

	entries = logger.CollectErrorEntries(domain.Annotate(domain.ErrTaskNotFound, "task", "stylez"))
	assert.Equal(t, []logger.ErrorEntry{{Message: "task not found", Metadata: map[string]any{"task": "stylez"}}}, entries)
}

func TestFormatErrorEntries(t *testing.T) {
	tests := []struct {
		name    string
		entries []logger.ErrorEntry
		want    string
	}{
		{
			name:    "single entry",
			entries: []logger.ErrorEntry{{Message: "single error"}},
			want:    "Error: single error",
		},
		{
			name:    "two entries with caused by",
			entries: []logger.ErrorEntry{{Message: "outer error"}, {Message: "inner error"}},
			want:    "Error: outer error\n\n  Caused by:\n    → inner error",
		},
		{
			name:    "three entries",
			entries: []logger.ErrorEntry{{Message: "first"}, {Message: "second"}, {Message: "third"}},
			want:    "Error: first\n\n  Caused by:\n    → second\n    → third",
		},
		{
			name: "metadata on main error",
			entries: []logger.ErrorEntry{
				{Message: "main error", Metadata: map[string]any{"task": "styles"}},
			},
			want: "Error: main error\n       task: styles",
		},
		{
			name: "metadata on cause",
			entries: []logger.ErrorEntry{
				{Message: "main"},
				{Message: "cause", Metadata: map[string]any{"file": "main.css"}},
			},
			want: "Error: main\n\n  Caused by:\n    → cause\n      file: main.css",
		},
		{
			name:    "multiline message",
			entries: []logger.ErrorEntry{{Message: "line1\nline2"}},
			want:    "Error: line1\n       line2",
		},
		{
			name: "metadata sorted alphabetically",
			entries: []logger.ErrorEntry{
				{Message: "error", Metadata: map[string]any{"zebra": "z", "alpha": "a", "mike": 3}},
			},
			want: "Error: error\n       alpha: a\n       mike: 3\n       zebra: z",
		},
		{
			name:    "empty entries",
			entries: []logger.ErrorEntry{},
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, logger.FormatErrorEntries(tt.entries))
		})
	}
}
