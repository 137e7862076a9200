package linear_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/linear"
)

var epoch = time.Date(2024, 5, 1, 9, 41, 7, 0, time.Local)

func newRenderer(t *testing.T) (*linear.Renderer, *bytes.Buffer) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")

	var buf bytes.Buffer
	r := linear.NewRenderer(&buf, linear.WithClock(func() time.Time { return epoch }))
	require.NoError(t, r.Start(t.Context()))
	return r, &buf
}

func TestRenderer_TaskLifecycle(t *testing.T) {
	r, buf := newRenderer(t)

	r.OnPlanEmit([]string{"images", "styles"}, map[string][]string{"styles": {"images"}}, []string{"css"})
	r.OnTaskStart("s1", "", "images", epoch)
	r.OnTaskComplete("s1", epoch.Add(12*time.Millisecond), nil)

	want := "[09:41:07] Using 2 step(s) for 'css'\n" +
		"[09:41:07] Starting 'images'...\n" +
		"[09:41:07] Finished 'images' after 12 ms\n"
	assert.Equal(t, want, buf.String())
}

func TestRenderer_Failure(t *testing.T) {
	r, buf := newRenderer(t)

	r.OnTaskStart("s1", "", "styles", epoch)
	r.OnTaskComplete("s1", epoch.Add(1500*time.Millisecond), errors.New("stylesheet syntax error"))

	assert.Contains(t, buf.String(), "[09:41:08] ✗ 'styles' errored after 1.50 s\n")
}

func TestRenderer_TaskLogLines(t *testing.T) {
	r, buf := newRenderer(t)

	r.OnTaskStart("s1", "", "serve", epoch)
	buf.Reset()

	r.OnTaskLog("s1", []byte("Serving app at "))
	assert.Empty(t, buf.String())

	r.OnTaskLog("s1", []byte("http://localhost:3000\nOpening "))
	assert.Equal(t, "[09:41:07] Serving app at http://localhost:3000\n", buf.String())

	buf.Reset()
	require.NoError(t, r.Stop())
	assert.Equal(t, "[09:41:07] Opening \n", buf.String())
}

func TestRenderer_PartialLineFlushedOnComplete(t *testing.T) {
	r, buf := newRenderer(t)

	r.OnTaskStart("s1", "", "html", epoch)
	r.OnTaskLog("s1", []byte("no newline"))
	r.OnTaskComplete("s1", epoch, nil)

	assert.Contains(t, buf.String(), "[09:41:07] no newline\n[09:41:07] Finished 'html' after 0 ms\n")
}

func TestRenderer_UnknownSpan(t *testing.T) {
	r, buf := newRenderer(t)

	r.OnTaskLog("missing", []byte("dropped\n"))
	r.OnTaskComplete("missing", epoch, nil)

	assert.Empty(t, buf.String())
	require.NoError(t, r.Wait())
}

func TestRenderer_SeveralTargets(t *testing.T) {
	r, buf := newRenderer(t)

	r.OnPlanEmit([]string{"html", "js", "images"}, nil, []string{"html", "js", "images"})
	assert.Equal(t, "[09:41:07] Using 3 step(s) for 'html', 'js' and 'images'\n", buf.String())
}
