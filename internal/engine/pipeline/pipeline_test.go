package pipeline_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/config"
	"go.trai.ch/kiln/internal/adapters/fs"
	"go.trai.ch/kiln/internal/adapters/manifest"
	"go.trai.ch/kiln/internal/adapters/transform"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/core/ports/mocks"
	"go.trai.ch/kiln/internal/engine/pipeline"
	"go.uber.org/mock/gomock"
)

// recordingLogger keeps every message for assertions.
type recordingLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []error
}

func (l *recordingLogger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}

func (l *recordingLogger) Warn(msg string) { l.Info(msg) }

func (l *recordingLogger) Error(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, err)
}

type fixture struct {
	root     string
	registry *domain.Registry
	runner   *pipeline.Runner
	reloader *mocks.MockReloader
	logger   *recordingLogger
	store    *manifest.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()

	reg, err := config.NewLoader(nil).Load(root)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	f := &fixture{
		root:     root,
		registry: reg,
		reloader: mocks.NewMockReloader(ctrl),
		logger:   &recordingLogger{},
		store:    manifest.NewStore(),
	}
	f.runner = pipeline.NewRunner(
		fs.NewSource(fs.NewWalker()),
		fs.NewSink(),
		transform.NewCatalog(),
		f.store,
		f.reloader,
		f.logger,
	)
	return f
}

func (f *fixture) write(t *testing.T, rel, contents string) string {
	t.Helper()
	path := filepath.Join(f.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func (f *fixture) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func (f *fixture) run(t *testing.T, name string) (pipeline.Result, error) {
	t.Helper()
	task, ok := f.registry.Get(name)
	require.True(t, ok, "task %s", name)
	var out strings.Builder
	return f.runner.Run(context.Background(), f.root, task, &out)
}

func TestRun_EmptyMatchIsNoOp(t *testing.T) {
	for _, name := range []string{"html", "js", "images", "styles"} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)

			res, err := f.run(t, name)
			require.NoError(t, err)
			assert.Empty(t, res.Written)
			assert.Zero(t, res.Read)

			_, statErr := os.Stat(filepath.Join(f.root, "app"))
			assert.True(t, errors.Is(statErr, os.ErrNotExist), "nothing may be written")
		})
	}
}

func TestRun_Markup(t *testing.T) {
	f := newFixture(t)
	f.write(t, "dev/pages/about.html", "<html>\n  <body>\n    <!-- draft -->\n    <p>Hello     world</p>\n  </body>\n</html>\n")

	res, err := f.run(t, "html")
	require.NoError(t, err)
	require.Len(t, res.Written, 1)
	assert.Equal(t, filepath.Join(f.root, "app", "pages", "about.html"), res.Written[0])

	out := f.read(t, "app/pages/about.html")
	assert.NotContains(t, out, "draft")
	assert.NotContains(t, out, "<!--")
	assert.Contains(t, out, "Hello world")
	assert.NotContains(t, out, "\n    ")
}

func TestRun_Script(t *testing.T) {
	f := newFixture(t)
	f.write(t, "dev/js/app.js", "const theme = window.config?.theme ?? \"dark\";\nconsole.log(theme);\n")

	res, err := f.run(t, "js")
	require.NoError(t, err)
	require.Len(t, res.Written, 1)
	assert.Equal(t, filepath.Join(f.root, "app", "js", "app.min.js"), res.Written[0])

	out := f.read(t, "app/js/app.min.js")
	assert.NotContains(t, out, "?.")
	assert.NotContains(t, out, "??")
	assert.Contains(t, out, "console.log")
}

func TestRun_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.write(t, "dev/index.html", "<p>  one  </p>")
	f.write(t, "dev/js/app.js", "let x = 1 ** 2; console.log(x);")
	f.write(t, "dev/css/main.css", ".a { color: red; }")
	f.reloader.EXPECT().Reload().AnyTimes()
	f.reloader.EXPECT().Inject(gomock.Any()).AnyTimes()

	outputs := map[string]string{
		"html":   "app/index.html",
		"js":     "app/js/app.min.js",
		"styles": "app/css/main.min.css",
	}
	for name, rel := range outputs {
		_, err := f.run(t, name)
		require.NoError(t, err)
		first := f.read(t, rel)

		_, err = f.run(t, name)
		require.NoError(t, err)
		assert.Equal(t, first, f.read(t, rel), name)
	}
}

func TestRun_ImagesSkipUpToDate(t *testing.T) {
	f := newFixture(t)
	svg := `<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10" viewBox="0 0 10 10"><rect id="box" width="10" height="10"/></svg>`
	f.write(t, "dev/images/new.svg", svg)
	f.write(t, "dev/images/old.svg", svg)

	// old.svg already has a newer counterpart in the destination.
	done := f.write(t, "app/images/old.svg", "done")
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(done, future, future))

	res, err := f.run(t, "images")
	require.NoError(t, err)
	require.Len(t, res.Written, 1)
	assert.Equal(t, filepath.Join(f.root, "app", "images", "new.svg"), res.Written[0])
	assert.Equal(t, "done", f.read(t, "app/images/old.svg"))

	out := f.read(t, "app/images/new.svg")
	assert.NotContains(t, out, "viewBox")
	assert.Contains(t, out, `id="box"`)

	logged := strings.Join(f.logger.infos, "\n")
	assert.Contains(t, logged, "new.svg")
	assert.NotContains(t, logged, "old.svg")

	// A second run has nothing left to do.
	res, err = f.run(t, "images")
	require.NoError(t, err)
	assert.Empty(t, res.Written)
	assert.Equal(t, 2, res.Read)
}

func TestRun_StylesheetErrorIsRecoverable(t *testing.T) {
	f := newFixture(t)
	f.write(t, "dev/css/broken.css", ".a {\n  color: red;\n")
	f.write(t, "dev/css/main.css", ".b { display: flex; color: #ff0000; }")

	var injected []string
	f.reloader.EXPECT().Inject(gomock.Any()).Do(func(paths []string) { injected = paths }).Times(1)

	res, err := f.run(t, "styles")
	require.NoError(t, err)
	require.Len(t, res.Written, 1)

	mainOut := filepath.Join(f.root, "app", "css", "main.min.css")
	assert.Equal(t, []string{mainOut}, injected)
	assert.NoFileExists(t, filepath.Join(f.root, "app", "css", "broken.min.css"))
	assert.FileExists(t, mainOut)

	require.Len(t, f.logger.errors, 1)
	assert.ErrorIs(t, f.logger.errors[0], domain.ErrStylesheetSyntax)
}

func TestRun_StageFailureStopsTask(t *testing.T) {
	f := newFixture(t)
	f.write(t, "dev/js/a.js", "console.log(1);")
	f.write(t, "dev/js/b.js", "const = ;")
	f.write(t, "dev/js/c.js", "console.log(3);")

	res, err := f.run(t, "js")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStageFailed)

	// Walk order is lexical: a.js was written, c.js never reached the writer.
	assert.Equal(t, []string{filepath.Join(f.root, "app", "js", "a.min.js")}, res.Written)
	assert.NoFileExists(t, filepath.Join(f.root, "app", "js", "c.min.js"))
}

func TestRun_RecordsOutputs(t *testing.T) {
	f := newFixture(t)
	f.write(t, "dev/index.html", "<p>hi</p>")

	_, err := f.run(t, "html")
	require.NoError(t, err)

	rec, err := f.store.Get(f.root, "app/index.html")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "html", rec.Task)
	assert.Len(t, rec.Hash, 16)
	assert.Equal(t, int64(len(f.read(t, "app/index.html"))), rec.Size)
}

func TestRun_UnknownStage(t *testing.T) {
	f := newFixture(t)
	task := domain.Task{
		Name: domain.NewInternedString("odd"),
		Kind: domain.KindPipeline,
		Pipeline: &domain.PipelineSpec{
			Sources: []domain.GlobPattern{domain.MustGlobPattern("dev/**/*.txt")},
			Dest:    "app",
			Stages:  []domain.StageConfig{{Name: "gzip"}},
		},
	}

	_, err := f.runner.Run(context.Background(), f.root, task, nil)
	require.ErrorIs(t, err, domain.ErrUnknownStage)
}

type dropStage struct{ calls int }

func (s *dropStage) Name() string { return "drop" }

func (s *dropStage) Process(_ context.Context, _ *domain.File) (*domain.File, error) {
	s.calls++
	return nil, nil
}

type upperStage struct{}

func (upperStage) Name() string { return "upper" }

func (upperStage) Process(_ context.Context, f *domain.File) (*domain.File, error) {
	f.Contents = []byte(strings.ToUpper(string(f.Contents)))
	return f, nil
}

func TestApply(t *testing.T) {
	in := &domain.File{Path: "/p/a.txt", Base: "/p", Contents: []byte("abc")}

	out, err := pipeline.Apply(context.Background(), []ports.Stage{upperStage{}}, in)
	require.NoError(t, err)
	assert.Equal(t, "ABC", string(out.Contents))

	drop := &dropStage{}
	out, err = pipeline.Apply(context.Background(), []ports.Stage{drop, upperStage{}}, in)
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, 1, drop.calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pipeline.Apply(ctx, []ports.Stage{upperStage{}}, in)
	require.ErrorIs(t, err, context.Canceled)
}
