package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/linear"
	"go.trai.ch/kiln/internal/adapters/manifest"
	"go.trai.ch/kiln/internal/adapters/telemetry"
	"go.trai.ch/kiln/internal/app"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/core/ports/mocks"
	"go.trai.ch/kiln/internal/engine/executor"
	"go.uber.org/mock/gomock"
)

type nopExecutor struct{}

func (nopExecutor) Execute(context.Context, domain.Step, io.Writer) error { return nil }
func (nopExecutor) SetTaskRunner(ports.TaskRunner)                        {}
func (nopExecutor) SetServeOverrides(executor.ServeOverrides)             {}
func (nopExecutor) HasServices() bool                                     { return false }
func (nopExecutor) Wait() error                                           { return nil }

func provide(t *testing.T, loader ports.ConfigLoader, logger ports.Logger) ComponentProvider {
	t.Helper()
	renderer := linear.NewRenderer(new(bytes.Buffer))
	application := app.New(
		loader,
		nopExecutor{},
		manifest.NewStore(),
		telemetry.NewNoOpTracer(),
		renderer,
		logger,
	).WithDir(t.TempDir())

	return func(_ context.Context) (*app.Components, func(), error) {
		return &app.Components{App: application, Logger: logger}, func() {}, nil
	}
}

// TestRun_Success verifies that the run function returns 0 when the command succeeds.
func TestRun_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := provide(t, mocks.NewMockConfigLoader(ctrl), mocks.NewMockLogger(ctrl))

	stdout := new(bytes.Buffer)
	exitCode := run(context.Background(), []string{"version"}, stdout, new(bytes.Buffer), provider)
	assert.Equal(t, 0, exitCode)
	assert.Contains(t, stdout.String(), "kiln version")
}

// TestRun_InitializationError verifies that run returns 1 when component initialization fails.
func TestRun_InitializationError(t *testing.T) {
	provider := func(_ context.Context) (*app.Components, func(), error) {
		return nil, nil, errors.New("init failed")
	}

	stderr := new(bytes.Buffer)
	exitCode := run(context.Background(), []string{"version"}, new(bytes.Buffer), stderr, provider)

	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "Error: init failed")
}

// TestRun_ExecutionError verifies that run returns 1 and logs when the command fails.
func TestRun_ExecutionError(t *testing.T) {
	ctrl := gomock.NewController(t)
	loader := mocks.NewMockConfigLoader(ctrl)
	logger := mocks.NewMockLogger(ctrl)

	loader.EXPECT().Load(gomock.Any()).Return(nil, errors.New("load failed"))
	var logged error
	logger.EXPECT().Error(gomock.Any()).Do(func(err error) { logged = err })

	exitCode := run(context.Background(), []string{"run", "html"}, new(bytes.Buffer), new(bytes.Buffer), provide(t, loader, logger))

	assert.Equal(t, 1, exitCode)
	assert.ErrorContains(t, logged, "load failed")
}

type failingExecutor struct{ nopExecutor }

func (failingExecutor) Execute(_ context.Context, step domain.Step, _ io.Writer) error {
	return errors.New(step.ID.String() + " broke")
}

// TestRun_BuildFailureLogsEachTask verifies that a failed build logs every
// task cause once, without the build failure wrapper.
func TestRun_BuildFailureLogsEachTask(t *testing.T) {
	ctrl := gomock.NewController(t)
	root := t.TempDir()
	registry := domain.NewRegistry(root)
	for _, name := range []string{"html", "js"} {
		require.NoError(t, registry.Add(&domain.Task{
			Name:     domain.NewInternedString(name),
			Kind:     domain.KindPipeline,
			Pipeline: &domain.PipelineSpec{Dest: "app"},
		}))
	}
	loader := mocks.NewMockConfigLoader(ctrl)
	loader.EXPECT().Load(gomock.Any()).Return(registry, nil)

	var logged []error
	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Error(gomock.Any()).Do(func(err error) { logged = append(logged, err) }).Times(2)

	application := app.New(loader, failingExecutor{}, manifest.NewStore(), telemetry.NewNoOpTracer(),
		linear.NewRenderer(new(bytes.Buffer)), logger).WithDir(root)
	provider := func(_ context.Context) (*app.Components, func(), error) {
		return &app.Components{App: application, Logger: logger}, func() {}, nil
	}

	exitCode := run(context.Background(), []string{"run", "html", "js"}, new(bytes.Buffer), new(bytes.Buffer), provider)

	assert.Equal(t, 1, exitCode)
	require.Len(t, logged, 2)
	var messages []string
	for _, err := range logged {
		require.ErrorIs(t, err, domain.ErrTaskExecutionFailed)
		assert.NotErrorIs(t, err, domain.ErrBuildExecutionFailed)
		messages = append(messages, err.Error())
	}
	assert.ElementsMatch(t, []string{"task execution failed: html broke", "task execution failed: js broke"}, messages)
}
