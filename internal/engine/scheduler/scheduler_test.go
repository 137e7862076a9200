package scheduler_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"testing/synctest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/core/ports/mocks"
	"go.trai.ch/kiln/internal/engine/scheduler"
	"go.uber.org/mock/gomock"
)

type schedulerTestMocks struct {
	executor *mocks.MockExecutor
	tracer   *mocks.MockTracer
}

// setupSchedulerTest creates a scheduler and common mocks.
func setupSchedulerTest(t *testing.T) (*scheduler.Scheduler, schedulerTestMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := schedulerTestMocks{
		executor: mocks.NewMockExecutor(ctrl),
		tracer:   mocks.NewMockTracer(ctrl),
	}

	mockSpan := mocks.NewMockSpan(ctrl)
	mockSpan.EXPECT().End().AnyTimes()
	mockSpan.EXPECT().RecordError(gomock.Any()).AnyTimes()
	mockSpan.EXPECT().SetAttribute(gomock.Any(), gomock.Any()).AnyTimes()
	mockSpan.EXPECT().Write(gomock.Any()).AnyTimes()

	m.tracer.EXPECT().Start(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ string, _ ...ports.SpanOption) (context.Context, ports.Span) {
			return ctx, mockSpan
		},
	).AnyTimes()
	m.tracer.EXPECT().EmitPlan(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes()

	return scheduler.NewScheduler(m.executor, m.tracer), m
}

func leaf(name string) *domain.Task {
	return &domain.Task{
		Name:     domain.NewInternedString(name),
		Kind:     domain.KindPipeline,
		Pipeline: &domain.PipelineSpec{Dest: "app"},
	}
}

// plan builds the gulp-like default project and plans targets in series.
func plan(t *testing.T, targets ...string) *domain.Graph {
	t.Helper()
	reg := domain.NewRegistry("/tmp/project")
	for _, name := range []string{"images", "styles", "html", "js"} {
		require.NoError(t, reg.Add(leaf(name)))
	}
	require.NoError(t, reg.Add(domain.NewSeries("css", "images", "styles")))
	require.NoError(t, reg.Add(domain.NewParallel("scripts", "html", "js")))
	require.NoError(t, reg.Add(domain.NewSeries("build", "css", "scripts")))

	g, err := reg.Plan(targets, true)
	require.NoError(t, err)
	return g
}

func TestScheduler_Run_SeriesOrder(t *testing.T) {
	s, m := setupSchedulerTest(t)

	var mu sync.Mutex
	var order []string
	m.executor.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, step domain.Step, _ io.Writer) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, step.ID.String())
			return nil
		},
	).Times(2)

	err := s.Run(context.Background(), plan(t, "css"), 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"images", "styles"}, order)

	statuses := s.GetTaskStatusMap()
	assert.Equal(t, scheduler.StatusCompleted, statuses[domain.NewInternedString("images")])
	assert.Equal(t, scheduler.StatusCompleted, statuses[domain.NewInternedString("styles")])
}

func TestScheduler_Run_ImagesFinishBeforeStylesStart(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		s, m := setupSchedulerTest(t)

		imagesStarted := make(chan struct{})
		imagesProceed := make(chan struct{})
		stylesStarted := make(chan struct{})

		m.executor.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, step domain.Step, _ io.Writer) error {
				switch step.ID.String() {
				case "images":
					close(imagesStarted)
					<-imagesProceed
				case "styles":
					close(stylesStarted)
				}
				return nil
			},
		).Times(2)

		errCh := make(chan error)
		go func() {
			errCh <- s.Run(context.Background(), plan(t, "css"), 4)
		}()

		synctest.Wait()
		<-imagesStarted
		select {
		case <-stylesStarted:
			t.Fatal("styles started before images finished")
		default:
		}

		close(imagesProceed)
		require.NoError(t, <-errCh)
		<-stylesStarted
	})
}

func TestScheduler_Run_ParallelChildren(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		s, m := setupSchedulerTest(t)

		htmlStarted := make(chan struct{})
		jsStarted := make(chan struct{})
		proceed := make(chan struct{})

		m.executor.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, step domain.Step, _ io.Writer) error {
				switch step.ID.String() {
				case "html":
					close(htmlStarted)
				case "js":
					close(jsStarted)
				}
				<-proceed
				return nil
			},
		).Times(2)

		errCh := make(chan error)
		go func() {
			errCh <- s.Run(context.Background(), plan(t, "scripts"), 2)
		}()

		// Both run at the same time; neither waits for the other.
		<-htmlStarted
		<-jsStarted
		close(proceed)
		require.NoError(t, <-errCh)
	})
}

func TestScheduler_Run_FailureStopsDependents(t *testing.T) {
	s, m := setupSchedulerTest(t)

	m.executor.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, step domain.Step, _ io.Writer) error {
			if step.ID.String() == "images" {
				return errors.New("broken png")
			}
			t.Errorf("step %s should not run", step.ID)
			return nil
		},
	).Times(1)

	err := s.Run(context.Background(), plan(t, "build"), 4)
	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrTaskExecutionFailed)
	assert.Contains(t, err.Error(), "broken png")

	statuses := s.GetTaskStatusMap()
	assert.Equal(t, scheduler.StatusFailed, statuses[domain.NewInternedString("images")])
	assert.Equal(t, scheduler.StatusSkipped, statuses[domain.NewInternedString("styles")])
	assert.Equal(t, scheduler.StatusSkipped, statuses[domain.NewInternedString("html")])
	assert.Equal(t, scheduler.StatusSkipped, statuses[domain.NewInternedString("js")])
}

func TestScheduler_Run_IndependentBranchesContinue(t *testing.T) {
	s, m := setupSchedulerTest(t)

	reg := domain.NewRegistry("/tmp/project")
	require.NoError(t, reg.Add(leaf("html")))
	require.NoError(t, reg.Add(leaf("js")))
	g, err := reg.Plan([]string{"html", "js"}, false)
	require.NoError(t, err)

	m.executor.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, step domain.Step, _ io.Writer) error {
			if step.ID.String() == "html" {
				return errors.New("bad markup")
			}
			return nil
		},
	).Times(2)

	err = s.Run(context.Background(), g, 1)
	require.Error(t, err)

	statuses := s.GetTaskStatusMap()
	assert.Equal(t, scheduler.StatusFailed, statuses[domain.NewInternedString("html")])
	assert.Equal(t, scheduler.StatusCompleted, statuses[domain.NewInternedString("js")])
}

func TestScheduler_Run_ContextCancelled(t *testing.T) {
	s, m := setupSchedulerTest(t)
	m.executor.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx, plan(t, "css"), 2)
	require.ErrorIs(t, err, context.Canceled)
}

func TestScheduler_Run_CancelDrainsRunningSteps(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		s, m := setupSchedulerTest(t)
		release := make(chan struct{})
		m.executor.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(context.Context, domain.Step, io.Writer) error {
				<-release
				return nil
			},
		).Times(1)

		g := plan(t, "css")
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- s.Run(ctx, g, 2) }()

		synctest.Wait()
		cancel()
		// The loop parks on the running step rather than polling ctx.
		synctest.Wait()
		select {
		case err := <-done:
			t.Fatalf("run returned while images was running: %v", err)
		default:
		}

		close(release)
		require.ErrorIs(t, <-done, context.Canceled)

		statuses := s.GetTaskStatusMap()
		assert.Equal(t, scheduler.StatusCompleted, statuses[domain.NewInternedString("images")])
		assert.Equal(t, scheduler.StatusPending, statuses[domain.NewInternedString("styles")])
	})
}

func TestScheduler_Run_EmitsPlan(t *testing.T) {
	ctrl := gomock.NewController(t)
	executor := mocks.NewMockExecutor(ctrl)
	tracer := mocks.NewMockTracer(ctrl)
	span := mocks.NewMockSpan(ctrl)
	span.EXPECT().End().AnyTimes()

	tracer.EXPECT().EmitPlan(gomock.Any(),
		[]string{"images", "styles"},
		map[string][]string{"images": {}, "styles": {"images"}},
		[]string{"css"},
	).Times(1)
	tracer.EXPECT().Start(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ string, _ ...ports.SpanOption) (context.Context, ports.Span) {
			return ctx, span
		},
	).Times(2)
	executor.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)

	s := scheduler.NewScheduler(executor, tracer)
	require.NoError(t, s.Run(context.Background(), plan(t, "css"), 1))
}
