package telemetry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.trai.ch/kiln/internal/adapters/telemetry"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func TestOTelTracer_RecordsSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tracer := telemetry.NewOTelTracer("test", nil, sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tracer.Shutdown(context.Background()) }()

	_, span := tracer.Start(context.Background(), "styles#2", ports.WithTask("styles"))
	span.SetAttribute("files", 3)
	span.SetAttribute("dest", "app/css")
	span.SetAttribute("other", struct{}{})
	span.RecordError(errors.New("boom"))
	span.RecordError(nil)
	n, err := span.Write([]byte("log line"))
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	span.End()

	ended := sr.Ended()
	require.Len(t, ended, 1)
	got := ended[0]
	assert.Equal(t, "styles#2", got.Name())
	assert.Equal(t, codes.Error, got.Status().Code)
	assert.Equal(t, "boom", got.Status().Description)

	attrs := map[string]string{}
	for _, kv := range got.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "styles", attrs[telemetry.TaskAttribute])
	assert.Equal(t, "3", attrs["files"])
	assert.Equal(t, "app/css", attrs["dest"])

	var eventNames []string
	for _, ev := range got.Events() {
		eventNames = append(eventNames, ev.Name)
	}
	assert.Contains(t, eventNames, "log")
}

func TestOTelTracer_ForwardsToRenderer(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRenderer := mocks.NewMockRenderer(ctrl)

	var startedID string
	gomock.InOrder(
		mockRenderer.EXPECT().OnPlanEmit([]string{"images", "styles"}, map[string][]string{"styles": {"images"}}, []string{"css"}),
		mockRenderer.EXPECT().OnTaskStart(gomock.Any(), "", "images", gomock.Any()).
			Do(func(spanID, _, _ string, _ time.Time) { startedID = spanID }),
		mockRenderer.EXPECT().OnTaskLog(gomock.Any(), []byte("Serving app\n")).
			Do(func(spanID string, _ []byte) { assert.Equal(t, startedID, spanID) }),
		mockRenderer.EXPECT().OnTaskComplete(gomock.Any(), gomock.Any(), nil),
	)

	tracer := telemetry.NewOTelTracer("test", mockRenderer)
	defer func() { _ = tracer.Shutdown(context.Background()) }()

	tracer.EmitPlan(context.Background(),
		[]string{"images", "styles"}, map[string][]string{"styles": {"images"}}, []string{"css"})

	_, span := tracer.Start(context.Background(), "images")
	_, _ = span.Write([]byte("Serving app\n"))
	span.End()
}

func TestOTelTracer_EmitPlanEvent(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tracer := telemetry.NewOTelTracer("test", nil, sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tracer.Shutdown(context.Background()) }()

	ctx, root := tracer.Start(context.Background(), "run")
	tracer.EmitPlan(ctx, []string{"html"}, nil, []string{"html"})
	root.End()

	ended := sr.Ended()
	require.Len(t, ended, 1)
	require.Len(t, ended[0].Events(), 1)
	assert.Equal(t, "plan_emitted", ended[0].Events()[0].Name)
}

func TestNoOpTracer(t *testing.T) {
	var tracer ports.Tracer = telemetry.NewNoOpTracer()
	ctx := context.Background()

	newCtx, span := tracer.Start(ctx, "html")
	assert.Equal(t, ctx, newCtx)
	tracer.EmitPlan(ctx, []string{"html"}, nil, nil)

	span.SetAttribute("k", "v")
	span.RecordError(errors.New("ignored"))
	n, err := span.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	span.End()
}
