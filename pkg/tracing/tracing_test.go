package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledTracerIsNoop(t *testing.T) {
	tr, closer, err := InitTracer(Config{Enabled: false})
	require.NoError(t, err)
	assert.IsType(t, opentracing.NoopTracer{}, tr)
	closer()
}

func TestSpansNestAndTagErrors(t *testing.T) {
	mt := mocktracer.New()
	prev := opentracing.GlobalTracer()
	opentracing.SetGlobalTracer(mt)
	t.Cleanup(func() { opentracing.SetGlobalTracer(prev) })

	parent, ctx := StartSpan(context.Background(), "cycle")
	child, _ := StartSpan(ctx, "exits")
	Finish(child, errors.New("no price"))
	Finish(parent, nil)

	spans := mt.FinishedSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "exits", spans[0].OperationName)
	assert.Equal(t, true, spans[0].Tag("error"))
	assert.Equal(t, spans[1].SpanContext.SpanID, spans[0].ParentID)
	assert.Nil(t, spans[1].Tag("error"))
}
