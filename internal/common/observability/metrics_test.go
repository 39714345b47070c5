package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpan_RecordsErrors(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	o := &Observability{tracerProvider: tp, tracer: tp.Tracer("test")}

	_, span := o.StartSpan(context.Background(), "brevo.upsert_contact", attribute.String("crm", "brevo"))
	EndSpan(span, errors.New("Brevo API error: unauthorized"))

	_, second := o.StartSpan(context.Background(), "turnstile.verify")
	EndSpan(second, nil)

	ended := recorder.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "brevo.upsert_contact", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Contains(t, ended[0].Attributes(), attribute.String("crm", "brevo"))
	assert.Equal(t, codes.Unset, ended[1].Status().Code)
}

func TestNoopAndNilAreSafe(t *testing.T) {
	var nilObs *Observability
	ctx, span := nilObs.StartSpan(context.Background(), "x")
	EndSpan(span, nil)
	nilObs.RecordSubmission(ctx, "complete-lead", "success")
	nilObs.RecordSubmissionDuration(ctx, "complete-lead", time.Second, "success")
	nilObs.Shutdown()

	o := NewNoop()
	_, span = o.StartSpan(context.Background(), "y")
	EndSpan(span, errors.New("ignored"))
	o.RecordSubmission(context.Background(), "partial-lead", "error")
	o.Shutdown()
}

func TestNew(t *testing.T) {
	o := New("leadgate-test")
	defer o.Shutdown()

	assert.NotNil(t, o.tracer)
	o.RecordSubmission(context.Background(), "complete-lead", "success")
	o.RecordSubmissionDuration(context.Background(), "complete-lead", 120*time.Millisecond, "success")
}
