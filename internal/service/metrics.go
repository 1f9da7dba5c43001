package service

import (
	"context"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/KavyaGunapati/TypeFromProject/pkg/tracing"
)

// Session operation names used as metric labels and span names.
const (
	OpSignUp  = "signup"
	OpLogin   = "login"
	OpRefresh = "refresh"
	OpLogout  = "logout"
)

var authOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_operations_total",
		Help: "Total number of session operations by outcome",
	},
	[]string{"operation", "outcome"},
)

const tracerName = "github.com/KavyaGunapati/TypeFromProject/internal/service"

// outcome is "success" or the lower-cased failure code.
func outcome[T any](r Result[T]) string {
	if r.Success {
		return "success"
	}
	return strings.ToLower(r.Code)
}

func startOperation(ctx context.Context, op string) (context.Context, trace.Span) {
	return tracing.Tracer(tracerName).Start(ctx, "session."+op,
		trace.WithAttributes(attribute.String("auth.operation", op)),
	)
}

// recordOperation counts the result and ends the operation span. Only
// failures the caller cannot fix mark the span as an error.
func recordOperation[T any](span trace.Span, op string, r Result[T]) Result[T] {
	out := outcome(r)
	authOperationsTotal.WithLabelValues(op, out).Inc()

	span.SetAttributes(
		attribute.String("auth.outcome", out),
		attribute.Bool("auth.retryable", r.Retryable),
	)
	if r.Code == CodeInternalError || r.Code == CodeTokenExchangeFailed {
		span.SetStatus(codes.Error, r.Code)
	}
	span.End()
	return r
}
