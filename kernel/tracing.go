package kernel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tailored-agentic-units/shellpilot/directive"
	"github.com/tailored-agentic-units/shellpilot/remote"
)

// startRunSpan starts the span covering one run.
func (k *Kernel) startRunSpan(ctx context.Context, runID string, target remote.Target) (context.Context, trace.Span) {
	ctx, span := k.tracer.Start(ctx, "kernel.run")
	span.SetAttributes(
		attribute.String("run.id", runID),
		attribute.String("remote.host", target.Host),
		attribute.String("remote.user", target.Username),
		attribute.Int("run.max_iterations", k.maxIterations),
	)
	return ctx, span
}

// endRunSpan ends the run span with the outcome.
func (k *Kernel) endRunSpan(span trace.Span, outcome *Outcome, err error) {
	if outcome != nil {
		span.SetAttributes(
			attribute.String("run.status", string(outcome.Status)),
			attribute.Int("run.iterations", outcome.Iterations),
			attribute.Int("run.commands", outcome.Commands),
		)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// startCommandSpan starts a span for one remote command.
func (k *Kernel) startCommandSpan(ctx context.Context, tag directive.Tag, command string) (context.Context, trace.Span) {
	ctx, span := k.tracer.Start(ctx, "kernel.command")
	span.SetAttributes(
		attribute.String("command.tag", string(tag)),
		attribute.String("command.text", command),
	)
	return ctx, span
}

// endCommandSpan ends a command span. exitStatus is -1 when unknown.
func (k *Kernel) endCommandSpan(span trace.Span, exitStatus int, err error) {
	if exitStatus >= 0 {
		span.SetAttributes(attribute.Int("command.exit_status", exitStatus))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
