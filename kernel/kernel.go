// Package kernel implements the execution loop: a planner-driven cycle that
// asks a producer for one directive, runs it on a remote session, feeds the
// output back, and stops on a terminal directive or the iteration budget.
//
// The kernel initializes from configuration via New. Functional options
// replace any subsystem for tests.
//
//	k, err := kernel.New(&cfg)
//	outcome, err := k.Run(ctx, "free some disk space", target, history...)
package kernel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/tailored-agentic-units/shellpilot/agent"
	"github.com/tailored-agentic-units/shellpilot/core/protocol"
	"github.com/tailored-agentic-units/shellpilot/directive"
	"github.com/tailored-agentic-units/shellpilot/observability"
	"github.com/tailored-agentic-units/shellpilot/remote"
	"github.com/tailored-agentic-units/shellpilot/session"
)

const (
	outputPrefix = "CLI Output:\n"
	tracerName   = "github.com/tailored-agentic-units/shellpilot/kernel"
)

// Option configures a Kernel after config-driven initialization.
type Option func(*Kernel)

// WithProducer overrides the config-created producer.
func WithProducer(p agent.Producer) Option {
	return func(k *Kernel) { k.producer = p }
}

// WithConnector overrides the config-created SSH connector.
func WithConnector(c remote.Connector) Option {
	return func(k *Kernel) { k.connector = c }
}

// WithObserver overrides the default SlogObserver.
func WithObserver(o observability.Observer) Option {
	return func(k *Kernel) { k.observer = o }
}

// WithTracer overrides the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(k *Kernel) { k.tracer = t }
}

// Kernel runs the execution loop. A Kernel holds no per-run state and may
// serve concurrent runs.
type Kernel struct {
	producer  agent.Producer
	connector remote.Connector
	observer  observability.Observer
	tracer    trace.Tracer

	maxIterations   int
	producerTimeout time.Duration
	commandTimeout  time.Duration
	idle            remote.IdleConfig
}

// New creates a Kernel from configuration merged over the defaults. The
// producer and connector are built from configuration only when no option
// supplies them.
func New(cfg *Config, opts ...Option) (*Kernel, error) {
	merged := DefaultConfig()
	merged.Merge(cfg)

	k := &Kernel{
		observer:        observability.NewSlogObserver(slog.Default()),
		tracer:          otel.Tracer(tracerName),
		maxIterations:   merged.MaxIterations,
		producerTimeout: merged.ProducerTimeout.Std(),
		commandTimeout:  merged.CommandTimeout.Std(),
		idle:            merged.Idle,
	}

	for _, opt := range opts {
		opt(k)
	}

	if k.producer == nil {
		producer, err := agent.New(&merged.Agent)
		if err != nil {
			return nil, fmt.Errorf("failed to create producer: %w", err)
		}
		k.producer = producer
	}

	if k.connector == nil {
		connector, err := remote.NewSSHConnector(merged.Remote)
		if err != nil {
			return nil, fmt.Errorf("failed to create connector: %w", err)
		}
		k.connector = connector
	}

	return k, nil
}

// Run drives one invocation against target. The buffer is seeded with the
// protocol instructions, then history, then task as a user message.
//
// Protocol violations and an exhausted budget are outcomes, not errors.
// Connection, producer and transport failures are returned as errors; a
// connection failure also returns an Error outcome carrying the detail.
// The remote session is closed before Run returns on every path.
func (k *Kernel) Run(ctx context.Context, task string, target remote.Target, history ...protocol.Message) (outcome *Outcome, err error) {
	seed := make([]protocol.Message, 0, len(history)+2)
	seed = append(seed, protocol.NewMessage(protocol.RoleSystem, directive.Instructions()))
	seed = append(seed, history...)
	seed = append(seed, protocol.NewMessage(protocol.RoleUser, task))
	buf := session.NewBuffer(seed...)

	ctx, span := k.startRunSpan(ctx, buf.ID(), target)
	defer func() { k.endRunSpan(span, outcome, err) }()

	k.emit(ctx, EventRunStart, observability.LevelInfo, map[string]any{
		"run_id":         buf.ID(),
		"host":           target.Host,
		"task_length":    len(task),
		"history":        len(history),
		"max_iterations": k.maxIterations,
	})

	sess, err := k.connector.Connect(ctx, target)
	if err != nil {
		k.emit(ctx, EventError, observability.LevelError, map[string]any{
			"run_id": buf.ID(),
			"stage":  "connect",
			"error":  err.Error(),
		})
		return &Outcome{
			Status: StatusError,
			Detail: fmt.Sprintf("connection failed: %v", err),
		}, err
	}
	defer func() {
		closeErr := sess.Close()
		data := map[string]any{"run_id": buf.ID()}
		level := observability.LevelVerbose
		if closeErr != nil {
			data["error"] = closeErr.Error()
			level = observability.LevelWarning
		}
		k.emit(ctx, EventSessionClose, level, data)
	}()

	outcome = &Outcome{}
	var lastCommand, lastOutput string

	for iteration := 1; iteration <= k.maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return outcome, k.cancelled(ctx, buf.ID(), err)
		}

		outcome.Iterations = iteration
		k.emit(ctx, EventIterationStart, observability.LevelVerbose, map[string]any{
			"run_id":    buf.ID(),
			"iteration": iteration,
		})

		reply, err := k.complete(ctx, buf.Snapshot())
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return outcome, k.cancelled(ctx, buf.ID(), ctxErr)
			}
			k.emit(ctx, EventError, observability.LevelError, map[string]any{
				"run_id":    buf.ID(),
				"iteration": iteration,
				"stage":     "producer",
				"error":     err.Error(),
			})
			return outcome, &ProducerError{Iteration: iteration, Err: err}
		}
		buf.Append(protocol.NewMessage(protocol.RoleAssistant, reply))

		d, err := directive.Parse(reply)
		if err != nil {
			outcome.Status = StatusError
			outcome.Detail = fmt.Sprintf("%v\nreply: %s", err, reply)
			outcome.Cause = err
			k.emit(ctx, EventProtocolViolation, observability.LevelWarning, map[string]any{
				"run_id":    buf.ID(),
				"iteration": iteration,
				"error":     err.Error(),
			})
			k.finish(ctx, buf.ID(), outcome)
			return outcome, nil
		}

		k.emit(ctx, EventDirective, observability.LevelVerbose, map[string]any{
			"run_id":    buf.ID(),
			"iteration": iteration,
			"tag":       string(d.Tag()),
		})

		var output string
		switch d := d.(type) {
		case directive.Success:
			outcome.Status = StatusComplete
			outcome.Detail = d.Summary
			k.finish(ctx, buf.ID(), outcome)
			return outcome, nil

		case directive.Failure:
			failure := d
			outcome.Status = StatusError
			outcome.Detail = failureDetail(failure)
			outcome.Failure = &failure
			k.finish(ctx, buf.ID(), outcome)
			return outcome, nil

		case directive.Exec:
			lastCommand = d.Command
			output, err = k.exec(ctx, sess, buf.ID(), iteration, d.Command)

		case directive.InteractiveExec:
			lastCommand = d.Command
			output, err = k.interactive(ctx, sess, buf.ID(), iteration, d.Command)
		}

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return outcome, k.cancelled(ctx, buf.ID(), ctxErr)
			}
			k.emit(ctx, EventError, observability.LevelError, map[string]any{
				"run_id":    buf.ID(),
				"iteration": iteration,
				"stage":     "exec",
				"error":     err.Error(),
			})
			return outcome, err
		}

		outcome.Commands++
		lastOutput = output
		buf.Append(protocol.NewMessage(protocol.RoleUser, outputPrefix+output))
	}

	failure := directive.Failure{
		ExecutedCommand:  lastCommand,
		ObservedOutput:   lastOutput,
		ExpectedBehavior: fmt.Sprintf("a Complete or Error directive within %d iterations; the planner is likely cycling", k.maxIterations),
	}
	outcome.Status = StatusExceeded
	outcome.Detail = failureDetail(failure)
	outcome.Failure = &failure
	outcome.Cause = ErrMaxIterations

	k.emit(ctx, EventExceeded, observability.LevelWarning, map[string]any{
		"run_id":     buf.ID(),
		"iterations": k.maxIterations,
		"commands":   outcome.Commands,
	})
	k.finish(ctx, buf.ID(), outcome)
	return outcome, nil
}

func (k *Kernel) complete(ctx context.Context, messages []protocol.Message) (string, error) {
	if k.producerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.producerTimeout)
		defer cancel()
	}
	return k.producer.Complete(ctx, messages)
}

func (k *Kernel) exec(ctx context.Context, sess remote.Session, runID string, iteration int, command string) (string, error) {
	ctx, span := k.startCommandSpan(ctx, directive.TagExec, command)
	k.emit(ctx, EventCommandStart, observability.LevelInfo, map[string]any{
		"run_id":    runID,
		"iteration": iteration,
		"mode":      "exec",
		"command":   command,
	})

	start := time.Now()
	result, err := sess.Exec(ctx, command, k.commandTimeout)
	k.endCommandSpan(span, result.ExitStatus, err)
	if err != nil {
		return "", err
	}

	k.emit(ctx, EventCommandComplete, observability.LevelInfo, map[string]any{
		"run_id":      runID,
		"iteration":   iteration,
		"mode":        "exec",
		"exit_status": result.ExitStatus,
		"timed_out":   result.TimedOut,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	output := result.Combined()
	if result.TimedOut {
		output += fmt.Sprintf("\n(command timed out after %s)", k.commandTimeout)
	}
	return output, nil
}

func (k *Kernel) interactive(ctx context.Context, sess remote.Session, runID string, iteration int, command string) (string, error) {
	ctx, span := k.startCommandSpan(ctx, directive.TagInteractive, command)
	k.emit(ctx, EventCommandStart, observability.LevelInfo, map[string]any{
		"run_id":    runID,
		"iteration": iteration,
		"mode":      "interactive",
		"command":   command,
	})

	start := time.Now()
	output, err := sess.Interactive(ctx, command, k.idle)
	k.endCommandSpan(span, -1, err)
	if err != nil {
		return "", err
	}

	k.emit(ctx, EventCommandComplete, observability.LevelInfo, map[string]any{
		"run_id":        runID,
		"iteration":     iteration,
		"mode":          "interactive",
		"output_length": len(output),
		"duration_ms":   time.Since(start).Milliseconds(),
	})
	return output, nil
}

func (k *Kernel) finish(ctx context.Context, runID string, o *Outcome) {
	k.emit(ctx, EventRunComplete, observability.LevelInfo, map[string]any{
		"run_id":     runID,
		"status":     string(o.Status),
		"iterations": o.Iterations,
		"commands":   o.Commands,
	})
}

func (k *Kernel) cancelled(ctx context.Context, runID string, err error) error {
	k.emit(ctx, EventError, observability.LevelWarning, map[string]any{
		"run_id": runID,
		"stage":  "cancelled",
		"error":  err.Error(),
	})
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("run deadline exceeded: %w", err)
	}
	return fmt.Errorf("run cancelled: %w", err)
}

func (k *Kernel) emit(ctx context.Context, typ observability.EventType, level observability.Level, data map[string]any) {
	k.observer.OnEvent(ctx, observability.Event{
		Type:      typ,
		Level:     level,
		Timestamp: time.Now(),
		Source:    "kernel.Run",
		Data:      data,
	})
}
