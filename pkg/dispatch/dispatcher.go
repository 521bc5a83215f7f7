package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fraser/skycast/pkg/protocol"
	"github.com/fraser/skycast/pkg/tool"
	"github.com/rs/zerolog"
)

// errHandlerPanic marks a handler fault recovered at the dispatch boundary.
var errHandlerPanic = errors.New("handler panic")

// Dispatcher runs tool handlers under a time budget and converts every
// result, declared failure, timeout, or fault into a uniform Outcome.
type Dispatcher struct {
	budget    time.Duration
	maxResult int
	logger    zerolog.Logger
}

// New creates a dispatcher. budget bounds each handler invocation;
// maxResultBytes caps the encoded size of a success value (zero
// disables the cap).
func New(budget time.Duration, maxResultBytes int, logger zerolog.Logger) *Dispatcher {
	if budget <= 0 {
		budget = 30 * time.Second
	}
	return &Dispatcher{
		budget:    budget,
		maxResult: maxResultBytes,
		logger:    logger,
	}
}

// Budget returns the per-invocation time budget.
func (d *Dispatcher) Budget() time.Duration {
	return d.budget
}

// Dispatch invokes the tool's handler with validated arguments. It
// never panics and never blocks longer than the configured budget; a
// handler that overruns is abandoned with cancellation signalled
// through its context.
func (d *Dispatcher) Dispatch(ctx context.Context, t *tool.Tool, args tool.Args) protocol.Outcome {
	ctx, cancel := context.WithTimeout(ctx, d.budget)
	defer cancel()

	type handlerResult struct {
		value interface{}
		err   error
	}

	// Buffered so an abandoned handler can still deliver and exit.
	resultCh := make(chan handlerResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error().
					Str("tool", t.Name).
					Interface("panic", r).
					Msg("Tool handler panicked")
				resultCh <- handlerResult{err: errHandlerPanic}
			}
		}()

		value, err := t.Handler(ctx, args)
		resultCh <- handlerResult{value: value, err: err}
	}()

	start := time.Now()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return d.failureOutcome(t.Name, res.err, time.Since(start))
		}

		d.logger.Debug().
			Str("tool", t.Name).
			Dur("duration", time.Since(start)).
			Msg("Tool dispatch completed")
		return protocol.Success(d.capResult(t.Name, res.value))

	case <-ctx.Done():
		d.logger.Error().
			Str("tool", t.Name).
			Dur("duration", time.Since(start)).
			Msg("Tool dispatch exceeded time budget")
		return protocol.Timeout(fmt.Sprintf("tool %s exceeded time budget of %v", t.Name, d.budget))
	}
}

func (d *Dispatcher) failureOutcome(toolName string, err error, duration time.Duration) protocol.Outcome {
	if errors.Is(err, errHandlerPanic) {
		// Never leak fault details to the caller.
		return protocol.ToolError("internal_error", "internal error in tool handler")
	}

	var failure *tool.Failure
	if errors.As(err, &failure) {
		d.logger.Warn().
			Str("tool", toolName).
			Str("code", failure.Code).
			Dur("duration", duration).
			Msg("Tool reported failure")
		return protocol.ToolError(failure.Code, failure.Message)
	}

	d.logger.Error().
		Str("tool", toolName).
		Dur("duration", duration).
		Err(err).
		Msg("Tool dispatch failed")
	return protocol.ToolError("tool_failed", err.Error())
}

// capResult bounds the encoded size of a handler result, mirroring the
// decoder's cap on inbound messages.
func (d *Dispatcher) capResult(toolName string, value interface{}) interface{} {
	if d.maxResult <= 0 {
		return value
	}

	data, err := json.Marshal(value)
	if err != nil {
		// Unencodable values are handled by the encoder's fallback.
		return value
	}
	if len(data) <= d.maxResult {
		return value
	}

	d.logger.Warn().
		Str("tool", toolName).
		Int("size", len(data)).
		Int("limit", d.maxResult).
		Msg("Tool result truncated")
	return string(data[:d.maxResult]) + "\n... [output truncated]"
}
