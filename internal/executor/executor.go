// Package executor runs a batch of tool_use calls from one assistant
// message in parallel (C4), honoring per-tool timeouts and the
// before_tool_call middleware hook, and preserving input order in the
// result regardless of completion order.
//
// Grounded on the teacher's internal/agent/executor.go (the
// sem-channel-bounded, WaitGroup-joined, indexed-result-slice shape of
// ExecuteAll/Execute/executeWithTimeout) and internal/agent/tool_registry.go
// (emitToolEvent / event sequencing), adapted to the spec's exact
// tool_start/tool_end event shape and its before_tool_call
// halt-before-dispatch / block-one-call semantics.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/haasonsaas/agentrt/internal/middleware"
	"github.com/haasonsaas/agentrt/internal/telemetry"
	"github.com/haasonsaas/agentrt/internal/tool"
	"github.com/haasonsaas/agentrt/pkg/models"
)

// EventSeq is a process-wide (per Executor instance, per spec "shared for
// an entire run") monotonically increasing counter used to order
// tool_start/tool_end events globally.
type EventSeq struct {
	counter int64
}

// Next allocates the next sequence number.
func (s *EventSeq) Next() int64 {
	return atomic.AddInt64(&s.counter, 1)
}

// Event is a tool_start or tool_end observation.
type Event struct {
	Kind          string // "tool_start" | "tool_end"
	ID            string
	Name          string
	Input         json.RawMessage
	EventSeq      int64
	StartEventSeq int64 // tool_end only
	CorrelationID string
	DurationMS    int64  // tool_end only
	Error         string // tool_end only, empty if no error
}

// Observer receives tool_start/tool_end events as they're emitted. nil is
// a valid Observer (no-op).
type Observer func(Event)

// Executor runs tool batches against a tool.Registry.
type Executor struct {
	Registry       *tool.Registry
	Pipeline       *middleware.Pipeline
	DefaultTimeout time.Duration
	Seq            *EventSeq
	// ToolContext is the base context map passed to every tool's Execute
	// call (working_directory, config, scratchpad, caller-supplied keys).
	ToolContext tool.Context
}

// New builds an Executor. pipeline may be nil (no middleware configured).
func New(registry *tool.Registry, pipeline *middleware.Pipeline, defaultTimeout time.Duration) *Executor {
	return &Executor{Registry: registry, Pipeline: pipeline, DefaultTimeout: defaultTimeout, Seq: &EventSeq{}, ToolContext: tool.Context{}}
}

// HaltedError is returned when a before_tool_call middleware halts the
// whole batch before any tool executes.
type HaltedError struct{ Reason string }

func (e *HaltedError) Error() string { return "halted by middleware: " + e.Reason }

type taggedCall struct {
	call    models.ToolUseBlock
	blocked bool
	reason  string
}

// Run executes calls in order, dispatches them in parallel, and returns a
// single synthetic user message whose content is tool_result blocks in the
// same order as calls. correlationID identifies this batch for event
// emission.
func (ex *Executor) Run(ctx context.Context, calls []models.ToolUseBlock, state any, correlationID string, observe Observer) (models.Message, error) {
	tagged := make([]taggedCall, len(calls))
	for i, c := range calls {
		outcome := ex.runBeforeToolCall(c, state)
		if outcome.Halted {
			return models.Message{}, &HaltedError{Reason: outcome.Reason}
		}
		if outcome.Blocked {
			tagged[i] = taggedCall{call: c, blocked: true, reason: outcome.Reason}
		} else {
			tagged[i] = taggedCall{call: c}
		}
	}

	results := make([]models.ToolResultBlock, len(tagged))
	var mu sync.Mutex // guards nothing shared besides observe calls; results writes are index-disjoint
	g, gctx := errgroup.WithContext(ctx)
	for i, tc := range tagged {
		i, tc := i, tc
		g.Go(func() error {
			results[i] = ex.runOne(gctx, tc, correlationID, observe, &mu)
			return nil
		})
	}
	// errgroup's error is always nil here: runOne never returns an error,
	// it converts every fault into an error result block (spec §4.3).
	_ = g.Wait()

	blocks := make([]models.ContentBlock, len(results))
	for i, r := range results {
		blocks[i] = r
	}
	return models.NewBlockMessage(models.RoleUser, blocks...), nil
}

func (ex *Executor) runBeforeToolCall(call models.ToolUseBlock, state any) middleware.Result {
	if ex.Pipeline == nil {
		return middleware.Result{State: state}
	}
	return ex.Pipeline.Run(middleware.HookBeforeToolCall, state)
}

func (ex *Executor) runOne(ctx context.Context, tc taggedCall, correlationID string, observe Observer, mu *sync.Mutex) models.ToolResultBlock {
	startSeq := ex.Seq.Next()
	emit := func(e Event) {
		if observe == nil {
			return
		}
		mu.Lock()
		observe(e)
		mu.Unlock()
	}
	emit(Event{Kind: "tool_start", ID: tc.call.ID, Name: tc.call.Name, Input: tc.call.Input, EventSeq: startSeq, CorrelationID: correlationID})

	ctx, span := telemetry.Tracer.Start(ctx, "agentrt.tool")
	span.SetAttributes(attribute.String("tool.name", tc.call.Name), attribute.String("tool.id", tc.call.ID))
	defer span.End()

	start := time.Now()
	var result models.ToolResultBlock
	var errMsg string
	outcome := "ok"

	if tc.blocked {
		result = models.ToolResultBlock{ToolUseID: tc.call.ID, Content: "blocked by middleware: " + tc.reason, IsError: true}
		errMsg = result.Content
		outcome = "blocked"
	} else {
		result = ex.execute(ctx, tc.call)
		if result.IsError {
			errMsg = result.Content
			outcome = "error"
			if result.Content == "tool execution timed out" {
				outcome = "timeout"
			}
		}
	}

	dur := time.Since(start)
	if errMsg != "" {
		span.SetStatus(codes.Error, errMsg)
	}
	telemetry.ToolCalls.WithLabelValues(tc.call.Name, outcome).Inc()
	telemetry.ToolDuration.WithLabelValues(tc.call.Name).Observe(dur.Seconds())

	endSeq := ex.Seq.Next()
	emit(Event{
		Kind: "tool_end", ID: tc.call.ID, Name: tc.call.Name,
		EventSeq: endSeq, StartEventSeq: startSeq, CorrelationID: correlationID,
		DurationMS: dur.Milliseconds(), Error: errMsg,
	})
	return result
}

func (ex *Executor) execute(ctx context.Context, call models.ToolUseBlock) models.ToolResultBlock {
	t, ok := ex.Registry.Get(call.Name)
	if !ok {
		return models.ToolResultBlock{ToolUseID: call.ID, Content: "unknown tool: " + call.Name, IsError: true}
	}
	if err := ex.Registry.ValidateInput(call.Name, call.Input); err != nil {
		return models.ToolResultBlock{ToolUseID: call.ID, Content: err.Error(), IsError: true}
	}

	timeout := ex.DefaultTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		content string
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("Tool crashed: %v", r)}
			}
		}()
		content, err := t.Execute(timeoutCtx, call.Input, ex.ToolContext)
		done <- outcome{content: content, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return models.ToolResultBlock{ToolUseID: call.ID, Content: o.err.Error(), IsError: true}
		}
		return models.ToolResultBlock{ToolUseID: call.ID, Content: o.content}
	case <-timeoutCtx.Done():
		return models.ToolResultBlock{ToolUseID: call.ID, Content: "tool execution timed out", IsError: true}
	}
}
