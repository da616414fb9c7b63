// Package turn implements the Turn engine (C6): the stateless agent loop —
// one provider call, parse response, dispatch any tool calls in parallel,
// fold results back, repeat to termination.
//
// Grounded on the teacher's internal/agent/loop.go (AgenticLoop/LoopState
// phase structure: Init -> Stream -> ExecuteTools -> Continue -> Complete)
// and internal/agent/errors.go (LoopPhase enum), restructured from its
// channel-driven goroutine state machine into a single synchronous
// function per spec.md's "stateless loop" framing — the source's
// channel-streaming plumbing is a concurrency-control device for a
// different host runtime, not semantics this spec calls for.
package turn

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/haasonsaas/agentrt/internal/backoff"
	"github.com/haasonsaas/agentrt/internal/compaction"
	"github.com/haasonsaas/agentrt/internal/executor"
	"github.com/haasonsaas/agentrt/internal/middleware"
	"github.com/haasonsaas/agentrt/internal/provider"
	"github.com/haasonsaas/agentrt/internal/telemetry"
	"github.com/haasonsaas/agentrt/internal/tool"
	"github.com/haasonsaas/agentrt/pkg/models"
)

// Config is the immutable-for-the-run configuration the Turn engine
// consumes. It is a projection of spec.md §3's Config onto what the
// stateless loop itself needs: the pub/sub handle, subscribe topics, and
// on_shutdown callback are Agent-server (C7) concerns the Turn engine never
// touches, so they live on agentserver.Options instead — see DESIGN.md.
type Config struct {
	Provider         provider.Provider
	ProviderConfig   map[string]any
	Registry         *tool.Registry
	SystemPrompt     string
	MaxTurns         int
	MaxTokens        int
	MaxRetries       int
	RetryBackoffMS   int64
	TimeoutMS        int64
	ToolTimeoutMS    int64
	Middleware       *middleware.Pipeline
	WorkingDirectory string
	Context          map[string]any
}

// DefaultConfig returns the spec-mandated defaults (§3).
func DefaultConfig() Config {
	return Config{
		MaxTurns:       25,
		MaxTokens:      200000,
		MaxRetries:     3,
		RetryBackoffMS: 1000,
		TimeoutMS:      120000,
		ToolTimeoutMS:  120000,
	}
}

// State is the mutable run state owned by one Agent server (C7) across the
// lifetime of a run. The Turn engine treats it as an in/out value: RunLoop
// mutates it in place and also returns it for convenience.
type State struct {
	Config    Config
	Messages  []models.Message
	TurnCount int
	Usage     models.Usage
	Status    models.Status
	LastError string
	AgentID   string
	StartedAt time.Time
}

// NewState builds a fresh running State for one invocation.
func NewState(cfg Config, agentID string, messages []models.Message) *State {
	return &State{
		Config:    cfg,
		Messages:  append([]models.Message(nil), messages...),
		Status:    models.StatusRunning,
		AgentID:   agentID,
		StartedAt: time.Now(),
	}
}

// Options configures one RunLoop invocation: streaming mode and the chunk
// callback, plus the tool-event observer and correlation id threaded
// through to the executor.
type Options struct {
	Streaming     bool
	OnChunk       func(provider.Chunk)
	Observe       executor.Observer
	CorrelationID string
}

// deadline is now + timeout_ms - 5000ms headroom (spec §4.5 step 5, §5).
func deadline(start time.Time, timeoutMS int64) time.Time {
	d := time.Duration(timeoutMS)*time.Millisecond - 5*time.Second
	if d < 0 {
		d = 0
	}
	return start.Add(d)
}

// receiveTimeout is max(deadline - now, 5000ms) (spec §4.5 step 4).
func receiveTimeout(now, dl time.Time) time.Duration {
	remaining := dl.Sub(now)
	if remaining < 5*time.Second {
		return 5 * time.Second
	}
	return remaining
}

// RunLoop drives state through the per-turn state machine until it reaches
// a terminal status, then returns it.
func RunLoop(ctx context.Context, state *State, opts Options) *State {
	dl := deadline(time.Now(), state.Config.TimeoutMS)
	ex := &executor.Executor{
		Registry:       state.Config.Registry,
		Pipeline:       state.Config.Middleware,
		DefaultTimeout: time.Duration(state.Config.ToolTimeoutMS) * time.Millisecond,
		Seq:            &executor.EventSeq{},
		ToolContext:    buildToolContext(state.Config),
	}

	for {
		if state.TurnCount >= state.Config.MaxTurns {
			state.Status = models.StatusMaxTurns
			return state
		}

		if compaction.ShouldCompact(state.Messages, state.Config.MaxTokens) {
			state.Messages = compaction.Compact(state.Messages)
		}

		if res := runHook(state.Config.Middleware, middleware.HookBeforeCompletion, state); res.Halted {
			return haltState(state, res.Reason)
		}

		result, err := callProviderWithRetry(ctx, state, dl, opts)
		if err != nil {
			state.Status = models.StatusError
			state.LastError = err.Error()
			if res := runHook(state.Config.Middleware, middleware.HookOnError, state); res.Halted {
				return haltState(state, res.Reason)
			}
			return state
		}

		state.Messages = append(state.Messages, result.Messages...)
		state.TurnCount++
		state.Usage = state.Usage.Merge(result.Usage)

		if res := runHook(state.Config.Middleware, middleware.HookAfterCompletion, state); res.Halted {
			return haltState(state, res.Reason)
		}

		if result.StopReason.IsTerminalText() {
			state.Status = models.StatusCompleted
			return state
		}

		// tool_use: dispatch the calls from the messages just appended.
		calls := extractToolCalls(result.Messages)
		toolMsg, runErr := ex.Run(ctx, calls, state, opts.CorrelationID, opts.Observe)
		if runErr != nil {
			if _, ok := runErr.(*executor.HaltedError); ok {
				return haltState(state, runErr.Error())
			}
			state.Status = models.StatusError
			state.LastError = runErr.Error()
			return state
		}
		state.Messages = append(state.Messages, toolMsg)

		if res := runHook(state.Config.Middleware, middleware.HookAfterToolExecution, state); res.Halted {
			return haltState(state, res.Reason)
		}
		// loop: back to top, turn_count already incremented.
	}
}

func haltState(state *State, reason string) *State {
	state.Status = models.StatusHalted
	state.LastError = "Halted by middleware: " + reason
	return state
}

func runHook(p *middleware.Pipeline, hook middleware.Hook, state *State) middleware.Result {
	if p == nil {
		return middleware.Result{State: state}
	}
	return p.Run(hook, state)
}

func buildToolContext(cfg Config) tool.Context {
	tc := tool.Context{"working_directory": cfg.WorkingDirectory, "config": cfg}
	if tc["working_directory"] == "" {
		tc["working_directory"] = "."
	}
	for k, v := range cfg.Context {
		tc[k] = v
	}
	return tc
}

func extractToolCalls(messages []models.Message) []models.ToolUseBlock {
	var calls []models.ToolUseBlock
	for _, m := range messages {
		calls = append(calls, m.ToolUseBlocks()...)
	}
	return calls
}

// Text returns the final assistant text for a terminal state, concatenating
// any TextBlocks in the last assistant message (or its plain string
// content).
func Text(state *State) string {
	for i := len(state.Messages) - 1; i >= 0; i-- {
		m := state.Messages[i]
		if m.Role != models.RoleAssistant {
			continue
		}
		if !m.Content.IsBlocks() {
			return m.Content.Text()
		}
		out := ""
		for _, b := range m.Content.Blocks() {
			if tb, ok := b.(models.TextBlock); ok {
				out += tb.Text
			}
		}
		return out
	}
	return ""
}

// callProviderWithRetry implements spec §4.5 step 5: deadline-bounded
// retry with full-jitter exponential backoff, never retrying a streaming
// call once it has emitted a chunk.
func callProviderWithRetry(ctx context.Context, state *State, dl time.Time, opts Options) (provider.CompletionResult, error) {
	providerCfg := mergeProviderConfig(state.Config.ProviderConfig, state.Config.SystemPrompt)
	toolDefs := registryToolDefs(state.Config.Registry)

	var chunkEmitted atomicBool
	maxAttempts := state.Config.MaxRetries + 1

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		now := time.Now()
		rt := receiveTimeout(now, dl)
		callCfg := make(map[string]any, len(providerCfg)+1)
		for k, v := range providerCfg {
			callCfg[k] = v
		}
		callCfg["receive_timeout"] = rt
		callCtx, cancel := context.WithTimeout(ctx, rt)

		spanCtx, span := telemetry.Tracer.Start(callCtx, "agentrt.turn")
		span.SetAttributes(attribute.String("provider.name", state.Config.Provider.Name), attribute.Int("attempt", attempt))

		var result provider.CompletionResult
		var err error
		if opts.Streaming && state.Config.Provider.SupportsStreaming() {
			result, err = state.Config.Provider.Stream(spanCtx, state.Messages, toolDefs, callCfg, func(c provider.Chunk) {
				chunkEmitted.Set(true)
				if opts.OnChunk != nil {
					opts.OnChunk(c)
				}
			})
		} else {
			result, err = state.Config.Provider.Complete(spanCtx, state.Messages, toolDefs, callCfg)
		}
		cancel()

		if err == nil {
			span.End()
			telemetry.ProviderCalls.WithLabelValues("ok").Inc()
			return result, nil
		}

		retryable := provider.IsRetryable(err)
		streamedAlready := chunkEmitted.Get()
		span.SetStatus(codes.Error, err.Error())
		span.End()
		if attempt >= maxAttempts || !retryable || streamedAlready {
			telemetry.ProviderCalls.WithLabelValues("error").Inc()
			return provider.CompletionResult{}, err
		}
		telemetry.ProviderCalls.WithLabelValues("retry").Inc()

		delay := backoff.Compute(state.Config.RetryBackoffMS, attempt, rand.Float64())
		if time.Now().Add(delay).After(dl) {
			return provider.CompletionResult{}, err
		}
		select {
		case <-ctx.Done():
			return provider.CompletionResult{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	return provider.CompletionResult{}, fmt.Errorf("unreachable: retry loop exhausted without returning")
}

// atomicBool is the compare-and-swap-style flag the Design Notes require
// for the streaming chunk-emission signal: it must be set before the
// caller's on_chunk runs, so a concurrent retry decision reads a truthful
// value.
type atomicBool struct{ v int32 }

func (b *atomicBool) Set(val bool) {
	if val {
		atomic.StoreInt32(&b.v, 1)
	} else {
		atomic.StoreInt32(&b.v, 0)
	}
}

func (b *atomicBool) Get() bool { return atomic.LoadInt32(&b.v) == 1 }

func mergeProviderConfig(base map[string]any, systemPrompt string) map[string]any {
	out := make(map[string]any, len(base)+1)
	for k, v := range base {
		out[k] = v
	}
	if systemPrompt != "" {
		out["system_prompt"] = systemPrompt
	}
	return out
}

func registryToolDefs(r *tool.Registry) []provider.ToolDef {
	if r == nil {
		return nil
	}
	descs := r.Descriptors()
	defs := make([]provider.ToolDef, len(descs))
	for i, d := range descs {
		defs[i] = provider.ToolDef{Name: d.Name, Description: d.Description, InputSchema: d.InputSchema}
	}
	return defs
}

