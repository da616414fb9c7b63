// Package middleware implements the fold-with-short-circuit pipeline over
// an ordered list of hooks that fire at named phases of a turn.
package middleware

import "fmt"

// Hook names the phases a middleware can observe, in firing order within
// one turn.
type Hook string

const (
	HookSessionStart       Hook = "session_start"
	HookBeforeCompletion   Hook = "before_completion"
	HookAfterCompletion    Hook = "after_completion"
	HookBeforeToolCall     Hook = "before_tool_call"
	HookAfterToolExecution Hook = "after_tool_execution"
	HookOnError            Hook = "on_error"
	HookSessionEnd         Hook = "session_end"
)

// outcomeKind discriminates the three Outcome shapes. Using an explicit
// enum instead of a sum-type callable return, per Design Notes §9.
type outcomeKind int

const (
	kindContinue outcomeKind = iota
	kindHalt
	kindBlock
)

// Outcome is a middleware's return value: exactly one of Continue(state),
// Halt(reason), or Block(reason).
type Outcome struct {
	kind   outcomeKind
	state  any
	reason string
}

// Continue carries the (possibly updated) state forward to the next
// middleware in the fold.
func Continue(state any) Outcome { return Outcome{kind: kindContinue, state: state} }

// Halt stops the fold entirely; the pipeline result is {halted, reason}.
func Halt(reason string) Outcome { return Outcome{kind: kindHalt, reason: reason} }

// Block is only meaningful at HookBeforeToolCall: the specific tool call is
// skipped and replaced with an error result block. At any other hook it is
// a programming error, surfaced rather than silently coerced.
func Block(reason string) Outcome { return Outcome{kind: kindBlock, reason: reason} }

// IsHalt reports whether o is a Halt outcome.
func (o Outcome) IsHalt() bool { return o.kind == kindHalt }

// IsBlock reports whether o is a Block outcome.
func (o Outcome) IsBlock() bool { return o.kind == kindBlock }

// Reason returns the halt/block reason string; empty for Continue.
func (o Outcome) Reason() string { return o.reason }

// State returns the carried state; valid only for Continue outcomes.
func (o Outcome) State() any { return o.state }

// Middleware is one participant in the pipeline: given the hook that fired
// and the current state, it returns an Outcome.
type Middleware interface {
	Name() string
	Run(hook Hook, state any) Outcome
}

// Func adapts a plain function to the Middleware interface.
type Func struct {
	FuncName string
	Fn       func(hook Hook, state any) Outcome
}

func (f Func) Name() string                        { return f.FuncName }
func (f Func) Run(hook Hook, state any) Outcome     { return f.Fn(hook, state) }

// Result is the outcome of running one hook across the full pipeline.
type Result struct {
	State   any
	Halted  bool
	Reason  string
	Blocked bool // only ever true when hook == HookBeforeToolCall
}

// ProgrammingError is raised when a middleware returns Block at a hook
// other than HookBeforeToolCall — not a runtime condition, a construction
// mistake that must surface rather than be silently miscoerced.
type ProgrammingError struct {
	Middleware string
	Hook       Hook
}

func (e *ProgrammingError) Error() string {
	return fmt.Sprintf("middleware %q returned Block at hook %q: Block is only valid at before_tool_call", e.Middleware, e.Hook)
}

// Pipeline is the ordered list of middleware run as a left fold for each
// hook. It is sequential and synchronous with respect to the caller.
type Pipeline struct {
	chain []Middleware
}

// New builds a Pipeline from an ordered middleware list.
func New(chain ...Middleware) *Pipeline {
	return &Pipeline{chain: chain}
}

// Run folds every middleware in order over state for the given hook. It
// panics with *ProgrammingError if a non-before_tool_call hook returns
// Block — callers should recover at the Turn-engine boundary and convert
// that panic into a loud, non-silent failure rather than catching it to
// mean something else.
func (p *Pipeline) Run(hook Hook, state any) Result {
	for _, m := range p.chain {
		outcome := m.Run(hook, state)
		switch {
		case outcome.IsHalt():
			return Result{State: state, Halted: true, Reason: outcome.Reason()}
		case outcome.IsBlock():
			if hook != HookBeforeToolCall {
				panic(&ProgrammingError{Middleware: m.Name(), Hook: hook})
			}
			return Result{State: state, Blocked: true, Reason: outcome.Reason()}
		default:
			state = outcome.State()
		}
	}
	return Result{State: state}
}
