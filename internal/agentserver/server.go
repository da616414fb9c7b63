// Package agentserver implements the Agent server (C7): a long-lived
// per-agent actor owning exactly one turn.State, serializing synchronous
// calls, supervising asynchronous turns, and broadcasting results over a
// pub/sub bus.
//
// Concurrency discipline is enforced structurally: every operation that
// reads or writes server state — including installing the result of an
// async turn — runs as a task on a CommandQueue (internal/agentserver/
// queue.go), so only one goroutine ever touches state at a time. This is
// the systems-language mapping the Design Notes call for: "one task per
// agent plus a request channel", with reject-on-busy as a plain state
// check inside the handler rather than an atomic primitive.
package agentserver

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/agentrt/internal/middleware"
	"github.com/haasonsaas/agentrt/internal/observability"
	"github.com/haasonsaas/agentrt/internal/provider"
	"github.com/haasonsaas/agentrt/internal/pubsub"
	"github.com/haasonsaas/agentrt/internal/telemetry"
	"github.com/haasonsaas/agentrt/internal/turn"
	"github.com/haasonsaas/agentrt/pkg/models"
)

// Options configures a Server. Turn carries the stateless-loop config
// (provider, tools, retries, ...); the remaining fields are the Agent
// server's own concerns — the pub/sub handle, subscribe topics, and
// shutdown callback spec.md §3 lists alongside Config, but which the Turn
// engine itself never observes (see turn.Config's doc comment).
type Options struct {
	Name            string
	Turn            turn.Config
	PubSub          pubsub.Bus
	SubscribeTopics []string
	OnShutdown      func(models.Session)
	Logger          *observability.Logger
	// SessionIDHint, if non-empty, seeds agent_id and effective_session_id
	// instead of a random identifier (spec §3: "agent_id is fixed at init
	// from context.session_id or a ... random identifier").
	SessionIDHint string
}

// currentTask mirrors spec §3's State.current_task: present iff an async
// turn is running.
type currentTask struct {
	cancel        context.CancelFunc
	correlationID string
}

// Server is the per-agent actor.
type Server struct {
	name    string
	opts    Options
	logger  *observability.Logger
	queue   *CommandQueue
	agentID string
	effSID  string

	state       *turn.State
	scratchpad  map[string]string
	current     *currentTask
	subscribeCh []<-chan any
	createdAt   time.Time
}

// New constructs a Server. It does not run session_start or subscribe to
// anything — call Start for that.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = observability.Default()
	}
	agentID := opts.SessionIDHint
	if agentID == "" {
		agentID = uuid.NewString()
	}
	name := opts.Name
	if name == "" {
		name = agentID
	}
	return &Server{
		name:       name,
		opts:       opts,
		logger:     logger,
		queue:      NewCommandQueue(),
		agentID:    agentID,
		effSID:     agentID,
		scratchpad: make(map[string]string),
		createdAt:  time.Now(),
	}
}

// EffectiveSessionID is Options.SessionIDHint if supplied at construction,
// else the random agent_id — computed once and never changed over the
// server's lifetime; Turn.Context is not consulted. Always go through this helper
// (Design Notes §9) rather than re-deriving it ad hoc, to avoid the
// broadcast-topic/exported-id divergence the source warns about.
func (s *Server) EffectiveSessionID() string { return s.effSID }

func (s *Server) responsesTopic() string {
	return fmt.Sprintf("agent:%s:responses", s.effSID)
}

// Start builds config/state, runs session_start middleware (a halt there
// refuses to start), and subscribes to configured pubsub topics.
func (s *Server) Start(ctx context.Context) error {
	_, err := s.queue.Enqueue(ctx, func(ctx context.Context) (any, error) {
		s.state = turn.NewState(s.opts.Turn, s.agentID, nil)
		if res := runHook(s.opts.Turn.Middleware, middleware.HookSessionStart, s.state); res.Halted {
			s.state.Status = models.StatusHalted
			s.state.LastError = "Halted by middleware: " + res.Reason
			return nil, fmt.Errorf("start refused: halted by middleware: %s", res.Reason)
		}
		if s.opts.PubSub != nil {
			for _, topic := range s.opts.SubscribeTopics {
				ch := s.opts.PubSub.Subscribe(topic)
				s.subscribeCh = append(s.subscribeCh, ch)
				go s.consumeTopic(topic, ch)
			}
		}
		return nil, nil
	})
	return err
}

func runHook(p *middleware.Pipeline, hook middleware.Hook, state any) middleware.Result {
	if p == nil {
		return middleware.Result{State: state}
	}
	return p.Run(hook, state)
}

// busyLocked reports whether an async turn is in flight. Only ever called
// from within a queued task, so reading s.current here is race-free.
func (s *Server) busyLocked() bool { return s.current != nil }

// Chat appends msg, runs the Turn engine inline, and returns the result.
// Rejected with ErrBusy if an async turn is running.
func (s *Server) Chat(ctx context.Context, msg string) (models.Result, error) {
	return s.chatWithOptions(ctx, msg, turn.Options{})
}

// StreamChat is Chat with streaming chunks delivered to onChunk.
func (s *Server) StreamChat(ctx context.Context, msg string, onChunk func(text string)) (models.Result, error) {
	return s.chatWithOptions(ctx, msg, turn.Options{
		Streaming: true,
		OnChunk: func(c provider.Chunk) {
			if onChunk != nil {
				onChunk(c.Delta)
			}
		},
	})
}

func (s *Server) chatWithOptions(ctx context.Context, msg string, topts turn.Options) (models.Result, error) {
	v, err := s.queue.Enqueue(ctx, func(ctx context.Context) (any, error) {
		if s.busyLocked() {
			return nil, ErrBusy
		}
		s.state.Messages = append(s.state.Messages, models.NewTextMessage(models.RoleUser, msg))
		s.state.Status = models.StatusRunning
		correlationID := uuid.NewString()
		topts.CorrelationID = correlationID
		s.state = turn.RunLoop(ctx, s.state, topts)
		return stateToResult(s.state), nil
	})
	if err != nil {
		return models.Result{}, err
	}
	return v.(models.Result), nil
}

// SendMessage appends msg and spawns a supervised task running the Turn
// engine asynchronously; the result is broadcast rather than returned.
// Returns the request id immediately. Rejected with ErrBusy if an async
// turn is already running, or ErrNoPubSub if no bus is configured.
func (s *Server) SendMessage(ctx context.Context, msg string, requestID string) (string, error) {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	v, err := s.queue.Enqueue(ctx, func(ctx context.Context) (any, error) {
		if s.opts.PubSub == nil {
			return nil, ErrNoPubSub
		}
		if s.busyLocked() {
			return nil, ErrBusy
		}
		s.state.Messages = append(s.state.Messages, models.NewTextMessage(models.RoleUser, msg))
		s.state.Status = models.StatusRunning

		runState := snapshotState(s.state)
		correlationID := uuid.NewString()
		taskCtx, cancel := context.WithCancel(context.Background())
		s.current = &currentTask{cancel: cancel, correlationID: correlationID}

		go s.runAsyncTurn(taskCtx, runState, correlationID, requestID)
		return requestID, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// runAsyncTurn executes the Turn engine off the queue's worker goroutine
// (so send_message returns immediately), then re-enters the queue to
// install the result — the only point at which the async path touches
// shared state.
func (s *Server) runAsyncTurn(ctx context.Context, runState *turn.State, correlationID, requestID string) {
	final, crashed := s.runSupervised(ctx, runState, correlationID)

	_, _ = s.queue.Enqueue(context.Background(), func(ctx context.Context) (any, error) {
		if s.current == nil || s.current.correlationID != correlationID {
			// Superseded/stopped already — discard, matching the
			// orphaned-task discard semantics the Scheduler also
			// implements for replaced jobs.
			return nil, nil
		}
		s.current = nil

		var result models.Result
		if crashed != nil {
			result = models.Result{Status: models.StatusError, Error: crashed.Error(), RequestID: requestID}
			// Leave state as the pre-turn snapshot (already installed),
			// with status=error — callers wanting to retry should reset
			// first to avoid two adjacent user messages.
			s.state.Status = models.StatusError
			s.state.LastError = crashed.Error()
		} else {
			result = stateToResult(final).WithRequestID(requestID)
			s.state = final
		}

		if s.opts.PubSub != nil {
			if err := s.opts.PubSub.Broadcast(context.Background(), s.responsesTopic(), map[string]any{
				"response": true,
				"result":   result,
			}); err != nil {
				s.logger.Warn("agentserver: broadcast failed", "error", err, "agent_id", s.agentID)
			}
		}
		return nil, nil
	})
}

// runSupervised runs the Turn engine and converts any panic into a crash
// error rather than letting it escape the goroutine.
func (s *Server) runSupervised(ctx context.Context, runState *turn.State, correlationID string) (final *turn.State, crashed error) {
	defer func() {
		if r := recover(); r != nil {
			crashed = fmt.Errorf("agent turn crashed: %v", r)
		}
	}()
	final = turn.RunLoop(ctx, runState, turn.Options{CorrelationID: correlationID})
	return final, nil
}

// consumeTopic implements the incoming-agent_event path (spec §4.6): if no
// async turn is in flight, run the Turn engine inline and broadcast the
// result; otherwise log-and-drop.
func (s *Server) consumeTopic(topic string, ch <-chan any) {
	for msg := range ch {
		_, _ = s.queue.Enqueue(context.Background(), func(ctx context.Context) (any, error) {
			if s.busyLocked() {
				s.logger.Info("agentserver: dropping agent_event, busy", "topic", topic)
				return nil, nil
			}
			text := fmt.Sprintf("%v", msg)
			s.state.Messages = append(s.state.Messages, models.NewTextMessage(models.RoleUser, text))
			s.state.Status = models.StatusRunning
			s.state = turn.RunLoop(ctx, s.state, turn.Options{CorrelationID: uuid.NewString()})
			if s.opts.PubSub != nil {
				_ = s.opts.PubSub.Broadcast(ctx, s.responsesTopic(), map[string]any{
					"response": true,
					"result":   stateToResult(s.state),
				})
			}
			return nil, nil
		})
	}
}

// Messages returns a snapshot of the conversation history.
func (s *Server) Messages(ctx context.Context) ([]models.Message, error) {
	v, err := s.queue.Enqueue(ctx, func(ctx context.Context) (any, error) {
		return append([]models.Message(nil), s.state.Messages...), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Message), nil
}

// Usage returns a snapshot of accumulated usage.
func (s *Server) Usage(ctx context.Context) (models.Usage, error) {
	v, err := s.queue.Enqueue(ctx, func(ctx context.Context) (any, error) {
		return s.state.Usage, nil
	})
	if err != nil {
		return models.Usage{}, err
	}
	return v.(models.Usage), nil
}

// Reset clears history, keeping config. Rejected with ErrBusy.
func (s *Server) Reset(ctx context.Context) error {
	_, err := s.queue.Enqueue(ctx, func(ctx context.Context) (any, error) {
		if s.busyLocked() {
			return nil, ErrBusy
		}
		s.state = turn.NewState(s.opts.Turn, s.agentID, nil)
		return nil, nil
	})
	return err
}

// SetModel replaces the provider (and its config) atomically. Rejected
// with ErrBusy.
func (s *Server) SetModel(ctx context.Context, p turn.Config) error {
	_, err := s.queue.Enqueue(ctx, func(ctx context.Context) (any, error) {
		if s.busyLocked() {
			return nil, ErrBusy
		}
		s.state.Config.Provider = p.Provider
		s.state.Config.ProviderConfig = p.ProviderConfig
		s.opts.Turn.Provider = p.Provider
		s.opts.Turn.ProviderConfig = p.ProviderConfig
		return nil, nil
	})
	return err
}

// ExportSession builds the Session export envelope using
// effective_session_id, guaranteeing consistency with the broadcast topic.
func (s *Server) ExportSession(ctx context.Context) (models.Session, error) {
	v, err := s.queue.Enqueue(ctx, func(ctx context.Context) (any, error) {
		return models.Session{
			ID:       s.effSID,
			Messages: append([]models.Message(nil), s.state.Messages...),
			Usage:    s.state.Usage,
			Metadata: models.SessionMetadata{
				Status:   s.state.Status,
				Turns:    s.state.TurnCount,
				Provider: s.opts.Turn.Provider.Name,
			},
			CreatedAt: s.createdAt,
			UpdatedAt: time.Now(),
		}, nil
	})
	if err != nil {
		return models.Session{}, err
	}
	return v.(models.Session), nil
}

// Health reports the operational snapshot spec §4.6 defines.
type Health struct {
	Status        models.Status
	Turns         int
	MessageCount  int
	Usage         models.Usage
	UptimeMS      int64
	Busy          bool
}

// Health returns the current health snapshot.
func (s *Server) Health(ctx context.Context) (Health, error) {
	v, err := s.queue.Enqueue(ctx, func(ctx context.Context) (any, error) {
		telemetry.AgentStatus.WithLabelValues(s.agentID).Set(telemetry.StatusValue(string(s.state.Status)))
		return Health{
			Status:       s.state.Status,
			Turns:        s.state.TurnCount,
			MessageCount: len(s.state.Messages),
			Usage:        s.state.Usage,
			UptimeMS:     time.Since(s.createdAt).Milliseconds(),
			Busy:         s.busyLocked(),
		}, nil
	})
	if err != nil {
		return Health{}, err
	}
	return v.(Health), nil
}

// Stop cancels any running async task, runs session_end middleware (a halt
// there is logged, not fatal), and invokes OnShutdown with the exported
// session, swallowing any fault from it.
func (s *Server) Stop(ctx context.Context) error {
	_, err := s.queue.Enqueue(ctx, func(ctx context.Context) (any, error) {
		if s.current != nil {
			s.current.cancel()
			s.current = nil
		}
		if res := runHook(s.opts.Turn.Middleware, middleware.HookSessionEnd, s.state); res.Halted {
			s.logger.Info("agentserver: session_end halted", "reason", res.Reason)
		}
		if s.opts.OnShutdown != nil {
			session := models.Session{
				ID:       s.effSID,
				Messages: append([]models.Message(nil), s.state.Messages...),
				Usage:    s.state.Usage,
				Metadata: models.SessionMetadata{Status: s.state.Status, Turns: s.state.TurnCount, Provider: s.opts.Turn.Provider.Name},
			}
			func() {
				defer func() {
					if r := recover(); r != nil {
						s.logger.Warn("agentserver: on_shutdown panicked", "panic", r)
					}
				}()
				s.opts.OnShutdown(session)
			}()
		}
		return nil, nil
	})
	s.queue.Close()
	return err
}

func snapshotState(st *turn.State) *turn.State {
	cp := *st
	cp.Messages = append([]models.Message(nil), st.Messages...)
	return &cp
}

func stateToResult(st *turn.State) models.Result {
	return models.Result{
		Text:     turn.Text(st),
		Messages: append([]models.Message(nil), st.Messages...),
		Usage:    st.Usage,
		Status:   st.Status,
		Turns:    st.TurnCount,
		Error:    st.LastError,
	}
}
