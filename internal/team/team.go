// Package team implements the "Team" facade spec §1 describes as
// mechanically trivial once the Agent server exists: a thin name->agent
// map with broadcast/handoff helpers, not a deep multiagent orchestration
// layer.
package team

import (
	"context"
	"fmt"

	"github.com/haasonsaas/agentrt/internal/agentserver"
	"github.com/haasonsaas/agentrt/pkg/models"
)

// Team is a name-keyed collection of already-started agent servers.
type Team struct {
	agents map[string]*agentserver.Server
}

// New builds a Team from a name->agent map.
func New(agents map[string]*agentserver.Server) *Team {
	cp := make(map[string]*agentserver.Server, len(agents))
	for k, v := range agents {
		cp[k] = v
	}
	return &Team{agents: cp}
}

// Get returns the named agent.
func (t *Team) Get(name string) (*agentserver.Server, bool) {
	a, ok := t.agents[name]
	return a, ok
}

// Names returns the team's member names.
func (t *Team) Names() []string {
	out := make([]string, 0, len(t.agents))
	for name := range t.agents {
		out = append(out, name)
	}
	return out
}

// Broadcast sends msg as a synchronous Chat to every member and collects
// the results keyed by member name. A member's error is recorded in its
// own Result (status=error) rather than aborting the others.
func (t *Team) Broadcast(ctx context.Context, msg string) map[string]models.Result {
	out := make(map[string]models.Result, len(t.agents))
	for name, agent := range t.agents {
		res, err := agent.Chat(ctx, msg)
		if err != nil {
			res = models.Result{Status: models.StatusError, Error: err.Error()}
		}
		out[name] = res
	}
	return out
}

// Handoff sends msg to the named recipient agent; it is a thin wrapper
// that exists so callers don't reach into the team map directly.
func (t *Team) Handoff(ctx context.Context, to, msg string) (models.Result, error) {
	agent, ok := t.agents[to]
	if !ok {
		return models.Result{}, fmt.Errorf("team: no such agent %q", to)
	}
	return agent.Chat(ctx, msg)
}
