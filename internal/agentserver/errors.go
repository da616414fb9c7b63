package agentserver

import "errors"

// ErrBusy is returned by any busy-safe=false operation (spec §4.6 table)
// when an async turn is already in flight. It never mutates state.
var ErrBusy = errors.New("agentserver: agent is busy running an async turn")

// ErrNoPubSub is returned by send_message when no pub/sub bus is
// configured — the caller would otherwise wait forever for a broadcast
// that can never arrive.
var ErrNoPubSub = errors.New("agentserver: send_message requires a configured pub/sub bus")

// ErrNotStarted is returned by operations invoked before Start.
var ErrNotStarted = errors.New("agentserver: agent has not been started")
