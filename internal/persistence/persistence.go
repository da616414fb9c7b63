// Package persistence documents the behavioral contract a pluggable
// persistence back-end must satisfy. No implementation lives here — spec
// §1 treats back-ends as out of scope, specified only through this
// interface.
package persistence

import (
	"context"
	"errors"

	"github.com/haasonsaas/agentrt/pkg/models"
)

// ErrNotFound is returned by Load when id does not exist.
var ErrNotFound = errors.New("persistence: session not found")

// Store is the persistence contract (spec §6). Delete on a missing id
// succeeds silently — callers must not treat it as an error.
type Store interface {
	Save(ctx context.Context, session models.Session) error
	Load(ctx context.Context, id string) (models.Session, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.Session, error)
}
