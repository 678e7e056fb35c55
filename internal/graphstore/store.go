// Package graphstore persists and resolves the job, task and harvesting
// entities as facts in the organization graphs. All mutations go through
// templated DELETE/INSERT/WHERE updates guarded on the current state, so a
// lost race is a silent no-op rather than an error.
package graphstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"submission-harvester/internal/sparql"
)

// ErrNotResolved signals that a delta subject could not be tied to a task
// and job. It usually means stale or foreign data, not a defect.
var ErrNotResolved = errors.New("subject does not resolve to a known task")

// Store issues entity-level operations against the graph store.
type Store struct {
	c   *sparql.Client
	log *slog.Logger
}

// New wraps a protocol client.
func New(c *sparql.Client, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{c: c, log: log.With("component", "graphstore")}
}

// mintURI returns a fresh URI and the UUID it embeds. The UUID is written as
// a mu:uuid literal on the entity, which is how the resource layers sharing
// these graphs address it.
func mintURI(prefix string) (string, string) {
	id := uuid.New().String()
	return prefix + id, id
}

func now() string {
	return sparql.EscapeDateTime(time.Now())
}

// exec wraps Update with an operation name for error context.
func (s *Store) exec(ctx context.Context, op, q string) error {
	if err := s.c.Update(ctx, q); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
