package graphstore

import (
	"context"
	"fmt"

	"submission-harvester/internal/sparql"
	"submission-harvester/internal/vocab"
)

// ErrorParams describes a persisted Error record. Graph may be empty, in
// which case the shared error graph receives the record.
type ErrorParams struct {
	Graph     string
	Message   string
	Detail    string // optional large blob, e.g. a cleansed request dump
	Reference string // optional back-reference to the thing it concerns
	Subject   string // optional task/job to link via task:error
}

// InsertError writes an immutable Error record and links it to its subject.
// Failures here are logged, not propagated: the caller is already on an
// error path and losing the record must not mask the original failure.
func (s *Store) InsertError(ctx context.Context, p ErrorParams) string {
	errorURI, errorID := mintURI(vocab.ErrorURIPrefix)
	graph := p.Graph
	if graph == "" {
		graph = vocab.ErrorGraph
	}
	extra := ""
	if p.Detail != "" {
		extra += fmt.Sprintf("    %s oslc:largePreview %s .\n", sparql.EscapeURI(errorURI), sparql.EscapeString(p.Detail))
	}
	if p.Reference != "" {
		extra += fmt.Sprintf("    %s dct:references %s .\n", sparql.EscapeURI(errorURI), sparql.EscapeURI(p.Reference))
	}
	if p.Subject != "" {
		extra += fmt.Sprintf("    %s task:error %s .\n", sparql.EscapeURI(p.Subject), sparql.EscapeURI(errorURI))
	}
	q := fmt.Sprintf(`%s
INSERT DATA {
  GRAPH %s {
    %s
      a oslc:Error ;
      mu:uuid %s ;
      oslc:message %s ;
      dct:created %s ;
      dct:creator %s .
%s  }
}`, vocab.Prefixes,
		sparql.EscapeURI(graph),
		sparql.EscapeURI(errorURI),
		sparql.EscapeString(errorID),
		sparql.EscapeString(p.Message),
		now(),
		sparql.EscapeURI(vocab.Creator),
		extra)
	if err := s.c.Update(ctx, q); err != nil {
		s.log.Error("could not persist error record", "error", err, "message", p.Message)
		return ""
	}
	return errorURI
}
