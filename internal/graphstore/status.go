package graphstore

import (
	"context"
	"fmt"

	"submission-harvester/internal/models"
	"submission-harvester/internal/sparql"
	"submission-harvester/internal/vocab"
)

// SetStatus rewrites the status of any subject, whichever graph holds it.
// The WHERE clause matches the current status triple, so a concurrent writer
// that already moved the subject turns this into a no-op.
func (s *Store) SetStatus(ctx context.Context, subject string, status models.TaskStatus) error {
	q := fmt.Sprintf(`%s
DELETE {
  GRAPH ?g { ?subject adms:status ?status ; dct:modified ?modified . }
}
INSERT {
  GRAPH ?g { ?subject adms:status %s ; dct:modified %s . }
}
WHERE {
  VALUES ?subject { %s }
  GRAPH ?g {
    ?subject adms:status ?status .
    OPTIONAL { ?subject dct:modified ?modified . }
  }
}`, vocab.Prefixes,
		sparql.EscapeURI(string(status)),
		now(),
		sparql.EscapeURI(subject))
	return s.exec(ctx, "set status", q)
}

// TransitionStatus rewrites the subject's status only when it currently
// holds one of the expected prior statuses. Callers that need certainty must
// re-read afterwards; a mismatch is swallowed by the store.
func (s *Store) TransitionStatus(ctx context.Context, graph, subject string, from []models.TaskStatus, to models.TaskStatus) error {
	values := ""
	for _, f := range from {
		values += sparql.EscapeURI(string(f)) + " "
	}
	q := fmt.Sprintf(`%s
DELETE {
  GRAPH %s { %s adms:status ?status ; dct:modified ?modified . }
}
INSERT {
  GRAPH %s { %s adms:status %s ; dct:modified %s . }
}
WHERE {
  VALUES ?status { %s}
  GRAPH %s {
    %s adms:status ?status .
    OPTIONAL { %s dct:modified ?modified . }
  }
}`, vocab.Prefixes,
		sparql.EscapeURI(graph), sparql.EscapeURI(subject),
		sparql.EscapeURI(graph), sparql.EscapeURI(subject),
		sparql.EscapeURI(string(to)), now(),
		values,
		sparql.EscapeURI(graph),
		sparql.EscapeURI(subject),
		sparql.EscapeURI(subject))
	return s.exec(ctx, "transition status", q)
}

// CopyInputToResults reuses a task's input container as its results
// container. Registration produces no new artifacts, so the harvested input
// is the result.
func (s *Store) CopyInputToResults(ctx context.Context, graph, task string) error {
	q := fmt.Sprintf(`%s
INSERT {
  GRAPH %s { %s task:resultsContainer ?container . }
}
WHERE {
  GRAPH %s { %s task:inputContainer ?container . }
}`, vocab.Prefixes,
		sparql.EscapeURI(graph), sparql.EscapeURI(task),
		sparql.EscapeURI(graph), sparql.EscapeURI(task))
	return s.exec(ctx, "copy input to results", q)
}

// AttachError links an Error record to a task or job.
func (s *Store) AttachError(ctx context.Context, graph, subject, errorURI string) error {
	q := fmt.Sprintf(`%s
INSERT DATA {
  GRAPH %s {
    %s task:error %s .
  }
}`, vocab.Prefixes,
		sparql.EscapeURI(graph),
		sparql.EscapeURI(subject),
		sparql.EscapeURI(errorURI))
	return s.exec(ctx, "attach error", q)
}

// ComplementFileMetadata copies file metadata from the physical file record
// onto the logical one. The download agent leaves everything on the physical
// side; downstream import expects it on the logical record.
func (s *Store) ComplementFileMetadata(ctx context.Context, graph, physical, logical string) error {
	q := fmt.Sprintf(`%s
INSERT {
  GRAPH %s {
    %s
      a nfo:FileDataObject ;
      nfo:fileName ?fileName ;
      dct:format ?format ;
      nfo:fileSize ?fileSize ;
      dbpedia:fileExtension ?fileExtension ;
      dct:created ?created .
  }
}
WHERE {
  GRAPH %s {
    %s
      a nfo:FileDataObject ;
      nfo:fileName ?fileName ;
      dct:format ?format ;
      nfo:fileSize ?fileSize ;
      dbpedia:fileExtension ?fileExtension ;
      dct:created ?created .
  }
}`, vocab.Prefixes,
		sparql.EscapeURI(graph),
		sparql.EscapeURI(logical),
		sparql.EscapeURI(graph),
		sparql.EscapeURI(physical))
	return s.exec(ctx, "complement file metadata", q)
}
