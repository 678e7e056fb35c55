package graphstore

import (
	"context"
	"fmt"

	"submission-harvester/internal/models"
	"submission-harvester/internal/sparql"
	"submission-harvester/internal/vocab"
)

// DownloadContext ties a remote object back to the task and job driving it.
type DownloadContext struct {
	Graph        string
	Task         string
	TaskStatus   models.TaskStatus
	Job          string
	Operation    string
	Collection   string
	RemoteObject string
	PhysicalFile string // file minted by the download agent, if any
	CacheError   string // agent-side error message, if any
}

// ResolveDownloadEvent finds the owning task/job for a remote object that
// just changed status. ErrNotResolved means the object belongs to another
// service's data or was already cleaned up.
func (s *Store) ResolveDownloadEvent(ctx context.Context, remoteObject string) (*DownloadContext, error) {
	remote := sparql.EscapeURI(remoteObject)
	q := fmt.Sprintf(`%s
SELECT DISTINCT ?graph ?task ?taskStatus ?job ?operation ?collection ?physicalFile ?cacheError WHERE {
  GRAPH ?graph {
    ?collection dct:hasPart %s .
    ?container task:hasHarvestingCollection ?collection .
    ?task a task:Task ;
      adms:status ?taskStatus ;
      task:inputContainer ?container ;
      task:operation ?operation ;
      dct:isPartOf ?job .
  }
  OPTIONAL { ?physicalFile nie:dataSource %s . }
  OPTIONAL { %s ext:cacheError ?cacheError . }
}
LIMIT 1`, vocab.Prefixes, remote, remote, remote)

	rows, err := s.c.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("resolve download event: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("remote object %s: %w", remoteObject, ErrNotResolved)
	}
	row := rows[0]
	status, ok := models.ParseTaskStatus(row["taskStatus"].Value)
	if !ok {
		return nil, fmt.Errorf("remote object %s has task with unknown status %q: %w",
			remoteObject, row["taskStatus"].Value, ErrNotResolved)
	}
	return &DownloadContext{
		Graph:        row["graph"].Value,
		Task:         row["task"].Value,
		TaskStatus:   status,
		Job:          row["job"].Value,
		Operation:    row["operation"].Value,
		Collection:   row["collection"].Value,
		RemoteObject: remoteObject,
		PhysicalFile: row["physicalFile"].Value,
		CacheError:   row["cacheError"].Value,
	}, nil
}

// TaskContext describes a task referenced directly by a delta.
type TaskContext struct {
	Graph     string
	Task      string
	Status    models.TaskStatus
	Job       string
	Operation string
}

// ResolveTask loads the control state of one task.
func (s *Store) ResolveTask(ctx context.Context, taskURI string) (*TaskContext, error) {
	q := fmt.Sprintf(`%s
SELECT DISTINCT ?graph ?taskStatus ?job ?operation WHERE {
  GRAPH ?graph {
    %s a task:Task ;
      adms:status ?taskStatus ;
      task:operation ?operation ;
      dct:isPartOf ?job .
  }
}
LIMIT 1`, vocab.Prefixes, sparql.EscapeURI(taskURI))

	rows, err := s.c.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("resolve task: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("task %s: %w", taskURI, ErrNotResolved)
	}
	row := rows[0]
	status, ok := models.ParseTaskStatus(row["taskStatus"].Value)
	if !ok {
		return nil, fmt.Errorf("task %s has unknown status %q: %w", taskURI, row["taskStatus"].Value, ErrNotResolved)
	}
	return &TaskContext{
		Graph:     row["graph"].Value,
		Task:      taskURI,
		Status:    status,
		Job:       row["job"].Value,
		Operation: row["operation"].Value,
	}, nil
}

// Member is one remote object inside a harvesting collection.
type Member struct {
	URI      string
	Status   models.DownloadStatus
	AuthConf string // cloned authentication configuration, if any
}

// CollectionMembers reads the current status of every remote object in a
// collection. Join state is always re-derived from this read, never cached.
func (s *Store) CollectionMembers(ctx context.Context, graph, collection string) ([]Member, error) {
	q := fmt.Sprintf(`%s
SELECT DISTINCT ?member ?status ?authConf WHERE {
  GRAPH %s {
    %s dct:hasPart ?member .
    ?member adms:status ?status .
    OPTIONAL { ?member dgftSec:targetAuthenticationConfiguration ?authConf . }
  }
}`, vocab.Prefixes,
		sparql.EscapeURI(graph),
		sparql.EscapeURI(collection))

	rows, err := s.c.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("collection members: %w", err)
	}
	members := make([]Member, 0, len(rows))
	for _, row := range rows {
		status, ok := models.ParseDownloadStatus(row["status"].Value)
		if !ok {
			return nil, fmt.Errorf("collection member %s has unknown download status %q",
				row["member"].Value, row["status"].Value)
		}
		members = append(members, Member{
			URI:      row["member"].Value,
			Status:   status,
			AuthConf: row["authConf"].Value,
		})
	}
	return members, nil
}

// JobAuthConf returns the authentication configuration handed in at intake,
// or "" when the job was submitted without credentials.
func (s *Store) JobAuthConf(ctx context.Context, graph, jobURI string) (string, error) {
	q := fmt.Sprintf(`%s
SELECT ?authConf WHERE {
  GRAPH %s {
    %s dgftSec:targetAuthenticationConfiguration ?authConf .
  }
}
LIMIT 1`, vocab.Prefixes,
		sparql.EscapeURI(graph),
		sparql.EscapeURI(jobURI))

	rows, err := s.c.Query(ctx, q)
	if err != nil {
		return "", fmt.Errorf("job auth conf: %w", err)
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0]["authConf"].Value, nil
}

// SourceFile locates the downloaded file behind a task's input collection.
type SourceFile struct {
	PhysicalFile string
	URL          string
}

// TaskSourceFile finds the file the download task fetched for this job, via
// the task's input container and collection.
func (s *Store) TaskSourceFile(ctx context.Context, graph, taskURI string) (*SourceFile, error) {
	q := fmt.Sprintf(`%s
SELECT DISTINCT ?physicalFile ?url WHERE {
  GRAPH %s {
    %s a task:Task ;
      dct:isPartOf ?job .
    ?registerTask dct:isPartOf ?job ;
      task:inputContainer ?container .
    ?container task:hasHarvestingCollection ?collection .
    ?collection dct:hasPart ?remoteObject .
    ?remoteObject nie:url ?url .
    ?physicalFile nie:dataSource ?remoteObject .
  }
}
LIMIT 1`, vocab.Prefixes,
		sparql.EscapeURI(graph),
		sparql.EscapeURI(taskURI))

	rows, err := s.c.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("task source file: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("task %s has no downloaded source file: %w", taskURI, ErrNotResolved)
	}
	return &SourceFile{
		PhysicalFile: rows[0]["physicalFile"].Value,
		URL:          rows[0]["url"].Value,
	}, nil
}
