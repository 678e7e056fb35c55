package graphstore

import (
	"context"
	"fmt"
	"strings"

	"submission-harvester/internal/models"
	"submission-harvester/internal/sparql"
	"submission-harvester/internal/vocab"
)

// JobParams collects inputs for a new job.
type JobParams struct {
	Graph             string
	SubmittedResource string
	AuthConfiguration string // optional, links the intake credentials
}

// InsertJob creates the top-level job in busy state.
func (s *Store) InsertJob(ctx context.Context, p JobParams) (string, error) {
	jobURI, jobID := mintURI(vocab.JobURIPrefix)
	ts := now()
	authTriple := ""
	if p.AuthConfiguration != "" {
		authTriple = fmt.Sprintf("%s dgftSec:targetAuthenticationConfiguration %s .",
			sparql.EscapeURI(jobURI), sparql.EscapeURI(p.AuthConfiguration))
	}
	q := fmt.Sprintf(`%s
INSERT DATA {
  GRAPH %s {
    %s
      a cogs:Job ;
      mu:uuid %s ;
      adms:status %s ;
      dct:subject %s ;
      dct:creator %s ;
      task:operation %s ;
      dct:created %s ;
      dct:modified %s .
    %s
  }
}`, vocab.Prefixes,
		sparql.EscapeURI(p.Graph),
		sparql.EscapeURI(jobURI),
		sparql.EscapeString(jobID),
		sparql.EscapeURI(vocab.TaskBusy),
		sparql.EscapeURI(p.SubmittedResource),
		sparql.EscapeURI(vocab.Creator),
		sparql.EscapeURI(vocab.OperationHarvest),
		ts, ts,
		authTriple)
	if err := s.exec(ctx, "insert job", q); err != nil {
		return "", err
	}
	return jobURI, nil
}

// TaskParams collects inputs for a new pipeline task.
type TaskParams struct {
	Graph     string
	Job       string
	Operation string
	Index     int
	Status    models.TaskStatus
}

// InsertTask creates one task under a job.
func (s *Store) InsertTask(ctx context.Context, p TaskParams) (string, error) {
	taskURI, taskID := mintURI(vocab.TaskURIPrefix)
	ts := now()
	q := fmt.Sprintf(`%s
INSERT DATA {
  GRAPH %s {
    %s
      a task:Task ;
      mu:uuid %s ;
      adms:status %s ;
      task:operation %s ;
      task:index %s ;
      dct:creator %s ;
      dct:created %s ;
      dct:modified %s ;
      dct:isPartOf %s .
  }
}`, vocab.Prefixes,
		sparql.EscapeURI(p.Graph),
		sparql.EscapeURI(taskURI),
		sparql.EscapeString(taskID),
		sparql.EscapeURI(string(p.Status)),
		sparql.EscapeURI(p.Operation),
		sparql.EscapeString(fmt.Sprintf("%d", p.Index)),
		sparql.EscapeURI(vocab.Creator),
		ts, ts,
		sparql.EscapeURI(p.Job))
	if err := s.exec(ctx, "insert task", q); err != nil {
		return "", err
	}
	return taskURI, nil
}

// ContainerParams describes the input context attached to a task.
type ContainerParams struct {
	Graph   string
	Task    string
	Subject string // submitted resource
	Sender  string // organization
	Vendor  string
}

// InsertInputContainer creates a data container and links it as the task's
// input in the same write.
func (s *Store) InsertInputContainer(ctx context.Context, p ContainerParams) (string, error) {
	containerURI, containerID := mintURI(vocab.ContainerURIPrefix)
	extra := ""
	if p.Subject != "" {
		extra += fmt.Sprintf("    %s dct:subject %s .\n", sparql.EscapeURI(containerURI), sparql.EscapeURI(p.Subject))
	}
	if p.Sender != "" {
		extra += fmt.Sprintf("    %s schema:sender %s .\n", sparql.EscapeURI(containerURI), sparql.EscapeURI(p.Sender))
	}
	if p.Vendor != "" {
		extra += fmt.Sprintf("    %s pav:providedBy %s .\n", sparql.EscapeURI(containerURI), sparql.EscapeURI(p.Vendor))
	}
	q := fmt.Sprintf(`%s
INSERT DATA {
  GRAPH %s {
    %s a nfo:DataContainer ; mu:uuid %s .
%s    %s task:inputContainer %s .
  }
}`, vocab.Prefixes,
		sparql.EscapeURI(p.Graph),
		sparql.EscapeURI(containerURI),
		sparql.EscapeString(containerID),
		extra,
		sparql.EscapeURI(p.Task),
		sparql.EscapeURI(containerURI))
	if err := s.exec(ctx, "insert input container", q); err != nil {
		return "", err
	}
	return containerURI, nil
}

// InsertHarvestingCollection creates an empty collection under a container.
func (s *Store) InsertHarvestingCollection(ctx context.Context, graph, containerURI string) (string, error) {
	collectionURI, collectionID := mintURI(vocab.CollectionURIPrefix)
	q := fmt.Sprintf(`%s
INSERT DATA {
  GRAPH %s {
    %s
      a hrvst:HarvestingCollection ;
      mu:uuid %s ;
      dct:creator %s .
    %s task:hasHarvestingCollection %s .
  }
}`, vocab.Prefixes,
		sparql.EscapeURI(graph),
		sparql.EscapeURI(collectionURI),
		sparql.EscapeString(collectionID),
		sparql.EscapeURI(vocab.Creator),
		sparql.EscapeURI(containerURI),
		sparql.EscapeURI(collectionURI))
	if err := s.exec(ctx, "insert harvesting collection", q); err != nil {
		return "", err
	}
	return collectionURI, nil
}

// NewRemoteObjectURI mints the identifier for a remote object ahead of its
// insert, so credentials can be cloned onto it before the status write that
// triggers the download agent.
func NewRemoteObjectURI() string {
	uri, _ := mintURI(vocab.RemoteURIPrefix)
	return uri
}

// RemoteObjectParams describes one fetchable resource to hand to the
// download agent.
type RemoteObjectParams struct {
	Graph      string
	URI        string // pre-minted via NewRemoteObjectURI; minted here when empty
	URL        string
	Collection string
	Accept     string // request Accept header, e.g. text/html
}

// InsertRemoteObject writes the remote object, its initial status and its
// collection membership in one update. Writing the ready-to-be-cached status
// is the trigger contract for the download agent, and bundling the write
// means the agent can never observe an object without its metadata.
func (s *Store) InsertRemoteObject(ctx context.Context, p RemoteObjectParams) (string, error) {
	remoteURI := p.URI
	if remoteURI == "" {
		remoteURI = NewRemoteObjectURI()
	}
	remoteID := strings.TrimPrefix(remoteURI, vocab.RemoteURIPrefix)
	ts := now()
	headerTriples := ""
	if p.Accept != "" {
		headerURI := "http://data.lblod.info/request-headers/accept/" + p.Accept
		headerTriples = fmt.Sprintf(`    %s rpioHttp:requestHeader %s .
    %s
      a http:RequestHeader ;
      http:fieldName "Accept" ;
      http:fieldValue %s ;
      http:hdrName <http://www.w3.org/2011/http-headers#accept> .
`,
			sparql.EscapeURI(remoteURI), sparql.EscapeURI(headerURI),
			sparql.EscapeURI(headerURI),
			sparql.EscapeString(p.Accept))
	}
	q := fmt.Sprintf(`%s
INSERT DATA {
  GRAPH %s {
    %s
      a nfo:RemoteDataObject, nfo:FileDataObject ;
      mu:uuid %s ;
      nie:url %s ;
      adms:status %s ;
      dct:creator %s ;
      dct:created %s ;
      dct:modified %s .
%s    %s dct:hasPart %s .
  }
}`, vocab.Prefixes,
		sparql.EscapeURI(p.Graph),
		sparql.EscapeURI(remoteURI),
		sparql.EscapeString(remoteID),
		sparql.EscapeURI(p.URL),
		sparql.EscapeURI(vocab.DownloadReady),
		sparql.EscapeURI(vocab.Creator),
		ts, ts,
		headerTriples,
		sparql.EscapeURI(p.Collection),
		sparql.EscapeURI(remoteURI))
	if err := s.exec(ctx, "insert remote object", q); err != nil {
		return "", err
	}
	return remoteURI, nil
}
