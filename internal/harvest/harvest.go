// Package harvest fans a task out over a set of remote objects and decides
// when the set has joined. Join state is re-derived from the store on every
// poll; there is no push-based completion signal and no cached counter.
package harvest

import (
	"context"
	"fmt"
	"log/slog"

	"submission-harvester/internal/credentials"
	"submission-harvester/internal/graphstore"
	"submission-harvester/internal/models"
)

// entityStore is the slice of the graph store this coordinator needs.
type entityStore interface {
	InsertInputContainer(ctx context.Context, p graphstore.ContainerParams) (string, error)
	InsertHarvestingCollection(ctx context.Context, graph, containerURI string) (string, error)
	InsertRemoteObject(ctx context.Context, p graphstore.RemoteObjectParams) (string, error)
	CollectionMembers(ctx context.Context, graph, collection string) ([]graphstore.Member, error)
}

// credentialCloner clones and retires per-target secrets.
type credentialCloner interface {
	CloneFor(ctx context.Context, graph, ownerURI, targetURI string) (*credentials.Clone, error)
	CleanupAll(ctx context.Context, authConfs []string)
}

// JoinState is the outcome of polling a collection.
type JoinState int

const (
	// JoinPending means at least one member has not reached a terminal
	// download status.
	JoinPending JoinState = iota
	// JoinAllSucceeded means every member finished and none failed.
	JoinAllSucceeded
	// JoinAnyFailed means every member finished and at least one failed.
	// A mixed batch is never partially committed.
	JoinAnyFailed
)

func (s JoinState) String() string {
	switch s {
	case JoinAllSucceeded:
		return "all-succeeded"
	case JoinAnyFailed:
		return "any-failed"
	default:
		return "pending"
	}
}

// Item is one child download target.
type Item struct {
	URL       string
	AuthOwner string // entity whose authentication configuration to clone, if any
	Accept    string
}

// Coordinator creates child download sets and aggregates their outcomes.
type Coordinator struct {
	store entityStore
	creds credentialCloner
	log   *slog.Logger
}

// New builds a coordinator.
func New(store entityStore, creds credentialCloner, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{store: store, creds: creds, log: log.With("component", "harvest")}
}

// ScheduleResult reports what a fan-out created.
type ScheduleResult struct {
	Container  string
	Collection string
	Remotes    []string
	AuthConfs  []string // cloned configurations, one per authenticated item
}

// ScheduleChildren creates the container and collection under a task and one
// remote object per item, cloning credentials per item. Credentials are
// cloned before the remote object's status write so the download agent never
// picks up a target whose secrets are still missing. On any failure the
// clones made so far are cleaned up before the error surfaces.
//
// An empty item set is the caller's special case; calling this with zero
// items is a programming error.
func (c *Coordinator) ScheduleChildren(ctx context.Context, graph, taskURI string, items []Item) (res *ScheduleResult, err error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("schedule children for %s: empty item set", taskURI)
	}

	result := &ScheduleResult{}
	defer func() {
		if err != nil {
			c.creds.CleanupAll(ctx, result.AuthConfs)
		}
	}()

	container, err := c.store.InsertInputContainer(ctx, graphstore.ContainerParams{
		Graph: graph,
		Task:  taskURI,
	})
	if err != nil {
		return nil, fmt.Errorf("fan out %s: %w", taskURI, err)
	}
	result.Container = container

	collection, err := c.store.InsertHarvestingCollection(ctx, graph, container)
	if err != nil {
		return nil, fmt.Errorf("fan out %s: %w", taskURI, err)
	}
	result.Collection = collection

	for _, item := range items {
		remoteURI := graphstore.NewRemoteObjectURI()
		if item.AuthOwner != "" {
			clone, err := c.creds.CloneFor(ctx, graph, item.AuthOwner, remoteURI)
			if err != nil {
				return nil, fmt.Errorf("fan out %s: clone credentials for %s: %w", taskURI, item.URL, err)
			}
			if clone != nil {
				result.AuthConfs = append(result.AuthConfs, clone.AuthConf)
			}
		}
		if _, err := c.store.InsertRemoteObject(ctx, graphstore.RemoteObjectParams{
			Graph:      graph,
			URI:        remoteURI,
			URL:        item.URL,
			Collection: collection,
			Accept:     item.Accept,
		}); err != nil {
			return nil, fmt.Errorf("fan out %s: remote object for %s: %w", taskURI, item.URL, err)
		}
		result.Remotes = append(result.Remotes, remoteURI)
	}

	c.log.Info("scheduled child downloads",
		"task", taskURI, "collection", collection, "count", len(items))
	return result, nil
}

// PollJoin re-reads every member of the collection and reports the join
// state. The set is joined once every member is terminal; one failure taints
// the whole batch.
func (c *Coordinator) PollJoin(ctx context.Context, graph, collection string) (JoinState, []graphstore.Member, error) {
	members, err := c.store.CollectionMembers(ctx, graph, collection)
	if err != nil {
		return JoinPending, nil, fmt.Errorf("poll join %s: %w", collection, err)
	}

	anyFailed := false
	for _, m := range members {
		if !m.Status.Terminal() {
			return JoinPending, members, nil
		}
		if m.Status == models.DownloadFailure {
			anyFailed = true
		}
	}
	if anyFailed {
		return JoinAnyFailed, members, nil
	}
	return JoinAllSucceeded, members, nil
}
