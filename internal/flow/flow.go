// Package flow drives submissions through their lifecycle: intake schedules
// a job, delta notifications advance its tasks, and the fan-out coordinator
// decides when child downloads have joined. All state lives in the triple
// store; this package only reacts and writes.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"submission-harvester/internal/credentials"
	"submission-harvester/internal/graphstore"
	"submission-harvester/internal/harvest"
	"submission-harvester/internal/models"
	"submission-harvester/internal/telemetry"
)

// Store is the slice of the graph store the flow engine needs.
type Store interface {
	InsertJob(ctx context.Context, p graphstore.JobParams) (string, error)
	InsertTask(ctx context.Context, p graphstore.TaskParams) (string, error)
	InsertInputContainer(ctx context.Context, p graphstore.ContainerParams) (string, error)
	InsertHarvestingCollection(ctx context.Context, graph, containerURI string) (string, error)
	InsertRemoteObject(ctx context.Context, p graphstore.RemoteObjectParams) (string, error)
	InsertError(ctx context.Context, p graphstore.ErrorParams) string
	AttachError(ctx context.Context, graph, subject, errorURI string) error
	CopyInputToResults(ctx context.Context, graph, task string) error
	SetStatus(ctx context.Context, subject string, status models.TaskStatus) error
	TransitionStatus(ctx context.Context, graph, subject string, from []models.TaskStatus, to models.TaskStatus) error
	ComplementFileMetadata(ctx context.Context, graph, physical, logical string) error
	ResolveDownloadEvent(ctx context.Context, remoteObject string) (*graphstore.DownloadContext, error)
	ResolveTask(ctx context.Context, taskURI string) (*graphstore.TaskContext, error)
	TaskSourceFile(ctx context.Context, graph, taskURI string) (*graphstore.SourceFile, error)
	JobAuthConf(ctx context.Context, graph, jobURI string) (string, error)
}

// CredentialManager owns per-target secrets.
type CredentialManager interface {
	Insert(ctx context.Context, graph string, auth *models.Authentication) (string, error)
	CloneFor(ctx context.Context, graph, ownerURI, targetURI string) (*credentials.Clone, error)
	Cleanup(ctx context.Context, authConf string) error
	CleanupAll(ctx context.Context, authConfs []string)
}

// Harvester fans a task out over child downloads and polls the join.
type Harvester interface {
	ScheduleChildren(ctx context.Context, graph, taskURI string, items []harvest.Item) (*harvest.ScheduleResult, error)
	PollJoin(ctx context.Context, graph, collection string) (harvest.JoinState, []graphstore.Member, error)
}

// AuditLog records lifecycle events out of band. Append failures are the
// log's problem, never the flow's.
type AuditLog interface {
	Append(ctx context.Context, jobURI, event, detail string) error
}

// Flow is the lifecycle engine.
type Flow struct {
	store   Store
	creds   CredentialManager
	harvest Harvester
	source  AttachmentSource
	audit   AuditLog
	log     *slog.Logger
}

// New builds a flow engine. audit may be nil.
func New(store Store, creds CredentialManager, h Harvester, source AttachmentSource, audit AuditLog, log *slog.Logger) *Flow {
	if log == nil {
		log = slog.Default()
	}
	return &Flow{
		store:   store,
		creds:   creds,
		harvest: h,
		source:  source,
		audit:   audit,
		log:     log.With("component", "flow"),
	}
}

// StoredError marks a failure that has already been written to the store as
// an Error record. The transport layer acknowledges these instead of asking
// the notifier to redeliver.
type StoredError struct {
	Job string
	Err error
}

func (e *StoredError) Error() string { return e.Err.Error() }
func (e *StoredError) Unwrap() error { return e.Err }

// AlreadyStored reports whether the failure is persisted as an Error record.
func AlreadyStored(err error) bool {
	var se *StoredError
	return errors.As(err, &se)
}

func (f *Flow) appendAudit(ctx context.Context, job, event, detail string) {
	if f.audit == nil {
		return
	}
	_ = f.audit.Append(ctx, job, event, detail)
}

// failTaskAndJob records the failure, moves both task and job to failed and
// retires every credential clone handed in. It always returns a StoredError
// wrapping cause.
func (f *Flow) failTaskAndJob(ctx context.Context, dc *graphstore.TaskContext, cause error, detail string, memberConfs []string) error {
	errorURI := f.store.InsertError(ctx, graphstore.ErrorParams{
		Graph:     dc.Graph,
		Message:   cause.Error(),
		Detail:    detail,
		Reference: dc.Task,
		Subject:   dc.Task,
	})
	if errorURI != "" {
		if err := f.store.AttachError(ctx, dc.Graph, dc.Job, errorURI); err != nil {
			f.log.Error("could not link error to job", "job", dc.Job, "err", err)
		}
	}
	if err := f.store.SetStatus(ctx, dc.Task, models.TaskFailed); err != nil {
		f.log.Error("could not fail task", "task", dc.Task, "err", err)
	}
	if err := f.store.SetStatus(ctx, dc.Job, models.TaskFailed); err != nil {
		f.log.Error("could not fail job", "job", dc.Job, "err", err)
	}
	f.cleanupJobCredentials(ctx, dc.Graph, dc.Job, memberConfs)
	telemetry.JobsFailed.Inc()
	f.appendAudit(ctx, dc.Job, "job-failed", cause.Error())
	f.log.Warn("job failed", "job", dc.Job, "task", dc.Task, "operation", dc.Operation, "err", cause)
	return &StoredError{Job: dc.Job, Err: fmt.Errorf("%s task %s: %w", dc.Operation, dc.Task, cause)}
}

// cleanupJobCredentials retires member clones plus the job's own intake
// configuration. Secrets of an already-cleaned configuration are simply
// absent, so repeating this is harmless.
func (f *Flow) cleanupJobCredentials(ctx context.Context, graph, job string, memberConfs []string) {
	f.creds.CleanupAll(ctx, memberConfs)
	authConf, err := f.store.JobAuthConf(ctx, graph, job)
	if err != nil {
		f.log.Error("could not look up job credentials for cleanup", "job", job, "err", err)
		return
	}
	if authConf == "" {
		return
	}
	if err := f.creds.Cleanup(ctx, authConf); err != nil {
		f.log.Error("could not clean job credentials", "job", job, "authConf", authConf, "err", err)
	}
}

// completeJob moves the task and job to success and retires credentials.
func (f *Flow) completeJob(ctx context.Context, dc *graphstore.TaskContext, memberConfs []string) error {
	if err := f.store.SetStatus(ctx, dc.Task, models.TaskSuccess); err != nil {
		return fmt.Errorf("complete task %s: %w", dc.Task, err)
	}
	if err := f.store.SetStatus(ctx, dc.Job, models.TaskSuccess); err != nil {
		return fmt.Errorf("complete job %s: %w", dc.Job, err)
	}
	f.cleanupJobCredentials(ctx, dc.Graph, dc.Job, memberConfs)
	telemetry.JobsSucceeded.Inc()
	f.appendAudit(ctx, dc.Job, "job-succeeded", "")
	f.log.Info("job succeeded", "job", dc.Job, "task", dc.Task)
	return nil
}
