package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"submission-harvester/internal/graphstore"
	"submission-harvester/internal/models"
	"submission-harvester/internal/telemetry"
	"submission-harvester/internal/vocab"
)

// DownloadHandler reacts to a download status change of a remote object
// owned by a task with the registered operation.
type DownloadHandler func(ctx context.Context, dc *graphstore.DownloadContext, event models.DownloadStatus) error

// ReadyHandler reacts to a task of the registered operation entering the
// scheduled state.
type ReadyHandler func(ctx context.Context, tc *graphstore.TaskContext) error

// Resolver maps delta subjects back onto control state.
type Resolver interface {
	ResolveDownloadEvent(ctx context.Context, remoteObject string) (*graphstore.DownloadContext, error)
	ResolveTask(ctx context.Context, taskURI string) (*graphstore.TaskContext, error)
}

// Dispatcher filters delta batches down to the status changes this service
// acts on and routes each to the handler registered for the owning task's
// operation. Everything else in a batch is noise and is dropped unread.
type Dispatcher struct {
	resolver Resolver
	download map[string]DownloadHandler
	ready    map[string]ReadyHandler
	log      *slog.Logger
}

// NewDispatcher builds a dispatcher with no routes.
func NewDispatcher(resolver Resolver, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		resolver: resolver,
		download: make(map[string]DownloadHandler),
		ready:    make(map[string]ReadyHandler),
		log:      log.With("component", "dispatcher"),
	}
}

// HandleDownloadEvents routes download status changes for tasks of the given
// operation.
func (d *Dispatcher) HandleDownloadEvents(operation string, h DownloadHandler) {
	d.download[operation] = h
}

// HandleTaskReady routes scheduled-task notifications for the given
// operation.
func (d *Dispatcher) HandleTaskReady(operation string, h ReadyHandler) {
	d.ready[operation] = h
}

// Dispatch processes one delta batch. Only inserted adms:status triples are
// considered; the subject decides the route. Failures already persisted as
// Error records are logged and skipped so the notifier is not asked to
// redeliver them; anything else is returned joined.
func (d *Dispatcher) Dispatch(ctx context.Context, batch models.DeltaBatch) error {
	telemetry.DeltaBatches.Inc()

	var errs []error
	seen := make(map[string]bool)
	for _, t := range batch.Inserts() {
		if t.Predicate.Value != vocab.StatusPredicate {
			continue
		}
		key := t.Subject.Value + " " + t.Object.Value
		if seen[key] {
			continue
		}
		seen[key] = true

		var err error
		if status, ok := models.ParseDownloadStatus(t.Object.Value); ok && status != models.DownloadReady && status != models.DownloadScheduled {
			err = d.dispatchDownloadEvent(ctx, t.Subject.Value, status)
		} else if t.Object.Value == vocab.TaskScheduled {
			err = d.dispatchTaskReady(ctx, t.Subject.Value)
		} else {
			continue
		}

		if err == nil {
			continue
		}
		if AlreadyStored(err) {
			d.log.Warn("processing failure recorded in store", "subject", t.Subject.Value, "err", err)
			continue
		}
		errs = append(errs, fmt.Errorf("delta for %s: %w", t.Subject.Value, err))
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) dispatchDownloadEvent(ctx context.Context, remoteObject string, status models.DownloadStatus) error {
	dc, err := d.resolver.ResolveDownloadEvent(ctx, remoteObject)
	if errors.Is(err, graphstore.ErrNotResolved) {
		d.log.Debug("download event does not belong to this service", "remoteObject", remoteObject)
		return nil
	}
	if err != nil {
		return err
	}
	h, ok := d.download[dc.Operation]
	if !ok {
		d.log.Debug("no download handler for operation", "operation", dc.Operation, "task", dc.Task)
		return nil
	}
	return h(ctx, dc, status)
}

func (d *Dispatcher) dispatchTaskReady(ctx context.Context, taskURI string) error {
	tc, err := d.resolver.ResolveTask(ctx, taskURI)
	if errors.Is(err, graphstore.ErrNotResolved) {
		d.log.Debug("scheduled subject is not a task of this service", "task", taskURI)
		return nil
	}
	if err != nil {
		return err
	}
	if tc.Status != models.TaskScheduled {
		d.log.Debug("task moved on since the notification", "task", taskURI, "status", tc.Status)
		return nil
	}
	h, ok := d.ready[tc.Operation]
	if !ok {
		d.log.Debug("no ready handler for operation", "operation", tc.Operation, "task", taskURI)
		return nil
	}
	return h(ctx, tc)
}
