package flow

import (
	"context"
	"errors"
	"fmt"

	"submission-harvester/internal/graphstore"
	"submission-harvester/internal/models"
	"submission-harvester/internal/vocab"
)

// OnRegisterEvent advances a registration task on a download status change
// of its single remote object. A transition the table refuses is a stale or
// redelivered notification and is dropped without a trace beyond a log line.
func (f *Flow) OnRegisterEvent(ctx context.Context, dc *graphstore.DownloadContext, event models.DownloadStatus) error {
	next, err := models.NextTaskStatus(dc.TaskStatus, event)
	if errors.Is(err, models.ErrTransitionNotAllowed) {
		f.log.Debug("ignoring stale download event",
			"task", dc.Task, "taskStatus", dc.TaskStatus, "event", event)
		return nil
	}
	if err != nil {
		return fmt.Errorf("register event for %s: %w", dc.Task, err)
	}

	switch event {
	case models.DownloadOngoing:
		if err := f.store.TransitionStatus(ctx, dc.Graph, dc.Task, []models.TaskStatus{dc.TaskStatus}, next); err != nil {
			return fmt.Errorf("mark registration busy: %w", err)
		}
		return nil
	case models.DownloadSuccess:
		return f.finishRegistration(ctx, dc)
	case models.DownloadFailure:
		msg := dc.CacheError
		if msg == "" {
			msg = "download of the submitted document failed"
		}
		return f.failTaskAndJob(ctx, taskContextOf(dc), errors.New(msg), "", f.memberConfs(ctx, dc))
	}
	return nil
}

// finishRegistration closes the registration task and schedules the import
// task that processes the downloaded document.
func (f *Flow) finishRegistration(ctx context.Context, dc *graphstore.DownloadContext) error {
	if dc.PhysicalFile != "" {
		if err := f.store.ComplementFileMetadata(ctx, dc.Graph, dc.PhysicalFile, dc.RemoteObject); err != nil {
			return fmt.Errorf("complement file metadata: %w", err)
		}
	}
	if err := f.store.CopyInputToResults(ctx, dc.Graph, dc.Task); err != nil {
		return fmt.Errorf("attach registration results: %w", err)
	}
	if err := f.store.TransitionStatus(ctx, dc.Graph, dc.Task,
		[]models.TaskStatus{models.TaskScheduled, models.TaskBusy}, models.TaskSuccess); err != nil {
		return fmt.Errorf("complete registration task: %w", err)
	}
	f.creds.CleanupAll(ctx, f.memberConfs(ctx, dc))

	importTask, err := f.store.InsertTask(ctx, graphstore.TaskParams{
		Graph:     dc.Graph,
		Job:       dc.Job,
		Operation: vocab.OperationImport,
		Index:     1,
		Status:    models.TaskScheduled,
	})
	if err != nil {
		return f.failTaskAndJob(ctx, taskContextOf(dc),
			fmt.Errorf("schedule import task: %w", err), "", nil)
	}

	f.appendAudit(ctx, dc.Job, "registration-succeeded", dc.RemoteObject)
	f.log.Info("registration finished, import scheduled",
		"job", dc.Job, "task", dc.Task, "importTask", importTask)
	return nil
}

// memberConfs lists the cloned credentials attached to the task's download
// targets. A read failure only costs the cleanup, so it is logged away.
func (f *Flow) memberConfs(ctx context.Context, dc *graphstore.DownloadContext) []string {
	_, members, err := f.harvest.PollJoin(ctx, dc.Graph, dc.Collection)
	if err != nil {
		f.log.Error("could not read collection members for credential cleanup",
			"collection", dc.Collection, "err", err)
		return nil
	}
	confs := make([]string, 0, len(members))
	for _, m := range members {
		if m.AuthConf != "" {
			confs = append(confs, m.AuthConf)
		}
	}
	return confs
}

func taskContextOf(dc *graphstore.DownloadContext) *graphstore.TaskContext {
	return &graphstore.TaskContext{
		Graph:     dc.Graph,
		Task:      dc.Task,
		Status:    dc.TaskStatus,
		Job:       dc.Job,
		Operation: dc.Operation,
	}
}
