package flow

import (
	"context"
	"fmt"
	"strings"

	"submission-harvester/internal/graphstore"
	"submission-harvester/internal/harvest"
	"submission-harvester/internal/models"
)

// OnImportTaskReady starts a scheduled import task: it locates the document
// the registration task downloaded, scans it for attachments and fans out
// one child download per attachment. A document without attachments
// completes the task, and with it the job, on the spot.
func (f *Flow) OnImportTaskReady(ctx context.Context, tc *graphstore.TaskContext) error {
	if tc.Status != models.TaskScheduled {
		f.log.Debug("import task not in scheduled state, skipping", "task", tc.Task, "status", tc.Status)
		return nil
	}
	if err := f.store.TransitionStatus(ctx, tc.Graph, tc.Task,
		[]models.TaskStatus{models.TaskScheduled}, models.TaskBusy); err != nil {
		return fmt.Errorf("start import task %s: %w", tc.Task, err)
	}

	src, err := f.store.TaskSourceFile(ctx, tc.Graph, tc.Task)
	if err != nil {
		return f.failTaskAndJob(ctx, tc, fmt.Errorf("locate downloaded document: %w", err), "", nil)
	}

	attachments, err := f.source.List(ctx, src.PhysicalFile, src.URL)
	if err != nil {
		return f.failTaskAndJob(ctx, tc, fmt.Errorf("scan document for attachments: %w", err), "", nil)
	}

	if len(attachments) == 0 {
		f.appendAudit(ctx, tc.Job, "import-empty", src.URL)
		f.log.Info("document has no attachments, completing job", "job", tc.Job, "task", tc.Task)
		return f.completeJob(ctx, tc, nil)
	}

	items := make([]harvest.Item, 0, len(attachments))
	for _, a := range attachments {
		items = append(items, harvest.Item{URL: a.URL, AuthOwner: tc.Job})
	}
	res, err := f.harvest.ScheduleChildren(ctx, tc.Graph, tc.Task, items)
	if err != nil {
		return f.failTaskAndJob(ctx, tc, fmt.Errorf("schedule attachment downloads: %w", err), "", nil)
	}

	f.appendAudit(ctx, tc.Job, "import-fanned-out", fmt.Sprintf("%d attachments", len(items)))
	f.log.Info("import fanned out",
		"job", tc.Job, "task", tc.Task, "collection", res.Collection, "count", len(items))
	return nil
}

// OnImportEvent handles a download status change of one attachment. Terminal
// events poll the join; anything short of a fully terminal collection leaves
// the task untouched, and a single failed member fails the whole batch.
func (f *Flow) OnImportEvent(ctx context.Context, dc *graphstore.DownloadContext, event models.DownloadStatus) error {
	if dc.TaskStatus.Terminal() {
		f.log.Debug("import task already terminal, skipping", "task", dc.Task, "status", dc.TaskStatus)
		return nil
	}
	if !event.Terminal() {
		return nil
	}

	state, members, err := f.harvest.PollJoin(ctx, dc.Graph, dc.Collection)
	if err != nil {
		return fmt.Errorf("poll import join for %s: %w", dc.Task, err)
	}

	confs := make([]string, 0, len(members))
	for _, m := range members {
		if m.AuthConf != "" {
			confs = append(confs, m.AuthConf)
		}
	}

	switch state {
	case harvest.JoinPending:
		f.log.Debug("import join still pending", "task", dc.Task, "collection", dc.Collection)
		return nil
	case harvest.JoinAnyFailed:
		var failed []string
		for _, m := range members {
			if m.Status == models.DownloadFailure {
				failed = append(failed, m.URI)
			}
		}
		cause := fmt.Errorf("attachment download failed for %s", strings.Join(failed, ", "))
		return f.failTaskAndJob(ctx, taskContextOf(dc), cause, "", confs)
	}

	if err := f.store.CopyInputToResults(ctx, dc.Graph, dc.Task); err != nil {
		return fmt.Errorf("attach import results: %w", err)
	}
	f.appendAudit(ctx, dc.Job, "import-joined", fmt.Sprintf("%d attachments", len(members)))
	return f.completeJob(ctx, taskContextOf(dc), confs)
}
