package flow

import (
	"context"
	"fmt"

	"submission-harvester/internal/graphstore"
	"submission-harvester/internal/models"
	"submission-harvester/internal/telemetry"
	"submission-harvester/internal/vocab"
)

// acceptHeader asked of the download agent for the submitted document.
const acceptHeader = "text/html"

// ScheduleSubmission writes the whole intake graph for one submission: the
// job, its registration task (started busy), the input container describing
// what was submitted, and a single-member harvesting collection whose
// ready-to-be-cached status hands the document to the download agent.
// Credentials, when supplied, are stored once on the job and cloned onto the
// download target before that trigger status is written.
//
// On failure everything already persisted is moved to failed and recorded as
// an Error, and the returned error is marked stored.
func (f *Flow) ScheduleSubmission(ctx context.Context, graph string, req models.SubmissionRequest) (string, error) {
	authConf := ""
	if req.Authentication != nil {
		conf, err := f.creds.Insert(ctx, graph, req.Authentication)
		if err != nil {
			telemetry.SubmissionsRejected.Inc()
			return "", fmt.Errorf("store submission credentials: %w", err)
		}
		authConf = conf
	}

	job, err := f.store.InsertJob(ctx, graphstore.JobParams{
		Graph:             graph,
		SubmittedResource: req.SubmittedResource,
		AuthConfiguration: authConf,
	})
	if err != nil {
		f.creds.CleanupAll(ctx, []string{authConf})
		telemetry.SubmissionsRejected.Inc()
		return "", fmt.Errorf("create job: %w", err)
	}

	task, err := f.store.InsertTask(ctx, graphstore.TaskParams{
		Graph:     graph,
		Job:       job,
		Operation: vocab.OperationRegister,
		Index:     0,
		Status:    models.TaskBusy,
	})
	if err != nil {
		return "", f.abortIntake(ctx, graph, job, "", fmt.Errorf("create registration task: %w", err), nil)
	}

	container, err := f.store.InsertInputContainer(ctx, graphstore.ContainerParams{
		Graph:   graph,
		Task:    task,
		Subject: req.SubmittedResource,
		Sender:  req.Organization,
		Vendor:  req.Vendor,
	})
	if err != nil {
		return "", f.abortIntake(ctx, graph, job, task, fmt.Errorf("create input container: %w", err), nil)
	}

	collection, err := f.store.InsertHarvestingCollection(ctx, graph, container)
	if err != nil {
		return "", f.abortIntake(ctx, graph, job, task, fmt.Errorf("create harvesting collection: %w", err), nil)
	}

	remoteURI := graphstore.NewRemoteObjectURI()
	var cloneConfs []string
	if authConf != "" {
		clone, err := f.creds.CloneFor(ctx, graph, job, remoteURI)
		if err != nil {
			return "", f.abortIntake(ctx, graph, job, task, fmt.Errorf("clone credentials: %w", err), nil)
		}
		if clone != nil {
			cloneConfs = append(cloneConfs, clone.AuthConf)
		}
	}
	if _, err := f.store.InsertRemoteObject(ctx, graphstore.RemoteObjectParams{
		Graph:      graph,
		URI:        remoteURI,
		URL:        req.Href,
		Collection: collection,
		Accept:     acceptHeader,
	}); err != nil {
		return "", f.abortIntake(ctx, graph, job, task, fmt.Errorf("create download target: %w", err), cloneConfs)
	}

	telemetry.SubmissionsAccepted.Inc()
	f.appendAudit(ctx, job, "submission-scheduled", req.SubmittedResource)
	f.log.Info("submission scheduled",
		"job", job, "task", task, "resource", req.SubmittedResource, "vendor", req.Vendor)
	return job, nil
}

// abortIntake unwinds a half-written intake. The task may be empty when it
// was never created.
func (f *Flow) abortIntake(ctx context.Context, graph, job, task string, cause error, cloneConfs []string) error {
	telemetry.SubmissionsRejected.Inc()
	dc := &graphstore.TaskContext{Graph: graph, Task: task, Job: job, Operation: vocab.OperationRegister}
	if task == "" {
		// No task to fail yet; record against the job alone.
		f.store.InsertError(ctx, graphstore.ErrorParams{
			Graph:     graph,
			Message:   cause.Error(),
			Reference: job,
			Subject:   job,
		})
		if err := f.store.SetStatus(ctx, job, models.TaskFailed); err != nil {
			f.log.Error("could not fail job", "job", job, "err", err)
		}
		f.cleanupJobCredentials(ctx, graph, job, cloneConfs)
		telemetry.JobsFailed.Inc()
		f.appendAudit(ctx, job, "job-failed", cause.Error())
		return &StoredError{Job: job, Err: cause}
	}
	return f.failTaskAndJob(ctx, dc, cause, "", cloneConfs)
}
