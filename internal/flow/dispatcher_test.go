package flow

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"submission-harvester/internal/graphstore"
	"submission-harvester/internal/models"
	"submission-harvester/internal/vocab"
)

type fakeResolver struct {
	downloads map[string]*graphstore.DownloadContext
	tasks     map[string]*graphstore.TaskContext
}

func (r *fakeResolver) ResolveDownloadEvent(_ context.Context, remoteObject string) (*graphstore.DownloadContext, error) {
	dc, ok := r.downloads[remoteObject]
	if !ok {
		return nil, fmt.Errorf("remote object %s: %w", remoteObject, graphstore.ErrNotResolved)
	}
	return dc, nil
}

func (r *fakeResolver) ResolveTask(_ context.Context, taskURI string) (*graphstore.TaskContext, error) {
	tc, ok := r.tasks[taskURI]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", taskURI, graphstore.ErrNotResolved)
	}
	return tc, nil
}

func statusInsert(subject, status string) models.Changeset {
	return models.Changeset{Inserts: []models.Triple{{
		Subject:   models.Term{Type: "uri", Value: subject},
		Predicate: models.Term{Type: "uri", Value: vocab.StatusPredicate},
		Object:    models.Term{Type: "uri", Value: status},
	}}}
}

func TestDispatchRoutesDownloadEventByOperation(t *testing.T) {
	resolver := &fakeResolver{downloads: map[string]*graphstore.DownloadContext{
		"http://remote/1": {Task: "http://task/1", Operation: vocab.OperationRegister},
	}}
	d := NewDispatcher(resolver, nil)

	var gotTask string
	var gotEvent models.DownloadStatus
	d.HandleDownloadEvents(vocab.OperationRegister, func(_ context.Context, dc *graphstore.DownloadContext, ev models.DownloadStatus) error {
		gotTask = dc.Task
		gotEvent = ev
		return nil
	})

	batch := models.DeltaBatch{statusInsert("http://remote/1", vocab.DownloadSuccess)}
	if err := d.Dispatch(context.Background(), batch); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if gotTask != "http://task/1" || gotEvent != models.DownloadSuccess {
		t.Fatalf("handler saw task=%q event=%q", gotTask, gotEvent)
	}
}

func TestDispatchIgnoresForeignAndIrrelevantTriples(t *testing.T) {
	d := NewDispatcher(&fakeResolver{downloads: map[string]*graphstore.DownloadContext{}}, nil)
	called := false
	d.HandleDownloadEvents(vocab.OperationRegister, func(context.Context, *graphstore.DownloadContext, models.DownloadStatus) error {
		called = true
		return nil
	})

	batch := models.DeltaBatch{
		// Wrong predicate.
		{Inserts: []models.Triple{{
			Subject:   models.Term{Type: "uri", Value: "http://remote/1"},
			Predicate: models.Term{Type: "uri", Value: "http://purl.org/dc/terms/modified"},
			Object:    models.Term{Type: "literal", Value: "2026-01-01"},
		}}},
		// Trigger status, written by this service itself.
		statusInsert("http://remote/1", vocab.DownloadReady),
		// Status on a subject the store does not know. Treated as another
		// service's data, not an error.
		statusInsert("http://remote/unknown", vocab.DownloadSuccess),
		// Deletes never match.
		{Deletes: []models.Triple{{
			Subject:   models.Term{Type: "uri", Value: "http://remote/1"},
			Predicate: models.Term{Type: "uri", Value: vocab.StatusPredicate},
			Object:    models.Term{Type: "uri", Value: vocab.DownloadOngoing},
		}}},
	}
	if err := d.Dispatch(context.Background(), batch); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if called {
		t.Fatal("handler was called for irrelevant triples")
	}
}

func TestDispatchDeduplicatesWithinBatch(t *testing.T) {
	resolver := &fakeResolver{downloads: map[string]*graphstore.DownloadContext{
		"http://remote/1": {Task: "http://task/1", Operation: vocab.OperationRegister},
	}}
	d := NewDispatcher(resolver, nil)

	calls := 0
	d.HandleDownloadEvents(vocab.OperationRegister, func(context.Context, *graphstore.DownloadContext, models.DownloadStatus) error {
		calls++
		return nil
	})

	batch := models.DeltaBatch{
		statusInsert("http://remote/1", vocab.DownloadSuccess),
		statusInsert("http://remote/1", vocab.DownloadSuccess),
	}
	if err := d.Dispatch(context.Background(), batch); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if calls != 1 {
		t.Fatalf("handler called %d times, want 1", calls)
	}
}

func TestDispatchTaskReadyOnlyWhenStillScheduled(t *testing.T) {
	resolver := &fakeResolver{tasks: map[string]*graphstore.TaskContext{
		"http://task/scheduled": {Task: "http://task/scheduled", Status: models.TaskScheduled, Operation: vocab.OperationImport},
		"http://task/busy":      {Task: "http://task/busy", Status: models.TaskBusy, Operation: vocab.OperationImport},
	}}
	d := NewDispatcher(resolver, nil)

	var started []string
	d.HandleTaskReady(vocab.OperationImport, func(_ context.Context, tc *graphstore.TaskContext) error {
		started = append(started, tc.Task)
		return nil
	})

	batch := models.DeltaBatch{
		statusInsert("http://task/scheduled", vocab.TaskScheduled),
		statusInsert("http://task/busy", vocab.TaskScheduled),
	}
	if err := d.Dispatch(context.Background(), batch); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(started) != 1 || started[0] != "http://task/scheduled" {
		t.Fatalf("started = %v, want only the still-scheduled task", started)
	}
}

func TestDispatchSwallowsStoredErrors(t *testing.T) {
	resolver := &fakeResolver{downloads: map[string]*graphstore.DownloadContext{
		"http://remote/stored":   {Task: "http://task/1", Operation: vocab.OperationRegister},
		"http://remote/unstored": {Task: "http://task/2", Operation: vocab.OperationImport},
	}}
	d := NewDispatcher(resolver, nil)

	d.HandleDownloadEvents(vocab.OperationRegister, func(context.Context, *graphstore.DownloadContext, models.DownloadStatus) error {
		return &StoredError{Job: "http://job/1", Err: errors.New("recorded already")}
	})
	boom := errors.New("store unreachable")
	d.HandleDownloadEvents(vocab.OperationImport, func(context.Context, *graphstore.DownloadContext, models.DownloadStatus) error {
		return boom
	})

	batch := models.DeltaBatch{
		statusInsert("http://remote/stored", vocab.DownloadFailure),
		statusInsert("http://remote/unstored", vocab.DownloadFailure),
	}
	err := d.Dispatch(context.Background(), batch)
	if !errors.Is(err, boom) {
		t.Fatalf("dispatch = %v, want the unstored failure", err)
	}
	if AlreadyStored(err) {
		t.Fatal("stored failure leaked out of the dispatcher")
	}
}
