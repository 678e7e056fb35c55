package models

import (
	"errors"
	"testing"

	"submission-harvester/internal/vocab"
)

func TestNextTaskStatusTable(t *testing.T) {
	cases := []struct {
		current TaskStatus
		event   DownloadStatus
		want    TaskStatus
		wantErr bool
	}{
		{TaskScheduled, DownloadOngoing, TaskBusy, false},
		{TaskScheduled, DownloadSuccess, TaskSuccess, false},
		{TaskBusy, DownloadSuccess, TaskSuccess, false},
		{TaskScheduled, DownloadFailure, TaskFailed, false},
		{TaskBusy, DownloadFailure, TaskFailed, false},
		{TaskBusy, DownloadOngoing, "", true},
		{TaskSuccess, DownloadSuccess, "", true},
		{TaskSuccess, DownloadFailure, "", true},
		{TaskFailed, DownloadSuccess, "", true},
		{TaskFailed, DownloadOngoing, "", true},
		{TaskScheduled, DownloadReady, "", true},
		{TaskScheduled, DownloadScheduled, "", true},
	}
	for _, c := range cases {
		got, err := NextTaskStatus(c.current, c.event)
		if c.wantErr {
			if !errors.Is(err, ErrTransitionNotAllowed) {
				t.Fatalf("%s x %s: want ErrTransitionNotAllowed, got %v", c.current, c.event, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s x %s: unexpected error %v", c.current, c.event, err)
		}
		if got != c.want {
			t.Fatalf("%s x %s: got %s want %s", c.current, c.event, got, c.want)
		}
	}
}

func TestSecondOngoingIsRejected(t *testing.T) {
	// First ongoing moves the task to busy.
	next, err := NextTaskStatus(TaskScheduled, DownloadOngoing)
	if err != nil || next != TaskBusy {
		t.Fatalf("first ongoing: got %s, %v", next, err)
	}
	// A duplicate ongoing against the now-busy task is a no-op signal.
	if _, err := NextTaskStatus(next, DownloadOngoing); !errors.Is(err, ErrTransitionNotAllowed) {
		t.Fatalf("second ongoing: want ErrTransitionNotAllowed, got %v", err)
	}
}

func TestTerminal(t *testing.T) {
	if TaskBusy.Terminal() || TaskScheduled.Terminal() {
		t.Fatal("scheduled/busy must not be terminal")
	}
	if !TaskSuccess.Terminal() || !TaskFailed.Terminal() {
		t.Fatal("success/failed must be terminal")
	}
	if DownloadOngoing.Terminal() || DownloadScheduled.Terminal() {
		t.Fatal("ongoing/scheduled downloads must not be terminal")
	}
	if !DownloadSuccess.Terminal() || !DownloadFailure.Terminal() {
		t.Fatal("success/failure downloads must be terminal")
	}
}

func TestParseStatusVocabularies(t *testing.T) {
	if s, ok := ParseTaskStatus(vocab.TaskBusy); !ok || s != TaskBusy {
		t.Fatalf("parse task busy: %v %v", s, ok)
	}
	if _, ok := ParseTaskStatus(vocab.DownloadFailure); ok {
		t.Fatal("download failure must not parse as a task status")
	}
	if s, ok := ParseDownloadStatus(vocab.DownloadScheduled); !ok || s != DownloadScheduled {
		t.Fatalf("parse download scheduled: %v %v", s, ok)
	}
	if _, ok := ParseDownloadStatus("http://example.org/nope"); ok {
		t.Fatal("unknown URI must not parse")
	}
}
