package models

import (
	"errors"

	"submission-harvester/internal/vocab"
)

// ErrTransitionNotAllowed signals a recognized status that is not legal from
// the current state. Callers decide whether that is a duplicate delivery
// (expected under at-least-once notification) or bad input.
var ErrTransitionNotAllowed = errors.New("status transition not allowed")

// TaskStatus is the lifecycle state of a job or task. The values are URIs.
type TaskStatus string

const (
	TaskScheduled TaskStatus = vocab.TaskScheduled
	TaskBusy      TaskStatus = vocab.TaskBusy
	TaskSuccess   TaskStatus = vocab.TaskSuccess
	TaskFailed    TaskStatus = vocab.TaskFailed
)

// Terminal reports whether no further transition is legal.
func (s TaskStatus) Terminal() bool {
	return s == TaskSuccess || s == TaskFailed
}

// ParseTaskStatus maps a status URI onto a TaskStatus.
func ParseTaskStatus(uri string) (TaskStatus, bool) {
	switch TaskStatus(uri) {
	case TaskScheduled, TaskBusy, TaskSuccess, TaskFailed:
		return TaskStatus(uri), true
	}
	return "", false
}

// DownloadStatus is the download agent's parallel vocabulary. Terminal
// success spells the same but failure is a distinct token from the task
// vocabulary's failed.
type DownloadStatus string

const (
	DownloadReady     DownloadStatus = vocab.DownloadReady
	DownloadScheduled DownloadStatus = vocab.DownloadScheduled
	DownloadOngoing   DownloadStatus = vocab.DownloadOngoing
	DownloadSuccess   DownloadStatus = vocab.DownloadSuccess
	DownloadFailure   DownloadStatus = vocab.DownloadFailure
)

// Terminal reports whether the download reached a final state.
func (s DownloadStatus) Terminal() bool {
	return s == DownloadSuccess || s == DownloadFailure
}

// ParseDownloadStatus maps a status URI onto a DownloadStatus.
func ParseDownloadStatus(uri string) (DownloadStatus, bool) {
	switch DownloadStatus(uri) {
	case DownloadReady, DownloadScheduled, DownloadOngoing, DownloadSuccess, DownloadFailure:
		return DownloadStatus(uri), true
	}
	return "", false
}

// NextTaskStatus applies the transition table for a download event hitting a
// task in the given state. A second terminal event, an event against a
// terminal task, or an unrecognized status all yield ErrTransitionNotAllowed.
func NextTaskStatus(current TaskStatus, event DownloadStatus) (TaskStatus, error) {
	switch event {
	case DownloadOngoing:
		if current == TaskScheduled {
			return TaskBusy, nil
		}
	case DownloadSuccess:
		if current == TaskScheduled || current == TaskBusy {
			return TaskSuccess, nil
		}
	case DownloadFailure:
		if current == TaskScheduled || current == TaskBusy {
			return TaskFailed, nil
		}
	}
	return "", ErrTransitionNotAllowed
}
