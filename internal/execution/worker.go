package execution

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/campusgig/backend/internal/repository"
)

// Lifecycle events announced in a task's chat.
const (
	EventApplicationReceived = "application_received"
	EventAssigned            = "assigned"
	EventSubmitted           = "submitted"
	EventCompleted           = "completed"
)

// TransitionNoticeArgs is enqueued in the same transaction as the lifecycle
// change it describes, so a notice exists if and only if the change committed.
type TransitionNoticeArgs struct {
	TaskID uuid.UUID `json:"task_id"`
	Event  string    `json:"event"`
	Rating *int      `json:"rating,omitempty"`
}

func (TransitionNoticeArgs) Kind() string { return "transition_notice" }

// SystemPoster posts a system message into a task's chat.
type SystemPoster interface {
	PostSystem(ctx context.Context, messageID, taskID uuid.UUID, body string) error
}

type TransitionNoticeWorker struct {
	river.WorkerDefaults[TransitionNoticeArgs]
	poster SystemPoster
}

func NewTransitionNoticeWorker(p SystemPoster) *TransitionNoticeWorker {
	return &TransitionNoticeWorker{poster: p}
}

var noticeNamespace = uuid.MustParse("5b0e3c1e-7a5f-4d8e-9a51-2f7f0c6d9b10")

func (w *TransitionNoticeWorker) Work(ctx context.Context, job *river.Job[TransitionNoticeArgs]) error {
	body, err := NoticeText(job.Args)
	if err != nil {
		// Retrying cannot fix an unknown event.
		return river.JobCancel(err)
	}
	// Derived from the job ID so a retried job posts the same message.
	msgID := uuid.NewSHA1(noticeNamespace, []byte(strconv.FormatInt(job.ID, 10)))
	err = w.poster.PostSystem(ctx, msgID, job.Args.TaskID, body)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("post notice for task %s: %w", job.Args.TaskID, err)
	}
	return nil
}

// NoticeText renders the chat line for a lifecycle event.
func NoticeText(args TransitionNoticeArgs) (string, error) {
	switch args.Event {
	case EventApplicationReceived:
		return "New application received", nil
	case EventAssigned:
		return "Task assigned. Budget is held in escrow until completion", nil
	case EventSubmitted:
		return "Work submitted for review", nil
	case EventCompleted:
		if args.Rating != nil {
			return fmt.Sprintf("Task completed (rating %d/5). Payment released", *args.Rating), nil
		}
		return "Task completed. Payment released", nil
	}
	return "", fmt.Errorf("unknown transition event %q", args.Event)
}
