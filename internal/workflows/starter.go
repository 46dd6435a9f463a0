package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"

	"github.com/samirrijal/trailmap/internal/core/domain"
)

// TaskQueue is the default queue the submission worker polls.
const TaskQueue = "location-submissions"

// Starter implements ports.SubmissionStarter with a Temporal client.
type Starter struct {
	client    client.Client
	taskQueue string
}

// NewStarter creates a Starter. An empty taskQueue means TaskQueue.
func NewStarter(c client.Client, taskQueue string) *Starter {
	if taskQueue == "" {
		taskQueue = TaskQueue
	}
	return &Starter{client: c, taskQueue: taskQueue}
}

// StartSubmission starts SubmissionWorkflow for loc and returns the run id.
// Resubmitting the same location id while a run is open joins that run.
func (s *Starter) StartSubmission(ctx context.Context, loc *domain.Location, sessionID string) (string, error) {
	run, err := s.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "location-submission-" + loc.ID,
		TaskQueue: s.taskQueue,
	}, SubmissionWorkflow, SubmissionInput{Location: *loc, SessionID: sessionID})
	if err != nil {
		return "", fmt.Errorf("execute workflow: %w", err)
	}
	return run.GetRunID(), nil
}
