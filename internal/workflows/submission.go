package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/trailmap/internal/core/domain"
)

// SubmissionInput is the input for the location submission workflow.
type SubmissionInput struct {
	Location  domain.Location
	SessionID string
}

// SubmissionResult is returned when the location has been stored.
type SubmissionResult struct {
	LocationID string
	Announced  bool
}

// SubmissionWorkflow validates and stores a new location, invalidates the
// cached marker sets and announces the save so open maps reload.
// A failed announcement does not undo the save; maps pick the location up
// on their next move.
func SubmissionWorkflow(ctx workflow.Context, input SubmissionInput) (*SubmissionResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting location submission", "locationID", input.Location.ID)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{ErrTypeInvalidLocation},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// Step 1: Validate
	if err := workflow.ExecuteActivity(ctx, "ValidateLocation", input.Location).Get(ctx, nil); err != nil {
		return nil, err
	}

	// Step 2: Save
	var saved domain.Location
	if err := workflow.ExecuteActivity(ctx, "SaveLocation", input.Location).Get(ctx, &saved); err != nil {
		return nil, err
	}

	// Step 3: Invalidate cached marker sets
	if err := workflow.ExecuteActivity(ctx, "InvalidateMarkers", saved.ID).Get(ctx, nil); err != nil {
		logger.Warn("marker cache invalidation failed", "error", err)
	}

	// Step 4: Announce
	result := &SubmissionResult{LocationID: saved.ID, Announced: true}
	if err := workflow.ExecuteActivity(ctx, "PublishLocationSaved", saved, input.SessionID).Get(ctx, nil); err != nil {
		logger.Warn("location saved announcement failed", "error", err)
		result.Announced = false
	}

	logger.Info("Location submission complete", "locationID", saved.ID)
	return result, nil
}
