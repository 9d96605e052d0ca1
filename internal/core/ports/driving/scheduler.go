package driving

import "context"

// Scheduler starts ingestion runs in the background, on a schedule or when
// a source reports changes.
type Scheduler interface {
	// Start registers the schedule and starts watching. It does not block.
	Start(ctx context.Context) error

	// Stop stops scheduling and waits for the scheduler's goroutines.
	// Runs already started are not interrupted.
	Stop()
}
