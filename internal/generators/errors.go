package generators

import (
	"errors"
	"fmt"
)

// ErrPollTimeout is the guaranteed backstop: the poll budget ran out without
// the engine ever reporting completion.
var ErrPollTimeout = errors.New("timed out waiting for job completion")

// SubmissionRejectedError is a non-success HTTP response from the engine's
// submit endpoint. Never retried.
type SubmissionRejectedError struct {
	StatusCode int
	Body       string
}

func (e *SubmissionRejectedError) Error() string {
	return fmt.Sprintf("engine rejected job submission: status %d: %s", e.StatusCode, e.Body)
}

// AssetUploadError aborts the run before submission; no partial graph is
// ever sent.
type AssetUploadError struct {
	Slot  string
	Cause error
}

func (e *AssetUploadError) Error() string {
	return fmt.Sprintf("upload of %s asset failed: %v", e.Slot, e.Cause)
}

func (e *AssetUploadError) Unwrap() error { return e.Cause }

// EngineFailureError is an explicit terminal failure status reported by the
// engine for a job. Detection is best effort; timeouts remain the backstop.
type EngineFailureError struct {
	JobID  string
	Status string
}

func (e *EngineFailureError) Error() string {
	return fmt.Sprintf("engine reported failure for job %s: %s", e.JobID, e.Status)
}
