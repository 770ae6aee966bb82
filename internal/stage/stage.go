// Package stage carries typed results between pipeline stages and guards
// against consuming half-written oracle output. Completion is signalled by
// a marker file written after an atomic rename, never by bare file
// existence.
package stage

import (
	"context"
	"fmt"
	"os"
	"time"
)

// Result is the handle a completed stage passes downstream.
type Result struct {
	Stage      string `json:"stage"`
	Artifact   string `json:"artifact"`
	Accepted   int    `json:"accepted"`
	Rejected   int    `json:"rejected"`
	Malformed  int    `json:"malformed"`
	Violations int    `json:"violations"`
}

// MissingArtifactError reports an upstream artifact that never became
// ready within the retry budget.
type MissingArtifactError struct {
	Stage    string
	Artifact string
	Attempts int
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("stage %s: artifact %s not ready after %d attempts", e.Stage, e.Artifact, e.Attempts)
}

// markerSuffix distinguishes the completion marker from the artifact.
const markerSuffix = ".done"

// MarkerPath returns the completion-marker path for an artifact.
func MarkerPath(artifact string) string { return artifact + markerSuffix }

// MarkComplete writes the completion marker for an artifact. Callers mark
// only after the artifact itself has been atomically renamed into place.
func MarkComplete(artifact string) error {
	return os.WriteFile(MarkerPath(artifact), []byte(time.Now().UTC().Format(time.RFC3339)+"\n"), 0o644)
}

// ClearMarker removes an artifact's completion marker, if present.
func ClearMarker(artifact string) error {
	err := os.Remove(MarkerPath(artifact))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Ready reports whether an artifact is safe to consume: marker present and
// the artifact non-empty. Wrapped tools write output incrementally, so an
// unmarked file is treated as absent.
func Ready(artifact string) bool {
	if _, err := os.Stat(MarkerPath(artifact)); err != nil {
		return false
	}
	info, err := os.Stat(artifact)
	if err != nil {
		return false
	}
	return info.Size() > 0
}

// WaitOptions bounds the artifact wait.
type WaitOptions struct {
	Attempts int           // total checks before giving up
	Initial  time.Duration // first backoff interval
	Max      time.Duration // backoff cap
}

// DefaultWaitOptions doubles from one second up to a thirty-second cap.
func DefaultWaitOptions() WaitOptions {
	return WaitOptions{Attempts: 10, Initial: time.Second, Max: 30 * time.Second}
}

// WaitForArtifact blocks until the artifact is ready, backing off
// exponentially between checks. It returns a MissingArtifactError once the
// attempt budget is spent, or the context error on cancellation.
func WaitForArtifact(ctx context.Context, stage, artifact string, opt WaitOptions) error {
	if opt.Attempts < 1 {
		opt.Attempts = 1
	}
	if opt.Initial <= 0 {
		opt.Initial = time.Second
	}
	delay := opt.Initial
	for attempt := 1; ; attempt++ {
		if Ready(artifact) {
			return nil
		}
		if attempt >= opt.Attempts {
			return &MissingArtifactError{Stage: stage, Artifact: artifact, Attempts: attempt}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if opt.Max > 0 && delay > opt.Max {
			delay = opt.Max
		}
	}
}
