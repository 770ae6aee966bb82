package stage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeArtifact(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReady(t *testing.T) {
	dir := t.TempDir()

	missing := filepath.Join(dir, "absent.tsv")
	if Ready(missing) {
		t.Error("absent artifact must not be ready")
	}

	unmarked := writeArtifact(t, dir, "unmarked.tsv", "data\n")
	if Ready(unmarked) {
		t.Error("artifact without marker must not be ready")
	}

	empty := writeArtifact(t, dir, "empty.tsv", "")
	if err := MarkComplete(empty); err != nil {
		t.Fatal(err)
	}
	if Ready(empty) {
		t.Error("empty artifact must not be ready even with marker")
	}

	good := writeArtifact(t, dir, "good.tsv", "data\n")
	if err := MarkComplete(good); err != nil {
		t.Fatal(err)
	}
	if !Ready(good) {
		t.Error("marked non-empty artifact must be ready")
	}

	if err := ClearMarker(good); err != nil {
		t.Fatal(err)
	}
	if Ready(good) {
		t.Error("cleared marker must unready the artifact")
	}
	// Clearing twice is fine.
	if err := ClearMarker(good); err != nil {
		t.Errorf("second clear: %v", err)
	}
}

func TestMarkerPath(t *testing.T) {
	if got := MarkerPath("/out/merged.tsv"); got != "/out/merged.tsv.done" {
		t.Errorf("MarkerPath = %q", got)
	}
}

func TestWaitForArtifactImmediate(t *testing.T) {
	dir := t.TempDir()
	good := writeArtifact(t, dir, "a.tsv", "x\n")
	if err := MarkComplete(good); err != nil {
		t.Fatal(err)
	}
	opt := WaitOptions{Attempts: 3, Initial: time.Millisecond, Max: time.Millisecond}
	if err := WaitForArtifact(context.Background(), "merge", good, opt); err != nil {
		t.Errorf("ready artifact should not wait: %v", err)
	}
}

func TestWaitForArtifactExhaustsBudget(t *testing.T) {
	dir := t.TempDir()
	opt := WaitOptions{Attempts: 4, Initial: time.Millisecond, Max: 2 * time.Millisecond}
	err := WaitForArtifact(context.Background(), "filter", filepath.Join(dir, "never.tsv"), opt)
	var me *MissingArtifactError
	if !errors.As(err, &me) {
		t.Fatalf("expected MissingArtifactError, got %v", err)
	}
	if me.Stage != "filter" || me.Attempts != 4 {
		t.Errorf("error detail: %+v", me)
	}
}

func TestWaitForArtifactAppearsLate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "late.tsv")
	go func() {
		time.Sleep(5 * time.Millisecond)
		os.WriteFile(path, []byte("x\n"), 0o644)
		MarkComplete(path)
	}()
	opt := WaitOptions{Attempts: 50, Initial: time.Millisecond, Max: 2 * time.Millisecond}
	if err := WaitForArtifact(context.Background(), "merge", path, opt); err != nil {
		t.Errorf("late artifact should be picked up: %v", err)
	}
}

func TestWaitForArtifactCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opt := WaitOptions{Attempts: 10, Initial: 10 * time.Second}
	err := WaitForArtifact(ctx, "merge", filepath.Join(t.TempDir(), "never.tsv"), opt)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
