package store

import (
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/vidgrab/vidgrab/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTask() *model.Task {
	now := time.Now().Truncate(time.Millisecond)
	downloaded := int64(100)
	return &model.Task{
		ID: "task-1",
		Request: model.Request{
			URL:       "https://example.com/v1",
			OutputDir: "/out",
			Format:    "best",
		},
		Status: model.StatusDownloading,
		Progress: &model.Progress{
			DownloadedBytes: &downloaded,
			Percent:         10,
			Stage:           "downloading",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestStore_RoundTrip(t *testing.T) {
	s := openTestStore(t)

	task := sampleTask()
	task.Status = model.StatusCompleted
	task.Progress = nil
	task.Result = &model.Result{Filepath: "/out/video.mp4", Title: "Video", Size: 42}

	if err := s.Upsert(task); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}

	loaded, err := s.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() failed: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("LoadAll() returned %d tasks, expected 1", len(loaded))
	}

	got := loaded[0]
	if got.ID != task.ID || got.Status != task.Status {
		t.Errorf("reloaded id/status = %s/%s, expected %s/%s", got.ID, got.Status, task.ID, task.Status)
	}
	if got.Request != task.Request {
		t.Errorf("reloaded request = %+v, expected %+v", got.Request, task.Request)
	}
	if !reflect.DeepEqual(got.Result, task.Result) {
		t.Errorf("reloaded result = %+v, expected %+v", got.Result, task.Result)
	}
	if got.Error != nil {
		t.Errorf("reloaded error should be absent, got %+v", got.Error)
	}
	if !got.CreatedAt.Equal(task.CreatedAt) || !got.UpdatedAt.Equal(task.UpdatedAt) {
		t.Errorf("timestamps did not round-trip: %v / %v", got.CreatedAt, got.UpdatedAt)
	}
}

func TestStore_RoundTripError(t *testing.T) {
	s := openTestStore(t)

	task := sampleTask()
	task.Status = model.StatusFailed
	task.Progress = nil
	task.Error = &model.ErrorRecord{
		Category:      "network",
		Message:       "connection refused",
		Timestamp:     time.Now().Truncate(time.Millisecond),
		Trace:         "connection refused",
		Context:       map[string]string{"url": "https://example.com/v1"},
		RetryPossible: true,
		Suggestions:   []string{"Check network connectivity and retry"},
	}

	if err := s.Upsert(task); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}

	loaded, err := s.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() failed: %v", err)
	}
	got := loaded[0]
	if got.Error == nil {
		t.Fatal("reloaded error is absent")
	}
	if got.Error.Category != "network" || !got.Error.RetryPossible {
		t.Errorf("reloaded error = %+v", got.Error)
	}
	if !reflect.DeepEqual(got.Error.Suggestions, task.Error.Suggestions) {
		t.Errorf("suggestions did not round-trip: %v", got.Error.Suggestions)
	}
	if got.Result != nil {
		t.Errorf("result should be absent on a failed task, got %+v", got.Result)
	}
}

func TestStore_UpsertReplaces(t *testing.T) {
	s := openTestStore(t)

	task := sampleTask()
	if err := s.Upsert(task); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}

	task.Status = model.StatusCompleted
	task.Progress = nil
	task.Result = &model.Result{Filepath: "/out/video.mp4"}
	if err := s.Upsert(task); err != nil {
		t.Fatalf("second Upsert() failed: %v", err)
	}

	loaded, err := s.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() failed: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected a single row after replace, got %d", len(loaded))
	}
	if loaded[0].Status != model.StatusCompleted {
		t.Errorf("status = %s, expected completed", loaded[0].Status)
	}
	if loaded[0].Progress != nil {
		t.Errorf("progress should have been cleared, got %+v", loaded[0].Progress)
	}
}

func TestStore_SkipsMalformedRows(t *testing.T) {
	s := openTestStore(t)

	if err := s.Upsert(sampleTask()); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}

	// Inject a row with an unparseable result blob and timestamp.
	_, err := s.db.Exec(`INSERT INTO tasks
		(id, url, output_path, format, cookie_file, status, progress, result, error, created_at, updated_at)
		VALUES ('bad', 'u', 'o', 'f', '', 'completed', NULL, '{not json', NULL, 'not-a-time', 'not-a-time')`)
	if err != nil {
		t.Fatalf("inject bad row: %v", err)
	}

	loaded, err := s.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() failed: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected the bad row to be skipped, got %d tasks", len(loaded))
	}
	if loaded[0].ID != "task-1" {
		t.Errorf("wrong surviving row: %s", loaded[0].ID)
	}
}
