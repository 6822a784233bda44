package download

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/vidgrab/vidgrab/internal/classify"
	"github.com/vidgrab/vidgrab/internal/engine"
	"github.com/vidgrab/vidgrab/internal/model"
	"github.com/vidgrab/vidgrab/internal/progress"
	"github.com/vidgrab/vidgrab/internal/task"
)

// Service owns the download lifecycle. It holds only task ids; all state
// lives in the registry.
type Service struct {
	registry *task.Registry
	engine   engine.Engine
	log      *slog.Logger

	mu          sync.Mutex
	maxParallel int
	activeCount int
	running     map[string]bool
}

func NewService(registry *task.Registry, eng engine.Engine, maxParallel int, log *slog.Logger) *Service {
	return &Service{
		registry:    registry,
		engine:      eng,
		log:         log,
		maxParallel: maxParallel,
		running:     make(map[string]bool),
	}
}

// Submit admits a download request. An equivalent pending, downloading or
// completed task short-circuits to its existing id; only failed tasks admit
// a fresh attempt for the same key. New tasks start as soon as a worker
// slot frees up. The returned bool is true when an existing task was reused.
func (s *Service) Submit(req model.Request) (string, bool) {
	id, existing := s.registry.Submit(req)
	if existing {
		// A duplicate never gets a worker, so its transient credential
		// material is released here.
		s.cleanup(req)
		return id, true
	}
	s.dispatch(id)
	return id, false
}

// Probe fetches metadata for a URL without creating a task.
func (s *Service) Probe(ctx context.Context, url string) (*engine.Info, error) {
	return s.engine.Probe(ctx, url)
}

// dispatch claims the task for a worker if there is capacity. At most one
// worker ever runs per task id.
func (s *Service) dispatch(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeCount >= s.maxParallel || s.running[id] {
		return false
	}
	s.running[id] = true
	s.activeCount++
	go s.run(id)
	return true
}

// run executes one task to completion or failure.
func (s *Service) run(id string) {
	defer func() {
		s.mu.Lock()
		delete(s.running, id)
		s.activeCount--
		s.mu.Unlock()
		s.startNextPending()
	}()

	t, ok := s.registry.Get(id)
	if !ok {
		s.log.Error("worker started for unknown task", "id", id)
		return
	}
	req := t.Request

	defer s.cleanup(req)

	if err := s.registry.UpdateStatus(id, model.StatusDownloading, nil, nil); err != nil {
		s.log.Error("start transition rejected", "id", id, "error", err)
		return
	}
	s.log.Info("download started", "id", id, "url", req.URL, "format", req.Format)

	reporter := progress.NewReporter(id, s.registry)
	result, err := s.invoke(req, reporter.Handle)
	if err != nil {
		rec := classify.Classify(err, classify.RequestContext(req))
		if uerr := s.registry.UpdateStatus(id, model.StatusFailed, nil, rec); uerr != nil {
			s.log.Error("fail transition rejected", "id", id, "error", uerr)
		}
		s.log.Warn("download failed", "id", id, "url", req.URL,
			"category", rec.Category, "retry_possible", rec.RetryPossible, "error", err)
		return
	}

	if result == nil {
		result = &model.Result{}
	}
	if uerr := s.registry.UpdateStatus(id, model.StatusCompleted, result, nil); uerr != nil {
		s.log.Error("complete transition rejected", "id", id, "error", uerr)
		return
	}
	s.log.Info("download completed", "id", id, "url", req.URL, "file", result.Filepath)
}

// invoke calls the engine, converting a panic into an error so nothing
// escapes the worker.
func (s *Service) invoke(req model.Request, onProgress func(engine.ProgressEvent)) (result *model.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("engine panic: %v", r)
		}
	}()
	// Once dispatched, a task runs to completion or failure; timeouts are
	// the engine's concern.
	return s.engine.Download(context.Background(), req, onProgress)
}

// cleanup releases per-task temporary resources.
func (s *Service) cleanup(req model.Request) {
	if req.CookieFileTemp && req.CookieFile != "" {
		if err := os.Remove(req.CookieFile); err != nil && !os.IsNotExist(err) {
			s.log.Warn("remove temp cookie file failed", "path", req.CookieFile, "error", err)
		}
	}
}

// startNextPending picks up a pending task once a slot frees.
func (s *Service) startNextPending() {
	for _, t := range s.registry.List() {
		if t.Status == model.StatusPending {
			if s.dispatch(t.ID) {
				return
			}
		}
	}
}
