// Package task holds the authoritative in-memory map of download tasks,
// mirrored to a persistent store on every mutation.
package task

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vidgrab/vidgrab/internal/classify"
	"github.com/vidgrab/vidgrab/internal/model"
)

// Persister is the durable mirror the registry writes through to.
type Persister interface {
	Upsert(*model.Task) error
}

// Registry owns the in-memory task map. It is the single source of truth
// for the running process; persistence failures are logged, never fatal.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*model.Task
	byKey map[string]string // request key -> task id
	store Persister
	log   *slog.Logger
}

func NewRegistry(store Persister, log *slog.Logger) *Registry {
	return &Registry{
		tasks: make(map[string]*model.Task),
		byKey: make(map[string]string),
		store: store,
		log:   log,
	}
}

// Load repopulates the registry from tasks read back at startup. Tasks
// persisted in a non-terminal state belonged to a worker that died with the
// previous process; they are marked failed so their request key is
// admissible again.
func (r *Registry) Load(tasks []*model.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range tasks {
		if !t.Status.IsTerminal() {
			t.Status = model.StatusFailed
			t.Progress = nil
			t.Error = classify.Interrupted(classify.RequestContext(t.Request))
			t.UpdatedAt = time.Now()
			r.persist(t)
			r.log.Warn("recovered interrupted task as failed", "id", t.ID, "url", t.Request.URL)
		}
		r.tasks[t.ID] = t
		r.index(t)
	}
}

// Submit returns the id of an equivalent live task if one exists, otherwise
// allocates a new pending task and persists it. The returned bool is true
// when an existing task was reused.
func (r *Registry) Submit(req model.Request) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := req.Key()
	if id, ok := r.byKey[key]; ok {
		if t, ok := r.tasks[id]; ok && t.Status != model.StatusFailed {
			return id, true
		}
	}

	now := time.Now()
	t := &model.Task{
		ID:        uuid.New().String(),
		Request:   req,
		Status:    model.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.tasks[t.ID] = t
	r.byKey[key] = t.ID
	r.persist(t)
	return t.ID, false
}

// Get returns a snapshot of the task, or false if the id is unknown.
func (r *Registry) Get(id string) (*model.Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// List returns snapshots of all known tasks, in no particular order.
func (r *Registry) List() []*model.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t.Clone())
	}
	return out
}

// UpdateProgress replaces the progress snapshot of an in-flight task.
// Unknown ids and terminal tasks are ignored: a late progress event must
// not resurrect a finished task.
func (r *Registry) UpdateProgress(id string, p *model.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.Status.IsTerminal() {
		return
	}
	t.Progress = p
	t.UpdatedAt = time.Now()
	r.persist(t)
}

// UpdateStatus moves the task forward along its lifecycle, attaching the
// result or error record where given. Backward transitions, transitions out
// of a terminal state, and unknown ids are rejected.
func (r *Registry) UpdateStatus(id string, status model.Status, result *model.Result, errRec *model.ErrorRecord) error {
	if result != nil && errRec != nil {
		return fmt.Errorf("task %s: result and error are mutually exclusive", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: unknown id", id)
	}
	if !t.Status.CanTransitionTo(status) {
		return fmt.Errorf("task %s: invalid transition %s -> %s", id, t.Status, status)
	}

	t.Status = status
	if result != nil {
		t.Result = result
	}
	if errRec != nil {
		t.Error = errRec
	}
	if status.IsTerminal() {
		// The outcome is now authoritative.
		t.Progress = nil
	}
	t.UpdatedAt = time.Now()
	r.persist(t)
	return nil
}

// persist mirrors the task to the store. The registry stays authoritative
// for the running process, so a store failure is logged and swallowed
// rather than failing the caller.
func (r *Registry) persist(t *model.Task) {
	if err := r.store.Upsert(t); err != nil {
		r.log.Error("persist task failed", "id", t.ID, "error", err)
	}
}

func (r *Registry) index(t *model.Task) {
	key := t.Request.Key()
	if id, ok := r.byKey[key]; ok {
		// Prefer a live task over a failed one for dedup lookups.
		if cur, ok := r.tasks[id]; ok && cur.Status != model.StatusFailed {
			return
		}
	}
	r.byKey[key] = t.ID
}
