package state

import (
	"context"
	"encoding/json"
	"time"

	"github.com/five82/climdo/internal/api"
	"github.com/five82/climdo/internal/observability"
)

// TaskAPI is the subset of *api.Client the task store needs.
type TaskAPI interface {
	ListTasks(ctx context.Context) ([]api.Task, error)
	CreateTask(ctx context.Context, draft api.TaskDraft) (api.Task, error)
	UpdateTask(ctx context.Context, id int64, changes api.TaskChanges) (json.RawMessage, error)
	CompleteTask(ctx context.Context, id int64) (json.RawMessage, error)
	UncompleteTask(ctx context.Context, id int64) (json.RawMessage, error)
	DeleteTask(ctx context.Context, id int64) error
	RestoreTask(ctx context.Context, id int64) (json.RawMessage, error)
	PermanentDeleteTask(ctx context.Context, id int64) error
}

// TaskStore holds the user's tasks.
type TaskStore struct {
	Collection[api.Task]
	client TaskAPI
}

// NewTaskStore builds a task store over client. metrics may be nil.
func NewTaskStore(client TaskAPI, metrics *observability.Metrics) *TaskStore {
	s := &TaskStore{client: client}
	s.name = "tasks"
	s.metrics = metrics
	return s
}

// Fetch replaces the collection with the server listing. On failure the
// previous items are kept.
func (s *TaskStore) Fetch(ctx context.Context) error {
	return s.fetch(ctx, s.client.ListTasks)
}

// Create adds a task once the server has accepted it.
func (s *TaskStore) Create(ctx context.Context, draft api.TaskDraft) (api.Task, error) {
	return s.create(ctx, func(ctx context.Context) (api.Task, error) {
		return s.client.CreateTask(ctx, draft)
	})
}

// Update applies a partial change and merges the server's answer.
func (s *TaskStore) Update(ctx context.Context, id int64, changes api.TaskChanges) (api.Task, error) {
	return s.patch(ctx, id, func(ctx context.Context) (json.RawMessage, error) {
		return s.client.UpdateTask(ctx, id, changes)
	}, nil)
}

// Complete marks a task done.
func (s *TaskStore) Complete(ctx context.Context, id int64) (api.Task, error) {
	return s.patch(ctx, id, func(ctx context.Context) (json.RawMessage, error) {
		return s.client.CompleteTask(ctx, id)
	}, func(t api.Task) api.Task {
		t.IsCompleted = true
		if t.CompletedAt == "" {
			t.CompletedAt = time.Now().UTC().Format(time.RFC3339)
		}
		return t
	})
}

// Uncomplete reopens a task.
func (s *TaskStore) Uncomplete(ctx context.Context, id int64) (api.Task, error) {
	return s.patch(ctx, id, func(ctx context.Context) (json.RawMessage, error) {
		return s.client.UncompleteTask(ctx, id)
	}, func(t api.Task) api.Task {
		t.IsCompleted = false
		t.CompletedAt = ""
		return t
	})
}

// Toggle completes an open task or reopens a completed one.
func (s *TaskStore) Toggle(ctx context.Context, id int64) (api.Task, error) {
	if task, ok := s.Lookup(id); ok && task.IsCompleted {
		return s.Uncomplete(ctx, id)
	}
	return s.Complete(ctx, id)
}

// Delete soft-deletes a task and drops it from the collection.
func (s *TaskStore) Delete(ctx context.Context, id int64) error {
	return s.remove(ctx, id, func(ctx context.Context) error {
		return s.client.DeleteTask(ctx, id)
	})
}

// Restore brings a task back from the trash.
func (s *TaskStore) Restore(ctx context.Context, id int64) (api.Task, error) {
	return s.patch(ctx, id, func(ctx context.Context) (json.RawMessage, error) {
		return s.client.RestoreTask(ctx, id)
	}, func(t api.Task) api.Task {
		t.IsDeleted = false
		t.DeletedAt = ""
		return t
	})
}

// PermanentDelete removes a task for good.
func (s *TaskStore) PermanentDelete(ctx context.Context, id int64) error {
	return s.remove(ctx, id, func(ctx context.Context) error {
		return s.client.PermanentDeleteTask(ctx, id)
	})
}
