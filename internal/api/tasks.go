package api

import (
	"context"
	"encoding/json"
	"fmt"
)

const (
	taskBase  = "/api/task/"
	groupBase = "/api/group/"
)

// ListTasks returns every task of the current user, soft-deleted ones
// included.
func (c *Client) ListTasks(ctx context.Context) ([]Task, error) {
	var tasks []Task
	if err := c.Get(ctx, taskBase, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// CreateTask creates a task and returns the server's representation, with
// its assigned id and timestamps.
func (c *Client) CreateTask(ctx context.Context, draft TaskDraft) (Task, error) {
	var task Task
	if err := c.Post(ctx, taskBase, draft, &task); err != nil {
		return Task{}, err
	}
	if task.ID == 0 {
		return Task{}, Classify(fmt.Errorf("create task: response has no id"))
	}
	return task, nil
}

// UpdateTask sends a partial update. The raw response is returned so the
// caller can overlay exactly the fields the server sent.
func (c *Client) UpdateTask(ctx context.Context, id int64, changes TaskChanges) (json.RawMessage, error) {
	return c.patchRaw(ctx, entityPath(taskBase, "", id), changes)
}

// CompleteTask marks a task completed.
func (c *Client) CompleteTask(ctx context.Context, id int64) (json.RawMessage, error) {
	return c.patchRaw(ctx, entityPath(taskBase, "complete", id), struct{}{})
}

// UncompleteTask clears a task's completed flag.
func (c *Client) UncompleteTask(ctx context.Context, id int64) (json.RawMessage, error) {
	return c.patchRaw(ctx, entityPath(taskBase, "uncomplete", id), struct{}{})
}

// DeleteTask soft-deletes a task; it moves to the trash.
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.Delete(ctx, entityPath(taskBase, "", id), nil)
}

// RestoreTask brings a task back from the trash.
func (c *Client) RestoreTask(ctx context.Context, id int64) (json.RawMessage, error) {
	return c.patchRaw(ctx, entityPath(taskBase, "restore", id), struct{}{})
}

// PermanentDeleteTask removes a trashed task for good.
func (c *Client) PermanentDeleteTask(ctx context.Context, id int64) error {
	return c.Patch(ctx, entityPath(taskBase, "permanent-delete", id), struct{}{}, nil)
}

func (c *Client) patchRaw(ctx context.Context, path string, body any) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.Patch(ctx, path, body, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// entityPath builds base[action/]id, e.g. /api/task/complete/5.
func entityPath(base, action string, id int64) string {
	if action == "" {
		return fmt.Sprintf("%s%d", base, id)
	}
	return fmt.Sprintf("%s%s/%d", base, action, id)
}

// HasEntityID reports whether raw is a JSON object carrying a non-zero id,
// as opposed to a bare acknowledgement like {"message": "ok"}.
func HasEntityID(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var probe struct {
		ID int64 `json:"id"`
	}
	return json.Unmarshal(raw, &probe) == nil && probe.ID != 0
}
