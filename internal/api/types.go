package api

import (
	"encoding/json"
	"fmt"
	"time"
)

// Task mirrors the task payload served under /api/task.
type Task struct {
	ID          int64  `json:"id"`
	Text        string `json:"text,omitempty"`
	IsDeleted   bool   `json:"is_deleted"`
	IsCompleted bool   `json:"is_completed"`
	DeletedAt   string `json:"deleted_at,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
	DueAt       string `json:"due_at,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	GroupID     *int64 `json:"group_id,omitempty"`
}

// EntityID implements the store's identity constraint.
func (t Task) EntityID() int64 { return t.ID }

// Deleted reports the soft-delete flag.
func (t Task) Deleted() bool { return t.IsDeleted }

// ParsedDueAt returns the due timestamp, or the zero time when unset.
func (t Task) ParsedDueAt() time.Time { return ParseTime(t.DueAt) }

// ParsedDeletedAt returns the soft-delete timestamp.
func (t Task) ParsedDeletedAt() time.Time { return ParseTime(t.DeletedAt) }

// ParsedCompletedAt returns the completion timestamp.
func (t Task) ParsedCompletedAt() time.Time { return ParseTime(t.CompletedAt) }

// ParsedCreatedAt returns the creation timestamp.
func (t Task) ParsedCreatedAt() time.Time { return ParseTime(t.CreatedAt) }

// InGroup reports whether the task belongs to groupID.
func (t Task) InGroup(groupID int64) bool {
	return t.GroupID != nil && *t.GroupID == groupID
}

// Clone returns a copy that shares no memory with t.
func (t Task) Clone() Task {
	dup := t
	if t.GroupID != nil {
		id := *t.GroupID
		dup.GroupID = &id
	}
	return dup
}

// Merge overlays the fields present in raw onto a copy of t. Fields the
// server left out keep their local values; the id never changes.
func (t Task) Merge(raw json.RawMessage) (Task, error) {
	merged := t.Clone()
	if err := mergeJSON(raw, &merged); err != nil {
		return t, err
	}
	merged.ID = t.ID
	return merged, nil
}

// Group mirrors the group payload served under /api/group.
type Group struct {
	ID          int64  `json:"id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	IsDeleted   bool   `json:"is_deleted"`
	DeletedAt   string `json:"deleted_at,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
	Tasks       []Task `json:"tasks,omitempty"`
}

// EntityID implements the store's identity constraint.
func (g Group) EntityID() int64 { return g.ID }

// Deleted reports the soft-delete flag.
func (g Group) Deleted() bool { return g.IsDeleted }

// ParsedDeletedAt returns the soft-delete timestamp.
func (g Group) ParsedDeletedAt() time.Time { return ParseTime(g.DeletedAt) }

// ParsedUpdatedAt returns the last update timestamp.
func (g Group) ParsedUpdatedAt() time.Time { return ParseTime(g.UpdatedAt) }

// Clone returns a deep copy of g.
func (g Group) Clone() Group {
	dup := g
	if g.Tasks != nil {
		dup.Tasks = make([]Task, len(g.Tasks))
		for i, task := range g.Tasks {
			dup.Tasks[i] = task.Clone()
		}
	}
	return dup
}

// Merge overlays the fields present in raw onto a copy of g. A tasks array
// in raw replaces the local one outright.
func (g Group) Merge(raw json.RawMessage) (Group, error) {
	merged := g.Clone()
	if hasKey(raw, "tasks") {
		merged.Tasks = nil
	}
	if err := mergeJSON(raw, &merged); err != nil {
		return g, err
	}
	merged.ID = g.ID
	return merged, nil
}

// User is the account behind the current session.
type User struct {
	ID        int64   `json:"id,omitempty"`
	Username  string  `json:"username"`
	CreatedAt string  `json:"created_at,omitempty"`
	Emails    []Email `json:"emails,omitempty"`
}

// Email is an address attached to a user.
type Email struct {
	ID         int64  `json:"id,omitempty"`
	Email      string `json:"email"`
	IsVerified bool   `json:"is_verified"`
	UserID     int64  `json:"user_id"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// TaskDraft is the body of POST /api/task/.
type TaskDraft struct {
	Text    string `json:"text"`
	DueAt   string `json:"due_at,omitempty"`
	GroupID *int64 `json:"group_id,omitempty"`
}

// TaskChanges is a partial task update; nil fields are not sent.
type TaskChanges struct {
	Text    *string `json:"text,omitempty"`
	DueAt   *string `json:"due_at,omitempty"`
	GroupID *int64  `json:"group_id,omitempty"`
}

// GroupDraft is the body of POST /api/group/.
type GroupDraft struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// GroupChanges is a partial group update; nil fields are not sent.
type GroupChanges struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// hasKey reports whether raw is a JSON object with the top-level key.
func hasKey(raw json.RawMessage, key string) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false
	}
	_, ok := fields[key]
	return ok
}

func mergeJSON(raw json.RawMessage, dest any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("merge response: %w", err)
	}
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses the timestamp formats the backend emits. Values without
// a zone are read as UTC. Empty or unparseable input yields the zero time.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
