package state

import (
	"context"
	"encoding/json"

	"github.com/five82/climdo/internal/api"
	"github.com/five82/climdo/internal/observability"
)

// GroupAPI is the subset of *api.Client the group store needs.
type GroupAPI interface {
	ListGroups(ctx context.Context) ([]api.Group, error)
	CreateGroup(ctx context.Context, draft api.GroupDraft) (api.Group, error)
	UpdateGroup(ctx context.Context, id int64, changes api.GroupChanges) (json.RawMessage, error)
	DeleteGroup(ctx context.Context, id int64) error
	RestoreGroup(ctx context.Context, id int64) (json.RawMessage, error)
	PermanentDeleteGroup(ctx context.Context, id int64) error
}

// GroupStore holds the user's groups.
type GroupStore struct {
	Collection[api.Group]
	client GroupAPI
}

// NewGroupStore builds a group store over client. metrics may be nil.
func NewGroupStore(client GroupAPI, metrics *observability.Metrics) *GroupStore {
	s := &GroupStore{client: client}
	s.name = "groups"
	s.metrics = metrics
	return s
}

// Fetch replaces the collection with the server listing.
func (s *GroupStore) Fetch(ctx context.Context) error {
	return s.fetch(ctx, s.client.ListGroups)
}

// Create adds a group once the server has accepted it.
func (s *GroupStore) Create(ctx context.Context, draft api.GroupDraft) (api.Group, error) {
	return s.create(ctx, func(ctx context.Context) (api.Group, error) {
		return s.client.CreateGroup(ctx, draft)
	})
}

// Update applies a partial change and merges the server's answer.
func (s *GroupStore) Update(ctx context.Context, id int64, changes api.GroupChanges) (api.Group, error) {
	return s.patch(ctx, id, func(ctx context.Context) (json.RawMessage, error) {
		return s.client.UpdateGroup(ctx, id, changes)
	}, nil)
}

// Delete soft-deletes a group and drops it from the collection.
func (s *GroupStore) Delete(ctx context.Context, id int64) error {
	return s.remove(ctx, id, func(ctx context.Context) error {
		return s.client.DeleteGroup(ctx, id)
	})
}

// Restore brings a group back from the trash.
func (s *GroupStore) Restore(ctx context.Context, id int64) (api.Group, error) {
	return s.patch(ctx, id, func(ctx context.Context) (json.RawMessage, error) {
		return s.client.RestoreGroup(ctx, id)
	}, func(g api.Group) api.Group {
		g.IsDeleted = false
		g.DeletedAt = ""
		return g
	})
}

// PermanentDelete removes a group for good.
func (s *GroupStore) PermanentDelete(ctx context.Context, id int64) error {
	return s.remove(ctx, id, func(ctx context.Context) error {
		return s.client.PermanentDeleteGroup(ctx, id)
	})
}

// Active returns the groups not in the trash.
func (s *GroupStore) Active() []api.Group {
	snap := s.Snapshot()
	out := snap.Items[:0]
	for _, g := range snap.Items {
		if !g.Deleted() {
			out = append(out, g)
		}
	}
	return out
}
