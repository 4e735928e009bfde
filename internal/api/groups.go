package api

import (
	"context"
	"encoding/json"
	"fmt"
)

// ListGroups returns every group, soft-deleted ones included.
func (c *Client) ListGroups(ctx context.Context) ([]Group, error) {
	var groups []Group
	if err := c.Get(ctx, groupBase, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// CreateGroup creates a group.
func (c *Client) CreateGroup(ctx context.Context, draft GroupDraft) (Group, error) {
	var group Group
	if err := c.Post(ctx, groupBase, draft, &group); err != nil {
		return Group{}, err
	}
	if group.ID == 0 {
		return Group{}, Classify(fmt.Errorf("create group: response has no id"))
	}
	return group, nil
}

// UpdateGroup sends a partial group update.
func (c *Client) UpdateGroup(ctx context.Context, id int64, changes GroupChanges) (json.RawMessage, error) {
	return c.patchRaw(ctx, entityPath(groupBase, "", id), changes)
}

// DeleteGroup soft-deletes a group.
func (c *Client) DeleteGroup(ctx context.Context, id int64) error {
	return c.Delete(ctx, entityPath(groupBase, "", id), nil)
}

// RestoreGroup brings a group back from the trash.
func (c *Client) RestoreGroup(ctx context.Context, id int64) (json.RawMessage, error) {
	return c.patchRaw(ctx, entityPath(groupBase, "restore", id), struct{}{})
}

// PermanentDeleteGroup removes a trashed group for good.
func (c *Client) PermanentDeleteGroup(ctx context.Context, id int64) error {
	return c.Patch(ctx, entityPath(groupBase, "permanent-delete", id), struct{}{}, nil)
}
