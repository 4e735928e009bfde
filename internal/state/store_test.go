package state

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/five82/climdo/internal/api"
	"github.com/five82/climdo/internal/observability"
	"github.com/five82/climdo/internal/session"
	fake "github.com/five82/climdo/internal/testutil"
)

func newBackendClient(t *testing.T) (*fake.Backend, *api.Client) {
	t.Helper()
	backend := fake.NewBackend(t)
	jar, err := session.NewJar(backend.URL())
	if err != nil {
		t.Fatalf("NewJar: %v", err)
	}
	u, _ := url.Parse(backend.URL())
	jar.SetCookies(u, backend.Login())
	client, err := api.New(api.Options{BaseURL: backend.URL(), Cookies: jar})
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	return backend, client
}

func TestTaskStore_CreateThenFetchRoundTrip(t *testing.T) {
	_, client := newBackendClient(t)
	store := NewTaskStore(client, nil)
	ctx := context.Background()

	groupID := int64(7)
	created, err := store.Create(ctx, api.TaskDraft{Text: "file taxes", DueAt: "2026-10-20T09:00:00Z", GroupID: &groupID})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("created task has no id")
	}
	if _, ok := store.Lookup(created.ID); !ok {
		t.Fatal("created task missing before fetch")
	}

	if err := store.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	got, ok := store.Lookup(created.ID)
	if !ok {
		t.Fatal("created task missing after fetch")
	}
	if got.Text != "file taxes" || got.DueAt != "2026-10-20T09:00:00Z" || !got.InGroup(7) {
		t.Fatalf("fetched task = %#v, want the created fields", got)
	}
	if store.Len() != 1 {
		t.Fatalf("Len = %d, want 1", store.Len())
	}
}

func TestTaskStore_CreateFailureAddsNothing(t *testing.T) {
	_, client := newBackendClient(t)
	store := NewTaskStore(client, nil)

	_, err := store.Create(context.Background(), api.TaskDraft{Text: ""})
	if !errors.Is(err, api.KindValidation) {
		t.Fatalf("Create error = %v, want validation", err)
	}
	if store.Len() != 0 {
		t.Fatalf("Len = %d, want 0", store.Len())
	}
	if last := store.LastError(); last == nil || last.Kind != api.KindValidation {
		t.Fatalf("LastError = %v, want validation", last)
	}
}

func TestTaskStore_DeleteThenLookupAbsent(t *testing.T) {
	backend, client := newBackendClient(t)
	seeded := backend.SeedTask(api.Task{Text: "old"})
	store := NewTaskStore(client, nil)
	ctx := context.Background()

	if err := store.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if err := store.Delete(ctx, seeded.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := store.Lookup(seeded.ID); ok {
		t.Fatal("deleted task still present")
	}
	onServer, _ := backend.Task(seeded.ID)
	if !onServer.IsDeleted {
		t.Fatal("server task not soft-deleted")
	}

	// A refetch brings it back as a trashed entity.
	if err := store.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	trashed, ok := store.Lookup(seeded.ID)
	if !ok || !trashed.Deleted() {
		t.Fatalf("refetched task = %#v, want soft-deleted", trashed)
	}

	restored, err := store.Restore(ctx, seeded.ID)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.IsDeleted {
		t.Fatal("restored task still deleted")
	}

	if err := store.PermanentDelete(ctx, seeded.ID); err != nil {
		t.Fatalf("PermanentDelete: %v", err)
	}
	if _, ok := store.Lookup(seeded.ID); ok {
		t.Fatal("purged task still present")
	}
}

func TestTaskStore_CompleteToggle(t *testing.T) {
	backend, client := newBackendClient(t)
	seeded := backend.SeedTask(api.Task{Text: "stretch"})
	store := NewTaskStore(client, nil)
	ctx := context.Background()
	if err := store.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	done, err := store.Toggle(ctx, seeded.ID)
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if !done.IsCompleted || done.CompletedAt == "" {
		t.Fatalf("toggled task = %#v, want completed", done)
	}
	open, err := store.Toggle(ctx, seeded.ID)
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if open.IsCompleted {
		t.Fatal("second toggle did not reopen")
	}
}

func TestTaskStore_FetchFailureKeepsData(t *testing.T) {
	metrics := observability.NewMetrics()
	stub := &stubTasks{list: func() ([]api.Task, error) {
		return []api.Task{{ID: 1, Text: "keep me"}}, nil
	}}
	store := NewTaskStore(stub, metrics)
	ctx := context.Background()

	if err := store.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	first := store.Snapshot()

	stub.list = func() ([]api.Task, error) {
		return nil, &api.HTTPError{Method: "GET", Path: "/api/task/", Status: 503}
	}
	for range 2 {
		err := store.Fetch(ctx)
		if !errors.Is(err, api.KindServer) {
			t.Fatalf("Fetch error = %v, want server", err)
		}
	}

	snap := store.Snapshot()
	if len(snap.Items) != 1 || snap.Items[0].Text != "keep me" {
		t.Fatalf("items = %#v, want previous data", snap.Items)
	}
	if snap.LastError == nil || snap.LastError.Kind != api.KindServer {
		t.Fatalf("LastError = %v, want server error", snap.LastError)
	}
	if !snap.IsOffline() || snap.ConsecutiveFailures != 2 {
		t.Fatalf("ConsecutiveFailures = %d, want 2 and offline", snap.ConsecutiveFailures)
	}
	if snap.LastUpdated.Before(first.LastUpdated) {
		t.Fatal("LastUpdated went backwards")
	}
	if got := testutil.ToFloat64(metrics.StoreErrorsByKind.WithLabelValues("tasks", "server")); got != 2 {
		t.Fatalf("store error metric = %v, want 2", got)
	}

	store.ClearError()
	if store.LastError() != nil {
		t.Fatal("ClearError left the error in place")
	}

	stub.list = func() ([]api.Task, error) { return []api.Task{}, nil }
	if err := store.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if snap := store.Snapshot(); snap.ConsecutiveFailures != 0 || len(snap.Items) != 0 {
		t.Fatalf("snapshot after recovery = %#v", snap)
	}
}

func TestTaskStore_UpdateMergesPartialResponse(t *testing.T) {
	stub := &stubTasks{
		list: func() ([]api.Task, error) {
			return []api.Task{{ID: 3, Text: "draft", DueAt: "2026-10-15", CreatedAt: "2026-10-01"}}, nil
		},
		update: func(id int64, _ api.TaskChanges) (json.RawMessage, error) {
			return json.RawMessage(`{"id":3,"text":"final"}`), nil
		},
	}
	store := NewTaskStore(stub, nil)
	ctx := context.Background()
	if err := store.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	text := "final"
	got, err := store.Update(ctx, 3, api.TaskChanges{Text: &text})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Text != "final" || got.DueAt != "2026-10-15" || got.CreatedAt != "2026-10-01" {
		t.Fatalf("merged = %#v, want text replaced and the rest kept", got)
	}
}

func TestGroupStore_UpdateReplacesNestedTasks(t *testing.T) {
	stub := &stubGroups{
		list: func() ([]api.Group, error) {
			return []api.Group{{ID: 1, Name: "Home", Tasks: []api.Task{
				{ID: 10, Text: "a", DueAt: "2024-01-01"},
				{ID: 11, Text: "b"},
			}}}, nil
		},
		update: func(int64, api.GroupChanges) (json.RawMessage, error) {
			return json.RawMessage(`{"id":1,"name":"House","tasks":[{"id":11,"text":"b"}]}`), nil
		},
		restore: func(int64) (json.RawMessage, error) {
			return json.RawMessage(`{"id":1,"is_deleted":false}`), nil
		},
	}
	store := NewGroupStore(stub, nil)
	ctx := context.Background()
	if err := store.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	name := "House"
	got, err := store.Update(ctx, 1, api.GroupChanges{Name: &name})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(got.Tasks) != 1 || got.Tasks[0].ID != 11 || got.Tasks[0].DueAt != "" {
		t.Fatalf("tasks = %#v, want only task 11 without a due date", got.Tasks)
	}
	stored, _ := store.Lookup(1)
	if stored.Name != "House" || len(stored.Tasks) != 1 || stored.Tasks[0].DueAt != "" {
		t.Fatalf("stored = %#v, want the server's tasks", stored)
	}

	// A response without tasks keeps the local ones.
	restored, err := store.Restore(ctx, 1)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if len(restored.Tasks) != 1 || restored.Tasks[0].ID != 11 {
		t.Fatalf("restored tasks = %#v, want task 11 kept", restored.Tasks)
	}
}

func TestTaskStore_ConcurrentUpdatesLastResponseWins(t *testing.T) {
	slowRelease := make(chan struct{})
	fastDone := make(chan struct{})
	stub := &stubTasks{
		list: func() ([]api.Task, error) { return []api.Task{{ID: 9, Text: "start"}}, nil },
		update: func(_ int64, changes api.TaskChanges) (json.RawMessage, error) {
			if *changes.Text == "slow" {
				<-slowRelease
			}
			return json.RawMessage(`{"id":9,"text":"` + *changes.Text + `"}`), nil
		},
	}
	store := NewTaskStore(stub, nil)
	ctx := context.Background()
	if err := store.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		slow := "slow"
		if _, err := store.Update(ctx, 9, api.TaskChanges{Text: &slow}); err != nil {
			t.Errorf("slow Update: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		defer close(fastDone)
		fast := "fast"
		if _, err := store.Update(ctx, 9, api.TaskChanges{Text: &fast}); err != nil {
			t.Errorf("fast Update: %v", err)
		}
	}()

	<-fastDone
	if got, _ := store.Lookup(9); got.Text != "fast" {
		t.Fatalf("after fast response text = %q, want fast", got.Text)
	}
	close(slowRelease)
	wg.Wait()

	if got, _ := store.Lookup(9); got.Text != "slow" {
		t.Fatalf("final text = %q, want the later response (slow)", got.Text)
	}
}

func TestTaskStore_RestoreWithBareAcknowledgement(t *testing.T) {
	stub := &stubTasks{
		list: func() ([]api.Task, error) {
			return []api.Task{{ID: 4, Text: "trashed", IsDeleted: true, DeletedAt: "2026-10-01T00:00:00Z"}}, nil
		},
		restore: func(int64) (json.RawMessage, error) { return json.RawMessage(`{"message":"restored"}`), nil },
	}
	store := NewTaskStore(stub, nil)
	ctx := context.Background()
	if err := store.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	got, err := store.Restore(ctx, 4)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got.IsDeleted || got.DeletedAt != "" || got.Text != "trashed" {
		t.Fatalf("restored = %#v, want deleted flag cleared", got)
	}
}

func TestTaskStore_SnapshotIsDeepCopy(t *testing.T) {
	groupID := int64(1)
	stub := &stubTasks{list: func() ([]api.Task, error) {
		return []api.Task{{ID: 1, Text: "a", GroupID: &groupID}}, nil
	}}
	store := NewTaskStore(stub, nil)
	if err := store.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	snap := store.Snapshot()
	snap.Items[0].Text = "mutated"
	*snap.Items[0].GroupID = 99
	groupID = 42

	again := store.Snapshot()
	if again.Items[0].Text != "a" || *again.Items[0].GroupID != 1 {
		t.Fatalf("snapshot shares memory with the store: %#v", again.Items[0])
	}
}

func TestGroupStore_Lifecycle(t *testing.T) {
	_, client := newBackendClient(t)
	store := NewGroupStore(client, nil)
	ctx := context.Background()

	group, err := store.Create(ctx, api.GroupDraft{Name: "Work", Description: "office"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	name := "Job"
	updated, err := store.Update(ctx, group.ID, api.GroupChanges{Name: &name})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "Job" || updated.Description != "office" {
		t.Fatalf("updated = %#v", updated)
	}
	if len(store.Active()) != 1 {
		t.Fatalf("Active = %d, want 1", len(store.Active()))
	}

	if err := store.Delete(ctx, group.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := store.Lookup(group.ID); ok {
		t.Fatal("deleted group still present")
	}
	if err := store.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(store.Active()) != 0 {
		t.Fatal("trashed group reported active")
	}
	if _, err := store.Restore(ctx, group.ID); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if err := store.PermanentDelete(ctx, group.ID); err != nil {
		t.Fatalf("PermanentDelete: %v", err)
	}
	err = store.PermanentDelete(ctx, group.ID)
	if !errors.Is(err, api.KindNotFound) {
		t.Fatalf("second purge error = %v, want not found", err)
	}
}

func TestCollection_LoadingDuringFetch(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	stub := &stubTasks{list: func() ([]api.Task, error) {
		close(started)
		<-release
		return nil, nil
	}}
	store := NewTaskStore(stub, nil)

	done := make(chan error, 1)
	go func() { done <- store.Fetch(context.Background()) }()
	<-started
	if !store.Snapshot().Loading {
		t.Fatal("Loading = false during fetch")
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if store.Snapshot().Loading {
		t.Fatal("Loading = true after fetch")
	}
	if store.Snapshot().LastUpdated.After(time.Now()) {
		t.Fatal("LastUpdated in the future")
	}
}

type stubTasks struct {
	list    func() ([]api.Task, error)
	update  func(id int64, changes api.TaskChanges) (json.RawMessage, error)
	restore func(id int64) (json.RawMessage, error)
}

func (s *stubTasks) ListTasks(context.Context) ([]api.Task, error) { return s.list() }

func (s *stubTasks) CreateTask(_ context.Context, draft api.TaskDraft) (api.Task, error) {
	return api.Task{ID: 100, Text: draft.Text}, nil
}

func (s *stubTasks) UpdateTask(_ context.Context, id int64, changes api.TaskChanges) (json.RawMessage, error) {
	return s.update(id, changes)
}

func (s *stubTasks) CompleteTask(context.Context, int64) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func (s *stubTasks) UncompleteTask(context.Context, int64) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

func (s *stubTasks) DeleteTask(context.Context, int64) error { return nil }

func (s *stubTasks) RestoreTask(_ context.Context, id int64) (json.RawMessage, error) {
	return s.restore(id)
}

func (s *stubTasks) PermanentDeleteTask(context.Context, int64) error { return nil }

type stubGroups struct {
	list    func() ([]api.Group, error)
	update  func(int64, api.GroupChanges) (json.RawMessage, error)
	restore func(int64) (json.RawMessage, error)
}

func (s *stubGroups) ListGroups(context.Context) ([]api.Group, error) { return s.list() }

func (s *stubGroups) CreateGroup(context.Context, api.GroupDraft) (api.Group, error) {
	return api.Group{}, errors.New("not implemented")
}

func (s *stubGroups) UpdateGroup(_ context.Context, id int64, changes api.GroupChanges) (json.RawMessage, error) {
	return s.update(id, changes)
}

func (s *stubGroups) DeleteGroup(context.Context, int64) error { return errors.New("not implemented") }

func (s *stubGroups) RestoreGroup(_ context.Context, id int64) (json.RawMessage, error) {
	return s.restore(id)
}

func (s *stubGroups) PermanentDeleteGroup(context.Context, int64) error {
	return errors.New("not implemented")
}
