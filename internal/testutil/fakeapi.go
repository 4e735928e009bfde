// Package testutil provides an in-memory Climdo backend for tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/five82/climdo/internal/api"
)

// Backend is a fake Climdo API. It speaks the same cookie + CSRF session
// protocol as the real server and keeps tasks and groups in memory.
type Backend struct {
	Server *httptest.Server

	mu          sync.Mutex
	username    string
	password    string
	access      string
	refresh     string
	nextID      int64
	tasks       []api.Task
	groups      []api.Group
	requests    []RecordedRequest
	refreshes   int
	unauthCount int

	failRefresh   bool
	omitAccess    bool
	beforeRefresh func()
	hook          func(w http.ResponseWriter, r *http.Request) bool
	now           func() time.Time
}

// RecordedRequest is one request as the backend saw it.
type RecordedRequest struct {
	Method string
	Path   string
	CSRF   string
	Tag    string
}

// TagHeader lets tests label requests so the order they arrive in can be
// asserted.
const TagHeader = "X-Test-Tag"

// NewBackend starts a fake backend with one account (demo / secret).
func NewBackend(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		username: "demo",
		password: "secret",
		nextID:   1,
		now:      func() time.Time { return time.Now().UTC() },
	}
	b.Server = httptest.NewServer(b.routes())
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the backend's base URL.
func (b *Backend) URL() string { return b.Server.URL }

func (b *Backend) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(b.record)

	r.Post("/auth/login", b.handleLogin)
	r.Post("/auth/register", b.handleRegister)
	r.Post("/auth/logout", b.handleLogout)
	r.Post("/auth/refresh", b.handleRefresh)

	r.Group(func(r chi.Router) {
		r.Use(b.requireAccess)

		r.Get("/api/user/isLogin", b.handleIsLogin)
		r.Post("/api/user/reset-username", b.handleResetUsername)

		r.Get("/api/task/", b.handleListTasks)
		r.Post("/api/task/", b.handleCreateTask)
		r.Patch("/api/task/{id}", b.handleUpdateTask)
		r.Delete("/api/task/{id}", b.handleDeleteTask)
		r.Patch("/api/task/complete/{id}", b.handleSetCompleted(true))
		r.Patch("/api/task/uncomplete/{id}", b.handleSetCompleted(false))
		r.Patch("/api/task/restore/{id}", b.handleRestoreTask)
		r.Patch("/api/task/permanent-delete/{id}", b.handlePurgeTask)

		r.Get("/api/group/", b.handleListGroups)
		r.Post("/api/group/", b.handleCreateGroup)
		r.Patch("/api/group/{id}", b.handleUpdateGroup)
		r.Delete("/api/group/{id}", b.handleDeleteGroup)
		r.Patch("/api/group/restore/{id}", b.handleRestoreGroup)
		r.Patch("/api/group/permanent-delete/{id}", b.handlePurgeGroup)
	})
	return r
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests = append(b.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			CSRF:   r.Header.Get(api.CSRFHeader),
			Tag:    r.Header.Get(TagHeader),
		})
		hook := b.hook
		b.mu.Unlock()
		if hook != nil && hook(w, r) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) requireAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		access := b.access
		b.mu.Unlock()

		cookie, err := r.Cookie("access_token_cookie")
		if access == "" || err != nil || cookie.Value != access || r.Header.Get(api.CSRFHeader) != access {
			b.mu.Lock()
			b.unauthCount++
			b.mu.Unlock()
			writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "Token has expired"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Login seeds a session directly, bypassing /auth/login, and returns the
// cookies a browser would hold.
func (b *Backend) Login() []*http.Cookie {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.issueAccessLocked()
	b.refresh = uuid.NewString()
	return b.cookiesLocked(true)
}

// FailRefresh makes /auth/refresh answer 401.
func (b *Backend) FailRefresh() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failRefresh = true
}

// OmitAccessOnRefresh makes a successful refresh clear the access CSRF
// cookie instead of rotating it.
func (b *Backend) OmitAccessOnRefresh() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.omitAccess = true
}

// BeforeRefresh registers fn to run inside the refresh handler before it
// answers.
func (b *Backend) BeforeRefresh(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.beforeRefresh = fn
}

// Intercept registers fn to run before routing; returning true means fn
// wrote the response.
func (b *Backend) Intercept(fn func(w http.ResponseWriter, r *http.Request) bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hook = fn
}

// SetClock replaces the timestamp source.
func (b *Backend) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// ExpireAccess invalidates the current access token so the next API call
// gets 401 while the refresh token stays good.
func (b *Backend) ExpireAccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.access = uuid.NewString()
}

// Refreshes returns how many /auth/refresh calls were answered.
func (b *Backend) Refreshes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshes
}

// Unauthorized returns how many API requests were rejected with 401.
func (b *Backend) Unauthorized() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unauthCount
}

// Requests returns a copy of the request log.
func (b *Backend) Requests() []RecordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]RecordedRequest(nil), b.requests...)
}

// SeedTask stores a task as-is, assigning an id when missing.
func (b *Backend) SeedTask(task api.Task) api.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	if task.ID == 0 {
		task.ID = b.nextIDLocked()
	} else if task.ID >= b.nextID {
		b.nextID = task.ID + 1
	}
	b.tasks = append(b.tasks, task)
	return task
}

// SeedGroup stores a group as-is, assigning an id when missing.
func (b *Backend) SeedGroup(group api.Group) api.Group {
	b.mu.Lock()
	defer b.mu.Unlock()
	if group.ID == 0 {
		group.ID = b.nextIDLocked()
	} else if group.ID >= b.nextID {
		b.nextID = group.ID + 1
	}
	b.groups = append(b.groups, group)
	return group
}

// Task returns the stored task with id.
func (b *Backend) Task(id int64) (api.Task, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range b.tasks {
		if t.ID == id {
			return t.Clone(), true
		}
	}
	return api.Task{}, false
}

func (b *Backend) nextIDLocked() int64 {
	id := b.nextID
	b.nextID++
	return id
}

func (b *Backend) issueAccessLocked() {
	b.access = uuid.NewString()
}

func (b *Backend) cookiesLocked(withRefresh bool) []*http.Cookie {
	cookies := []*http.Cookie{
		{Name: "access_token_cookie", Value: b.access, Path: "/", HttpOnly: true},
		{Name: api.DefaultAccessCookie, Value: b.access, Path: "/"},
	}
	if withRefresh {
		cookies = append(cookies,
			&http.Cookie{Name: "refresh_token_cookie", Value: b.refresh, Path: "/", HttpOnly: true},
			&http.Cookie{Name: api.DefaultRefreshCookie, Value: b.refresh, Path: "/"},
		)
	}
	return cookies
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if body.Username != b.username || body.Password != b.password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid username or password"})
		return
	}
	b.issueAccessLocked()
	b.refresh = uuid.NewString()
	for _, c := range b.cookiesLocked(true) {
		http.SetCookie(w, c)
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": api.User{ID: 1, Username: b.username}})
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	fields := map[string][]string{}
	if body.Username == "" {
		fields["username"] = []string{"Username is required"}
	}
	if !strings.Contains(body.Email, "@") {
		fields["email"] = []string{"Invalid email address"}
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": fields})
		return
	}
	b.mu.Lock()
	b.username, b.password = body.Username, body.Password
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]string{"message": "registered"})
}

func (b *Backend) handleLogout(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	b.access, b.refresh = "", ""
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.refreshes++
	hook := b.beforeRefresh
	b.mu.Unlock()
	if hook != nil {
		hook()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	cookie, err := r.Cookie("refresh_token_cookie")
	if b.failRefresh || b.refresh == "" || err != nil || cookie.Value != b.refresh || r.Header.Get(api.CSRFHeader) != b.refresh {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "Token has been revoked"})
		return
	}
	b.issueAccessLocked()
	if b.omitAccess {
		http.SetCookie(w, &http.Cookie{Name: "access_token_cookie", Value: b.access, Path: "/", HttpOnly: true})
		http.SetCookie(w, &http.Cookie{Name: api.DefaultAccessCookie, Value: "", Path: "/", MaxAge: -1})
	} else {
		for _, c := range b.cookiesLocked(false) {
			http.SetCookie(w, c)
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"refresh": true})
}

func (b *Backend) handleIsLogin(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, api.User{ID: 1, Username: b.username})
}

func (b *Backend) handleResetUsername(w http.ResponseWriter, r *http.Request) {
	var body struct {
		NewUsername string `json:"new_username"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if strings.TrimSpace(body.NewUsername) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": map[string]string{"new_username": "Username is required"}})
		return
	}
	b.mu.Lock()
	b.username = body.NewUsername
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "updated"})
}

func (b *Backend) handleListTasks(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]api.Task, 0, len(b.tasks))
	out = append(out, b.tasks...)
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var draft api.TaskDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil || strings.TrimSpace(draft.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": map[string][]string{"text": {"Text is required"}}})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	task := api.Task{
		ID:        b.nextIDLocked(),
		Text:      draft.Text,
		DueAt:     draft.DueAt,
		GroupID:   draft.GroupID,
		CreatedAt: b.now().Format(time.RFC3339),
	}
	b.tasks = append(b.tasks, task)
	writeJSON(w, http.StatusCreated, task)
}

func (b *Backend) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var changes api.TaskChanges
	if err := json.NewDecoder(r.Body).Decode(&changes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}
	b.mutateTask(w, r, func(t *api.Task) {
		if changes.Text != nil {
			t.Text = *changes.Text
		}
		if changes.DueAt != nil {
			t.DueAt = *changes.DueAt
		}
		if changes.GroupID != nil {
			id := *changes.GroupID
			t.GroupID = &id
		}
	})
}

func (b *Backend) handleSetCompleted(done bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mutateTask(w, r, func(t *api.Task) {
			t.IsCompleted = done
			t.CompletedAt = ""
			if done {
				t.CompletedAt = b.now().Format(time.RFC3339)
			}
		})
	}
}

func (b *Backend) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	b.mutateTask(w, r, func(t *api.Task) {
		t.IsDeleted = true
		t.DeletedAt = b.now().Format(time.RFC3339)
	})
}

func (b *Backend) handleRestoreTask(w http.ResponseWriter, r *http.Request) {
	b.mutateTask(w, r, func(t *api.Task) {
		t.IsDeleted = false
		t.DeletedAt = ""
	})
}

func (b *Backend) handlePurgeTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, t := range b.tasks {
		if t.ID == id {
			b.tasks = append(b.tasks[:i], b.tasks[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Task not found"})
}

func (b *Backend) mutateTask(w http.ResponseWriter, r *http.Request, fn func(*api.Task)) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.tasks {
		if b.tasks[i].ID == id {
			fn(&b.tasks[i])
			writeJSON(w, http.StatusOK, b.tasks[i])
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Task not found"})
}

func (b *Backend) handleListGroups(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]api.Group, 0, len(b.groups))
	out = append(out, b.groups...)
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var draft api.GroupDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil || strings.TrimSpace(draft.Name) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": map[string][]string{"name": {"Name is required"}}})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now().Format(time.RFC3339)
	group := api.Group{
		ID:          b.nextIDLocked(),
		Name:        draft.Name,
		Description: draft.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	b.groups = append(b.groups, group)
	writeJSON(w, http.StatusCreated, group)
}

func (b *Backend) handleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	var changes api.GroupChanges
	if err := json.NewDecoder(r.Body).Decode(&changes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}
	b.mutateGroup(w, r, func(g *api.Group) {
		if changes.Name != nil {
			g.Name = *changes.Name
		}
		if changes.Description != nil {
			g.Description = *changes.Description
		}
	})
}

func (b *Backend) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	b.mutateGroup(w, r, func(g *api.Group) {
		g.IsDeleted = true
		g.DeletedAt = b.now().Format(time.RFC3339)
	})
}

func (b *Backend) handleRestoreGroup(w http.ResponseWriter, r *http.Request) {
	b.mutateGroup(w, r, func(g *api.Group) {
		g.IsDeleted = false
		g.DeletedAt = ""
	})
}

func (b *Backend) handlePurgeGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, g := range b.groups {
		if g.ID == id {
			b.groups = append(b.groups[:i], b.groups[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Group not found"})
}

func (b *Backend) mutateGroup(w http.ResponseWriter, r *http.Request, fn func(*api.Group)) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.groups {
		if b.groups[i].ID == id {
			fn(&b.groups[i])
			b.groups[i].UpdatedAt = b.now().Format(time.RFC3339)
			writeJSON(w, http.StatusOK, b.groups[i])
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Group not found"})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not found"})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
