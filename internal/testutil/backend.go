package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
)

// Route names accepted by Fail, Drop and Hold.
const (
	RouteLogin      = "login"
	RouteProfile    = "profile"
	RouteUpdateUser = "update-user"
	RouteCategories = "categories"
	RoutePosts      = "posts"
	RouteUserPosts  = "user-posts"
	RouteCreatePost = "create-post"
	RouteUpdatePost = "update-post"
	RouteDeletePost = "delete-post"
)

// Request is one call received by FakeBackend.
type Request struct {
	Route         string
	Method        string
	Path          string
	Authorization string
	RequestID     string
	Body          []byte
}

type fakeUser struct {
	id    int
	name  string
	email string
	hash  []byte
}

type fakePost struct {
	id         int
	title      string
	content    string
	categoryID int
	userID     int
	author     string
}

type fakeFailure struct {
	status  int
	message string
	drop    bool
}

// Gate holds requests to one route until Release is called.
type Gate struct {
	arrived     chan struct{}
	release     chan struct{}
	arriveOnce  sync.Once
	releaseOnce sync.Once
}

// Arrived is closed when the first held request reaches the backend.
func (g *Gate) Arrived() <-chan struct{} { return g.arrived }

// Release lets every held request, and every later one, through.
func (g *Gate) Release() {
	g.releaseOnce.Do(func() { close(g.release) })
}

// FakeBackend is an in-process EducaHub REST backend for tests.
// Passwords are bcrypt-hashed and bearer tokens are checked like the real server.
type FakeBackend struct {
	t      *testing.T
	server *httptest.Server

	mu             sync.Mutex
	users          map[int]*fakeUser
	tokens         map[string]int
	posts          []*fakePost
	categories     map[int]string
	nextID         int
	failures       map[string]fakeFailure
	gates          map[string]*Gate
	requests       []Request
	bareCategories bool
	nestedCategory bool
}

// NewFakeBackend starts a backend that is shut down with the test.
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()
	b := &FakeBackend{
		t:          t,
		users:      make(map[int]*fakeUser),
		tokens:     make(map[string]int),
		categories: make(map[int]string),
		nextID:     1,
		failures:   make(map[string]fakeFailure),
		gates:      make(map[string]*Gate),
	}
	b.server = httptest.NewServer(b.router())
	t.Cleanup(func() {
		b.mu.Lock()
		for _, g := range b.gates {
			g.Release()
		}
		b.mu.Unlock()
		b.server.Close()
	})
	return b
}

// URL returns the base URL of the backend.
func (b *FakeBackend) URL() string { return b.server.URL }

// HTTPClient returns a client wired to the backend's listener.
func (b *FakeBackend) HTTPClient() *http.Client { return b.server.Client() }

// AddUser registers a user and returns its id.
func (b *FakeBackend) AddUser(name, email, password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		b.t.Fatalf("hashing password: %v", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.allocLocked()
	b.users[id] = &fakeUser{id: id, name: name, email: email, hash: hash}
	return strconv.Itoa(id)
}

// AddCategory registers a category and returns its id.
func (b *FakeBackend) AddCategory(name string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.allocLocked()
	b.categories[id] = name
	return strconv.Itoa(id)
}

// AddPost stores a post authored by userID and returns its id.
func (b *FakeBackend) AddPost(userID, categoryID, title, content string) string {
	uid, _ := strconv.Atoi(userID)
	cid, _ := strconv.Atoi(categoryID)
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.allocLocked()
	author := ""
	if u, ok := b.users[uid]; ok {
		author = u.name
	}
	b.posts = append(b.posts, &fakePost{id: id, title: title, content: content, categoryID: cid, userID: uid, author: author})
	return strconv.Itoa(id)
}

// PostCount returns how many posts the backend holds.
func (b *FakeBackend) PostCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.posts)
}

// UseBareCategories makes /categories answer with a list of names.
func (b *FakeBackend) UseBareCategories() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bareCategories = true
}

// UseNestedCategory makes posts carry their category as a nested object.
func (b *FakeBackend) UseNestedCategory() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nestedCategory = true
}

// Fail makes route answer status with message until Reset. An empty message
// produces a body without one.
func (b *FakeBackend) Fail(route string, status int, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = fakeFailure{status: status, message: message}
}

// Drop makes route abort the connection without an answer until Reset.
func (b *FakeBackend) Drop(route string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = fakeFailure{drop: true}
}

// Reset clears any failure injected for route.
func (b *FakeBackend) Reset(route string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failures, route)
}

// Hold blocks requests to route until the returned gate is released or the
// client gives up.
func (b *FakeBackend) Hold(route string) *Gate {
	g := &Gate{arrived: make(chan struct{}), release: make(chan struct{})}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gates[route] = g
	return g
}

// Requests returns every request received so far.
func (b *FakeBackend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request{}, b.requests...)
}

// RequestsTo returns the requests received by one route.
func (b *FakeBackend) RequestsTo(route string) []Request {
	var out []Request
	for _, r := range b.Requests() {
		if r.Route == route {
			out = append(out, r)
		}
	}
	return out
}

func (b *FakeBackend) allocLocked() int {
	id := b.nextID
	b.nextID++
	return id
}

func (b *FakeBackend) router() http.Handler {
	r := mux.NewRouter()
	r.Use(b.intercept)

	r.HandleFunc("/auth/login", b.handleLogin).Methods(http.MethodPost).Name(RouteLogin)
	r.HandleFunc("/auth/profile/{id}", b.authed(b.handleProfile)).Methods(http.MethodGet).Name(RouteProfile)
	r.HandleFunc("/users/{id}", b.authed(b.handleUpdateUser)).Methods(http.MethodPut).Name(RouteUpdateUser)
	r.HandleFunc("/categories", b.handleCategories).Methods(http.MethodGet).Name(RouteCategories)
	r.HandleFunc("/posts", b.handlePosts).Methods(http.MethodGet).Name(RoutePosts)
	r.HandleFunc("/posts/user/{id}", b.authed(b.handleUserPosts)).Methods(http.MethodGet).Name(RouteUserPosts)
	r.HandleFunc("/posts", b.authed(b.handleCreatePost)).Methods(http.MethodPost).Name(RouteCreatePost)
	r.HandleFunc("/posts/{id}", b.authed(b.handleUpdatePost)).Methods(http.MethodPut).Name(RouteUpdatePost)
	r.HandleFunc("/posts/{id}", b.authed(b.handleDeletePost)).Methods(http.MethodDelete).Name(RouteDeletePost)
	return r
}

// intercept records the request and applies injected holds and failures.
func (b *FakeBackend) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := ""
		if route := mux.CurrentRoute(r); route != nil {
			name = route.GetName()
		}
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))

		b.mu.Lock()
		b.requests = append(b.requests, Request{
			Route:         name,
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			RequestID:     r.Header.Get("X-Request-ID"),
			Body:          body,
		})
		gate := b.gates[name]
		failure, failing := b.failures[name]
		b.mu.Unlock()

		if gate != nil {
			gate.arriveOnce.Do(func() { close(gate.arrived) })
			select {
			case <-gate.release:
			case <-r.Context().Done():
				return
			}
		}

		if failing {
			if failure.drop {
				panic(http.ErrAbortHandler)
			}
			if failure.message == "" {
				writeJSON(w, failure.status, map[string]any{})
			} else {
				writeError(w, failure.status, failure.message)
			}
			return
		}
		next.ServeHTTP(w, r)
	})
}

type authedHandler func(w http.ResponseWriter, r *http.Request, caller int)

func (b *FakeBackend) authed(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		b.mu.Lock()
		caller, ok := b.tokens[token]
		b.mu.Unlock()
		if token == "" || !ok {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		h(w, r, caller)
	}
}

func (b *FakeBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	b.mu.Lock()
	var user *fakeUser
	for _, u := range b.users {
		if strings.EqualFold(u.email, req.Email) {
			user = u
			break
		}
	}
	b.mu.Unlock()

	if user == nil || bcrypt.CompareHashAndPassword(user.hash, []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	b.mu.Lock()
	token := fmt.Sprintf("token-%d-%d", user.id, b.allocLocked())
	b.tokens[token] = user.id
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"id":    user.id,
		"name":  user.name,
		"email": user.email,
		"token": token,
	})
}

func (b *FakeBackend) handleProfile(w http.ResponseWriter, r *http.Request, _ int) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	u, found := b.users[id]
	if !found {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, userJSON(u))
}

func (b *FakeBackend) handleUpdateUser(w http.ResponseWriter, r *http.Request, caller int) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if id != caller {
		writeError(w, http.StatusForbidden, "Cannot update another user")
		return
	}
	var req struct {
		Name     *string `json:"name"`
		Email    *string `json:"email"`
		Password *string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var hash []byte
	if req.Password != nil {
		h, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.MinCost)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Could not hash password")
			return
		}
		hash = h
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	u, found := b.users[id]
	if !found {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if req.Name != nil {
		u.name = *req.Name
	}
	if req.Email != nil {
		u.email = *req.Email
	}
	if hash != nil {
		u.hash = hash
	}
	writeJSON(w, http.StatusOK, userJSON(u))
}

func (b *FakeBackend) handleCategories(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ids := make([]int, 0, len(b.categories))
	for id := range b.categories {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	if b.bareCategories {
		names := make([]string, 0, len(ids))
		for _, id := range ids {
			names = append(names, b.categories[id])
		}
		writeJSON(w, http.StatusOK, names)
		return
	}
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, map[string]any{"id": id, "name": b.categories[id]})
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *FakeBackend) handlePosts(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]map[string]any, 0, len(b.posts))
	for _, p := range b.posts {
		out = append(out, b.postJSONLocked(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *FakeBackend) handleUserPosts(w http.ResponseWriter, r *http.Request, _ int) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]map[string]any, 0)
	for _, p := range b.posts {
		if p.userID == id {
			out = append(out, b.postJSONLocked(p))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type postRequest struct {
	Title      string          `json:"title"`
	Content    string          `json:"content"`
	CategoryID json.RawMessage `json:"categoryId"`
	UserID     json.RawMessage `json:"userId"`
	Author     string          `json:"author"`
}

func (b *FakeBackend) handleCreatePost(w http.ResponseWriter, r *http.Request, caller int) {
	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Title == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, "Title and content are required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	p := &fakePost{
		id:         b.allocLocked(),
		title:      req.Title,
		content:    req.Content,
		categoryID: rawInt(req.CategoryID),
		userID:     caller,
		author:     req.Author,
	}
	b.posts = append([]*fakePost{p}, b.posts...)
	writeJSON(w, http.StatusCreated, b.postJSONLocked(p))
}

func (b *FakeBackend) handleUpdatePost(w http.ResponseWriter, r *http.Request, caller int) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.findPostLocked(id)
	if p == nil {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}
	if p.userID != caller {
		writeError(w, http.StatusForbidden, "Not the author of this post")
		return
	}
	p.title = req.Title
	p.content = req.Content
	p.categoryID = rawInt(req.CategoryID)
	writeJSON(w, http.StatusOK, b.postJSONLocked(p))
}

func (b *FakeBackend) handleDeletePost(w http.ResponseWriter, r *http.Request, caller int) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i, p := range b.posts {
		if p.id != id {
			continue
		}
		if p.userID != caller {
			writeError(w, http.StatusForbidden, "Not the author of this post")
			return
		}
		b.posts = append(b.posts[:i], b.posts[i+1:]...)
		writeJSON(w, http.StatusOK, map[string]any{"message": "Post deleted"})
		return
	}
	writeError(w, http.StatusNotFound, "Post not found")
}

func (b *FakeBackend) findPostLocked(id int) *fakePost {
	for _, p := range b.posts {
		if p.id == id {
			return p
		}
	}
	return nil
}

func (b *FakeBackend) postJSONLocked(p *fakePost) map[string]any {
	out := map[string]any{
		"id":      p.id,
		"title":   p.title,
		"content": p.content,
		"userId":  p.userID,
		"author":  p.author,
	}
	name := b.categories[p.categoryID]
	if b.nestedCategory {
		out["Category"] = map[string]any{"id": p.categoryID, "name": name}
	} else {
		out["categoryId"] = p.categoryID
		out["categoryName"] = name
	}
	return out
}

func userJSON(u *fakeUser) map[string]any {
	return map[string]any{"id": u.id, "name": u.name, "email": u.email}
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "Not found")
		return 0, false
	}
	return id, true
}

// rawInt accepts a JSON number or a numeric string.
func rawInt(raw json.RawMessage) int {
	s := strings.Trim(string(raw), `"`)
	n, _ := strconv.Atoi(s)
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
