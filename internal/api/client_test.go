package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"educahub/internal/api"
	"educahub/internal/config"
	"educahub/internal/hub"
	"educahub/internal/model"
	"educahub/internal/testutil"
)

func newClient(b *testutil.FakeBackend, token string) *api.Client {
	return api.NewClient(b.HTTPClient(), b.URL()+"/", func() string { return token }, testutil.NewStubIDGenerator())
}

func TestClient_Login(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	id := b.AddUser("Ana", "ana@example.com", "s3cret")
	c := newClient(b, "")

	sess, err := c.Login(context.Background(), "ana@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if string(sess.UserID) != id || sess.DisplayName != "Ana" || sess.Token == "" {
		t.Errorf("Login() = %+v", sess)
	}

	reqs := b.RequestsTo(testutil.RouteLogin)
	if len(reqs) != 1 {
		t.Fatalf("login requests = %d, want 1", len(reqs))
	}
	if reqs[0].Authorization != "" {
		t.Errorf("Authorization = %q, want none for anonymous requests", reqs[0].Authorization)
	}
	if reqs[0].RequestID != "req-1" {
		t.Errorf("X-Request-ID = %q, want %q", reqs[0].RequestID, "req-1")
	}
}

func TestClient_Login_Rejected(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	b.AddUser("Ana", "ana@example.com", "s3cret")
	c := newClient(b, "")

	_, err := c.Login(context.Background(), "ana@example.com", "nope")
	var apiErr *hub.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Login() error = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Message != "Invalid email or password" {
		t.Errorf("APIError = %+v", apiErr)
	}
	if !errors.Is(err, hub.ErrUnauthorized) {
		t.Error("errors.Is(err, ErrUnauthorized) = false")
	}
}

func TestClient_BearerToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{name: "raw token", token: "abc", want: "Bearer abc"},
		{name: "already prefixed", token: "Bearer abc", want: "Bearer abc"},
		{name: "surrounding space", token: "  abc  ", want: "Bearer abc"},
		{name: "anonymous", token: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testutil.NewFakeBackend(t)
			c := newClient(b, tt.token)
			_, _ = c.Posts(context.Background())

			reqs := b.RequestsTo(testutil.RoutePosts)
			if len(reqs) != 1 {
				t.Fatalf("posts requests = %d, want 1", len(reqs))
			}
			if reqs[0].Authorization != tt.want {
				t.Errorf("Authorization = %q, want %q", reqs[0].Authorization, tt.want)
			}
		})
	}
}

func TestClient_CategoriesBothShapes(t *testing.T) {
	for _, bare := range []bool{false, true} {
		b := testutil.NewFakeBackend(t)
		if bare {
			b.UseBareCategories()
		}
		id := b.AddCategory("Math")
		c := newClient(b, "")

		cats, err := c.Categories(context.Background())
		if err != nil {
			t.Fatalf("Categories() error = %v", err)
		}
		want := model.Category{ID: model.ID(id), Name: "Math"}
		if bare {
			want.ID = "Math"
		}
		if len(cats) != 1 || cats[0] != want {
			t.Errorf("Categories() bare=%v = %+v, want [%+v]", bare, cats, want)
		}
	}
}

func TestClient_PostsRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := testutil.NewFakeBackend(t)
	b.AddUser("Ana", "ana@example.com", "s3cret")
	anon := newClient(b, "")
	sess, err := anon.Login(ctx, "ana@example.com", "s3cret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	c := newClient(b, sess.Token)
	math := b.AddCategory("Math")

	created, err := c.CreatePost(ctx, model.PostPayload{Title: "Algebra", Content: "x", CategoryID: model.ID(math), UserID: sess.UserID, Author: "Ana"})
	if err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}
	if created.ID == "" || created.CategoryName != "Math" || created.AuthorID != sess.UserID {
		t.Errorf("CreatePost() = %+v", created)
	}

	mine, err := c.UserPosts(ctx, sess.UserID)
	if err != nil {
		t.Fatalf("UserPosts() error = %v", err)
	}
	if len(mine) != 1 || mine[0].ID != created.ID {
		t.Errorf("UserPosts() = %+v", mine)
	}

	if _, err := c.UpdatePost(ctx, "9999", model.PostPayload{Title: "t", Content: "c"}); !errors.Is(err, hub.ErrNotFound) {
		t.Errorf("UpdatePost(missing) error = %v, want ErrNotFound", err)
	}
	if err := c.DeletePost(ctx, created.ID); err != nil {
		t.Fatalf("DeletePost() error = %v", err)
	}
	if err := c.DeletePost(ctx, created.ID); !errors.Is(err, hub.ErrNotFound) {
		t.Errorf("second DeletePost() error = %v, want ErrNotFound", err)
	}
}

func TestClient_Unauthenticated(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	c := newClient(b, "bogus")

	_, err := c.CreatePost(context.Background(), model.PostPayload{Title: "t", Content: "c"})
	if !errors.Is(err, hub.ErrUnauthorized) {
		t.Errorf("CreatePost() error = %v, want ErrUnauthorized", err)
	}
}

func TestClient_NetworkError(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	b.Drop(testutil.RouteCategories)
	c := newClient(b, "")

	_, err := c.Categories(context.Background())
	var netErr *hub.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("Categories() error = %v, want *NetworkError", err)
	}
	if netErr.Op != "list categories" {
		t.Errorf("NetworkError.Op = %q", netErr.Op)
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	b := testutil.NewFakeBackend(t)
	gate := b.Hold(testutil.RoutePosts)
	c := newClient(b, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Posts(ctx)
		done <- err
	}()
	<-gate.Arrived()
	cancel()

	err := <-done
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Posts() error = %v, want context.Canceled", err)
	}
}

func TestClient_ResponseEdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
		wantMsg string
	}{
		{name: "no content", status: http.StatusNoContent, body: ""},
		{name: "ok without body on delete", status: http.StatusOK, body: ""},
		{name: "error field instead of message", status: http.StatusBadRequest, body: `{"error":"bad id"}`, wantErr: true, wantMsg: "bad id"},
		{name: "non-json error", status: http.StatusBadGateway, body: "<html>", wantErr: true, wantMsg: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := api.NewClient(srv.Client(), srv.URL, nil, nil)
			err := c.DeletePost(context.Background(), "a/b")
			if !tt.wantErr {
				if err != nil {
					t.Errorf("DeletePost() error = %v", err)
				}
				return
			}
			var apiErr *hub.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("DeletePost() error = %v, want *APIError", err)
			}
			if apiErr.Status != tt.status || apiErr.Message != tt.wantMsg {
				t.Errorf("APIError = %+v, want status %d message %q", apiErr, tt.status, tt.wantMsg)
			}
		})
	}
}

func TestClient_EscapesPathIDs(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := api.NewClient(srv.Client(), srv.URL, nil, nil)
	if err := c.DeletePost(context.Background(), "a/b"); err != nil {
		t.Fatalf("DeletePost() error = %v", err)
	}
	if gotPath != "/posts/a%2Fb" {
		t.Errorf("path = %q, want %q", gotPath, "/posts/a%2Fb")
	}
}

func TestNewHTTPClient_Timeout(t *testing.T) {
	tests := []struct {
		seconds int
		want    time.Duration
	}{
		{seconds: 0, want: 30 * time.Second},
		{seconds: 5, want: 5 * time.Second},
	}
	for _, tt := range tests {
		c := api.NewHTTPClient(config.APIConfig{BaseURL: "http://x", TimeoutSeconds: tt.seconds})
		if c.Timeout != tt.want {
			t.Errorf("NewHTTPClient(%d).Timeout = %v, want %v", tt.seconds, c.Timeout, tt.want)
		}
	}
}
