package hub_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"educahub/internal/hub"
	"educahub/internal/model"
	"educahub/internal/testutil"
)

// stubSource serves fixed collections. When hold is set, both fetches block
// until hold is closed or the request is cancelled.
type stubSource struct {
	items    []model.Post
	itemsErr error
	opts     []model.Category
	optsErr  error

	hold    chan struct{}
	started chan struct{}
}

func (s *stubSource) List(ctx context.Context) ([]model.Post, error) {
	if s.hold != nil {
		close(s.started)
		select {
		case <-s.hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.itemsErr != nil {
		return nil, s.itemsErr
	}
	return append([]model.Post{}, s.items...), nil
}

func (s *stubSource) Options(ctx context.Context) ([]model.Category, error) {
	if s.hold != nil {
		select {
		case <-s.hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.optsErr != nil {
		return nil, s.optsErr
	}
	return append([]model.Category{}, s.opts...), nil
}

// stubMutator echoes drafts back as posts. Delete can be held like stubSource.List.
type stubMutator struct {
	nextID    int
	deleteErr error

	hold    chan struct{}
	started chan struct{}
}

func (m *stubMutator) Create(ctx context.Context, d model.PostDraft) (model.Post, error) {
	if err := hub.ValidateDraft(d); err != nil {
		return model.Post{}, err
	}
	m.nextID++
	return model.Post{ID: model.ID(fmt.Sprintf("new-%d", m.nextID)), Title: d.Title, Content: d.Content, CategoryID: d.CategoryID}, nil
}

func (m *stubMutator) Update(ctx context.Context, id model.ID, d model.PostDraft) (model.Post, error) {
	return model.Post{ID: id, Title: d.Title, Content: d.Content, CategoryID: d.CategoryID}, nil
}

func (m *stubMutator) Delete(ctx context.Context, id model.ID) error {
	if m.hold != nil {
		close(m.started)
		select {
		case <-m.hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.deleteErr
}

func seedPosts() []model.Post {
	return []model.Post{
		{ID: "1", Title: "Algebra", CategoryName: "Math"},
		{ID: "2", Title: "Poetry", CategoryName: "Art"},
	}
}

func newController(src *stubSource, mut *stubMutator) (*hub.ListController[model.Post, model.PostDraft], *hub.LoadingSignal, *testutil.RecordingLogger) {
	loading := hub.NewLoadingSignal()
	logger := testutil.NewRecordingLogger()
	var m hub.Mutator[model.Post, model.PostDraft]
	if mut != nil {
		m = mut
	}
	return hub.NewListController[model.Post, model.PostDraft]("test", src, m, loading, logger), loading, logger
}

func TestListController_Load(t *testing.T) {
	src := &stubSource{items: seedPosts(), opts: []model.Category{{ID: "1", Name: "Math"}, {ID: "2", Name: "Art"}}}
	c, loading, _ := newController(src, nil)

	if c.State() != hub.StateIdle {
		t.Fatalf("State() = %v, want idle", c.State())
	}
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if c.State() != hub.StateReady {
		t.Errorf("State() = %v, want ready", c.State())
	}
	if got := ids(c.Items()); !reflect.DeepEqual(got, []model.ID{"1", "2"}) {
		t.Errorf("Items() = %v, want [1 2]", got)
	}
	if got := ids(c.View()); !reflect.DeepEqual(got, []model.ID{"1", "2"}) {
		t.Errorf("View() = %v, want [1 2]", got)
	}
	if len(c.Options()) != 2 {
		t.Errorf("Options() = %v, want 2 categories", c.Options())
	}
	if c.LoadErr() != nil {
		t.Errorf("LoadErr() = %v, want nil", c.LoadErr())
	}
	if loading.Active() {
		t.Error("loading signal still active after Load")
	}
}

func TestListController_Load_PartialFailure(t *testing.T) {
	fetchErr := &hub.NetworkError{Op: "list posts", Err: errors.New("connection refused")}
	src := &stubSource{itemsErr: fetchErr, opts: []model.Category{{ID: "1", Name: "Math"}}}
	c, loading, logger := newController(src, nil)

	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v, want nil for a fetch failure", err)
	}

	if len(c.Items()) != 0 {
		t.Errorf("Items() = %v, want empty", c.Items())
	}
	if len(c.Options()) != 1 {
		t.Errorf("Options() = %v, want the category that did load", c.Options())
	}
	var netErr *hub.NetworkError
	if !errors.As(c.LoadErr(), &netErr) {
		t.Errorf("LoadErr() = %v, want *NetworkError", c.LoadErr())
	}
	if logger.Count("WARN") != 1 {
		t.Errorf("logged %d warnings, want 1", logger.Count("WARN"))
	}
	if loading.Active() {
		t.Error("loading signal still active after Load")
	}
}

func TestListController_Reload_ClearsFailedCollection(t *testing.T) {
	src := &stubSource{items: seedPosts()}
	c, _, _ := newController(src, nil)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	src.itemsErr = errors.New("boom")
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if len(c.Items()) != 0 || len(c.View()) != 0 {
		t.Errorf("Items() = %v, View() = %v, want both empty after failed reload", c.Items(), c.View())
	}
	if c.Generation() != 2 {
		t.Errorf("Generation() = %d, want 2", c.Generation())
	}
}

func TestListController_CloseBeforeLoadCompletes(t *testing.T) {
	src := &stubSource{
		items:   seedPosts(),
		hold:    make(chan struct{}),
		started: make(chan struct{}),
	}
	c, loading, _ := newController(src, nil)

	done := make(chan error, 1)
	go func() { done <- c.Load(context.Background()) }()

	<-src.started
	c.Close()

	select {
	case err := <-done:
		if !errors.Is(err, hub.ErrClosed) {
			t.Errorf("Load() error = %v, want ErrClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Load() did not return after Close")
	}
	close(src.hold)

	if len(c.Items()) != 0 || len(c.Options()) != 0 || len(c.View()) != 0 {
		t.Errorf("state changed after Close: items=%v options=%v view=%v", c.Items(), c.Options(), c.View())
	}
	if c.State() != hub.StateClosed {
		t.Errorf("State() = %v, want closed", c.State())
	}
	if c.LoadErr() != nil {
		t.Errorf("LoadErr() = %v, want nil", c.LoadErr())
	}
	if loading.Active() {
		t.Error("loading signal still active after Close")
	}
}

func TestListController_UseAfterClose(t *testing.T) {
	c, _, _ := newController(&stubSource{}, &stubMutator{})
	c.Close()

	if err := c.Load(context.Background()); !errors.Is(err, hub.ErrClosed) {
		t.Errorf("Load() error = %v, want ErrClosed", err)
	}
	if _, err := c.Create(context.Background(), model.PostDraft{Title: "t", Content: "c", CategoryID: "1"}); !errors.Is(err, hub.ErrClosed) {
		t.Errorf("Create() error = %v, want ErrClosed", err)
	}
	if err := c.Delete(context.Background(), "1"); !errors.Is(err, hub.ErrClosed) {
		t.Errorf("Delete() error = %v, want ErrClosed", err)
	}
}

func TestListController_ReadOnly(t *testing.T) {
	c, _, _ := newController(&stubSource{items: seedPosts()}, nil)

	if _, err := c.Create(context.Background(), model.PostDraft{}); !errors.Is(err, hub.ErrReadOnly) {
		t.Errorf("Create() error = %v, want ErrReadOnly", err)
	}
	if _, err := c.Update(context.Background(), "1", model.PostDraft{}); !errors.Is(err, hub.ErrReadOnly) {
		t.Errorf("Update() error = %v, want ErrReadOnly", err)
	}
	if err := c.Delete(context.Background(), "1"); !errors.Is(err, hub.ErrReadOnly) {
		t.Errorf("Delete() error = %v, want ErrReadOnly", err)
	}
}

func TestListController_Mutations(t *testing.T) {
	ctx := context.Background()
	c, loading, _ := newController(&stubSource{items: seedPosts()}, &stubMutator{})
	if err := c.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	created, err := c.Create(ctx, model.PostDraft{Title: "Geometry", Content: "Angles", CategoryID: "1"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if got := ids(c.Items()); !reflect.DeepEqual(got, []model.ID{created.ID, "1", "2"}) {
		t.Errorf("Items() after Create = %v, want created item first", got)
	}

	if _, err := c.Update(ctx, "2", model.PostDraft{Title: "Sonnets", Content: "x", CategoryID: "2"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	items := c.Items()
	if items[2].ID != "2" || items[2].Title != "Sonnets" {
		t.Errorf("Items()[2] = %+v, want id 2 retitled Sonnets in place", items[2])
	}

	if err := c.Delete(ctx, "1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got := ids(c.Items()); !reflect.DeepEqual(got, []model.ID{created.ID, "2"}) {
		t.Errorf("Items() after Delete = %v", got)
	}
	if loading.Active() {
		t.Error("loading signal still active after mutations")
	}
}

func TestListController_FailedMutationLeavesItems(t *testing.T) {
	ctx := context.Background()
	mut := &stubMutator{deleteErr: &hub.APIError{Status: 404, Message: "Post not found"}}
	c, _, _ := newController(&stubSource{items: seedPosts()}, mut)
	if err := c.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	err := c.Delete(ctx, "1")
	if !errors.Is(err, hub.ErrNotFound) {
		t.Fatalf("Delete() error = %v, want ErrNotFound", err)
	}
	if got := ids(c.Items()); !reflect.DeepEqual(got, []model.ID{"1", "2"}) {
		t.Errorf("Items() = %v, want unchanged [1 2]", got)
	}

	if _, err := c.Create(ctx, model.PostDraft{Title: "", Content: "c", CategoryID: "1"}); err == nil {
		t.Error("Create() with empty title expected error")
	}
	if len(c.Items()) != 2 {
		t.Errorf("Items() = %v, want unchanged after failed create", ids(c.Items()))
	}
}

func TestListController_StaleMutationDoesNotClobberReload(t *testing.T) {
	ctx := context.Background()
	src := &stubSource{items: seedPosts()}
	mut := &stubMutator{hold: make(chan struct{}), started: make(chan struct{})}
	c, _, logger := newController(src, mut)
	if err := c.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- c.Delete(ctx, "1") }()
	<-mut.started

	src.items = append(seedPosts(), model.Post{ID: "3", Title: "Chemistry"})
	if err := c.Load(ctx); err != nil {
		t.Fatalf("reload error = %v", err)
	}

	close(mut.hold)
	if err := <-done; err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if got := ids(c.Items()); !reflect.DeepEqual(got, []model.ID{"1", "2", "3"}) {
		t.Errorf("Items() = %v, want the fresher reload [1 2 3]", got)
	}
	if !logger.Contains("DEBUG", "stale") {
		t.Error("expected a debug line for the dropped delete result")
	}
}

func TestListController_SetFilter(t *testing.T) {
	c, _, _ := newController(&stubSource{items: seedPosts()}, nil)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	c.SetFilter(model.Filter{Title: "alg"})
	if got := ids(c.View()); !reflect.DeepEqual(got, []model.ID{"1"}) {
		t.Errorf("View() = %v, want [1]", got)
	}
	if len(c.Items()) != 2 {
		t.Errorf("Items() = %v, SetFilter must not touch the collection", ids(c.Items()))
	}

	c.SetFilter(model.Filter{Category: "Art"})
	if got := ids(c.View()); !reflect.DeepEqual(got, []model.ID{"2"}) {
		t.Errorf("View() = %v, want [2]", got)
	}
	if c.Filter().Category != "Art" {
		t.Errorf("Filter() = %+v", c.Filter())
	}

	c.SetFilter(model.Filter{})
	if got := ids(c.View()); !reflect.DeepEqual(got, []model.ID{"1", "2"}) {
		t.Errorf("View() = %v, want [1 2]", got)
	}
}

func TestListController_FilterSurvivesReload(t *testing.T) {
	src := &stubSource{items: seedPosts()}
	c, _, _ := newController(src, nil)
	c.SetFilter(model.Filter{Category: "Math"})

	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := ids(c.View()); !reflect.DeepEqual(got, []model.ID{"1"}) {
		t.Errorf("View() = %v, want [1]", got)
	}
}
