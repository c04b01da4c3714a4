package hub

import (
	"context"
	"errors"
	"sync"

	"educahub/internal/model"
)

// ListState is the lifecycle state of a ListController.
type ListState int

const (
	StateIdle ListState = iota
	StateLoading
	StateReady
	StateClosed
)

func (s ListState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Source fetches the primary collection of a list and its filter options.
type Source[T Record] interface {
	List(ctx context.Context) ([]T, error)
	Options(ctx context.Context) ([]model.Category, error)
}

// Mutator writes items of a list back to the backend.
type Mutator[T Record, D any] interface {
	Create(ctx context.Context, draft D) (T, error)
	Update(ctx context.Context, id model.ID, draft D) (T, error)
	Delete(ctx context.Context, id model.ID) error
}

// ListController holds one screen's copy of a backend collection, the
// category options used to filter it, and the filtered view derived from both.
//
// Every load bumps a generation counter. Fetch and mutation completions are
// applied only if the controller is still open and no newer load has started
// since they were issued, so a slow delete can never clobber a fresher reload.
// Close cancels everything in flight; results that land afterwards are dropped.
// Requests the backend already accepted are not undone by Close.
type ListController[T Record, D any] struct {
	name    string
	source  Source[T]
	mutator Mutator[T, D]
	loading *LoadingSignal
	logger  Logger

	life   context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      ListState
	generation uint64
	items      []T
	options    []model.Category
	filter     model.Filter
	view       []T
	loadErr    error
}

// NewListController creates an idle controller. mutator may be nil for
// read-only lists. name is only used in log lines.
func NewListController[T Record, D any](name string, source Source[T], mutator Mutator[T, D], loading *LoadingSignal, logger Logger) *ListController[T, D] {
	life, cancel := context.WithCancel(context.Background())
	return &ListController[T, D]{
		name:    name,
		source:  source,
		mutator: mutator,
		loading: loading,
		logger:  logger,
		life:    life,
		cancel:  cancel,
	}
}

// Load fetches the collection and the options concurrently.
// A failed fetch is logged and leaves its collection empty; the other fetch
// still applies. Load returns an error only when the controller is closed or
// ctx ends before the fetches complete. LoadErr reports the fetch failures.
func (c *ListController[T, D]) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.generation++
	gen := c.generation
	c.state = StateLoading
	c.mu.Unlock()

	ctx, cancel := c.bind(ctx)
	defer cancel()

	var (
		wg                sync.WaitGroup
		itemsErr, optsErr error
	)
	wg.Add(2)

	go func() {
		defer wg.Done()
		end := c.loading.Begin()
		defer end()

		items, err := c.source.List(ctx)
		if err != nil {
			itemsErr = err
			items = nil
			c.logger.Warn("fetching list failed", "list", c.name, "error", err)
		}
		c.commit(gen, "list", func() { c.items = items })
	}()

	go func() {
		defer wg.Done()
		end := c.loading.Begin()
		defer end()

		opts, err := c.source.Options(ctx)
		if err != nil {
			optsErr = err
			opts = nil
			c.logger.Warn("fetching list options failed", "list", c.name, "error", err)
		}
		c.commit(gen, "options", func() { c.options = opts })
	}()

	wg.Wait()

	c.mu.Lock()
	closed := c.state == StateClosed
	if c.liveLocked(gen) {
		c.state = StateReady
		c.loadErr = errors.Join(itemsErr, optsErr)
	}
	c.mu.Unlock()

	if closed {
		return ErrClosed
	}
	return ctx.Err()
}

// Create sends draft to the backend and inserts the created item at the front.
func (c *ListController[T, D]) Create(ctx context.Context, draft D) (T, error) {
	var zero T
	gen, err := c.issue()
	if err != nil {
		return zero, err
	}

	ctx, cancel := c.bind(ctx)
	defer cancel()
	end := c.loading.Begin()
	defer end()

	item, err := c.mutator.Create(ctx, draft)
	if err != nil {
		return zero, err
	}
	c.commit(gen, "create", func() {
		c.items = append([]T{item}, c.items...)
	})
	return item, nil
}

// Update sends draft for the item with the given id and replaces it in place.
func (c *ListController[T, D]) Update(ctx context.Context, id model.ID, draft D) (T, error) {
	var zero T
	gen, err := c.issue()
	if err != nil {
		return zero, err
	}

	ctx, cancel := c.bind(ctx)
	defer cancel()
	end := c.loading.Begin()
	defer end()

	item, err := c.mutator.Update(ctx, id, draft)
	if err != nil {
		return zero, err
	}
	c.commit(gen, "update", func() {
		items := make([]T, len(c.items))
		for i, existing := range c.items {
			if existing.RecordID() == id {
				items[i] = item
			} else {
				items[i] = existing
			}
		}
		c.items = items
	})
	return item, nil
}

// Delete removes the item with the given id from the backend and from the list.
func (c *ListController[T, D]) Delete(ctx context.Context, id model.ID) error {
	gen, err := c.issue()
	if err != nil {
		return err
	}

	ctx, cancel := c.bind(ctx)
	defer cancel()
	end := c.loading.Begin()
	defer end()

	if err := c.mutator.Delete(ctx, id); err != nil {
		return err
	}
	c.commit(gen, "delete", func() {
		items := make([]T, 0, len(c.items))
		for _, existing := range c.items {
			if existing.RecordID() != id {
				items = append(items, existing)
			}
		}
		c.items = items
	})
	return nil
}

// SetFilter replaces the filter and recomputes the view from the full collection.
func (c *ListController[T, D]) SetFilter(f model.Filter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = f
	c.view = ApplyFilter(c.items, f)
}

// Close cancels in-flight requests and makes every later completion a no-op.
func (c *ListController[T, D]) Close() {
	c.mu.Lock()
	c.state = StateClosed
	c.mu.Unlock()
	c.cancel()
}

// Items returns a copy of the full collection in backend order.
func (c *ListController[T, D]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T{}, c.items...)
}

// View returns a copy of the filtered collection.
func (c *ListController[T, D]) View() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T{}, c.view...)
}

// Options returns a copy of the filter options.
func (c *ListController[T, D]) Options() []model.Category {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Category{}, c.options...)
}

func (c *ListController[T, D]) Filter() model.Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

func (c *ListController[T, D]) State() ListState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *ListController[T, D]) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// LoadErr returns the fetch failures of the last completed load, or nil.
func (c *ListController[T, D]) LoadErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadErr
}

// issue checks that a mutation may start and returns the generation it is tagged with.
func (c *ListController[T, D]) issue() (uint64, error) {
	if c.mutator == nil {
		return 0, ErrReadOnly
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return 0, ErrClosed
	}
	return c.generation, nil
}

// commit applies fn and refreshes the view if gen is still current.
func (c *ListController[T, D]) commit(gen uint64, what string, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.liveLocked(gen) {
		c.logger.Debug("dropping stale result", "list", c.name, "result", what, "generation", gen)
		return
	}
	fn()
	c.view = ApplyFilter(c.items, c.filter)
}

func (c *ListController[T, D]) liveLocked(gen uint64) bool {
	return c.state != StateClosed && gen == c.generation
}

// bind derives a request context that ends with either ctx or the controller.
func (c *ListController[T, D]) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.life, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
