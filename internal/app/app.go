package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"educahub/internal/api"
	"educahub/internal/config"
	"educahub/internal/encryption"
	"educahub/internal/hub"
	"educahub/internal/model"
	"educahub/internal/storage"
)

// HubApp is the application layer between the CLI and the client core.
// It constructs all dependencies from config, restores the saved session,
// and exposes one method per user-facing action. Close releases the state
// store and the log file.
type HubApp struct {
	cfg       *config.Config
	state     hub.StateStore
	encryptor hub.Encryptor
	api       *api.Client
	loading   *hub.LoadingSignal
	sessions  *hub.SessionStore
	profiles  *hub.Profiles
	logger    hub.Logger
	op        *Operation
	logFile   *os.File
}

// Listing is one screen's worth of posts plus the categories to filter them by.
// LoadErr is set when part of the data could not be fetched; the rest is
// still usable and the caller may retry.
type Listing struct {
	Posts      []model.Post
	Categories []model.Category
	Filter     model.Filter
	LoadErr    error
}

// NewHubApp creates a fully wired HubApp from the given config.
// operation identifies the CLI command being run (e.g. "Login", "Feed").
// Warnings and errors are echoed to stderr. The caller must call Close when done.
func NewHubApp(ctx context.Context, cfg *config.Config, operation string) (*HubApp, error) {
	return newHubApp(ctx, cfg, operation, os.Stderr, hub.RealClock{}, hub.UUIDGenerator{})
}

func newHubApp(ctx context.Context, cfg *config.Config, operation string, console io.Writer, clock hub.Clock, ids hub.IDGenerator) (*HubApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	op := NewOperation(operation, ids, clock)
	logger, logFile, err := newLogger(cfg.LogDir, op.ID, console)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	if !enc.IsConfigured() {
		logFile.Close()
		return nil, fmt.Errorf("session keys not found at %s: run `educahub config init`", cfg.Encryption.PrivateKeyPath)
	}

	state, err := storage.NewStateStoreFromConfig(cfg.Storage, clock)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening state store: %w", err)
	}

	a := &HubApp{
		cfg:       cfg,
		state:     state,
		encryptor: enc,
		loading:   hub.NewLoadingSignal(),
		logger:    log,
		op:        op,
		logFile:   logFile,
	}
	a.api = api.NewClient(api.NewHTTPClient(cfg.API), cfg.API.BaseURL, a.token, ids)
	a.sessions = hub.NewSessionStore(a.api, state, enc, a.loading, log, clock)
	a.profiles = hub.NewProfiles(a.api, a.sessions, a.loading)

	log.Debug("operation started", "operation", op.Name, "client_id", cfg.ClientID)
	a.sessions.Restore(ctx)
	return a, nil
}

func (a *HubApp) token() string {
	return a.sessions.Token()
}

// Operation returns the operation this app instance was created for.
func (a *HubApp) Operation() *Operation {
	return a.op
}

// Loading exposes the shared in-flight signal, e.g. to drive a spinner.
func (a *HubApp) Loading() *hub.LoadingSignal {
	return a.loading
}

// Login signs in with the given credentials and persists the session.
func (a *HubApp) Login(ctx context.Context, email, password string) (*model.Session, error) {
	sess, err := a.sessions.Login(ctx, email, password)
	return sess, a.op.Record(err)
}

// Logout forgets the session. It always succeeds.
func (a *HubApp) Logout(ctx context.Context) {
	a.sessions.Logout(ctx)
}

// Session returns the signed-in session, or nil.
func (a *HubApp) Session() *model.Session {
	return a.sessions.Current()
}

// Feed loads every post and the category list, then applies filter.
func (a *HubApp) Feed(ctx context.Context, filter model.Filter) (*Listing, error) {
	feed := hub.NewListController[model.Post, model.PostDraft]("feed", hub.NewPostFeed(a.api), nil, a.loading, a.logger)
	defer feed.Close()
	return a.list(ctx, feed, filter)
}

// MyPosts loads the signed-in user's posts, then applies filter.
func (a *HubApp) MyPosts(ctx context.Context, filter model.Filter) (*Listing, error) {
	if !a.sessions.SignedIn() {
		return nil, a.op.Record(hub.ErrNoSession)
	}
	mine := a.myPosts()
	defer mine.Close()
	return a.list(ctx, mine, filter)
}

// Categories returns the post categories.
func (a *HubApp) Categories(ctx context.Context) ([]model.Category, error) {
	cats, err := a.api.Categories(ctx)
	if err != nil {
		return nil, a.op.Record(fmt.Errorf("listing categories: %w", err))
	}
	return cats, nil
}

// Profile returns the signed-in user's profile.
func (a *HubApp) Profile(ctx context.Context) (*model.User, error) {
	u, err := a.profiles.Load(ctx)
	return u, a.op.Record(err)
}

// UpdateProfile applies a partial update to the signed-in user.
// The stored session keeps the old name and email until the next login.
func (a *HubApp) UpdateProfile(ctx context.Context, update model.UserUpdate) (*model.User, error) {
	u, err := a.profiles.Update(ctx, update)
	return u, a.op.Record(err)
}

// CreatePost publishes a new post as the signed-in user.
func (a *HubApp) CreatePost(ctx context.Context, draft model.PostDraft) (model.Post, error) {
	mine := a.myPosts()
	defer mine.Close()
	p, err := mine.Create(ctx, draft)
	return p, a.op.Record(err)
}

// UpdatePost replaces the editable fields of one of the user's posts.
func (a *HubApp) UpdatePost(ctx context.Context, id model.ID, draft model.PostDraft) (model.Post, error) {
	mine := a.myPosts()
	defer mine.Close()
	p, err := mine.Update(ctx, id, draft)
	return p, a.op.Record(err)
}

// DeletePost removes one of the user's posts.
func (a *HubApp) DeletePost(ctx context.Context, id model.ID) error {
	mine := a.myPosts()
	defer mine.Close()
	return a.op.Record(mine.Delete(ctx, id))
}

// Close finalizes the operation and releases resources.
func (a *HubApp) Close() error {
	a.logger.Debug("operation finished", "operation", a.op.Name, "status", a.op.Status)

	var errs []error
	if err := a.state.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing state store: %w", err))
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing log file: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (a *HubApp) myPosts() *hub.ListController[model.Post, model.PostDraft] {
	posts := hub.NewAuthorPosts(a.api, a.sessions)
	return hub.NewListController[model.Post, model.PostDraft]("my-posts", posts, posts, a.loading, a.logger)
}

func (a *HubApp) list(ctx context.Context, c *hub.ListController[model.Post, model.PostDraft], filter model.Filter) (*Listing, error) {
	if err := c.Load(ctx); err != nil {
		return nil, a.op.Record(err)
	}
	c.SetFilter(filter)
	l := &Listing{
		Posts:      c.View(),
		Categories: c.Options(),
		Filter:     c.Filter(),
		LoadErr:    c.LoadErr(),
	}
	if l.LoadErr != nil {
		a.op.Record(l.LoadErr)
	}
	return l, nil
}

// InitClient writes a fresh config to configPath and generates the session
// keys it names. It refuses to overwrite an existing config.
func InitClient(configPath string, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if err := config.Init(configPath, cfg); err != nil {
		return err
	}
	if enc.IsConfigured() {
		return nil
	}
	if err := enc.Setup(); err != nil {
		return fmt.Errorf("generating session keys: %w", err)
	}
	return nil
}

// ResolveCategory maps a category id or name, as typed by a user, to its id.
// Names match case-insensitively.
func (a *HubApp) ResolveCategory(ctx context.Context, s string) (model.ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", &hub.ValidationError{Field: "category"}
	}
	cats, err := a.Categories(ctx)
	if err != nil {
		return "", err
	}
	for _, c := range cats {
		if string(c.ID) == s {
			return c.ID, nil
		}
	}
	for _, c := range cats {
		if strings.EqualFold(c.Name, s) {
			return c.ID, nil
		}
	}
	return "", a.op.Record(&hub.ValidationError{Field: "category", Message: fmt.Sprintf("unknown category %q", s)})
}

// FindMyPost returns one of the signed-in user's posts by id.
func (a *HubApp) FindMyPost(ctx context.Context, id model.ID) (*model.Post, error) {
	l, err := a.MyPosts(ctx, model.Filter{})
	if err != nil {
		return nil, err
	}
	if l.LoadErr != nil {
		return nil, l.LoadErr
	}
	for _, p := range l.Posts {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, a.op.Record(fmt.Errorf("post %s: %w", id, hub.ErrNotFound))
}
