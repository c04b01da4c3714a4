package hub

import (
	"context"
	"strings"

	"educahub/internal/model"
)

// PostFeed is the home screen source: every post, filtered by category. Read-only.
type PostFeed struct {
	api API
}

var _ Source[model.Post] = (*PostFeed)(nil)

func NewPostFeed(api API) *PostFeed {
	return &PostFeed{api: api}
}

func (f *PostFeed) List(ctx context.Context) ([]model.Post, error) {
	return f.api.Posts(ctx)
}

func (f *PostFeed) Options(ctx context.Context) ([]model.Category, error) {
	return f.api.Categories(ctx)
}

// AuthorPosts is the profile screen source: the signed-in user's posts,
// which that user may create, edit and delete. Identity always comes from
// the injected SessionStore at call time.
type AuthorPosts struct {
	api      API
	sessions *SessionStore
}

var (
	_ Source[model.Post]                   = (*AuthorPosts)(nil)
	_ Mutator[model.Post, model.PostDraft] = (*AuthorPosts)(nil)
)

func NewAuthorPosts(api API, sessions *SessionStore) *AuthorPosts {
	return &AuthorPosts{api: api, sessions: sessions}
}

func (a *AuthorPosts) List(ctx context.Context) ([]model.Post, error) {
	sess := a.sessions.Current()
	if sess == nil {
		return nil, ErrNoSession
	}
	return a.api.UserPosts(ctx, sess.UserID)
}

func (a *AuthorPosts) Options(ctx context.Context) ([]model.Category, error) {
	return a.api.Categories(ctx)
}

func (a *AuthorPosts) Create(ctx context.Context, draft model.PostDraft) (model.Post, error) {
	payload, err := a.payload(draft)
	if err != nil {
		return model.Post{}, err
	}
	p, err := a.api.CreatePost(ctx, payload)
	if err != nil {
		return model.Post{}, err
	}
	return *p, nil
}

func (a *AuthorPosts) Update(ctx context.Context, id model.ID, draft model.PostDraft) (model.Post, error) {
	if id == "" {
		return model.Post{}, &ValidationError{Field: "id"}
	}
	payload, err := a.payload(draft)
	if err != nil {
		return model.Post{}, err
	}
	p, err := a.api.UpdatePost(ctx, id, payload)
	if err != nil {
		return model.Post{}, err
	}
	return *p, nil
}

func (a *AuthorPosts) Delete(ctx context.Context, id model.ID) error {
	if id == "" {
		return &ValidationError{Field: "id"}
	}
	if !a.sessions.SignedIn() {
		return ErrNoSession
	}
	return a.api.DeletePost(ctx, id)
}

// payload validates draft and stamps it with the signed-in author.
func (a *AuthorPosts) payload(draft model.PostDraft) (model.PostPayload, error) {
	if err := ValidateDraft(draft); err != nil {
		return model.PostPayload{}, err
	}
	sess := a.sessions.Current()
	if sess == nil {
		return model.PostPayload{}, ErrNoSession
	}
	return model.PostPayload{
		Title:      strings.TrimSpace(draft.Title),
		Content:    strings.TrimSpace(draft.Content),
		CategoryID: draft.CategoryID,
		UserID:     sess.UserID,
		Author:     sess.DisplayName,
	}, nil
}

// ValidateDraft checks that every field a post needs is present.
func ValidateDraft(d model.PostDraft) error {
	if strings.TrimSpace(d.Title) == "" {
		return &ValidationError{Field: "title"}
	}
	if strings.TrimSpace(d.Content) == "" {
		return &ValidationError{Field: "content"}
	}
	if strings.TrimSpace(string(d.CategoryID)) == "" {
		return &ValidationError{Field: "category"}
	}
	return nil
}

// Profiles reads and edits the signed-in user's profile.
type Profiles struct {
	api      API
	sessions *SessionStore
	loading  *LoadingSignal
}

func NewProfiles(api API, sessions *SessionStore, loading *LoadingSignal) *Profiles {
	return &Profiles{api: api, sessions: sessions, loading: loading}
}

// Load fetches the profile of the signed-in user.
func (p *Profiles) Load(ctx context.Context) (*model.User, error) {
	sess := p.sessions.Current()
	if sess == nil {
		return nil, ErrNoSession
	}
	end := p.loading.Begin()
	defer end()
	return p.api.Profile(ctx, sess.UserID)
}

// Update applies a partial update to the signed-in user.
func (p *Profiles) Update(ctx context.Context, update model.UserUpdate) (*model.User, error) {
	if update.Empty() {
		return nil, &ValidationError{Field: "update", Message: "nothing to change"}
	}
	if update.Email != nil && strings.TrimSpace(*update.Email) == "" {
		return nil, &ValidationError{Field: "email", Message: "cannot be blank"}
	}
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return nil, &ValidationError{Field: "name", Message: "cannot be blank"}
	}
	sess := p.sessions.Current()
	if sess == nil {
		return nil, ErrNoSession
	}
	end := p.loading.Begin()
	defer end()
	return p.api.UpdateUser(ctx, sess.UserID, update)
}
