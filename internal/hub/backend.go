package hub

import (
	"context"
	"io"

	"educahub/internal/model"
)

// API is the remote backend contract consumed by the client core.
// Transport failures are returned as *NetworkError and non-2xx answers as *APIError.
type API interface {
	// Login exchanges credentials for a session. The returned session has no SignedInAt.
	Login(ctx context.Context, email, password string) (*model.Session, error)

	// Profile fetches a user's profile.
	Profile(ctx context.Context, userID model.ID) (*model.User, error)

	// UpdateUser applies a partial update to a user.
	UpdateUser(ctx context.Context, userID model.ID, update model.UserUpdate) (*model.User, error)

	// Categories lists the post categories, normalized to {id, name}.
	Categories(ctx context.Context) ([]model.Category, error)

	// Posts lists every post.
	Posts(ctx context.Context) ([]model.Post, error)

	// UserPosts lists the posts written by one user.
	UserPosts(ctx context.Context, userID model.ID) ([]model.Post, error)

	CreatePost(ctx context.Context, payload model.PostPayload) (*model.Post, error)
	UpdatePost(ctx context.Context, id model.ID, payload model.PostPayload) (*model.Post, error)
	DeletePost(ctx context.Context, id model.ID) error
}

// StateStore persists small named values on the local device.
// Get returns nil, nil when the key is absent.
type StateStore interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// Encryptor seals persisted values at rest.
type Encryptor interface {
	// Setup performs one-time key generation. Called during `educahub config init`.
	Setup() error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Decrypt reads ciphertext from r and writes plaintext to w.
	Decrypt(r io.Reader, w io.Writer) error

	// IsConfigured returns true if the keys needed by Encrypt and Decrypt exist.
	IsConfigured() bool
}
