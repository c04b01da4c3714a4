package testutil

import (
	"context"
	"testing"

	"educahub/internal/api"
	"educahub/internal/hub"
	"educahub/internal/storage"
)

// Env wires a SessionStore and API client to a FakeBackend.
type Env struct {
	Backend  *FakeBackend
	API      *api.Client
	State    *storage.MemoryStore
	Loading  *hub.LoadingSignal
	Logger   *RecordingLogger
	Clock    *StubClock
	Sessions *hub.SessionStore
}

// NewEnv creates a signed-out client stack talking to a fresh FakeBackend.
// encryptor may be nil.
func NewEnv(t *testing.T, encryptor hub.Encryptor) *Env {
	t.Helper()
	e := &Env{
		Backend: NewFakeBackend(t),
		State:   storage.NewMemoryStore(),
		Loading: hub.NewLoadingSignal(),
		Logger:  NewRecordingLogger(),
		Clock:   FixedClock(),
	}
	e.API = api.NewClient(e.Backend.HTTPClient(), e.Backend.URL(), func() string {
		return e.Sessions.Token()
	}, NewStubIDGenerator())
	e.Sessions = hub.NewSessionStore(e.API, e.State, encryptor, e.Loading, e.Logger, e.Clock)
	return e
}

// SignIn registers a user on the backend and logs in as them.
// It returns the new user's id.
func (e *Env) SignIn(t *testing.T, name, email, password string) string {
	t.Helper()
	id := e.Backend.AddUser(name, email, password)
	if _, err := e.Sessions.Login(context.Background(), email, password); err != nil {
		t.Fatalf("Login(%q) error = %v", email, err)
	}
	return id
}
