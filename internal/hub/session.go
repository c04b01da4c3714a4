package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"educahub/internal/model"
)

// SessionKey is the state store key holding the serialized session.
const SessionKey = "session"

// SessionStore owns the signed-in user. It is the only place session
// identity may be read from, and the only component that writes it.
//
// Login, Logout and Restore are serialized: a second call waits for the
// first to finish, so persisted writes never interleave. Readers use a
// separate lock and never wait behind a network call.
type SessionStore struct {
	api       API
	state     StateStore
	encryptor Encryptor
	loading   *LoadingSignal
	logger    Logger
	clock     Clock

	opMu sync.Mutex

	mu       sync.RWMutex
	current  *model.Session
	watchers []func(*model.Session)
}

// NewSessionStore creates an anonymous store. encryptor may be nil, in which
// case the session is persisted as plain JSON.
func NewSessionStore(api API, state StateStore, encryptor Encryptor, loading *LoadingSignal, logger Logger, clock Clock) *SessionStore {
	return &SessionStore{
		api:       api,
		state:     state,
		encryptor: encryptor,
		loading:   loading,
		logger:    logger,
		clock:     clock,
	}
}

// Restore installs the persisted session, if there is a well-formed one.
// Any storage, decryption or decoding problem leaves the store anonymous.
// It never touches the network.
func (s *SessionStore) Restore(ctx context.Context) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	end := s.loading.Begin()
	defer end()

	sess, err := s.readPersisted()
	if err != nil {
		s.logger.Warn("restoring session failed, continuing signed out", "error", err)
		return
	}
	if sess == nil {
		s.logger.Debug("no persisted session")
		return
	}
	s.install(sess)
	s.logger.Info("session restored", "user_id", sess.UserID)
}

// Login exchanges credentials for a session, persists it and installs it.
// On failure the current session, if any, is left exactly as it was.
func (s *SessionStore) Login(ctx context.Context, email, password string) (*model.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, &ValidationError{Field: "email"}
	}
	if password == "" {
		return nil, &ValidationError{Field: "password"}
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()
	end := s.loading.Begin()
	defer end()

	sess, err := s.api.Login(ctx, email, password)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			msg := strings.TrimSpace(apiErr.Message)
			if msg == "" {
				msg = DefaultAuthMessage
			}
			s.logger.Info("login rejected", "email", email, "status", apiErr.Status)
			return nil, &AuthError{Message: msg}
		}
		var netErr *NetworkError
		if errors.As(err, &netErr) {
			s.logger.Error("login failed", "email", email, "error", err)
			return nil, err
		}
		s.logger.Error("login response unreadable", "email", email, "error", err)
		return nil, &AuthError{Message: MalformedResponseMessage}
	}
	if !sess.Valid() {
		s.logger.Error("login response missing id or token", "email", email)
		return nil, &AuthError{Message: MalformedResponseMessage}
	}

	signedIn := *sess
	signedIn.SignedInAt = s.clock.Now().UTC()

	if err := s.persist(&signedIn); err != nil {
		s.logger.Error("persisting session failed, session will not survive restart", "error", err)
	}
	s.install(&signedIn)
	s.logger.Info("signed in", "user_id", signedIn.UserID)

	out := signedIn
	return &out, nil
}

// Logout forgets the session locally and in persisted storage.
// It never fails: storage errors are logged and the store ends up signed out.
func (s *SessionStore) Logout(ctx context.Context) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	end := s.loading.Begin()
	defer end()

	if err := s.state.Delete(SessionKey); err != nil {
		s.logger.Error("clearing persisted session failed", "error", &StorageError{Op: "delete", Err: err})
	}
	s.install(nil)
	s.logger.Info("signed out")
}

// Current returns a copy of the live session, or nil when signed out.
func (s *SessionStore) Current() *model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	out := *s.current
	return &out
}

// SignedIn reports whether a session is live.
func (s *SessionStore) SignedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil
}

// Token returns the bearer token of the live session, or "".
func (s *SessionStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.Token
}

// Watch registers fn to be called with the new session (nil on sign-out)
// after every change.
func (s *SessionStore) Watch(fn func(*model.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}

func (s *SessionStore) install(sess *model.Session) {
	s.mu.Lock()
	if sess == nil {
		s.current = nil
	} else {
		cp := *sess
		s.current = &cp
	}
	watchers := append([]func(*model.Session){}, s.watchers...)
	s.mu.Unlock()

	for _, fn := range watchers {
		if sess == nil {
			fn(nil)
			continue
		}
		cp := *sess
		fn(&cp)
	}
}

func (s *SessionStore) persist(sess *model.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return &StorageError{Op: "encode", Err: err}
	}
	if s.encryptor != nil {
		var buf bytes.Buffer
		if err := s.encryptor.Encrypt(bytes.NewReader(data), &buf); err != nil {
			return &StorageError{Op: "encrypt", Err: err}
		}
		data = buf.Bytes()
	}
	if err := s.state.Put(SessionKey, data); err != nil {
		return &StorageError{Op: "put", Err: err}
	}
	return nil
}

func (s *SessionStore) readPersisted() (*model.Session, error) {
	data, err := s.state.Get(SessionKey)
	if err != nil {
		return nil, &StorageError{Op: "get", Err: err}
	}
	if data == nil {
		return nil, nil
	}
	if s.encryptor != nil {
		var buf bytes.Buffer
		if err := s.encryptor.Decrypt(bytes.NewReader(data), &buf); err != nil {
			return nil, &StorageError{Op: "decrypt", Err: err}
		}
		data = buf.Bytes()
	}

	var sess model.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, &StorageError{Op: "decode", Err: err}
	}
	if !sess.Valid() {
		return nil, &StorageError{Op: "decode", Err: fmt.Errorf("persisted session has no id or token")}
	}
	return &sess, nil
}
