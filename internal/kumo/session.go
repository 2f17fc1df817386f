package kumo

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// session holds the bearer token pair and its persistence targets. Refresh
// serialization lives in Client; this type only guards the fields.
type session struct {
	username  string
	statePath string
	blob      BlobStore
	log       *zap.Logger

	mu        sync.Mutex
	access    string
	refresh   string
	expiresAt time.Time
}

func newSession(username, statePath string, blob BlobStore, log *zap.Logger) *session {
	return &session{
		username:  username,
		statePath: statePath,
		blob:      blob,
		log:       log,
	}
}

// store replaces the token pair and stamps a fresh expiry.
func (s *session) store(ctx context.Context, access, refresh string) {
	s.mu.Lock()
	s.access = access
	s.refresh = refresh
	s.expiresAt = time.Now().Add(tokenTTL)
	s.mu.Unlock()

	sessionValid.Set(1)
	s.persist(ctx, State{
		SchemaVersion: StateSchemaVersion,
		Username:      s.username,
		AccessToken:   access,
		RefreshToken:  refresh,
	})
}

// restore loads a previously persisted token pair. The expiry is left
// unset; a restored access token is used until the service rejects it.
func (s *session) restore(ctx context.Context) bool {
	state, err := s.load(ctx)
	if err != nil {
		if !errors.Is(err, ErrStateNotFound) && !errors.Is(err, ErrBlobNotFound) {
			s.log.Warn("session restore failed", zap.Error(err))
		}
		return false
	}
	if state.Username != s.username {
		s.log.Info("ignoring persisted session for different user",
			zap.String("persisted", state.Username))
		return false
	}

	s.mu.Lock()
	s.access = state.AccessToken
	s.refresh = state.RefreshToken
	s.expiresAt = time.Time{}
	s.mu.Unlock()

	sessionValid.Set(1)
	return true
}

func (s *session) load(ctx context.Context) (State, error) {
	if s.statePath != "" {
		state, err := LoadState(s.statePath)
		if err == nil {
			return state, nil
		}
		if !errors.Is(err, ErrStateNotFound) {
			return State{}, err
		}
	}
	if s.blob != nil {
		data, err := s.blob.Load(ctx)
		if err != nil {
			return State{}, err
		}
		return DecodeState(data)
	}
	return State{}, ErrStateNotFound
}

// persist mirrors the state to disk and blob storage. Failures are logged;
// the in-memory session stays authoritative.
func (s *session) persist(ctx context.Context, state State) {
	ok := true
	if s.statePath != "" {
		if err := WriteState(s.statePath, state); err != nil {
			ok = false
			s.log.Warn("persist session state", zap.Error(err))
		}
	}
	if s.blob != nil {
		data, err := json.Marshal(state)
		if err == nil {
			err = s.blob.Save(ctx, data)
		}
		if err != nil {
			ok = false
			s.log.Warn("persist session blob", zap.Error(err))
		}
	}
	if ok {
		persistOK.Set(1)
	} else {
		persistOK.Set(0)
	}
}

func (s *session) accessToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access, s.access != ""
}

func (s *session) refreshToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refresh, s.refresh != ""
}

// expiringWithin reports whether the access token is due a proactive
// refresh. A zero expiry means the token's age is unknown; it is then used
// as-is until the service rejects it.
func (s *session) expiringWithin(margin time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expiresAt.IsZero() {
		return false
	}
	return !time.Now().Add(margin).Before(s.expiresAt)
}
