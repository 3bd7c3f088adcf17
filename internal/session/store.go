// File: internal/session/store.go
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Store persists the portal cookie map between command invocations. Cookies
// older than the TTL are treated as absent: the portal's server-side session
// will have expired anyway, and replaying dead cookies just wastes a
// verification round trip.
type Store struct {
	path string
	ttl  time.Duration
	log  *zap.Logger

	// now is swappable for tests.
	now func() time.Time
}

// envelope is the on-disk format.
type envelope struct {
	SavedAt time.Time         `json:"saved_at"`
	Cookies map[string]string `json:"cookies"`
}

// NewStore creates a cookie store backed by the file at path.
func NewStore(path string, ttl time.Duration, logger *zap.Logger) *Store {
	return &Store{
		path: path,
		ttl:  ttl,
		log:  logger.Named("session"),
		now:  time.Now,
	}
}

// Load returns the persisted cookie map, or an empty map when the file is
// missing, unreadable, or older than the TTL. A corrupt or stale file is
// never an error for the caller; it only means "no cached session".
func (s *Store) Load() map[string]string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("Failed to read cookie file; starting unauthenticated.",
				zap.String("path", s.path), zap.Error(err))
		}
		return map[string]string{}
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.log.Warn("Cookie file is corrupt; ignoring it.",
			zap.String("path", s.path), zap.Error(err))
		return map[string]string{}
	}

	age := s.now().Sub(env.SavedAt)
	if age > s.ttl {
		s.log.Debug("Cached cookies expired.",
			zap.Duration("age", age), zap.Duration("ttl", s.ttl))
		return map[string]string{}
	}

	if env.Cookies == nil {
		return map[string]string{}
	}
	return env.Cookies
}

// Save persists the cookie map with the current timestamp. The write is
// atomic (temp file + rename) so a crash mid-write cannot corrupt an
// existing session file.
func (s *Store) Save(cookies map[string]string) error {
	if cookies == nil {
		cookies = map[string]string{}
	}

	data, err := json.MarshalIndent(envelope{SavedAt: s.now(), Cookies: cookies}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cookies: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create session directory %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".cookies-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp cookie file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cookie file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close cookie file: %w", err)
	}
	// Cookies are credentials in practice; keep them private to the user.
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("failed to set cookie file mode: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace cookie file: %w", err)
	}

	s.log.Debug("Persisted session cookies.", zap.Int("count", len(cookies)))
	return nil
}

// Clear removes the persisted cookie file. A missing file is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove cookie file: %w", err)
	}
	return nil
}
