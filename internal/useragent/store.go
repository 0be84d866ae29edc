// Package useragent keeps one stable user agent per Telegram session.
package useragent

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
)

// Entry is one persisted session → user agent pair.
type Entry struct {
	SessionName string `json:"session_name"`
	UserAgent   string `json:"user_agent"`
}

// Store is the user_agents.json cache. At most one entry exists per session.
type Store struct {
	path    string
	gen     *Generator
	logger  *zap.Logger
	mu      sync.Mutex
	entries []Entry
}

// Load reads path. A missing or unreadable cache yields an empty store.
func Load(path string, gen *Generator, logger *zap.Logger) (*Store, error) {
	if gen == nil {
		gen = NewGenerator(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{path: path, gen: gen, logger: logger}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Warn("User agents file not found, creating...", zap.String("path", path))
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("useragent: read %s: %w", path, err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		logger.Warn("User agents file is empty or corrupted.", zap.String("path", path), zap.Error(err))
		return s, nil
	}
	s.entries = dedupe(entries)
	return s, nil
}

// Get returns the cached user agent for session.
func (s *Store) Get(session string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(session)
}

// Ensure returns the cached user agent for session, generating and
// persisting a new one when none exists.
func (s *Store) Ensure(session string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ua, ok := s.lookup(session); ok {
		return ua, nil
	}

	ua := s.gen.Generate()
	s.entries = append(s.entries, Entry{SessionName: session, UserAgent: ua})
	if err := s.save(); err != nil {
		s.entries = s.entries[:len(s.entries)-1]
		return "", err
	}
	s.logger.Info("User agent saved successfully", zap.String("session", session))
	return ua, nil
}

// Entries returns a copy of the cache contents.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Store) lookup(session string) (string, bool) {
	for _, e := range s.entries {
		if e.SessionName == session {
			return e.UserAgent, true
		}
	}
	return "", false
}

func (s *Store) save() error {
	data, err := json.MarshalIndent(s.entries, "", "    ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("useragent: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("useragent: replace %s: %w", s.path, err)
	}
	return nil
}

// dedupe keeps the first entry per session name.
func dedupe(entries []Entry) []Entry {
	seen := make(map[string]struct{}, len(entries))
	out := entries[:0]
	for _, e := range entries {
		if e.SessionName == "" {
			continue
		}
		if _, ok := seen[e.SessionName]; ok {
			continue
		}
		seen[e.SessionName] = struct{}{}
		out = append(out, e)
	}
	return out
}
