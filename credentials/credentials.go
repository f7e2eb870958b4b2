// Package credentials resolves page logins through pluggable backends.
//
// A credentials file maps a credentials type to its configuration:
//
//	{
//	  "google": {"username": "example", "password": "secret"}
//	}
//
// Pages name the type they need; the backend registered for that type
// performs the login in the page's tab.
package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/perfgo/pagerunner/browser"
	"github.com/rs/zerolog"
)

// Backend logs a tab into one type of account.
type Backend interface {
	CredentialsType() string
	// LoginNeeded logs in if needed and reports whether the tab is logged in.
	LoginNeeded(ctx context.Context, tab browser.Tab, config map[string]any) (bool, error)
	// LoginNoLongerNeeded releases the login after the page is done.
	LoginNoLongerNeeded(ctx context.Context, tab browser.Tab) error
}

// Store holds the registered backends and the loaded credentials file.
type Store struct {
	logger   zerolog.Logger
	backends map[string]Backend
	config   map[string]map[string]any
}

// NewStore creates an empty store.
func NewStore(logger zerolog.Logger) *Store {
	return &Store{
		logger:   logger,
		backends: make(map[string]Backend),
		config:   make(map[string]map[string]any),
	}
}

// AddBackend registers b for its credentials type, replacing any earlier
// backend of the same type.
func (s *Store) AddBackend(b Backend) {
	s.backends[b.CredentialsType()] = b
}

// LoadFile reads a credentials file. Entries override earlier ones.
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read credentials file: %w", err)
	}

	var config map[string]map[string]any
	if err := json.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse credentials file %s: %w", path, err)
	}

	for typ, c := range config {
		s.config[typ] = c
	}
	s.logger.Debug().Str("path", path).Int("types", len(config)).Msg("Loaded credentials")
	return nil
}

// LoginNeeded logs tab in with the backend registered for credentialsType.
func (s *Store) LoginNeeded(ctx context.Context, tab browser.Tab, credentialsType string) (bool, error) {
	b, ok := s.backends[credentialsType]
	if !ok {
		return false, fmt.Errorf("unrecognized credentials type %q", credentialsType)
	}
	config := s.config[credentialsType]
	if config == nil {
		s.logger.Warn().Str("type", credentialsType).Msg("No credentials configured for type")
	}
	return b.LoginNeeded(ctx, tab, config)
}

// LoginNoLongerNeeded tells the backend for credentialsType that the tab
// does not need the login anymore.
func (s *Store) LoginNoLongerNeeded(ctx context.Context, tab browser.Tab, credentialsType string) error {
	b, ok := s.backends[credentialsType]
	if !ok {
		return fmt.Errorf("unrecognized credentials type %q", credentialsType)
	}
	return b.LoginNoLongerNeeded(ctx, tab)
}
