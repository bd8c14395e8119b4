package config

import (
	"sync/atomic"

	"github.com/atinyakov/silicabot/internal/access"
)

// Store holds the live configuration. Readers take a snapshot per use;
// Reload swaps the whole snapshot atomically.
type Store struct {
	path    string
	current atomic.Pointer[Options]
}

// NewStore wraps an already loaded snapshot. path is re-read by Reload.
func NewStore(opts *Options, path string) *Store {
	s := &Store{path: path}
	s.current.Store(opts)
	return s
}

// Current returns the active snapshot. Callers must not mutate it.
func (s *Store) Current() *Options {
	return s.current.Load()
}

// Policy returns the access snapshot of the active configuration.
func (s *Store) Policy() access.Policy {
	return s.Current().Policy()
}

// Reload re-reads the file and environment. The previous snapshot is kept on error.
func (s *Store) Reload() error {
	opts, err := Load(s.path)
	if err != nil {
		return err
	}
	s.current.Store(opts)
	return nil
}

// Prefix returns the active command prefix.
func (s *Store) Prefix() string {
	return s.Current().CommandPrefix
}
