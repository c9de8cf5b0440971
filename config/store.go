package config

import (
	"sync"

	"github.com/automoto/boomsync/shared/netconfig"
)

// ChangeFunc is called after a successful update. all is true when the
// default changed rather than a single connection's override.
type ChangeFunc func(conn netconfig.ConnectionID, cfg PredictionConfig, all bool)

// Store holds the live prediction config. Values can be replaced at any time;
// readers always get a consistent copy.
type Store struct {
	mu        sync.RWMutex
	base      PredictionConfig
	overrides map[netconfig.ConnectionID]PredictionConfig
	listeners []ChangeFunc
}

func NewStore(base PredictionConfig) *Store {
	return &Store{
		base:      base,
		overrides: make(map[netconfig.ConnectionID]PredictionConfig),
	}
}

func (s *Store) Default() PredictionConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.base
}

// For returns the config in effect for conn.
func (s *Store) For(conn netconfig.ConnectionID) PredictionConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cfg, ok := s.overrides[conn]; ok {
		return cfg
	}
	return s.base
}

// Set replaces the default for every connection without an override.
func (s *Store) Set(cfg PredictionConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.base = cfg
	listeners := append([]ChangeFunc(nil), s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(netconfig.HostConnection, cfg, true)
	}
	return nil
}

// SetFor installs an override for one connection.
func (s *Store) SetFor(conn netconfig.ConnectionID, cfg PredictionConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.overrides[conn] = cfg
	listeners := append([]ChangeFunc(nil), s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(conn, cfg, false)
	}
	return nil
}

// Clear drops conn's override, e.g. when it disconnects.
func (s *Store) Clear(conn netconfig.ConnectionID) {
	s.mu.Lock()
	delete(s.overrides, conn)
	s.mu.Unlock()
}

func (s *Store) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}
