package backend

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"axis-blue-backend/internal/localstate"
)

// Backend kinds.
const (
	KindGorm = "gorm"
	KindREST = "rest"
)

// Where resolved settings came from.
const (
	SourceNone   = ""
	SourceConfig = "config"
	SourceLocal  = "local"
)

// Settings selects and addresses a backing store.
type Settings struct {
	Kind   string
	URL    string
	Key    string
	Source string
}

// needsAddress reports whether the kind talks to a remote URL.
func (s Settings) needsAddress() bool {
	return s.Kind == KindREST
}

func (s Settings) missing() []string {
	if !s.needsAddress() {
		return nil
	}
	var m []string
	if s.URL == "" {
		m = append(m, "url")
	}
	if s.Key == "" {
		m = append(m, "key")
	}
	return m
}

// localConfig is the locally stored override document.
type localConfig struct {
	URL string `json:"url"`
	Key string `json:"anonKey"`
}

// Storage is the local document store holding the override.
type Storage interface {
	Load(key string, v any) (bool, error)
	Save(key string, v any) error
	Delete(key string) error
}

// Factory builds a Backend for resolved settings.
type Factory func(Settings) (Backend, error)

// Manager resolves backend settings at call time and hands out a Backend
// built for them. Static settings (environment, then YAML) take precedence
// over the locally stored override.
type Manager struct {
	mu      sync.Mutex
	static  Settings
	storage Storage
	factory Factory
	logger  *zap.Logger

	current  Backend
	builtFor Settings
}

// NewManager creates a Manager. static.Kind defaults to gorm.
func NewManager(static Settings, storage Storage, factory Factory, logger *zap.Logger) *Manager {
	if static.Kind == "" {
		static.Kind = KindGorm
	}
	static.URL = strings.TrimRight(strings.TrimSpace(static.URL), "/")
	static.Key = strings.TrimSpace(static.Key)
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{static: static, storage: storage, factory: factory, logger: logger}
}

// Settings resolves the effective settings. It fails with a ConfigError
// when the selected kind lacks an address or key; the partial settings are
// still returned.
func (m *Manager) Settings() (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolveLocked()
}

func (m *Manager) resolveLocked() (Settings, error) {
	s := Settings{Kind: m.static.Kind}
	if !s.needsAddress() {
		s.Source = SourceConfig
		return s, nil
	}

	if m.static.URL != "" && m.static.Key != "" {
		s.URL, s.Key, s.Source = m.static.URL, m.static.Key, SourceConfig
		return s, nil
	}

	var local localConfig
	found, err := m.storage.Load(localstate.KeyBackendConfig, &local)
	if err != nil {
		m.logger.Warn("failed to read stored backend config", zap.Error(err))
	}
	s.URL, s.Key = m.static.URL, m.static.Key
	if found && s.URL == "" {
		s.URL = local.URL
	}
	if found && s.Key == "" {
		s.Key = local.Key
	}
	if missing := s.missing(); len(missing) > 0 {
		return s, &ConfigError{Missing: missing}
	}
	s.Source = SourceLocal
	return s, nil
}

// Backend returns a Backend for the current settings, rebuilding it when the
// settings changed since the last call.
func (m *Manager) Backend() (Backend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.resolveLocked()
	if err != nil {
		return nil, err
	}
	if m.current != nil && m.builtFor == s {
		return m.current, nil
	}
	b, err := m.factory(s)
	if err != nil {
		return nil, fmt.Errorf("build %s backend: %w", s.Kind, err)
	}
	m.current, m.builtFor = b, s
	m.logger.Info("backend ready", zap.String("kind", s.Kind), zap.String("source", s.Source))
	return b, nil
}

// Configure stores a local override for the URL and key.
func (m *Manager) Configure(url, key string) error {
	url = strings.TrimRight(strings.TrimSpace(url), "/")
	key = strings.TrimSpace(key)
	if url == "" || key == "" {
		return &ConfigError{Missing: (Settings{Kind: KindREST, URL: url, Key: key}).missing()}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.storage.Save(localstate.KeyBackendConfig, localConfig{URL: url, Key: key}); err != nil {
		return fmt.Errorf("save backend config: %w", err)
	}
	m.current = nil
	return nil
}

// Clear removes the local override.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.storage.Delete(localstate.KeyBackendConfig); err != nil {
		return fmt.Errorf("clear backend config: %w", err)
	}
	m.current = nil
	return nil
}

// EnvReport tells which settings are present without revealing them.
type EnvReport struct {
	Kind       string `json:"kind"`
	HasURL     bool   `json:"has_url"`
	HasKey     bool   `json:"has_key"`
	Source     string `json:"source"`
	Configured bool   `json:"configured"`
}

// Env reports settings presence.
func (m *Manager) Env() EnvReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.resolveLocked()
	return EnvReport{
		Kind:       s.Kind,
		HasURL:     s.URL != "",
		HasKey:     s.Key != "",
		Source:     s.Source,
		Configured: err == nil,
	}
}
