package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
)

// Settings is the process-wide runtime configuration that administrative
// endpoints may replace while the server runs. A Settings value is
// immutable once published; requests read one snapshot and never observe
// a torn write.
type Settings struct {
	DBUser         string `json:"db_user"`
	DBPassword     string `json:"db_password"` // SENSITIVE: masked in MarshalJSON
	DBHost         string `json:"db_host"`
	DBPort         int    `json:"db_port"`
	DBName         string `json:"db_name"`
	DBSSLMode      string `json:"db_ssl_mode"`
	OllamaURL      string `json:"ollama_url"`
	OllamaModel    string `json:"ollama_model"`
	EmbeddingModel string `json:"embedding_model"`
}

// Validate checks a candidate settings snapshot before publication.
func (s Settings) Validate() error {
	if s.DBUser == "" {
		return fmt.Errorf("%w: db_user must not be empty", ErrInvalidSetting)
	}
	if s.DBHost == "" {
		return fmt.Errorf("%w: db_host must not be empty", ErrInvalidSetting)
	}
	if s.DBPort < 1 || s.DBPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, s.DBPort)
	}
	if s.DBName == "" {
		return fmt.Errorf("%w: db_name must not be empty", ErrInvalidSetting)
	}
	if _, err := url.ParseRequestURI(s.OllamaURL); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidOllamaURL, s.OllamaURL)
	}
	if s.OllamaModel == "" {
		return fmt.Errorf("%w: ollama_model must not be empty", ErrInvalidSetting)
	}
	if s.EmbeddingModel == "" {
		return fmt.Errorf("%w: embedding_model must not be empty", ErrInvalidSetting)
	}
	return nil
}

// KnowledgeDSN returns the knowledge database DSN built from the snapshot.
func (s Settings) KnowledgeDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		s.DBHost, s.DBPort, s.DBUser, quoteDSNValue(s.DBPassword), s.DBName, s.DBSSLMode)
}

// MarshalJSON masks the database password.
func (s Settings) MarshalJSON() ([]byte, error) {
	type alias Settings
	a := alias(s)
	a.DBPassword = maskSecret(a.DBPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	return data, nil
}

// Runtime holds the current Settings snapshot. Readers load the snapshot
// atomically; writers are serialized by a mutex and publish whole
// snapshots, so a read racing a write sees either the old or the new
// value, never a mix.
type Runtime struct {
	mu  sync.Mutex
	cur atomic.Pointer[Settings]
}

// NewRuntime creates a Runtime seeded with the given settings.
func NewRuntime(s Settings) *Runtime {
	r := &Runtime{}
	r.cur.Store(&s)
	return r
}

// Snapshot returns the current settings. The returned value is a copy;
// mutating it has no effect on the published snapshot.
func (r *Runtime) Snapshot() Settings {
	return *r.cur.Load()
}

// Apply computes a new snapshot from the current one under the writer
// lock and publishes it atomically. If mutate returns an error nothing
// is published. The published snapshot is returned.
func (r *Runtime) Apply(mutate func(Settings) (Settings, error)) (Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, err := mutate(*r.cur.Load())
	if err != nil {
		return Settings{}, err
	}
	r.cur.Store(&next)
	return next, nil
}

// SwapEmbeddingModel replaces the embedding model and returns the
// previous one. Takes effect for subsequent requests only.
func (r *Runtime) SwapEmbeddingModel(model string) (previous string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := *r.cur.Load()
	previous = old.EmbeddingModel
	next := old
	next.EmbeddingModel = model
	r.cur.Store(&next)
	return previous
}
