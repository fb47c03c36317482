package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/grovetools/jana/pkg/remote"
)

// ErrNoSession is returned by Load when nobody has logged in yet.
var ErrNoSession = errors.New("not logged in")

// File is the on-disk form of a login.
type File struct {
	BaseURL   string    `yaml:"base_url"`
	Username  string    `yaml:"username"`
	Token     string    `yaml:"token"`
	TokenType string    `yaml:"token_type,omitempty"`
	CreatedAt time.Time `yaml:"created_at"`
}

// Session converts f to the credential passed to remote calls.
func (f File) Session() remote.Session {
	return remote.Session{Token: f.Token, Username: f.Username}
}

// Load reads the session file at path.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return File{}, ErrNoSession
	}
	if err != nil {
		return File{}, fmt.Errorf("read session file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse session file %s: %w", path, err)
	}
	if f.Token == "" {
		return File{}, ErrNoSession
	}
	return f, nil
}

// Save writes f to path, readable by the owner only.
func Save(path string, f File) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

// Remove deletes the session file. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
