// Package auth manages the API token credentials for the Warden CLI.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Credentials stores the saved API token.
type Credentials struct {
	Token     string `json:"token"`
	CreatedAt int64  `json:"created_at"`
}

// Manager handles credential storage operations.
type Manager struct {
	configDir   string
	credentials *Credentials
	mu          sync.RWMutex
}

// NewManager creates a new auth manager, loading any saved credentials.
func NewManager() (*Manager, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", "warden")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	m := &Manager{configDir: configDir}
	_ = m.loadCredentials()
	return m, nil
}

// Token returns the saved API token, or empty if none.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.credentials == nil {
		return ""
	}
	return m.credentials.Token
}

// SetToken stores an API token.
func (m *Manager) SetToken(token string) error {
	if token == "" {
		return fmt.Errorf("token cannot be empty")
	}

	m.mu.Lock()
	m.credentials = &Credentials{
		Token:     token,
		CreatedAt: time.Now().Unix(),
	}
	m.mu.Unlock()

	return m.saveCredentials()
}

// GenerateToken creates and stores a fresh random token, returning it.
func (m *Manager) GenerateToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	token := hex.EncodeToString(b)
	if err := m.SetToken(token); err != nil {
		return "", err
	}
	return token, nil
}

// Clear removes the saved credentials.
func (m *Manager) Clear() error {
	m.mu.Lock()
	m.credentials = nil
	m.mu.Unlock()

	if err := os.Remove(m.credentialsPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}
	return nil
}

// credentialsPath returns the path to the credentials file.
func (m *Manager) credentialsPath() string {
	return filepath.Join(m.configDir, "credentials.json")
}

// loadCredentials loads credentials from disk.
func (m *Manager) loadCredentials() error {
	data, err := os.ReadFile(m.credentialsPath())
	if err != nil {
		return err
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return err
	}

	m.mu.Lock()
	m.credentials = &creds
	m.mu.Unlock()
	return nil
}

// saveCredentials saves credentials to disk.
func (m *Manager) saveCredentials() error {
	m.mu.RLock()
	creds := m.credentials
	m.mu.RUnlock()

	if creds == nil {
		return nil
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.credentialsPath(), data, 0600)
}
