package auth

import (
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	m, err := NewManager()
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m
}

func TestSetAndLoadToken(t *testing.T) {
	m := newTestManager(t)

	if m.Token() != "" {
		t.Error("Expected no token initially")
	}
	if err := m.SetToken("abc123"); err != nil {
		t.Fatalf("SetToken failed: %v", err)
	}
	if m.Token() != "abc123" {
		t.Errorf("Expected abc123, got %s", m.Token())
	}

	// A fresh manager reads the saved credentials back.
	reloaded, err := NewManager()
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if reloaded.Token() != "abc123" {
		t.Errorf("Expected the token to persist, got %s", reloaded.Token())
	}
}

func TestSetToken_EmptyRejected(t *testing.T) {
	m := newTestManager(t)

	if err := m.SetToken(""); err == nil {
		t.Error("Expected empty token to be rejected")
	}
}

func TestGenerateToken(t *testing.T) {
	m := newTestManager(t)

	token, err := m.GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if len(token) != 48 {
		t.Errorf("Expected a 48-char hex token, got %d chars", len(token))
	}
	if m.Token() != token {
		t.Error("Expected the generated token to be stored")
	}
}

func TestClear(t *testing.T) {
	m := newTestManager(t)

	if err := m.SetToken("abc123"); err != nil {
		t.Fatalf("SetToken failed: %v", err)
	}
	if err := m.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if m.Token() != "" {
		t.Error("Expected the token to be cleared")
	}

	// Clearing twice is fine.
	if err := m.Clear(); err != nil {
		t.Errorf("Expected a second clear to succeed: %v", err)
	}
}
