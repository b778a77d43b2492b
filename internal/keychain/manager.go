// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain stores the database connection string in the OS credential
// store (macOS Keychain, Windows Credential Manager, Secret Service or KWallet
// on Linux, and pass where installed). It never falls back to a plain file.
package keychain

import (
	"errors"
	"runtime"
	"sync"

	"github.com/99designs/keyring"
)

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "rowscope"

// KeyDBDSN is the item holding the connection string.
const KeyDBDSN = "db_dsn"

// ErrNotFound is returned when no DSN is stored.
var ErrNotFound = errors.New("keychain: no connection string stored")

var (
	globalManager *Manager
	mu            sync.Mutex
)

// Manager provides thread-safe access to stored secrets.
type Manager struct {
	mu   sync.RWMutex
	ring keyring.Keyring
}

// NewManager opens the platform credential store.
func NewManager() (*Manager, error) {
	ring, err := openRing()
	if err != nil {
		return nil, err
	}
	return &Manager{ring: ring}, nil
}

// NewWithRing wraps an already opened keyring.
func NewWithRing(ring keyring.Keyring) *Manager {
	return &Manager{ring: ring}
}

// GetManager returns the process-wide manager, opening it on first use.
// A failed open is retried on the next call.
func GetManager() (*Manager, error) {
	mu.Lock()
	defer mu.Unlock()

	if globalManager != nil {
		return globalManager, nil
	}
	m, err := NewManager()
	if err != nil {
		return nil, err
	}
	globalManager = m
	return m, nil
}

func allowedBackends() []keyring.BackendType {
	switch runtime.GOOS {
	case "darwin":
		return []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "windows":
		return []keyring.BackendType{keyring.WinCredBackend}
	default:
		return []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend, keyring.PassBackend}
	}
}

// openRing opens the OS keyring using native platform backends only.
func openRing() (keyring.Keyring, error) {
	cfg := keyring.Config{
		ServiceName:              ServiceName,
		AllowedBackends:          allowedBackends(),
		PassPrefix:               ServiceName,
		WinCredPrefix:            ServiceName,
		KeychainTrustApplication: true,
	}
	ring, err := keyring.Open(cfg)
	if err != nil {
		if runtime.GOOS == "darwin" {
			return nil, errors.New("macOS Keychain unavailable; install 'pass' (brew install pass gnupg) or set ROWSCOPE_DSN")
		}
		return nil, errors.New("no OS credential store available; set ROWSCOPE_DSN or DATABASE_URL instead")
	}
	return ring, nil
}

// SaveDBDSN stores the database DSN.
func (m *Manager) SaveDBDSN(dsn string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ring.Set(keyring.Item{Key: KeyDBDSN, Data: []byte(dsn), Label: "rowscope connection string"})
}

// LoadDBDSN retrieves the database DSN. It returns ErrNotFound when nothing
// is stored.
func (m *Manager) LoadDBDSN() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, err := m.ring.Get(KeyDBDSN)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if len(it.Data) == 0 {
		return "", ErrNotFound
	}
	return string(it.Data), nil
}

// ClearDB removes the stored DSN. Removing a missing entry is not an error.
func (m *Manager) ClearDB() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ring.Remove(KeyDBDSN); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}
	return nil
}
