// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain provides centralized, thread-safe keychain operations for billpay.
// It stores the long-lived merchant credentials the gateway client needs
// (merchant id, ledger DSN). Session tokens are deliberately never stored here:
// a session lives only in process memory.
package keychain

import (
	"errors"
	"runtime"
	"strings"
	"sync"

	"github.com/99designs/keyring"
)

// Global keychain manager instance
var (
	globalManager *Manager
	mu            sync.Mutex
)

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "billpay"

// Keys used for storing secrets in the OS keychain.
const (
	KeyMerchantID = "gateway_merchant_id"
	KeyLedgerDSN  = "ledger_dsn"
)

// ErrNotFound is returned when a secret has not been saved yet.
var ErrNotFound = errors.New("secret not found in keychain")

// Manager provides centralized, thread-safe operations for the OS keychain.
type Manager struct {
	mu   sync.RWMutex
	ring keyring.Keyring
}

// NewManager creates a new keychain manager with the OS keyring initialized.
func NewManager() (*Manager, error) {
	ring, err := openRing()
	if err != nil {
		return nil, err
	}
	return &Manager{ring: ring}, nil
}

// NewManagerWithRing wraps an already opened keyring. Tests pass an
// in-memory keyring.ArrayKeyring.
func NewManagerWithRing(ring keyring.Keyring) *Manager {
	return &Manager{ring: ring}
}

// GetManager returns the global keychain manager instance.
// If initialization fails, it will retry on subsequent calls.
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
	return globalManager, nil
}

// openRing opens the OS keyring using native platform backends only.
// There is no encrypted-file fallback: a merchant id is better re-entered than
// left in a weakly protected file.
func openRing() (keyring.Keyring, error) {
	var allowedBackends []keyring.BackendType
	switch runtime.GOOS {
	case "darwin":
		allowedBackends = []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "windows":
		allowedBackends = []keyring.BackendType{keyring.WinCredBackend}
	case "linux":
		allowedBackends = []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend, keyring.PassBackend}
	default:
		return nil, errors.New("secure storage not supported on this OS")
	}

	cfg := keyring.Config{
		ServiceName:     ServiceName,
		AllowedBackends: allowedBackends,
		PassPrefix:      ServiceName,
	}
	if runtime.GOOS == "windows" {
		cfg.WinCredPrefix = ServiceName
	}

	return keyring.Open(cfg)
}

// SaveMerchantID stores the gateway merchant id.
func (m *Manager) SaveMerchantID(id string) error {
	return m.set(KeyMerchantID, id)
}

// LoadMerchantID retrieves the gateway merchant id.
func (m *Manager) LoadMerchantID() (string, error) {
	return m.get(KeyMerchantID)
}

// SaveLedgerDSN stores the receipt ledger connection string.
func (m *Manager) SaveLedgerDSN(dsn string) error {
	return m.set(KeyLedgerDSN, dsn)
}

// LoadLedgerDSN retrieves the receipt ledger connection string.
func (m *Manager) LoadLedgerDSN() (string, error) {
	return m.get(KeyLedgerDSN)
}

// ClearAll removes all billpay secrets from the keychain.
func (m *Manager) ClearAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_ = m.ring.Remove(KeyMerchantID)
	_ = m.ring.Remove(KeyLedgerDSN)
	return nil
}

func (m *Manager) set(key, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return errors.New("refusing to store an empty value")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ring.Set(keyring.Item{Key: key, Data: []byte(value)})
}

func (m *Manager) get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, err := m.ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	if len(it.Data) == 0 {
		return "", ErrNotFound
	}
	return string(it.Data), nil
}
