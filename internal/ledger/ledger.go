// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package ledger keeps a local history of completed checkouts. It stores
// receipts only; session tokens and customer profiles never reach it.
package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Receipt is one recorded checkout.
type Receipt struct {
	TransactionID   string    `json:"transactionId"`
	Status          string    `json:"status"`
	Success         bool      `json:"success"`
	Amount          float64   `json:"amount"`
	Currency        string    `json:"currency"`
	AccountValue    string    `json:"accountValue"`
	CountryCode     string    `json:"countryCode,omitempty"`
	ServiceName     string    `json:"serviceName,omitempty"`
	ProviderName    string    `json:"providerName,omitempty"`
	ProductID       string    `json:"productId,omitempty"`
	ProductName     string    `json:"productName,omitempty"`
	Mode            string    `json:"mode"`
	ReferenceNumber string    `json:"referenceNumber,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Store records receipts.
type Store interface {
	Record(ctx context.Context, r Receipt) error
	// Recent returns up to limit receipts, newest first.
	Recent(ctx context.Context, limit int) ([]Receipt, error)
	Close()
}

// Open returns a Postgres-backed store for dsn, or a NopStore when dsn is empty.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (Store, error) {
	if dsn == "" {
		return NopStore{}, nil
	}
	normalized, err := NormalizeDSN(dsn)
	if err != nil {
		return nil, err
	}
	return NewPostgresStore(ctx, normalized, logger)
}

// NopStore discards receipts.
type NopStore struct{}

func (NopStore) Record(context.Context, Receipt) error           { return nil }
func (NopStore) Recent(context.Context, int) ([]Receipt, error) { return nil, nil }
func (NopStore) Close()                                          {}

// MemoryStore keeps receipts in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	receipts []Receipt
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Record(_ context.Context, r Receipt) error {
	m.mu.Lock()
	m.receipts = append(m.receipts, r)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Recent(_ context.Context, limit int) ([]Receipt, error) {
	m.mu.Lock()
	out := append([]Receipt(nil), m.receipts...)
	m.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) Close() {}
