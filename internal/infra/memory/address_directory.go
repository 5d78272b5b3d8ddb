package memory

import (
	"context"
	"sync"

	"telegram-miniapp/internal/domain/model"
	"telegram-miniapp/internal/domain/ports/repository"
	"telegram-miniapp/internal/infra/metrics"
)

var _ repository.AddressDirectory = (*AddressDirectory)(nil)

// AddressDirectory is a process-local directory used in dev mode and tests.
// It does not survive restarts.
type AddressDirectory struct {
	mu      sync.RWMutex
	entries map[string]model.AddressEntry
}

func NewAddressDirectory() *AddressDirectory {
	return &AddressDirectory{entries: make(map[string]model.AddressEntry)}
}

func (d *AddressDirectory) RecordAddress(ctx context.Context, userID, address string) error {
	e, err := model.NewAddressEntry(userID, address)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.entries[e.UserID] = *e
	d.mu.Unlock()
	metrics.IncDirectoryOp("memory", "record")
	return nil
}

func (d *AddressDirectory) LookupAddress(ctx context.Context, userID string) (string, bool, error) {
	userID, err := model.NormalizeUserID(userID)
	if err != nil {
		return "", false, err
	}
	d.mu.RLock()
	e, ok := d.entries[userID]
	d.mu.RUnlock()
	if !ok {
		metrics.IncDirectoryOp("memory", "lookup_miss")
		return "", false, nil
	}
	metrics.IncDirectoryOp("memory", "lookup_hit")
	return e.Address, true, nil
}

func (d *AddressDirectory) EvictAddress(ctx context.Context, userID string) error {
	userID, err := model.NormalizeUserID(userID)
	if err != nil {
		return err
	}
	d.mu.Lock()
	delete(d.entries, userID)
	d.mu.Unlock()
	metrics.IncDirectoryOp("memory", "evict")
	return nil
}

// Len returns the number of known addresses.
func (d *AddressDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}
