package repository

import "context"

// -----------------------------
// Address Directory
// -----------------------------

// AddressDirectory keeps the best-known chat address for each user.
// Implementations must be safe for concurrent use and atomic per key.
type AddressDirectory interface {
	// RecordAddress overwrites any previous address for userID.
	RecordAddress(ctx context.Context, userID, address string) error
	// LookupAddress reports found == false when nothing is recorded for userID.
	LookupAddress(ctx context.Context, userID string) (address string, found bool, err error)
	// EvictAddress removes the mapping. Evicting an absent key is not an error.
	EvictAddress(ctx context.Context, userID string) error
}
