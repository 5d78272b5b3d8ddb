// Package directorytest holds the behaviour every repository.AddressDirectory
// backend must share. Backend tests call Run with a factory for a clean directory.
package directorytest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"telegram-miniapp/internal/domain"
	"telegram-miniapp/internal/domain/ports/repository"
)

// Run exercises record/lookup/evict semantics against directories built by newDir.
func Run(t *testing.T, newDir func(t *testing.T) repository.AddressDirectory) {
	t.Helper()
	ctx := context.Background()

	t.Run("lookup after record returns the address", func(t *testing.T) {
		d := newDir(t)
		mustRecord(t, d, "42", "chat-7")
		expectAddress(t, d, "42", "chat-7")
	})

	t.Run("lookup of unknown user is absent", func(t *testing.T) {
		d := newDir(t)
		expectAbsent(t, d, "never-seen")
	})

	t.Run("address is stored verbatim", func(t *testing.T) {
		d := newDir(t)
		mustRecord(t, d, "42", " chat 7 ")
		expectAddress(t, d, "42", " chat 7 ")
	})

	t.Run("last write wins", func(t *testing.T) {
		d := newDir(t)
		mustRecord(t, d, "42", "chat-1")
		mustRecord(t, d, "42", "chat-2")
		expectAddress(t, d, "42", "chat-2")
	})

	t.Run("evict is idempotent", func(t *testing.T) {
		d := newDir(t)
		mustRecord(t, d, "5", "stale")
		for i := 0; i < 2; i++ {
			if err := d.EvictAddress(ctx, "5"); err != nil {
				t.Fatalf("EvictAddress #%d failed: %v", i+1, err)
			}
			expectAbsent(t, d, "5")
		}
		if err := d.EvictAddress(ctx, "absent"); err != nil {
			t.Fatalf("EvictAddress on absent key failed: %v", err)
		}
	})

	t.Run("evict leaves other users untouched", func(t *testing.T) {
		d := newDir(t)
		mustRecord(t, d, "1", "chat-1")
		mustRecord(t, d, "2", "chat-2")
		if err := d.EvictAddress(ctx, "1"); err != nil {
			t.Fatal(err)
		}
		expectAbsent(t, d, "1")
		expectAddress(t, d, "2", "chat-2")
	})

	t.Run("blank identifiers are rejected", func(t *testing.T) {
		d := newDir(t)
		if err := d.RecordAddress(ctx, "", "chat-1"); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("RecordAddress with empty user: expected ErrInvalidArgument, got %v", err)
		}
		if err := d.RecordAddress(ctx, "1", " "); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("RecordAddress with blank address: expected ErrInvalidArgument, got %v", err)
		}
		if _, _, err := d.LookupAddress(ctx, ""); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("LookupAddress with empty user: expected ErrInvalidArgument, got %v", err)
		}
		if err := d.EvictAddress(ctx, ""); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("EvictAddress with empty user: expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("concurrent writers on distinct keys", func(t *testing.T) {
		d := newDir(t)
		const n = 32
		var wg sync.WaitGroup
		wg.Add(n)
		for i := 0; i < n; i++ {
			go func(i int) {
				defer wg.Done()
				if err := d.RecordAddress(ctx, fmt.Sprint(i), fmt.Sprintf("chat-%d", i)); err != nil {
					t.Errorf("RecordAddress(%d) failed: %v", i, err)
				}
			}(i)
		}
		wg.Wait()
		for i := 0; i < n; i++ {
			expectAddress(t, d, fmt.Sprint(i), fmt.Sprintf("chat-%d", i))
		}
	})
}

func mustRecord(t *testing.T, d repository.AddressDirectory, userID, address string) {
	t.Helper()
	if err := d.RecordAddress(context.Background(), userID, address); err != nil {
		t.Fatalf("RecordAddress(%q, %q) failed: %v", userID, address, err)
	}
}

func expectAddress(t *testing.T, d repository.AddressDirectory, userID, want string) {
	t.Helper()
	got, found, err := d.LookupAddress(context.Background(), userID)
	if err != nil {
		t.Fatalf("LookupAddress(%q) failed: %v", userID, err)
	}
	if !found || got != want {
		t.Fatalf("LookupAddress(%q) = (%q, %v), want (%q, true)", userID, got, found, want)
	}
}

func expectAbsent(t *testing.T, d repository.AddressDirectory, userID string) {
	t.Helper()
	got, found, err := d.LookupAddress(context.Background(), userID)
	if err != nil {
		t.Fatalf("LookupAddress(%q) failed: %v", userID, err)
	}
	if found {
		t.Fatalf("LookupAddress(%q) = %q, want absent", userID, got)
	}
}
