//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"telegram-miniapp/internal/domain"
	"telegram-miniapp/internal/domain/model"
	"telegram-miniapp/internal/domain/ports/adapter"
	"telegram-miniapp/internal/infra/memory"
	"telegram-miniapp/internal/usecase"
)

func TestNotificationUseCase_Notify(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()

	t.Run("no address: not delivered and channel never called", func(t *testing.T) {
		dir := memory.NewAddressDirectory()
		ch := &MockChannel{}
		uc := usecase.NewNotificationUseCase(dir, ch, logger, true)

		res, err := uc.Notify(ctx, "42", "hello")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Delivered || res.Reason != model.DeliveryNoAddress {
			t.Errorf("expected no_address, got %+v", res)
		}
		if n := len(ch.Calls()); n != 0 {
			t.Errorf("expected 0 channel calls, got %d", n)
		}
	})

	t.Run("address present and channel accepts: delivered once", func(t *testing.T) {
		dir := memory.NewAddressDirectory()
		_ = dir.RecordAddress(ctx, "42", "C1")
		ch := &MockChannel{}
		uc := usecase.NewNotificationUseCase(dir, ch, logger, true)

		res, err := uc.Notify(ctx, "42", "hello")
		if err != nil || !res.Delivered {
			t.Fatalf("expected delivered, got %+v, %v", res, err)
		}
		calls := ch.Calls()
		if len(calls) != 1 || calls[0].Address != "C1" || calls[0].Text != "hello" {
			t.Errorf("unexpected channel calls: %+v", calls)
		}
	})

	t.Run("invalid address: evicted and next notify skips the channel", func(t *testing.T) {
		dir := memory.NewAddressDirectory()
		_ = dir.RecordAddress(ctx, "42", "C1")
		ch := &MockChannel{SendFunc: func(ctx context.Context, address, text string) error {
			return fmt.Errorf("telegram: chat not found: %w", adapter.ErrAddressInvalid)
		}}
		uc := usecase.NewNotificationUseCase(dir, ch, logger, true)

		res, err := uc.Notify(ctx, "42", "hello")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Delivered || res.Reason != model.DeliveryInvalidAddress {
			t.Errorf("expected invalid_address, got %+v", res)
		}
		if _, found, _ := dir.LookupAddress(ctx, "42"); found {
			t.Error("address should have been evicted")
		}

		res, _ = uc.Notify(ctx, "42", "again")
		if res.Delivered || res.Reason != model.DeliveryNoAddress {
			t.Errorf("expected no_address on second notify, got %+v", res)
		}
		if n := len(ch.Calls()); n != 1 {
			t.Errorf("expected exactly 1 channel call, got %d", n)
		}
	})

	t.Run("transient failure: not delivered and address kept", func(t *testing.T) {
		dir := memory.NewAddressDirectory()
		_ = dir.RecordAddress(ctx, "42", "C1")
		ch := &MockChannel{SendFunc: func(ctx context.Context, address, text string) error {
			return errors.New("timeout")
		}}
		uc := usecase.NewNotificationUseCase(dir, ch, logger, true)

		res, err := uc.Notify(ctx, "42", "hello")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.Delivered || res.Reason != model.DeliveryChannelError {
			t.Errorf("expected channel_error, got %+v", res)
		}
		addr, found, _ := dir.LookupAddress(ctx, "42")
		if !found || addr != "C1" {
			t.Errorf("address should be kept, got %q, %v", addr, found)
		}
		if n := len(ch.Calls()); n != 1 {
			t.Errorf("expected no retry, got %d calls", n)
		}
	})

	t.Run("last write wins before notify", func(t *testing.T) {
		dir := memory.NewAddressDirectory()
		_ = dir.RecordAddress(ctx, "42", "C1")
		_ = dir.RecordAddress(ctx, "42", "C2")
		ch := &MockChannel{}
		uc := usecase.NewNotificationUseCase(dir, ch, logger, true)

		if res, _ := uc.Notify(ctx, "42", "hello"); !res.Delivered {
			t.Fatalf("expected delivered, got %+v", res)
		}
		if calls := ch.Calls(); len(calls) != 1 || calls[0].Address != "C2" {
			t.Errorf("expected send to C2, got %+v", calls)
		}
	})

	t.Run("blank arguments are rejected", func(t *testing.T) {
		ch := &MockChannel{}
		uc := usecase.NewNotificationUseCase(memory.NewAddressDirectory(), ch, logger, true)
		for _, tc := range []struct{ user, msg string }{{"", "hi"}, {"42", ""}, {"  ", "hi"}} {
			if _, err := uc.Notify(ctx, tc.user, tc.msg); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("Notify(%q, %q): expected ErrInvalidArgument, got %v", tc.user, tc.msg, err)
			}
		}
		if n := len(ch.Calls()); n != 0 {
			t.Errorf("expected 0 channel calls, got %d", n)
		}
	})

	t.Run("directory read error is treated as absent", func(t *testing.T) {
		dir := &MockDirectory{LookupFunc: func(ctx context.Context, userID string) (string, bool, error) {
			return "", false, errors.New("redis down")
		}}
		ch := &MockChannel{}
		uc := usecase.NewNotificationUseCase(dir, ch, logger, true)

		res, err := uc.Notify(ctx, "42", "hello")
		if err != nil || res.Delivered || res.Reason != model.DeliveryNoAddress {
			t.Errorf("expected no_address without error, got %+v, %v", res, err)
		}
		if n := len(ch.Calls()); n != 0 {
			t.Errorf("expected 0 channel calls, got %d", n)
		}
	})

	t.Run("eviction failure is not returned", func(t *testing.T) {
		dir := &MockDirectory{
			LookupFunc: func(ctx context.Context, userID string) (string, bool, error) { return "C1", true, nil },
			EvictFunc:  func(ctx context.Context, userID string) error { return errors.New("write failed") },
		}
		ch := &MockChannel{SendFunc: func(ctx context.Context, address, text string) error { return adapter.ErrAddressInvalid }}
		uc := usecase.NewNotificationUseCase(dir, ch, logger, true)

		res, err := uc.Notify(ctx, "42", "hello")
		if err != nil || res.Reason != model.DeliveryInvalidAddress {
			t.Errorf("expected invalid_address without error, got %+v, %v", res, err)
		}
	})

	t.Run("concurrent notifies for different users", func(t *testing.T) {
		dir := memory.NewAddressDirectory()
		for i := 0; i < 20; i++ {
			_ = dir.RecordAddress(ctx, fmt.Sprint(i), fmt.Sprintf("C%d", i))
		}
		ch := &MockChannel{}
		uc := usecase.NewNotificationUseCase(dir, ch, logger, true)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if res, _ := uc.Notify(ctx, fmt.Sprint(i), "hi"); !res.Delivered {
					t.Errorf("user %d not delivered", i)
				}
			}(i)
		}
		wg.Wait()
		if n := len(ch.Calls()); n != 20 {
			t.Errorf("expected 20 sends, got %d", n)
		}
	})
}
