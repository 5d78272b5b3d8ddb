//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"

	"telegram-miniapp/internal/domain"
	"telegram-miniapp/internal/domain/model"
	"telegram-miniapp/internal/domain/ports/repository"
	"telegram-miniapp/internal/infra/directorytest"
)

func TestAddressRepo_Conformance(t *testing.T) {
	directorytest.Run(t, func(t *testing.T) repository.AddressDirectory {
		cleanup(t)
		return NewAddressRepo(testPool)
	})
}

func TestAddressRepo_UpsertKeepsSingleRow(t *testing.T) {
	cleanup(t)
	ctx := context.Background()
	repo := NewAddressRepo(testPool)

	for _, addr := range []string{"100", "200", "300"} {
		if err := repo.RecordAddress(ctx, "42", addr); err != nil {
			t.Fatalf("RecordAddress(%s) failed: %v", addr, err)
		}
	}

	var n int
	if err := testPool.QueryRow(ctx, `SELECT count(*) FROM chat_addresses WHERE user_id = '42'`).Scan(&n); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 row, got %d", n)
	}
	got, found, err := repo.LookupAddress(ctx, "42")
	if err != nil || !found || got != "300" {
		t.Errorf("expected (300, true, nil), got (%q, %v, %v)", got, found, err)
	}
}

func TestSubscriberRepo(t *testing.T) {
	cleanup(t)
	ctx := context.Background()
	repo := NewSubscriberRepo(testPool)

	s, err := model.NewSubscriber("Reader@Example.com", "Ada", "42")
	if err != nil {
		t.Fatalf("NewSubscriber: %v", err)
	}

	t.Run("Save and ExistsByEmail", func(t *testing.T) {
		if err := repo.Save(ctx, repository.NoTX, s); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		ok, err := repo.ExistsByEmail(ctx, repository.NoTX, "READER@example.com ")
		if err != nil || !ok {
			t.Fatalf("expected subscriber to exist, got %v, %v", ok, err)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		dup, _ := model.NewSubscriber("reader@example.com", "Someone", "43")
		if err := repo.Save(ctx, repository.NoTX, dup); err != domain.ErrAlreadySubscribed {
			t.Fatalf("expected ErrAlreadySubscribed, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		second, _ := model.NewSubscriber("other@example.com", "Bob", "44")
		second.SubscribedAt = s.SubscribedAt.Add(time.Second)
		if err := repo.Save(ctx, repository.NoTX, second); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		all, err := repo.List(ctx, repository.NoTX, 0, 0)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(all) != 2 || all[0].Email != "reader@example.com" {
			t.Fatalf("unexpected list: %+v", all)
		}
		page, err := repo.List(ctx, repository.NoTX, 1, 1)
		if err != nil || len(page) != 1 || page[0].Email != "other@example.com" {
			t.Fatalf("unexpected page: %+v, %v", page, err)
		}
	})
}

func TestRequestLogRepo_Append(t *testing.T) {
	cleanup(t)
	ctx := context.Background()
	repo := NewRequestLogRepo(testPool)

	e := &model.RequestLogEntry{UserID: "42", FirstName: "Ada", Service: string(model.ServiceNewsletter), Status: model.StatusSuccess}
	if err := repo.Append(ctx, repository.NoTX, e); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp to be assigned, got %+v", e)
	}

	var service, status string
	err := testPool.QueryRow(ctx, `SELECT service, status FROM service_requests WHERE id = $1`, e.ID).Scan(&service, &status)
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if service != string(model.ServiceNewsletter) || status != model.StatusSuccess {
		t.Errorf("unexpected row: %s/%s", service, status)
	}
}

func TestTxManager_RollbackOnError(t *testing.T) {
	cleanup(t)
	ctx := context.Background()
	tm := NewTxManager(testPool)
	logs := NewRequestLogRepo(testPool)

	_ = tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := logs.Append(ctx, tx, &model.RequestLogEntry{UserID: "1", Service: string(model.ServiceOneOnOne), Status: model.StatusSuccess}); err != nil {
			return err
		}
		return domain.ErrInvalidArgument
	})

	var n int
	if err := testPool.QueryRow(ctx, `SELECT count(*) FROM service_requests`).Scan(&n); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected rollback, found %d rows", n)
	}
}
