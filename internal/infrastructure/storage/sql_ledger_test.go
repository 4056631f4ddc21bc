package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSQLiteLedgerRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	ledger, err := Open(ctx, Config{Driver: "sqlite", Path: path}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	for _, id := range []string{"v1", "v2", "v2"} {
		if err := ledger.Add(ctx, id); err != nil {
			t.Fatalf("Add(%s): %v", id, err)
		}
	}

	ok, err := ledger.Contains(ctx, "v1")
	if err != nil || !ok {
		t.Fatalf("Contains(v1) = %v, %v", ok, err)
	}
	ok, err = ledger.Contains(ctx, "v3")
	if err != nil || ok {
		t.Fatalf("Contains(v3) = %v, %v", ok, err)
	}

	if err := ledger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(ctx, Config{Driver: "sqlite", Path: path}, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	ids, err := reopened.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"v1", "v2"}) {
		t.Fatalf("unexpected snapshot: %v", ids)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), Config{Driver: "redis"}, nil); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if _, err := Open(context.Background(), Config{Driver: "postgres"}, nil); err == nil {
		t.Fatal("expected error for postgres without dsn")
	}
}
