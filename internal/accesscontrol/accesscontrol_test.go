package accesscontrol

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/clearledger/subpay/internal/statestore"
	"github.com/clearledger/subpay/pkg/db/models"
	"github.com/clearledger/subpay/pkg/errors"
	"github.com/clearledger/subpay/pkg/types"
)

const (
	ownerAddr    = types.Address("0xab5801a7d398351b8be11c439e05c5b3259aec9b")
	strangerAddr = types.Address("0x00000000000000000000000000000000000000fe")
)

func newTestStore(t *testing.T) statestore.Store {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.StateSlot{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	// The shared cache keeps one database per process; start each test clean.
	if err := conn.Exec("DELETE FROM state_slots").Error; err != nil {
		t.Fatalf("failed to reset state: %v", err)
	}
	return statestore.New(conn)
}

func TestRequireOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := RequireOwner(ctx, s, ownerAddr); !errors.HasCode(err, errors.CodeUnauthorized) {
		t.Fatalf("uninitialized owner should reject everyone, got %v", err)
	}

	if err := statestore.PutAddress(ctx, s, statestore.KeyOwner, ownerAddr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := RequireOwner(ctx, s, ownerAddr); err != nil {
		t.Fatalf("owner should pass, got %v", err)
	}
	if err := RequireOwner(ctx, s, strangerAddr); !errors.HasCode(err, errors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
