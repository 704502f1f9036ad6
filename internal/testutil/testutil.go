// Package testutil provides shared test helpers for databases and identities.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/starford/solace/internal/auth"
	"github.com/starford/solace/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *storage.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "solace-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := storage.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// AsUser returns a context authenticated as userID with a placeholder token.
func AsUser(userID string) context.Context {
	return auth.WithIdentity(context.Background(), auth.Identity{UserID: userID, Token: "h.p.s"})
}
