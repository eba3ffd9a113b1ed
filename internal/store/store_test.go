package store

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/starchart/internal/auth"
	"github.com/dukerupert/starchart/internal/database"
	"github.com/dukerupert/starchart/internal/docstore"
)

func setupDocs(t *testing.T) *docstore.Store {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	docs, err := docstore.New(db, database.DriverSQLite)
	if err != nil {
		t.Fatalf("new docstore: %v", err)
	}
	return docs
}

// stepClock returns a clock that advances one minute per call.
func stepClock(start time.Time) func() time.Time {
	next := start
	return func() time.Time {
		t := next
		next = next.Add(time.Minute)
		return t
	}
}

func signedIn() context.Context {
	return auth.WithAuth(context.Background(), auth.AuthContext{
		UserID:    "u-1",
		Email:     "parent@example.com",
		SessionID: "s-1",
	})
}

func intPtr(i int) *int       { return &i }
func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
