package blob_test

import (
	"context"
	"os/exec"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/Drmusab/taskstore/internal/blob"
)

// dockerAvailable checks whether the Docker daemon is reachable.
// testcontainers-go panics (rather than returning an error) when Docker
// is not installed, so we probe for it up-front.
func dockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	return cmd.Run() == nil
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// newTestPostgresStore spins up a PostgreSQL 16 container via
// testcontainers-go and returns a fully initialised PostgresStore. If Docker
// is not available the test is skipped.
func newTestPostgresStore(t *testing.T) *blob.PostgresStore {
	t.Helper()

	if !dockerAvailable() {
		t.Skip("Docker not available, skipping PostgreSQL integration tests")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("failed to start PostgreSQL container: %v", err)
	}

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	store, err := blob.NewPostgresStore(connStr)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	return store
}

// ---------------------------------------------------------------------------
// Interface compliance (no container needed)
// ---------------------------------------------------------------------------

func TestPostgres_ImplementsStore(t *testing.T) {
	var _ blob.Store = (*blob.PostgresStore)(nil)
}

// ---------------------------------------------------------------------------
// Integration tests (require Docker)
// ---------------------------------------------------------------------------

func TestPostgres_FreshDatabase(t *testing.T) {
	s := newTestPostgresStore(t)

	got, err := s.Load(context.Background(), "taskstore-active")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing key, got %q", got)
	}
}

func TestPostgres_SaveLoadRoundTrip(t *testing.T) {
	s := newTestPostgresStore(t)
	ctx := context.Background()

	value := []byte(`{"tasks":[{"id":"t1","name":"n","dueAt":"2026-01-01T00:00:00Z","enabled":true}]}`)
	if err := s.Save(ctx, "taskstore-active", value); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx, "taskstore-active")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != string(value) {
		t.Errorf("got %q, want %q", got, value)
	}
}

func TestPostgres_SaveUpserts(t *testing.T) {
	s := newTestPostgresStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "k", []byte("first")); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := s.Save(ctx, "k", []byte("second")); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, err := s.Load(ctx, "k")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("got %q, want second", got)
	}
}

func TestPostgres_KeysAreIndependent(t *testing.T) {
	s := newTestPostgresStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "taskstore-archive-index", []byte("index")); err != nil {
		t.Fatalf("Save index: %v", err)
	}
	if err := s.Save(ctx, "taskstore-archive-2026-1", []byte("chunk")); err != nil {
		t.Fatalf("Save chunk: %v", err)
	}

	got, err := s.Load(ctx, "taskstore-archive-index")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != "index" {
		t.Errorf("got %q, want index", got)
	}
}
