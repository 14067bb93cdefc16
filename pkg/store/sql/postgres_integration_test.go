//go:build integration

package sql

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/marmos91/imgloader/pkg/store"
	"github.com/marmos91/imgloader/pkg/store/storetest"
)

func startPostgres(t *testing.T) PostgresConfig {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("imgloader_test"),
		tcpostgres.WithUsername("imgloader_test"),
		tcpostgres.WithPassword("imgloader_test"),
		testcontainers.WithWaitStrategyAndDeadline(2*time.Minute,
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}

	return PostgresConfig{
		Host:     host,
		Port:     port.Int(),
		Database: "imgloader_test",
		User:     "imgloader_test",
		Password: "imgloader_test",
	}
}

func TestPostgresConformance(t *testing.T) {
	pg := startPostgres(t)

	storetest.RunConformanceSuite(t, func(t *testing.T) store.Store {
		s, err := New(Config{Type: DatabaseTypePostgres, Postgres: pg})
		if err != nil {
			t.Fatalf("New() failed: %v", err)
		}
		if err := s.db.Exec("TRUNCATE image_entries").Error; err != nil {
			t.Fatalf("truncate failed: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
