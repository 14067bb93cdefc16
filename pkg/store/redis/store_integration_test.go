//go:build integration

package redis_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/marmos91/imgloader/pkg/store"
	"github.com/marmos91/imgloader/pkg/store/redis"
	"github.com/marmos91/imgloader/pkg/store/storetest"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForAll(
				wait.ForLog("Ready to accept connections"),
				wait.ForListeningPort("6379/tcp"),
			).WithDeadline(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("failed to get container port: %v", err)
	}
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestRedisConformance(t *testing.T) {
	addr := startRedis(t)

	storetest.RunConformanceSuite(t, func(t *testing.T) store.Store {
		// A unique prefix per subtest isolates Len counts.
		s, err := redis.New(redis.Config{Addr: addr, KeyPrefix: uuid.NewString() + ":"})
		require.NoError(t, err)
		require.NoError(t, store.WaitReady(t.Context(), s, store.TypeRedis, 10*time.Second))
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestRedisTTL(t *testing.T) {
	addr := startRedis(t)

	s, err := redis.New(redis.Config{Addr: addr, KeyPrefix: "ttl:", TTL: time.Second})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put(t.Context(), "https://x/a.png", "data:image/png;base64,AAAA"))
	assert.Eventually(t, func() bool {
		_, err := s.Get(t.Context(), "https://x/a.png")
		return err == store.ErrNotFound
	}, 5*time.Second, 100*time.Millisecond)
}
