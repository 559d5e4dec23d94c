//go:build integration

// Package testutil provides helpers for integration tests that need a real Redis.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dyluth/compass/internal/store"
	"github.com/dyluth/compass/pkg/canvas"
)

// StartRedis starts a disposable Redis container and returns its URL.
// The container is terminated when the test ends.
func StartRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "Failed to start Redis container")

	t.Cleanup(func() {
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	})

	host, err := redisC.Host(ctx)
	require.NoError(t, err, "Failed to get container host")

	port, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err, "Failed to get container port")

	return fmt.Sprintf("redis://%s:%s/0", host, port.Port())
}

// Environment is an isolated working directory with a compass.yml pointing at
// a containerised Redis, plus a store connected to it.
type Environment struct {
	T           *testing.T
	TmpDir      string
	OriginalDir string
	RedisURL    string
	Namespace   string
	KV          *store.RedisKV
	Store       *store.Store
	Ctx         context.Context
}

// SetupEnvironment starts Redis, writes compass.yml into a temp directory and
// changes into it. The original directory is restored on cleanup.
func SetupEnvironment(t *testing.T) *Environment {
	ctx := context.Background()
	redisURL := StartRedis(t)

	tmpDir := t.TempDir()
	namespace := fmt.Sprintf("it-%s", time.Now().Format("150405000000"))

	cfgPath := filepath.Join(tmpDir, "compass.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(CompassYML(redisURL, namespace)), 0644), "Failed to write compass.yml")

	originalDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir), "Failed to change to test directory")

	kv, err := store.NewRedisKVFromURL(redisURL)
	require.NoError(t, err, "Failed to connect to Redis")

	st, err := store.New(kv, namespace)
	require.NoError(t, err)

	env := &Environment{
		T:           t,
		TmpDir:      tmpDir,
		OriginalDir: originalDir,
		RedisURL:    redisURL,
		Namespace:   namespace,
		KV:          kv,
		Store:       st,
		Ctx:         ctx,
	}

	t.Cleanup(func() {
		st.Close()
		os.Chdir(originalDir)
	})

	return env
}

// WaitForProject polls the store until the project with id satisfies match (up to 10 seconds).
func (env *Environment) WaitForProject(id string, match func(canvas.Project) bool) canvas.Project {
	env.T.Helper()

	for i := 0; i < 100; i++ {
		p, err := env.Store.Get(env.Ctx, id)
		if err == nil && match(p) {
			return p
		}
		time.Sleep(100 * time.Millisecond)
	}

	require.Fail(env.T, fmt.Sprintf("Project %s did not reach the expected state within 10 seconds", id))
	return canvas.Project{}
}

// CompassYML returns a config using the redis backend at redisURL.
func CompassYML(redisURL, namespace string) string {
	return fmt.Sprintf(`version: "1.0"
store:
  backend: redis
  redis_url: %s
  namespace: %s
autosave:
  debounce: 50ms
log:
  level: warn
`, redisURL, namespace)
}
