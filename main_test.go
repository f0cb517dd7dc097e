package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEnv points every external dependency of run at local, inert settings.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CONFIG_FILE", filepath.Join(dir, "absent.yaml"))
	t.Setenv("DB_PATH", filepath.Join(dir, "agent.db"))
	t.Setenv("HEALTH_ADDR", "127.0.0.1:0")
	t.Setenv("WEBHOOK_URL", "")
	t.Setenv("SEND_TEST_ON_DEPLOY", "false")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FILE", "")
	return dir
}

func TestRun_InvalidConfigurationReturnsError(t *testing.T) {
	testEnv(t)
	t.Setenv("SMA_FAST", "80")

	err := run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestRun_StoreFailureReturnsError(t *testing.T) {
	dir := testEnv(t)
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
	t.Setenv("DB_PATH", filepath.Join(blocker, "agent.db"))

	err := run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize database repository")
}

func TestRun_StopsWhenContextIsDone(t *testing.T) {
	dir := testEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(30 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
	_, err := os.Stat(filepath.Join(dir, "agent.db"))
	assert.NoError(t, err)
}
