package daemon

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/buildtrigger/internal/config"
)

func testConfigYAML(root, extra string) string {
	return fmt.Sprintf(`
source:
  url: file:///nonexistent/repo
workspace:
  path: %s
artifacts:
  dir: %s
server:
  address: 127.0.0.1:0
metrics:
  enabled: true
%s`, filepath.Join(root, "ws"), filepath.Join(root, "artifacts"), extra)
}

func testConfig(t *testing.T, extra string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(testConfigYAML(t.TempDir(), extra)))
	require.NoError(t, err)
	return cfg
}

func TestDaemon_StartServeStop(t *testing.T) {
	d, err := New(testConfig(t, ""), "")
	require.NoError(t, err)
	assert.Equal(t, StatusStopped, d.GetStatus())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(ctx) }()

	require.Eventually(t, func() bool { return d.GetStatus() == StatusRunning }, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + d.Addr() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + d.Addr() + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Contains(t, string(body), "go_goroutines")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	require.NoError(t, d.Stop(stopCtx))
	require.NoError(t, <-errCh)
	assert.Equal(t, StatusStopped, d.GetStatus())

	// Stop is idempotent.
	require.NoError(t, d.Stop(stopCtx))
}

func TestDaemon_StartTwiceFails(t *testing.T) {
	d, err := New(testConfig(t, ""), "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(ctx) }()
	require.Eventually(t, func() bool { return d.GetStatus() == StatusRunning }, 5*time.Second, 10*time.Millisecond)

	require.Error(t, d.Start(ctx))

	cancel()
	require.NoError(t, <-errCh)
	require.NoError(t, d.Stop(context.Background()))
}

func TestDaemon_ReloadConfig(t *testing.T) {
	d, err := New(testConfig(t, "schedule:\n  interval: 1h\n"), "")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = d.scheduler.Stop(context.Background())
		_ = d.closeResources()
	})
	require.NotEmpty(t, d.scheduleJobID)

	next := testConfig(t, "pipeline:\n  concurrency: queue\n  stage_timeout: 5m\n")
	require.NoError(t, d.ReloadConfig(context.Background(), next))

	settings := d.Orchestrator().Settings()
	assert.Equal(t, config.ConcurrencyQueue, settings.Concurrency)
	assert.Equal(t, 5*time.Minute, settings.StageTimeout)
	assert.Same(t, next, d.GetConfig())
	assert.Empty(t, d.scheduleJobID, "schedule removed by reload")
}

func TestDaemon_SQLiteRunLogContinuesRunIDs(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	extra := fmt.Sprintf("runlog:\n  backend: sqlite\n  path: %s\n", dbPath)

	d, err := New(testConfig(t, extra), "")
	require.NoError(t, err)
	res, err := d.Orchestrator().TriggerRun(context.Background(), "test")
	require.NoError(t, err)
	assert.False(t, res.Succeeded(), "fetch of a missing repository fails")
	assert.Equal(t, uint64(1), res.RunID)
	require.NoError(t, d.closeResources())

	d2, err := New(testConfig(t, extra), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = d2.closeResources() })
	res, err = d2.Orchestrator().TriggerRun(context.Background(), "test")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.RunID)
}

type recordingReloader struct {
	mu   sync.Mutex
	urls []string
}

func (r *recordingReloader) ReloadConfig(_ context.Context, cfg *config.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls = append(r.urls, cfg.Source.URL)
	return nil
}

func (r *recordingReloader) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.urls) == 0 {
		return ""
	}
	return r.urls[len(r.urls)-1]
}

func TestConfigWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "buildtrigger.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source:\n  url: https://example.com/a.git\n"), 0o600))

	rec := &recordingReloader{}
	cw, err := NewConfigWatcher(path, rec)
	require.NoError(t, err)
	cw.debounceTime = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, cw.Start(ctx))
	t.Cleanup(func() { _ = cw.Stop(context.Background()) })

	// Unrelated files in the directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o600))

	require.NoError(t, os.WriteFile(path, []byte("source:\n  url: https://example.com/b.git\n"), 0o600))
	require.Eventually(t, func() bool { return rec.last() == "https://example.com/b.git" }, 5*time.Second, 20*time.Millisecond)
}

func TestScheduler_ScheduleEvery(t *testing.T) {
	t.Run("runs the task", func(t *testing.T) {
		s, err := NewScheduler()
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Stop(context.Background()) })

		var mu sync.Mutex
		calls := 0
		id, err := s.ScheduleEvery("test", 20*time.Millisecond, func() {
			mu.Lock()
			calls++
			mu.Unlock()
		})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		s.Start(context.Background())
		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return calls > 0
		}, 5*time.Second, 10*time.Millisecond)
		require.NoError(t, s.Remove(id))
	})

	t.Run("rejects non-positive interval", func(t *testing.T) {
		s, err := NewScheduler()
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Stop(context.Background()) })

		_, err = s.ScheduleEvery("test", 0, func() {})
		require.Error(t, err)
	})

	t.Run("rejects malformed job id", func(t *testing.T) {
		s, err := NewScheduler()
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Stop(context.Background()) })
		require.Error(t, s.Remove("not-a-uuid"))
	})
}
