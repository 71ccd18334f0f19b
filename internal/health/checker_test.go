package health

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lockin-app/lockin/internal/infra/sqlite"
)

func newTestDB(t *testing.T) (*sqlite.DB, string) {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, dir
}

// failingStore always fails to ping.
type failingStore struct{ err error }

func (f failingStore) Ping(ctx context.Context) error { return f.err }

// ─── Checker Tests ──────────────────────────────────────────────────────────

func TestNewChecker(t *testing.T) {
	db, dir := newTestDB(t)

	c := NewChecker(db, dir)
	if len(c.checks) != 2 {
		t.Errorf("checks = %d, want 2", len(c.checks))
	}
	if c.interval != DefaultInterval {
		t.Errorf("interval = %v, want %v", c.interval, DefaultInterval)
	}

	remote := NewChecker(db, "")
	if len(remote.checks) != 1 {
		t.Errorf("remote checks = %d, want 1", len(remote.checks))
	}
}

func TestChecker_RunAllHealthy(t *testing.T) {
	db, dir := newTestDB(t)

	c := NewChecker(db, dir)
	c.RunOnce(context.Background())

	statuses := c.Statuses()
	if len(statuses) != 2 {
		t.Fatalf("Statuses() = %d, want 2", len(statuses))
	}
	for _, s := range statuses {
		if !s.Healthy {
			t.Errorf("check %q should be healthy, got error: %s", s.Name, s.Error)
		}
	}
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true when all checks pass")
	}
}

func TestChecker_IsHealthy_BeforeRun(t *testing.T) {
	db, dir := newTestDB(t)
	c := NewChecker(db, dir)

	// No statuses yet: vacuously healthy.
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true before first run (no statuses)")
	}
}

func TestChecker_StoreDown(t *testing.T) {
	c := NewChecker(failingStore{err: errors.New("connection refused")}, "")
	c.RunOnce(context.Background())

	statuses := c.Statuses()
	if statuses[0].Name != "store" || statuses[0].Healthy {
		t.Errorf("store check should fail, got %+v", statuses[0])
	}
	if statuses[0].Error != "connection refused" {
		t.Errorf("error = %q, want %q", statuses[0].Error, "connection refused")
	}
	if c.IsHealthy() {
		t.Error("IsHealthy() should be false when the store is down")
	}
}

func TestChecker_ClosedDB(t *testing.T) {
	db, dir := newTestDB(t)
	db.Close()

	c := NewChecker(db, dir)
	c.RunOnce(context.Background())
	if c.IsHealthy() {
		t.Error("closed database should be unhealthy")
	}
}

func TestChecker_DataDirRecovered(t *testing.T) {
	db, _ := newTestDB(t)
	dataDir := filepath.Join(t.TempDir(), "missing")

	c := NewChecker(db, dataDir)
	c.RunOnce(context.Background())
	if c.IsHealthy() {
		t.Error("missing data dir should be reported")
	}
	if info, err := os.Stat(dataDir); err != nil || !info.IsDir() {
		t.Errorf("recovery should create the data dir, stat err: %v", err)
	}

	c.RunOnce(context.Background())
	if !c.IsHealthy() {
		t.Error("data dir should be healthy after recovery")
	}
}

func TestChecker_DataDirIsFile(t *testing.T) {
	db, _ := newTestDB(t)
	path := filepath.Join(t.TempDir(), "data")
	os.WriteFile(path, []byte("not a dir"), 0644)

	c := NewChecker(db, path)
	c.RunOnce(context.Background())

	for _, s := range c.Statuses() {
		if s.Name == "data_dir" && s.Healthy {
			t.Error("data_dir should fail when path is a file")
		}
	}
}

func TestChecker_SetInterval(t *testing.T) {
	c := &Checker{interval: DefaultInterval}
	c.SetInterval(0)
	if c.interval != DefaultInterval {
		t.Error("zero interval should be ignored")
	}
	c.SetInterval(time.Second)
	if c.interval != time.Second {
		t.Errorf("interval = %v, want 1s", c.interval)
	}
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	db, dir := newTestDB(t)
	c := NewChecker(db, dir)
	c.SetInterval(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if len(c.Statuses()) != 2 {
		t.Error("Run should have recorded statuses")
	}
}

func TestChecker_StatusesCopy(t *testing.T) {
	db, dir := newTestDB(t)
	c := NewChecker(db, dir)
	c.RunOnce(context.Background())

	s1 := c.Statuses()
	s2 := c.Statuses()

	s1[0].Healthy = false
	if !s2[0].Healthy {
		t.Error("Statuses() should return a copy, not a reference")
	}
}
