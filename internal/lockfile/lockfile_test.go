package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAcquireAndRelease(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}

	lockPath := filepath.Join(dir, LockFileName)
	data, err := os.ReadFile(lockPath)
	if err != nil {
		t.Fatalf("lock file missing: %v", err)
	}
	if !strings.Contains(string(data), "pid=") {
		t.Errorf("lock file missing process information: %q", data)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("lock file must be removed on release")
	}

	// Release is safe to call again.
	if err := lock.Release(); err != nil {
		t.Errorf("second Release failed: %v", err)
	}
}

func TestAcquireCreatesStateDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	defer lock.Release()
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("state directory not created: %v", err)
	}
}

func TestSecondAcquireFails(t *testing.T) {
	dir := t.TempDir()

	first, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("first AcquireLock failed: %v", err)
	}
	defer first.Release()

	_, err = AcquireLock(dir)
	if err == nil {
		t.Fatal("expected second acquire to fail")
	}
	var lockErr *LockError
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected *LockError, got %T: %v", err, err)
	}
	if !strings.Contains(lockErr.HolderInfo, "running") {
		t.Errorf("holder info should identify the running process: %q", lockErr.HolderInfo)
	}
	if !strings.Contains(lockErr.Error(), dir) {
		t.Errorf("error should name the lock file: %q", lockErr.Error())
	}
}

func TestReacquireAfterRelease(t *testing.T) {
	dir := t.TempDir()

	first, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	second, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("reacquire after release failed: %v", err)
	}
	second.Release()
}

func TestExtractPID(t *testing.T) {
	if pid := extractPID("pid=1234\n"); pid != 1234 {
		t.Errorf("extractPID = %d, want 1234", pid)
	}
	if pid := extractPID("garbage"); pid != 0 {
		t.Errorf("extractPID on garbage = %d, want 0", pid)
	}
}
