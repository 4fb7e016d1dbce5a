// Package lockfile guards the state directory against concurrent CareVoice
// processes. A reporting station owns one microphone, one speaker and one
// database file; a second process sharing any of those would corrupt captures
// and conversation records.
//
// The lock is a flock(2) on a file inside the state directory, so it is
// released by the kernel when the process exits, gracefully or not.
package lockfile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// LockFileName is the lock file created inside the state directory.
const LockFileName = "carevoice.lock"

// Lock is an acquired exclusive hold on a state directory.
type Lock struct {
	file     *os.File
	path     string
	acquired bool
}

// AcquireLock takes the exclusive station lock for the given state directory,
// creating the directory if needed. When another process already holds the
// lock the returned error is a *LockError describing the holder.
func AcquireLock(stateDir string) (*Lock, error) {
	lockPath := filepath.Join(stateDir, LockFileName)

	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", lockPath, err)
	}

	// LOCK_NB fails immediately instead of queueing behind the holder.
	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		holder := readHolderInfo(lockPath)
		slog.Error("lockfile.AcquireLock: station lock held by another process",
			"lockPath", lockPath, "holder", holder, "error", err)
		return nil, &LockError{LockPath: lockPath, HolderInfo: holder, Cause: err}
	}

	if _, err := fmt.Fprintf(file, "pid=%d\n", os.Getpid()); err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return nil, fmt.Errorf("failed to write lock information to %s: %w", lockPath, err)
	}
	if err := file.Sync(); err != nil {
		slog.Warn("lockfile.AcquireLock: failed to sync lock file", "lockPath", lockPath, "error", err)
	}

	slog.Info("lockfile.AcquireLock: station lock acquired", "lockPath", lockPath, "pid", os.Getpid())
	return &Lock{file: file, path: lockPath, acquired: true}, nil
}

// Release drops the lock and removes the lock file. Safe to call repeatedly.
func (l *Lock) Release() error {
	if !l.acquired || l.file == nil {
		return nil
	}

	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		slog.Warn("Lock.Release: failed to release flock", "lockPath", l.path, "error", err)
	}
	if err := l.file.Close(); err != nil {
		slog.Warn("Lock.Release: failed to close lock file", "lockPath", l.path, "error", err)
	}
	if err := os.Remove(l.path); err != nil {
		slog.Warn("Lock.Release: failed to remove lock file", "lockPath", l.path, "error", err)
	}

	l.acquired = false
	l.file = nil
	slog.Info("Lock.Release: station lock released", "lockPath", l.path)
	return nil
}

// LockError reports a lock held by another process, with what is known about
// the holder.
type LockError struct {
	LockPath   string
	HolderInfo string
	Cause      error
}

func (e *LockError) Error() string {
	msg := fmt.Sprintf("another CareVoice process is using this state directory (lock file: %s)", e.LockPath)
	if e.HolderInfo != "" {
		msg += fmt.Sprintf("; held by %s", e.HolderInfo)
	}
	msg += fmt.Sprintf(". If no other process is running, remove the stale lock with: rm %s", e.LockPath)
	return msg
}

func (e *LockError) Unwrap() error {
	return e.Cause
}

// readHolderInfo describes the process recorded in an existing lock file.
func readHolderInfo(lockPath string) string {
	data, err := os.ReadFile(lockPath)
	if err != nil || len(data) == 0 {
		return "unknown process"
	}
	pid := extractPID(string(data))
	if pid <= 0 {
		return strings.TrimSpace(string(data))
	}
	if isProcessRunning(pid) {
		return fmt.Sprintf("PID %d (running)", pid)
	}
	return fmt.Sprintf("PID %d (not running, stale lock)", pid)
}

func extractPID(content string) int {
	const prefix = "pid="
	idx := strings.Index(content, prefix)
	if idx == -1 {
		return 0
	}
	rest := content[idx+len(prefix):]
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	pid, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0
	}
	return pid
}

// isProcessRunning probes the PID with signal 0.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
