// Package shutdown centralizes signal handling and fatal-exit diagnostics
// for the binaries.
package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"heartlink/pkg/logger"
)

// Context returns a context canceled on SIGINT/SIGTERM.
func Context(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// Abort logs a fatal startup error, writes a crash dump next to the
// session store and exits. The short delay gives log sinks time to flush.
func Abort(contextMsg string, err error, storePath string) {
	logger.Error("startup_fatal", "msg", contextMsg, "error", err)
	if path, derr := writeCrashDump(storePath, contextMsg, err); derr != nil {
		fmt.Fprintf(os.Stderr, "FAILED TO WRITE CRASH DUMP: %v\n", derr)
	} else {
		fmt.Fprintf(os.Stderr, "CRASH DUMP WRITTEN: %s\n", path)
	}
	time.Sleep(2 * time.Second)
	os.Exit(2)
}

// writeCrashDump records the reason, error and all goroutine stacks.
func writeCrashDump(storePath, reason string, cause error) (string, error) {
	dir := "./crash"
	if storePath != "" {
		dir = filepath.Join(storePath, "state", "crash")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create crash dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("crash-%d.log", time.Now().UnixNano()))

	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return "", err
	}
	defer f.Close()
	fmt.Fprintf(f, "time: %s\nreason: %s\nerror: %v\n\n", time.Now().UTC().Format(time.RFC3339), reason, cause)
	_, _ = f.Write(buf[:n])
	return path, nil
}
