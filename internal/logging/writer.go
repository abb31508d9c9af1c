package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// RotatingWriter is an io.Writer that rotates its file once it would grow
// past maxSize: docsearch.log becomes docsearch.log.1, .1 becomes .2, and so
// on up to maxFiles; the oldest is removed.
type RotatingWriter struct {
	path     string
	maxSize  int64
	maxFiles int

	mu      sync.Mutex
	file    *os.File
	written int64
}

// NewRotatingWriter opens (or creates) path for appending.
// Non-positive limits select 10 MB and 5 files.
func NewRotatingWriter(path string, maxSizeMB, maxFiles int) (*RotatingWriter, error) {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	if maxFiles <= 0 {
		maxFiles = 5
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	w := &RotatingWriter{
		path:     path,
		maxSize:  int64(maxSizeMB) * 1024 * 1024,
		maxFiles: maxFiles,
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

// Write appends p, rotating first when the file would exceed its limit.
// A record is never split across files.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}

	if w.written > 0 && w.written+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			// Keep logging into whatever file is open.
			_, _ = fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
			if w.file == nil {
				return 0, err
			}
		}
	}

	n, err := w.file.Write(p)
	w.written += int64(n)
	return n, err
}

// Sync flushes the file to disk.
func (w *RotatingWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

// Close closes the underlying file. Further writes fail.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}

	w.file = f
	w.written = info.Size()
	return nil
}

func (w *RotatingWriter) backupName(n int) string {
	return fmt.Sprintf("%s.%d", w.path, n)
}

func (w *RotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	w.file = nil

	_ = os.Remove(w.backupName(w.maxFiles))
	for n := w.maxFiles - 1; n >= 1; n-- {
		_ = os.Rename(w.backupName(n), w.backupName(n+1))
	}
	if err := os.Rename(w.path, w.backupName(1)); err != nil && !os.IsNotExist(err) {
		_ = w.open()
		return fmt.Errorf("failed to rotate log file: %w", err)
	}

	return w.open()
}
