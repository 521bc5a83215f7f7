package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// rollingWriter rotates the log file once it grows past maxSize bytes
// and prunes rotated files older than maxAge days.
type rollingWriter struct {
	mu       sync.Mutex
	filename string
	maxSize  int64
	maxAge   int
	file     *os.File
	size     int64
}

// openFileWriter returns the file writer for the logger: a plain append
// file when rotation is disabled, a rolling writer otherwise.
func openFileWriter(cfg Config) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	if cfg.MaxSize <= 0 {
		return file, nil
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}

	w := &rollingWriter{
		filename: cfg.File,
		maxSize:  int64(cfg.MaxSize) * 1024 * 1024,
		maxAge:   cfg.MaxAge,
		file:     file,
		size:     info.Size(),
	}
	go w.prune()

	return w, nil
}

func (w *rollingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size+int64(len(p)) > w.maxSize {
		// A failed rotation leaves the current handle usable; the write
		// proceeds and rotation is retried next time.
		_ = w.rotate()
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *rollingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	return w.file.Close()
}

// rotate renames the current file aside and reopens a fresh one. The
// open handle is only replaced once both steps succeed, so an error
// here never strands the writer on a closed file.
func (w *rollingWriter) rotate() error {
	rotated := fmt.Sprintf("%s.%s", w.filename, time.Now().Format("20060102-150405"))
	if err := os.Rename(w.filename, rotated); err != nil {
		return err
	}

	file, err := os.OpenFile(w.filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	w.file.Close()
	w.file = file
	w.size = 0

	go w.prune()
	return nil
}

// prune removes rotated files past the retention window.
func (w *rollingWriter) prune() {
	if w.maxAge <= 0 {
		return
	}

	matches, err := filepath.Glob(w.filename + ".*")
	if err != nil {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -w.maxAge)
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(path)
		}
	}
}
