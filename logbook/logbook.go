// Package logbook records every committed identifier, one line each, in an
// append-only file per calendar day.
package logbook

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Writer appends commit records under Dir. Now is injectable for tests and
// defaults to time.Now.
type Writer struct {
	Dir string
	Now func() time.Time
}

// New returns a writer for the given log directory.
func New(dir string) *Writer {
	return &Writer{Dir: dir, Now: time.Now}
}

// FileName returns today's log file name, YYYYMMDD.txt.
func (w *Writer) FileName() string {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	return now().Format("20060102") + ".txt"
}

// Append durably writes one identifier line to today's log file, creating
// the file if needed and never truncating prior content.
func (w *Writer) Append(identifier string) error {
	path := filepath.Join(w.Dir, w.FileName())
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log %s: %w", path, err)
	}
	if _, err := fmt.Fprintln(f, identifier); err != nil {
		f.Close()
		return fmt.Errorf("append log %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync log %s: %w", path, err)
	}
	return f.Close()
}
