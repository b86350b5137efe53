// Package audit provides a rotating, retention-bounded log of the raw
// FIX frames a session sends and receives — adapted from the teacher's
// log writer, keeping its rotation/retention/current-symlink skeleton and
// dropping everything specific to cleaning ANSI terminal output, which
// has no FIX analogue.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Writer logs inbound and outbound frames to one rotating file per
// session name, under basePath/<name>/, with a current.log symlink
// pointing at the active file the way the teacher's console logs did.
type Writer struct {
	basePath      string
	retentionDays int

	mu    sync.Mutex
	files map[string]*os.File
}

// NewWriter returns a Writer rooted at basePath. retentionDays <= 0
// disables Cleanup.
func NewWriter(basePath string, retentionDays int) *Writer {
	return &Writer{
		basePath:      basePath,
		retentionDays: retentionDays,
		files:         make(map[string]*os.File),
	}
}

// RecordOutbound appends a framed outbound message to sessionName's log.
func (w *Writer) RecordOutbound(sessionName string, frame []byte) {
	w.write(sessionName, "OUT", frame)
}

// RecordInbound appends a framed inbound message to sessionName's log.
func (w *Writer) RecordInbound(sessionName string, frame []byte) {
	w.write(sessionName, "IN ", frame)
}

func (w *Writer) write(sessionName, direction string, frame []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.getOrCreateFile(sessionName)
	if err != nil {
		log.Warnf("audit: failed to open log for %s: %v", sessionName, err)
		return
	}

	line := fmt.Sprintf("%s %s %s\n", time.Now().UTC().Format(time.RFC3339Nano), direction, printable(frame))
	if _, err := f.WriteString(line); err != nil {
		log.Warnf("audit: write failed for %s: %v", sessionName, err)
	}
}

// printable renders a raw FIX frame (SOH-delimited) with the separator
// visible, so the log can be read with a plain text viewer.
func printable(frame []byte) string {
	out := make([]byte, 0, len(frame)+8)
	for _, b := range frame {
		if b == 0x01 {
			out = append(out, '|')
		} else {
			out = append(out, b)
		}
	}
	return string(out)
}

func (w *Writer) getOrCreateFile(sessionName string) (*os.File, error) {
	if f, exists := w.files[sessionName]; exists {
		return f, nil
	}

	dir := filepath.Join(w.basePath, sessionName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	symlinkPath := filepath.Join(dir, "current.log")
	if target, err := os.Readlink(symlinkPath); err == nil {
		existingPath := filepath.Join(dir, target)
		if f, err := os.OpenFile(existingPath, os.O_WRONLY|os.O_APPEND, 0644); err == nil {
			w.files[sessionName] = f
			return f, nil
		}
	}

	filename := time.Now().Format("2006-01-02_15-04-05") + ".log"
	path := filepath.Join(dir, filename)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit log file: %w", err)
	}
	w.files[sessionName] = f

	os.Remove(symlinkPath)
	os.Symlink(filename, symlinkPath)

	return f, nil
}

// Rotate closes the active file for sessionName and starts a new one,
// refreshing the current.log symlink.
func (w *Writer) Rotate(sessionName string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if f, exists := w.files[sessionName]; exists {
		f.Close()
		delete(w.files, sessionName)
	}

	dir := filepath.Join(w.basePath, sessionName)
	os.Remove(filepath.Join(dir, "current.log"))

	_, err := w.getOrCreateFile(sessionName)
	return err
}

// ListLogs returns archived log filenames for sessionName, newest first.
func (w *Writer) ListLogs(sessionName string) ([]string, error) {
	dir := filepath.Join(w.basePath, sessionName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	type logEntry struct {
		name    string
		modTime time.Time
	}
	var logs []logEntry
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".log" || entry.Name() == "current.log" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		logs = append(logs, logEntry{entry.Name(), info.ModTime()})
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].modTime.After(logs[j].modTime) })

	names := make([]string, len(logs))
	for i, l := range logs {
		names[i] = l.name
	}
	return names, nil
}

// Cleanup removes archived log files older than retentionDays across all
// sessions.
func (w *Writer) Cleanup() {
	if w.retentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -w.retentionDays)

	entries, err := os.ReadDir(w.basePath)
	if err != nil {
		return
	}
	for _, sessionDir := range entries {
		if !sessionDir.IsDir() {
			continue
		}
		sessionPath := filepath.Join(w.basePath, sessionDir.Name())
		logFiles, err := os.ReadDir(sessionPath)
		if err != nil {
			continue
		}
		for _, lf := range logFiles {
			if lf.IsDir() || filepath.Ext(lf.Name()) != ".log" {
				continue
			}
			info, err := lf.Info()
			if err != nil {
				continue
			}
			if info.ModTime().Before(cutoff) {
				path := filepath.Join(sessionPath, lf.Name())
				os.Remove(path)
				log.Infof("audit: removed expired log %s", path)
			}
		}
	}
}

// Close closes all open log files.
func (w *Writer) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, f := range w.files {
		f.Close()
	}
	w.files = make(map[string]*os.File)
}
