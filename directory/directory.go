// Package directory maintains the set of counterparty CompIDs a node is
// willing to accept Logon(A) from, periodically refreshed from a backing
// source and cached to disk — adapted from the teacher's discovery
// package, which polled and cached the set of reachable BMCs the same
// way.
package directory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Entry describes one allowed counterparty.
type Entry struct {
	SenderCompID string    `json:"sender_comp_id"`
	TargetCompID string    `json:"target_comp_id"`
	Label        string    `json:"label"`
	AddedAt      time.Time `json:"added_at"`
}

// Source supplies the current allow-list, e.g. from a database or a
// config management system. Directory polls it on an interval.
type Source interface {
	List() ([]Entry, error)
}

// Directory is a polled, cached, in-memory allow-list with on-change
// notification, generalized from discovery.Scanner's poll loop and
// discovery.Cache's atomic persistence.
type Directory struct {
	source   Source
	interval time.Duration
	cachePath string

	mu      sync.RWMutex
	entries map[string]Entry // keyed by SenderCompID|TargetCompID

	onChangeMu sync.Mutex
	onChange   []func([]Entry)

	stop chan struct{}
}

func key(sender, target string) string { return sender + "|" + target }

// New returns a Directory that polls source every interval and persists
// its last-known-good list to cachePath (used to survive a source outage
// across a restart). cachePath == "" disables caching.
func New(source Source, interval time.Duration, cachePath string) *Directory {
	d := &Directory{
		source:    source,
		interval:  interval,
		cachePath: cachePath,
		entries:   make(map[string]Entry),
		stop:      make(chan struct{}),
	}
	if cachePath != "" {
		if loaded, err := d.loadCache(); err == nil {
			d.setEntries(loaded)
		}
	}
	return d
}

// Start begins the background poll loop. Call Stop to end it.
func (d *Directory) Start() {
	go d.run()
}

// Stop ends the background poll loop.
func (d *Directory) Stop() {
	close(d.stop)
}

// OnChange registers fn to be called with the full entry list whenever a
// poll observes a change.
func (d *Directory) OnChange(fn func([]Entry)) {
	d.onChangeMu.Lock()
	defer d.onChangeMu.Unlock()
	d.onChange = append(d.onChange, fn)
}

// Allowed reports whether (sender, target) is currently in the list.
func (d *Directory) Allowed(senderCompID, targetCompID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.entries[key(senderCompID, targetCompID)]
	return ok
}

// List returns a snapshot of all current entries.
func (d *Directory) List() []Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Entry, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, e)
	}
	return out
}

func (d *Directory) run() {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.poll()
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.poll()
		}
	}
}

func (d *Directory) poll() {
	entries, err := d.source.List()
	if err != nil {
		log.Warnf("directory: poll failed: %v", err)
		return
	}

	changed := d.setEntries(entries)
	if changed {
		if d.cachePath != "" {
			if err := d.saveCache(entries); err != nil {
				log.Warnf("directory: failed to persist cache: %v", err)
			}
		}
		d.onChangeMu.Lock()
		handlers := append([]func([]Entry){}, d.onChange...)
		d.onChangeMu.Unlock()
		for _, h := range handlers {
			h(entries)
		}
	}
}

func (d *Directory) setEntries(entries []Entry) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	next := make(map[string]Entry, len(entries))
	for _, e := range entries {
		next[key(e.SenderCompID, e.TargetCompID)] = e
	}

	changed := len(next) != len(d.entries)
	if !changed {
		for k := range next {
			if _, ok := d.entries[k]; !ok {
				changed = true
				break
			}
		}
	}

	d.entries = next
	return changed
}

func (d *Directory) loadCache() ([]Entry, error) {
	data, err := os.ReadFile(d.cachePath)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("directory: corrupt cache: %w", err)
	}
	return entries, nil
}

// saveCache writes entries to a temp file and renames it into place, the
// same atomic-write pattern discovery.Cache used to avoid a torn file on
// crash mid-write.
func (d *Directory) saveCache(entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(d.cachePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp := d.cachePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, d.cachePath)
}
