// Package vendors resolves MAC addresses to manufacturer names using a
// JSON-lines OUI database.
package vendors

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pterm/pterm"

	"github.com/plumber-cd/ez-netwatch/internal/domain"
)

// PrivateCompany is reported for randomized addresses with no registered prefix.
const PrivateCompany = "Local/Privacy MAC"

// Entry is one line of the OUI database.
type Entry struct {
	OUI         string `json:"oui"`
	Private     bool   `json:"isPrivate"`
	Company     string `json:"companyName"`
	Address     string `json:"companyAddress"`
	CountryCode string `json:"countryCode"`
	BlockSize   string `json:"assignmentBlockSize"`
}

// Database is an in-memory OUI table keyed by upper-case hex prefix.
type Database struct {
	path   string
	logger *pterm.Logger

	mu       sync.RWMutex
	byPrefix map[string]Entry
	longest  int
}

// Open loads the database at path. An empty path yields an empty database
// that still recognizes randomized addresses.
func Open(path string, logger *pterm.Logger) (*Database, error) {
	db := &Database{
		path:     path,
		logger:   logger,
		byPrefix: map[string]Entry{},
	}
	if path == "" {
		return db, nil
	}
	if err := db.Reload(); err != nil {
		return nil, err
	}
	return db, nil
}

// Path returns the file backing the database.
func (db *Database) Path() string {
	return db.path
}

// Reload rereads the file and swaps the table in one step. Malformed lines are
// skipped.
func (db *Database) Reload() error {
	f, err := os.Open(db.path)
	if err != nil {
		return fmt.Errorf("open OUI database: %w", err)
	}
	defer f.Close()

	table := map[string]Entry{}
	longest := 0
	skipped := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			skipped++
			continue
		}
		prefix := domain.MACDigits(entry.OUI)
		if prefix == "" {
			skipped++
			continue
		}
		table[prefix] = entry
		longest = max(longest, len(prefix))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read OUI database: %w", err)
	}

	db.mu.Lock()
	db.byPrefix = table
	db.longest = longest
	db.mu.Unlock()

	if db.logger != nil {
		db.logger.Debug("OUI database loaded", db.logger.Args("path", db.path, "entries", len(table), "skipped", skipped))
	}
	return nil
}

// Len returns the number of prefixes loaded.
func (db *Database) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.byPrefix)
}

// Lookup returns the entry with the longest prefix matching mac. Randomized
// addresses without a match resolve to PrivateCompany.
func (db *Database) Lookup(mac string) (Entry, bool) {
	digits := domain.MACDigits(mac)
	if digits == "" {
		return Entry{}, false
	}

	db.mu.RLock()
	for i := min(len(digits), db.longest); i > 0; i-- {
		if entry, ok := db.byPrefix[digits[:i]]; ok {
			db.mu.RUnlock()
			return entry, true
		}
	}
	db.mu.RUnlock()

	if domain.IsRandomizedMAC(mac) {
		return Entry{Private: true, Company: PrivateCompany}, true
	}
	return Entry{}, false
}

// Company is Lookup reduced to the company name.
func (db *Database) Company(mac string) string {
	entry, ok := db.Lookup(mac)
	if !ok {
		return ""
	}
	return entry.Company
}

// Watch reloads the database whenever its file is written or replaced. It
// blocks until ctx is done.
func (db *Database) Watch(ctx context.Context) error {
	if db.path == "" {
		<-ctx.Done()
		return nil
	}

	target, err := filepath.Abs(db.path)
	if err != nil {
		return fmt.Errorf("resolve OUI database path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer watcher.Close()

	// Editors and downloaders replace the file, so watch the directory.
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name, _ := filepath.Abs(event.Name)
			if name != target || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := db.Reload(); err != nil && db.logger != nil {
				db.logger.Warn("OUI database reload failed", db.logger.Args("error", err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if db.logger != nil {
				db.logger.Warn("OUI watcher error", db.logger.Args("error", err))
			}
		}
	}
}
