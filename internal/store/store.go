package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/plumber-cd/ez-netwatch/internal/domain"
	"sigs.k8s.io/yaml"
)

const (
	DataDirName      = ".ez-netwatch"
	MarkdownFileName = "EZ-NETWATCH.md"

	approvedDirName   = "approved"
	unapprovedDirName = "unapproved"
	metaFileName      = "snapshot.yaml"
)

// ErrNoSnapshot is returned by Load when nothing was saved yet.
var ErrNoSnapshot = errors.New("no snapshot saved")

type meta struct {
	FetchedAt time.Time `json:"fetched_at"`
}

func sourceDirName(source domain.Source) string {
	if source == domain.SourceUnapproved {
		return unapprovedDirName
	}
	return approvedDirName
}

// Load reads the last saved snapshot from dir.
func Load(dir string) (*domain.Inventory, error) {
	dataDir := filepath.Join(dir, DataDirName)
	if _, err := os.Stat(dataDir); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("stat %s: %w", dataDir, err)
	}

	collections := map[domain.Source][]domain.Entry{}
	for _, source := range domain.Sources {
		fullPath := filepath.Join(dataDir, sourceDirName(source))
		files, err := os.ReadDir(fullPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read %s directory: %w", fullPath, err)
		}
		for _, f := range files {
			if f.IsDir() || filepath.Ext(f.Name()) != ".yaml" {
				continue
			}
			bytes, err := os.ReadFile(filepath.Join(fullPath, f.Name()))
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", f.Name(), err)
			}
			entry := domain.Entry{}
			if err := yaml.Unmarshal(bytes, &entry); err != nil {
				return nil, fmt.Errorf("unmarshal %s: %w", f.Name(), err)
			}
			if err := entry.Validate(); err != nil {
				return nil, fmt.Errorf("validate %s/%s: %w", sourceDirName(source), f.Name(), err)
			}
			collections[source] = append(collections[source], entry)
		}
	}

	inv := domain.NewInventory(collections[domain.SourceApproved], collections[domain.SourceUnapproved])

	metaBytes, err := os.ReadFile(filepath.Join(dataDir, metaFileName))
	switch {
	case err == nil:
		m := meta{}
		if err := yaml.Unmarshal(metaBytes, &m); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", metaFileName, err)
		}
		inv.FetchedAt = m.FetchedAt
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("read %s: %w", metaFileName, err)
	}

	return inv, nil
}

// Save writes the inventory to YAML files using an atomic rename.
func Save(dir string, inv *domain.Inventory) error {
	dataDir := filepath.Join(dir, DataDirName)
	dataTmpDir := dataDir + ".tmp"
	dataOldDir := dataDir + ".old"

	if err := os.RemoveAll(dataTmpDir); err != nil {
		return fmt.Errorf("remove tmp dir: %w", err)
	}
	for _, source := range domain.Sources {
		d := filepath.Join(dataTmpDir, sourceDirName(source))
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
		for _, entry := range inv.Entries(source) {
			name := safeFileNameSegment(entry.IPAddress+"_"+domain.MACDigits(entry.MACAddress)) + ".yaml"
			if err := writeYAML(filepath.Join(d, name), entry); err != nil {
				return err
			}
		}
	}
	if err := writeYAML(filepath.Join(dataTmpDir, metaFileName), meta{FetchedAt: inv.FetchedAt}); err != nil {
		return err
	}

	if err := os.RemoveAll(dataOldDir); err != nil {
		return fmt.Errorf("remove old dir: %w", err)
	}
	if _, err := os.Stat(dataDir); err == nil {
		if err := os.Rename(dataDir, dataOldDir); err != nil {
			return fmt.Errorf("rename %s to %s: %w", dataDir, dataOldDir, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", dataDir, err)
	}
	if err := os.Rename(dataTmpDir, dataDir); err != nil {
		// best-effort rollback
		if _, rollbackErr := os.Stat(dataOldDir); rollbackErr == nil {
			_ = os.Rename(dataOldDir, dataDir)
		}
		return fmt.Errorf("rename %s to %s: %w", dataTmpDir, dataDir, err)
	}
	if err := os.RemoveAll(dataOldDir); err != nil {
		return fmt.Errorf("remove old dir after swap: %w", err)
	}
	return nil
}

func writeYAML(fileName string, v interface{}) error {
	bytes, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %T: %w", v, err)
	}
	if err := os.WriteFile(fileName, bytes, 0644); err != nil {
		return fmt.Errorf("write %s: %w", fileName, err)
	}
	return nil
}

// safeFileNameSegment sanitizes a string for use as a filename.
func safeFileNameSegment(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "item"
	}
	safe := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, trimmed)
	return strings.Trim(safe, "_")
}
