package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/plumber-cd/ez-netwatch/internal/domain"
)

func Test_safeFileNameSegment(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"simple", "simple"},
		{"Hello World", "Hello_World"},
		{"a/b\\c", "a_b_c"},
		{"  spaces  ", "spaces"},
		{"", "item"},
		{"   ", "item"},
		{"my-router_1", "my-router_1"},
		{"special!@#$%chars", "special_____chars"},
		{"192.168.1.10_AABBCCDDEEFF", "192_168_1_10_AABBCCDDEEFF"},
		{"fe80::1_AABB", "fe80__1_AABB"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := safeFileNameSegment(tt.input)
			if got != tt.want {
				t.Errorf("safeFileNameSegment(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func strPtr(s string) *string { return &s }

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()

	inv := domain.NewInventory(
		[]domain.Entry{
			{IPAddress: "192.168.1.20", MACAddress: "aa:bb:cc:dd:ee:02", Vendor: strPtr("Acme"), Description: strPtr("printer")},
			{IPAddress: "192.168.1.10", MACAddress: "aa:bb:cc:dd:ee:01"},
		},
		[]domain.Entry{
			{IPAddress: "192.168.1.99", MACAddress: "da:a1:19:00:00:01", Randomized: true, FirstSeen: "2024-05-01 10:00:00"},
		},
	)
	inv.FetchedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	if err := Save(dir, inv); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	dataDir := filepath.Join(dir, DataDirName)
	for _, sub := range []string{approvedDirName, unapprovedDirName} {
		if _, err := os.Stat(filepath.Join(dataDir, sub)); err != nil {
			t.Fatalf("%s dir missing: %v", sub, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dataDir, approvedDirName, "192_168_1_20_AABBCCDDEE02.yaml")); err != nil {
		t.Fatalf("entry file missing: %v", err)
	}
	for _, leftover := range []string{dataDir + ".tmp", dataDir + ".old"} {
		if _, err := os.Stat(leftover); !os.IsNotExist(err) {
			t.Errorf("%s should not exist after save", leftover)
		}
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(loaded.Approved) != 2 || len(loaded.Unapproved) != 1 {
		t.Fatalf("loaded %d approved, %d unapproved; want 2, 1", len(loaded.Approved), len(loaded.Unapproved))
	}
	if loaded.Approved[0].IPAddress != "192.168.1.10" {
		t.Errorf("approved not sorted, first = %s", loaded.Approved[0].IPAddress)
	}
	printer := loaded.Approved[1]
	if printer.VendorText() != "Acme" || printer.DescriptionText() != "printer" {
		t.Errorf("printer = %+v", printer)
	}
	if loaded.Approved[0].Vendor != nil {
		t.Errorf("nil vendor should stay nil, got %q", *loaded.Approved[0].Vendor)
	}
	guest := loaded.Unapproved[0]
	if !guest.Randomized || guest.FirstSeen != "2024-05-01 10:00:00" {
		t.Errorf("unapproved entry = %+v", guest)
	}
	if !loaded.FetchedAt.Equal(inv.FetchedAt) {
		t.Errorf("FetchedAt = %v, want %v", loaded.FetchedAt, inv.FetchedAt)
	}
}

func TestSaveReplacesPreviousSnapshot(t *testing.T) {
	dir := t.TempDir()
	first := domain.NewInventory([]domain.Entry{{IPAddress: "10.0.0.1", MACAddress: "00:00:00:00:00:01"}}, nil)
	if err := Save(dir, first); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	second := domain.NewInventory(nil, []domain.Entry{{IPAddress: "10.0.0.2", MACAddress: "00:00:00:00:00:02"}})
	if err := Save(dir, second); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(loaded.Approved) != 0 || len(loaded.Unapproved) != 1 {
		t.Fatalf("stale entries survived: %+v", loaded)
	}
}

func TestLoadWithoutSnapshot(t *testing.T) {
	_, err := Load(t.TempDir())
	if !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("Load() error = %v, want ErrNoSnapshot", err)
	}
}

func TestSaveAndLoadKeepsNonCanonicalAddresses(t *testing.T) {
	dir := t.TempDir()
	inv := domain.NewInventory([]domain.Entry{{IPAddress: "10.0.0.1", MACAddress: "aa"}}, nil)
	if err := Save(dir, inv); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(loaded.Approved) != 1 || loaded.Approved[0].MACAddress != "aa" {
		t.Fatalf("loaded approved = %+v", loaded.Approved)
	}
}

func TestLoadRejectsIncompleteEntry(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, DataDirName, approvedDirName)
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "bad.yaml"), []byte("ip_address: 10.0.0.1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("Load() should reject an entry without a MAC address")
	}
}
