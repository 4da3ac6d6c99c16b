package domain

import (
	"slices"
	"time"
)

// Inventory holds the approved and unapproved collections as last fetched.
type Inventory struct {
	Approved   []Entry
	Unapproved []Entry
	FetchedAt  time.Time
}

// NewInventory copies and sorts both collections.
func NewInventory(approved, unapproved []Entry) *Inventory {
	inv := &Inventory{
		Approved:   slices.Clone(approved),
		Unapproved: slices.Clone(unapproved),
	}
	SortEntries(inv.Approved)
	SortEntries(inv.Unapproved)
	return inv
}

// SortEntries orders entries by IP address, then MAC address.
func SortEntries(entries []Entry) {
	slices.SortStableFunc(entries, func(left, right Entry) int {
		if c := CompareIP(left.IPAddress, right.IPAddress); c != 0 {
			return c
		}
		return CompareMAC(left.MACAddress, right.MACAddress)
	})
}

// CompareMAC orders MAC addresses by their hex digits.
func CompareMAC(left, right string) int {
	l, r := MACDigits(left), MACDigits(right)
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	}
	return 0
}

// Entries returns the collection for source.
func (inv *Inventory) Entries(source Source) []Entry {
	if inv == nil {
		return nil
	}
	if source == SourceUnapproved {
		return inv.Unapproved
	}
	return inv.Approved
}

// Find looks up an entry by MAC address, ignoring case and separators.
func (inv *Inventory) Find(source Source, mac string) (*Entry, bool) {
	want := MACDigits(mac)
	entries := inv.Entries(source)
	for i := range entries {
		if MACDigits(entries[i].MACAddress) == want {
			return &entries[i], true
		}
	}
	return nil, false
}

// FindByDisplayID returns the entry whose menu label is id.
func (inv *Inventory) FindByDisplayID(source Source, id string) (*Entry, bool) {
	entries := inv.Entries(source)
	for i := range entries {
		if entries[i].DisplayID() == id {
			return &entries[i], true
		}
	}
	return nil, false
}

// Len returns the number of entries across both collections.
func (inv *Inventory) Len() int {
	if inv == nil {
		return 0
	}
	return len(inv.Approved) + len(inv.Unapproved)
}
