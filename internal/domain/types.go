package domain

import (
	"fmt"
	"strings"
)

// Mode selects whether the entry dialog creates a new entry or edits an existing one.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// Source names the backend collection an entry belongs to.
type Source string

const (
	SourceApproved   Source = "approved"
	SourceUnapproved Source = "unapproved"
)

// Static folder identifiers used as root-level menu entries.
const (
	FolderApproved   = "Approved"
	FolderUnapproved = "Unapproved"
)

// Sources lists the collections in menu order.
var Sources = []Source{SourceApproved, SourceUnapproved}

// ParseMode returns the mode for s. Empty input yields ModeCreate.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeCreate:
		return ModeCreate, nil
	case ModeEdit:
		return ModeEdit, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// ParseSource returns the source for s. Empty input yields SourceApproved.
func ParseSource(s string) (Source, error) {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case "", SourceApproved:
		return SourceApproved, nil
	case SourceUnapproved:
		return SourceUnapproved, nil
	}
	return "", fmt.Errorf("unknown source %q", s)
}

// Folder returns the menu folder name for the source.
func (s Source) Folder() string {
	if s == SourceUnapproved {
		return FolderUnapproved
	}
	return FolderApproved
}

// SourceForFolder maps a menu folder name back to its source.
func SourceForFolder(folder string) (Source, bool) {
	switch folder {
	case FolderApproved:
		return SourceApproved, true
	case FolderUnapproved:
		return SourceUnapproved, true
	}
	return "", false
}

// Entry is a device record as the backend returns it.
type Entry struct {
	IPAddress   string  `json:"ip_address"`
	MACAddress  string  `json:"mac_address"`
	Vendor      *string `json:"vendor"`
	Description *string `json:"description"`
	FirstSeen   string  `json:"first_seen,omitempty"`
	LastSeen    string  `json:"last_seen,omitempty"`
	Randomized  bool    `json:"randomized,omitempty"`
}

// DisplayID is the menu label of the entry.
func (e *Entry) DisplayID() string {
	if e.MACAddress == "" {
		return e.IPAddress
	}
	return fmt.Sprintf("%s (%s)", e.IPAddress, e.MACAddress)
}

// VendorText returns the vendor or an empty string.
func (e *Entry) VendorText() string {
	if e.Vendor == nil {
		return ""
	}
	return *e.Vendor
}

// DescriptionText returns the description or an empty string.
func (e *Entry) DescriptionText() string {
	if e.Description == nil {
		return ""
	}
	return *e.Description
}

// Draft is the unsaved state of the entry dialog.
type Draft struct {
	IPAddress   string
	MACAddress  string
	Vendor      string
	Description string
}

// DraftFrom populates a draft from initial values. A nil entry yields an empty draft.
func DraftFrom(initial *Entry) Draft {
	if initial == nil {
		return Draft{}
	}
	return Draft{
		IPAddress:   initial.IPAddress,
		MACAddress:  initial.MACAddress,
		Vendor:      initial.VendorText(),
		Description: initial.DescriptionText(),
	}
}

// Ready reports whether both identity fields carry a value.
func (d Draft) Ready() bool {
	return strings.TrimSpace(d.IPAddress) != "" && strings.TrimSpace(d.MACAddress) != ""
}

// Payload builds the request body for the draft.
func (d Draft) Payload() Payload {
	return Payload{
		IPAddress:   strings.TrimSpace(d.IPAddress),
		MACAddress:  NormalizeMAC(d.MACAddress),
		Vendor:      optionalText(d.Vendor),
		Description: optionalText(d.Description),
	}
}

// Payload is the JSON body sent to the create and update endpoints.
// Timestamps are left for the server to fill in.
type Payload struct {
	IPAddress   string  `json:"ip_address"`
	MACAddress  string  `json:"mac_address"`
	Vendor      *string `json:"vendor"`
	Description *string `json:"description"`
}

// Identity is the body of the remove endpoints.
type Identity struct {
	IPAddress  string `json:"ip_address"`
	MACAddress string `json:"mac_address"`
}

func optionalText(s string) *string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
