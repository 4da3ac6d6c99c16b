package ui

import (
	"fmt"
	"strings"

	"github.com/plumber-cd/ez-netwatch/internal/domain"
)

// onItemChanged is called when nav panel focus moves to a new item.
func (a *App) onItemChanged(label string) {
	if a.CurrentFolder == "" {
		source, ok := domain.SourceForFolder(label)
		if !ok {
			a.DetailsPanel.Clear()
			a.CurrentFocusKeys = nil
			return
		}
		a.renderFolder(source)
		return
	}

	entry, ok := a.Inventory.FindByDisplayID(a.CurrentFolder, label)
	if !ok {
		a.DetailsPanel.Clear()
		a.CurrentFocusKeys = nil
		return
	}
	a.renderEntry(a.CurrentFolder, entry)
}

// onFolderSelected is called when a folder is entered.
func (a *App) onFolderSelected(source domain.Source) {
	a.PositionLine.Clear()
	a.PositionLine.SetText(source.Folder())
	a.CurrentMenuItemKeys = []string{"<a> Add"}
}

// onFolderDone is called when leaving a folder.
func (a *App) onFolderDone(source domain.Source) {
	a.PositionLine.Clear()
	a.PositionLine.SetText("Home")
	a.CurrentMenuItemKeys = []string{}
}

// ---------- Detail renderers ----------

func folderDescription(source domain.Source) string {
	if source == domain.SourceUnapproved {
		return "Devices the scanner found that are not on the allow list.\n\nUse Enter or e to edit, A to approve, R to remove."
	}
	return "Devices allowed on the network.\n\nUse Enter or e to edit, R to remove, a to add a new IP."
}

func (a *App) renderFolder(source domain.Source) {
	a.DetailsPanel.Clear()
	if source == "" {
		a.DetailsPanel.SetText("Use Enter or double-click to open a collection.\nUse Backspace to go up one level.")
		a.CurrentFocusKeys = nil
		return
	}

	details := new(strings.Builder)
	details.WriteString(folderDescription(source))
	details.WriteString("\n\n")
	fmt.Fprintf(details, "Entries              : %d\n", len(a.Inventory.Entries(source)))
	fmt.Fprintf(details, "Fetched              : %s\n", formatTime(a.Inventory.FetchedAt))
	if a.ReadOnly {
		details.WriteString("Source               : saved snapshot (backend unreachable)\n")
	}
	a.DetailsPanel.SetText(details.String())
	a.CurrentFocusKeys = nil
}

func (a *App) renderEntry(source domain.Source, entry *domain.Entry) {
	a.DetailsPanel.Clear()

	vendor := entry.VendorText()
	if vendor == "" {
		vendor = "<none>"
		if suggestion := a.vendorSuggestion(entry.MACAddress); suggestion != "" {
			vendor += " (OUI: " + suggestion + ")"
		}
	}
	description := entry.DescriptionText()
	if description == "" {
		description = "<none>"
	}
	randomized := "no"
	if entry.Randomized || domain.IsRandomizedMAC(entry.MACAddress) {
		randomized = "yes"
	}

	details := new(strings.Builder)
	fmt.Fprintf(details, "IP Address           : %s\n", entry.IPAddress)
	fmt.Fprintf(details, "MAC Address          : %s\n", entry.MACAddress)
	fmt.Fprintf(details, "Randomized MAC       : %s\n", randomized)
	fmt.Fprintf(details, "Vendor               : %s\n", vendor)
	fmt.Fprintf(details, "Description          : %s\n", description)
	if entry.FirstSeen != "" {
		fmt.Fprintf(details, "First Seen           : %s\n", entry.FirstSeen)
	}
	if entry.LastSeen != "" {
		fmt.Fprintf(details, "Last Seen            : %s\n", entry.LastSeen)
	}
	fmt.Fprintf(details, "Collection           : %s\n", source.Folder())
	a.DetailsPanel.SetText(details.String())

	a.CurrentFocusKeys = []string{"<e> Edit", "<R> Remove"}
	if source == domain.SourceUnapproved {
		a.CurrentFocusKeys = append(a.CurrentFocusKeys, "<A> Approve")
	}
}

// vendorSuggestion returns the OUI database guess for mac, or "".
func (a *App) vendorSuggestion(mac string) string {
	if a.vendors == nil || strings.TrimSpace(mac) == "" {
		return ""
	}
	return a.vendors.Company(mac)
}
