package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/plumber-cd/ez-netwatch/internal/domain"
	"github.com/plumber-cd/ez-netwatch/internal/export"
	"github.com/plumber-cd/ez-netwatch/internal/form"
	"github.com/plumber-cd/ez-netwatch/internal/journal"
)

// background runs work off the UI goroutine and applies done back on it.
func (a *App) background(status string, work func(ctx context.Context) error, done func(err error)) {
	a.setStatus(status)
	go func() {
		err := work(context.Background())
		a.TviewApp.QueueUpdateDraw(func() {
			done(err)
		})
	}()
}

// applyInventory swaps in a freshly fetched inventory and keeps the cursor
// on focusID, or on the previous item when focusID is gone.
func (a *App) applyInventory(inv *domain.Inventory, focusID string) {
	a.Inventory = inv
	a.ReadOnly = false

	if a.CurrentFolder != "" {
		if _, ok := inv.FindByDisplayID(a.CurrentFolder, focusID); !ok {
			focusID = a.CurrentFocusID
		}
	} else {
		focusID = a.CurrentFocusID
	}
	a.ReloadMenu(focusID)
}

// Refresh refetches both collections.
func (a *App) Refresh() {
	var inv *domain.Inventory
	a.background("Refreshing from "+a.client.BaseURL()+"...", func(ctx context.Context) error {
		var err error
		inv, err = a.client.Inventory(ctx)
		return err
	}, func(err error) {
		if err != nil {
			a.logger.Warn("refresh failed", a.logger.Args("error", err))
			a.setStatus("Refresh failed: " + err.Error())
			return
		}
		a.applyInventory(inv, a.CurrentFocusID)
		a.logger.Info("inventory refreshed", a.logger.Args("approved", len(inv.Approved), "unapproved", len(inv.Unapproved)))
		a.setStatus("Refreshed: " + export.Summary(inv))
	})
}

// StartScan asks the backend to scan the network.
func (a *App) StartScan() {
	a.background("Starting network scan...", func(ctx context.Context) error {
		return a.client.StartScan(ctx)
	}, func(err error) {
		if err != nil {
			a.logger.Warn("scan request failed", a.logger.Args("error", err))
			a.setStatus("Scan failed: " + err.Error())
			return
		}
		a.logger.Info("scan started")
		a.setStatus("Scan started. Press r to refresh when it completes.")
	})
}

// writable reports whether changes may be sent. A console showing a saved
// snapshot stays read-only until a refresh succeeds.
func (a *App) writable() bool {
	if a.ReadOnly {
		a.setStatus(readOnlyStatus)
		return false
	}
	return true
}

// confirmRemove asks before deleting entry from the open folder.
func (a *App) confirmRemove(entry *domain.Entry) {
	if !a.writable() {
		return
	}
	removed := *entry
	a.pendingRemoval = &removed
	a.showModalByNameWithText(removePageName, fmt.Sprintf("Remove %s from %s?", entry.DisplayID(), a.CurrentFolder.Folder()))
}

// RemovePending deletes the entry confirmed in the remove dialog.
func (a *App) RemovePending() {
	entry := a.pendingRemoval
	a.pendingRemoval = nil
	if entry == nil || a.CurrentFolder == "" {
		return
	}
	source := a.CurrentFolder

	var inv *domain.Inventory
	a.background("Removing "+entry.DisplayID()+"...", func(ctx context.Context) error {
		if err := a.client.Remove(ctx, source, entry.IPAddress, entry.MACAddress); err != nil {
			return err
		}
		var err error
		inv, err = a.client.Inventory(ctx)
		if err != nil {
			return fmt.Errorf("removed, but refresh failed: %w", err)
		}
		return nil
	}, func(err error) {
		if err != nil {
			a.logger.Warn("remove failed", a.logger.Args("source", source, "ip", entry.IPAddress, "error", err))
			a.setStatus("Remove failed: " + err.Error())
			return
		}
		a.logger.Info("entry removed", a.logger.Args("source", source, "ip", entry.IPAddress, "mac", entry.MACAddress))
		a.applyInventory(inv, "")
		a.setStatus("Removed " + entry.DisplayID() + " from " + source.Folder())
	})
}

// openAddDialog opens the entry dialog in create mode. initial prefills the
// fields when approving a scanned device.
func (a *App) openAddDialog(initial *domain.Entry) {
	source := a.CurrentFolder
	if source == "" {
		source = domain.SourceApproved
	}
	a.openEntryDialog(domain.ModeCreate, source, initial)
}

// openEditDialog opens the entry dialog for entry in the open folder.
func (a *App) openEditDialog(entry *domain.Entry) {
	a.openEntryDialog(domain.ModeEdit, a.CurrentFolder, entry)
}

func (a *App) openEntryDialog(mode domain.Mode, source domain.Source, initial *domain.Entry) {
	if !a.writable() {
		return
	}
	var values *domain.Entry
	if initial != nil {
		copied := *initial
		values = &copied
	}
	opened := a.Entry.Open(form.Props{
		Mode:          mode,
		Source:        source,
		InitialValues: values,
		OnClose:       a.entryView.hide,
		OnCreated:     a.onEntrySaved(mode, source),
	})
	if !opened {
		return
	}
	a.logger.Debug("entry dialog requested", a.logger.Args("mode", mode, "source", source))
}

// onEntrySaved records the submission and refreshes the inventory. It runs on
// the submission goroutine. Failures here are reported on the status line
// only: the backend already accepted the write.
func (a *App) onEntrySaved(mode domain.Mode, source domain.Source) func(ctx context.Context, payload domain.Payload) error {
	return func(ctx context.Context, payload domain.Payload) error {
		route, err := domain.RouteFor(mode, source)
		if err != nil {
			return err
		}
		if a.journal != nil {
			if _, err := a.journal.Record(ctx, journal.NewRecord(time.Now(), mode, source, route, payload)); err != nil {
				a.logger.Warn("journal write failed", a.logger.Args("error", err))
			}
		}

		saved := domain.Entry{IPAddress: payload.IPAddress, MACAddress: payload.MACAddress}
		status := fmt.Sprintf("Saved %s via %s", saved.DisplayID(), route)
		inv, err := a.client.Inventory(ctx)
		a.TviewApp.QueueUpdateDraw(func() {
			if err != nil {
				a.logger.Warn("refresh after save failed", a.logger.Args("error", err))
				a.setStatus(status + ", but refresh failed: " + err.Error())
				return
			}
			a.applyInventory(inv, saved.DisplayID())
			a.setStatus(status)
		})
		return nil
	}
}

// showHistory lists recent submissions from the journal.
func (a *App) showHistory() {
	if a.journal == nil {
		a.setStatus("Submission history is disabled.")
		return
	}
	records, err := a.journal.Recent(context.Background(), historyLimit)
	if err != nil {
		a.setStatus("Failed to read history: " + err.Error())
		return
	}

	var content strings.Builder
	if len(records) == 0 {
		content.WriteString("No submissions recorded yet.\n")
	}
	for _, rec := range records {
		entry := domain.Entry{IPAddress: rec.IPAddress, MACAddress: rec.MACAddress}
		fmt.Fprintf(&content, "%s  %s %s\n  %s",
			rec.At.Local().Format("2006-01-02 15:04:05"),
			rec.Method,
			rec.Endpoint,
			entry.DisplayID(),
		)
		if rec.Vendor != nil {
			content.WriteString("  " + *rec.Vendor)
		}
		content.WriteString("\n")
	}

	a.showTextPopup(historyPageName, fmt.Sprintf("Recent Submissions (%d)", len(records)), content.String(), 64, 20)
}
