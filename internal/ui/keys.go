package ui

import (
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/plumber-cd/ez-netwatch/internal/domain"
)

// KeyHub hands out scoped Escape registrations. The most recent registration
// receives the key; releasing it uncovers the previous one.
type KeyHub struct {
	mu     sync.Mutex
	nextID uint64
	escape []escapeRegistration
}

type escapeRegistration struct {
	id uint64
	fn func()
}

// NewKeyHub returns an empty hub.
func NewKeyHub() *KeyHub {
	return &KeyHub{}
}

// AcquireEscape registers onEscape and returns its release. Release is
// idempotent.
func (h *KeyHub) AcquireEscape(onEscape func()) (release func()) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.escape = append(h.escape, escapeRegistration{id: id, fn: onEscape})
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			for i, reg := range h.escape {
				if reg.id == id {
					h.escape = append(h.escape[:i], h.escape[i+1:]...)
					return
				}
			}
		})
	}
}

// HandleEscape runs the newest registration and reports whether there was one.
func (h *KeyHub) HandleEscape() bool {
	h.mu.Lock()
	if len(h.escape) == 0 {
		h.mu.Unlock()
		return false
	}
	fn := h.escape[len(h.escape)-1].fn
	h.mu.Unlock()

	fn()
	return true
}

// Active returns the number of live registrations.
func (h *KeyHub) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.escape)
}

// onGlobalKeyPress handles keys available anywhere in the menu.
func (a *App) onGlobalKeyPress(event *tcell.EventKey) *tcell.EventKey {
	if event.Key() != tcell.KeyRune {
		return event
	}
	switch event.Rune() {
	case 'a':
		a.openAddDialog(nil)
		return nil
	case 'r':
		a.Refresh()
		return nil
	case 's':
		a.StartScan()
		return nil
	case 'H':
		a.showHistory()
		return nil
	}
	return event
}

// onFocusKeyPress handles keys for the entry under the cursor.
func (a *App) onFocusKeyPress(entry *domain.Entry, event *tcell.EventKey) *tcell.EventKey {
	if event.Key() != tcell.KeyRune {
		return event
	}
	switch event.Rune() {
	case 'e':
		a.openEditDialog(entry)
		return nil
	case 'R':
		a.confirmRemove(entry)
		return nil
	case 'A':
		if a.CurrentFolder == domain.SourceUnapproved {
			a.openAddDialog(entry)
			return nil
		}
	}
	return event
}

// ---------- Dialog/modal helpers ----------

func (a *App) showModalByNameWithText(pageName, text string) {
	a.Pages.ShowPage(pageName)
	handler := a.getModalFromPage()
	if handler != nil {
		handler.SetText(text)
		handler.SetFocus(1)
		a.TviewApp.SetFocus(handler)
	}
}

// getModalFromPage tries to find a modal within a pages layer.
func (a *App) getModalFromPage() *tview.Modal {
	// All our modal pages contain a *tview.Modal directly as the page content.
	_, p := a.Pages.GetFrontPage()
	if p == nil {
		return nil
	}
	if modal, ok := p.(*tview.Modal); ok {
		return modal
	}
	return nil
}
