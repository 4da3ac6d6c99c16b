package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/pterm/pterm"
	"github.com/rivo/tview"

	"github.com/plumber-cd/ez-netwatch/internal/api"
	"github.com/plumber-cd/ez-netwatch/internal/domain"
	"github.com/plumber-cd/ez-netwatch/internal/export"
	"github.com/plumber-cd/ez-netwatch/internal/form"
	"github.com/plumber-cd/ez-netwatch/internal/journal"
	"github.com/plumber-cd/ez-netwatch/internal/logging"
	"github.com/plumber-cd/ez-netwatch/internal/store"
	"github.com/plumber-cd/ez-netwatch/internal/vendors"
)

const (
	mainPageName    = "*main*"
	quitPageName    = "*quit*"
	helpPageName    = "*help*"
	historyPageName = "*history*"
	entryPageName   = "*entry*"
	removePageName  = "*remove_entry*"

	FormFieldWidth          = 42
	descriptionHint         = "Ctrl+E: edit in $EDITOR"
	maxDialogViewportHeight = 23
	historyLimit            = 20

	readOnlyStatus = "Showing a saved snapshot. Press r to reconnect before making changes."
)

var GlobalKeys = []string{"<q> Quit", "<ctrl+s> Save", "<r> Refresh", "<s> Scan", "<H> History"}

// Deps are the collaborators the console needs. Journal and Vendors are optional.
type Deps struct {
	Client  *api.Client
	Journal *journal.Journal
	Vendors *vendors.Database
	Logger  *pterm.Logger
	WorkDir string
}

// App holds all UI state for the EZ-NetWatch console.
type App struct {
	Inventory *domain.Inventory
	WorkDir   string
	// ReadOnly is set while the console shows a saved snapshot because the
	// backend could not be reached.
	ReadOnly bool

	client  *api.Client
	journal *journal.Journal
	vendors *vendors.Database
	logger  *pterm.Logger

	TviewApp *tview.Application
	Pages    *tview.Pages

	// Layout widgets.
	PositionLine *tview.TextView
	NavPanel     *tview.List
	DetailsPanel *tview.TextView
	StatusLine   *tview.TextView
	KeysLine     *tview.TextView
	DetailsFlex  *tview.Flex

	// Navigation state. CurrentFolder is empty at the top level.
	CurrentFolder       domain.Source
	CurrentFocusID      string
	CurrentMenuItemKeys []string
	CurrentFocusKeys    []string

	// mouseSelectArmed distinguishes single-click (highlight) from double-click
	// (navigate). tview translates DoubleClick -> Click before calling
	// SetSelectedFunc, so we suppress the single click's selected callback
	// and only act on the double-click.
	mouseSelectArmed bool

	quitDialog *tview.Modal

	// Keys owns scoped Escape registrations for dialogs.
	Keys *KeyHub
	// Entry is the add/edit dialog state.
	Entry     *form.Controller
	entryView *entryModal

	pendingRemoval *domain.Entry
}

// New creates the console, fetches the inventory and sets up the UI. When the
// backend is unreachable the last saved snapshot is shown read-only.
func New(ctx context.Context, deps Deps) (*App, error) {
	if deps.Client == nil {
		return nil, errors.New("api client is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	a := &App{
		WorkDir:          deps.WorkDir,
		client:           deps.Client,
		journal:          deps.Journal,
		vendors:          deps.Vendors,
		logger:           logger,
		mouseSelectArmed: true,
		Keys:             NewKeyHub(),
	}

	startupStatus := ""
	inv, err := a.client.Inventory(ctx)
	if err != nil {
		a.logger.Warn("inventory fetch failed", a.logger.Args("api", a.client.BaseURL(), "error", err))
		saved, loadErr := store.Load(a.WorkDir)
		switch {
		case loadErr == nil:
			inv = saved
			a.ReadOnly = true
			startupStatus = fmt.Sprintf("Backend unreachable, showing snapshot from %s: %v", formatTime(saved.FetchedAt), err)
		case errors.Is(loadErr, store.ErrNoSnapshot):
			return nil, fmt.Errorf("fetch inventory: %w", err)
		default:
			return nil, fmt.Errorf("fetch inventory: %w (snapshot: %v)", err, loadErr)
		}
	}
	a.Inventory = inv

	a.setupLayout()
	a.Entry = form.New(a.client, a.Keys, func(fn func()) { a.TviewApp.QueueUpdateDraw(fn) }, a.logger)
	a.entryView = newEntryModal(a, a.Entry)
	a.ReloadMenu("")
	if startupStatus != "" {
		a.setStatus(startupStatus)
	} else {
		a.setStatus("Loaded " + export.Summary(a.Inventory) + " from " + a.client.BaseURL())
	}

	return a, nil
}

// Run starts the tview application loop.
func (a *App) Run() error {
	return a.TviewApp.Run()
}

// Stop stops the application.
func (a *App) Stop() {
	if a.Entry != nil {
		a.Entry.Teardown()
	}
	if a.TviewApp != nil {
		a.TviewApp.Stop()
	}
}

// setStatus updates the status line text.
func (a *App) setStatus(text string) {
	a.StatusLine.Clear()
	a.StatusLine.SetText(text)
	a.resizeStatusLine()
}

// Save persists the inventory snapshot and renders the markdown report.
func (a *App) Save() {
	if err := store.Save(a.WorkDir, a.Inventory); err != nil {
		a.setStatus("Error saving data: " + err.Error())
		return
	}

	var vendorOf export.VendorFunc
	if a.vendors != nil {
		vendorOf = a.vendors.Company
	}
	md, err := export.RenderMarkdown(a.Inventory, vendorOf)
	if err != nil {
		a.setStatus("Error rendering markdown: " + err.Error())
		return
	}
	mdPath := filepath.Join(a.WorkDir, store.MarkdownFileName)
	if err := os.WriteFile(mdPath, []byte(md), 0644); err != nil {
		a.setStatus("Error writing markdown: " + err.Error())
		return
	}

	a.logger.Info("snapshot saved", a.logger.Args("dir", a.WorkDir, "entries", a.Inventory.Len()))
	a.setStatus("Saved to " + store.DataDirName + "/ and " + store.MarkdownFileName)
}

// openInExternalEditor opens the text in $EDITOR and returns the result.
func (a *App) openInExternalEditor(currentText string) (string, error) {
	tmpFile, err := os.CreateTemp("", "ez-netwatch-*.txt")
	if err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(tmpFile.Name()) }()

	if _, err := tmpFile.WriteString(currentText); err != nil {
		_ = tmpFile.Close()
		return "", err
	}
	if err := tmpFile.Close(); err != nil {
		return "", err
	}

	editor := strings.TrimSpace(os.Getenv("VISUAL"))
	if editor == "" {
		editor = strings.TrimSpace(os.Getenv("EDITOR"))
	}
	if editor == "" {
		editor = "vi"
	}

	var runErr error
	ok := a.TviewApp.Suspend(func() {
		cmd := exec.Command("sh", "-c", editor+` "$@"`, "ez-netwatch-editor", tmpFile.Name())
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		runErr = cmd.Run()
	})
	if !ok {
		return "", fmt.Errorf("failed to suspend terminal UI")
	}
	if runErr != nil {
		return "", runErr
	}

	updatedText, err := os.ReadFile(tmpFile.Name())
	if err != nil {
		return "", err
	}
	return string(updatedText), nil
}

// menuLabels returns the list entries for the current level.
func (a *App) menuLabels() []string {
	if a.CurrentFolder == "" {
		labels := make([]string, 0, len(domain.Sources))
		for _, source := range domain.Sources {
			labels = append(labels, source.Folder())
		}
		return labels
	}
	entries := a.Inventory.Entries(a.CurrentFolder)
	labels := make([]string, 0, len(entries))
	for i := range entries {
		labels = append(labels, entries[i].DisplayID())
	}
	return labels
}

// ReloadMenu rebuilds the navigation list, keeping focus on focusID when it is still listed.
func (a *App) ReloadMenu(focusID string) {
	a.NavPanel.Clear()

	labels := a.menuLabels()
	fromIndex := -1
	for i, label := range labels {
		if focusID != "" && label == focusID {
			fromIndex = i
		}
		a.NavPanel.AddItem(label, "", 0, nil)
	}

	switch {
	case len(labels) == 0:
		a.CurrentFocusID = ""
		a.renderFolder(a.CurrentFolder)
	case fromIndex >= 0:
		a.NavPanel.SetCurrentItem(fromIndex)
	}
	a.UpdateKeysLine()
}

// focusedEntry returns the entry under the cursor, if any.
func (a *App) focusedEntry() (*domain.Entry, bool) {
	if a.CurrentFolder == "" || a.CurrentFocusID == "" {
		return nil, false
	}
	return a.Inventory.FindByDisplayID(a.CurrentFolder, a.CurrentFocusID)
}

// UpdateKeysLine refreshes the keyboard shortcuts help line.
func (a *App) UpdateKeysLine() {
	if a.KeysLine == nil {
		return
	}

	mandatoryHelpKey := "<?> Help"
	keys := append(append(append([]string{}, GlobalKeys...), a.CurrentMenuItemKeys...), a.CurrentFocusKeys...)
	visibleKeys := append(append([]string{}, keys...), mandatoryHelpKey)
	text := " " + strings.Join(visibleKeys, " | ")

	_, _, innerWidth, _ := a.KeysLine.GetInnerRect()
	if innerWidth > 0 {
		for len(visibleKeys) > 1 && len(text) > innerWidth {
			visibleKeys = visibleKeys[:len(visibleKeys)-2]
			visibleKeys = append(visibleKeys, mandatoryHelpKey)
			text = " " + strings.Join(visibleKeys, " | ")
		}
		if len(visibleKeys) == 1 {
			text = " " + mandatoryHelpKey
		}
	}

	a.KeysLine.SetText(text)
}

func (a *App) showHelpPopup() {
	var content strings.Builder
	content.WriteString("Full keyboard shortcuts\n\n")
	content.WriteString("Navigation\n")
	content.WriteString("- h / Left Arrow: Back\n")
	content.WriteString("- j / Down Arrow: Move down\n")
	content.WriteString("- k / Up Arrow: Move up\n")
	content.WriteString("- l / Right Arrow / Enter: Open or edit\n")
	content.WriteString("- Backspace: Go up one level\n")
	content.WriteString("- Ctrl+U: Page up\n")
	content.WriteString("- Ctrl+D: Page down\n\n")
	content.WriteString("Global\n")
	content.WriteString("- a: Add new IP\n")
	content.WriteString("- r: Refresh from backend\n")
	content.WriteString("- s: Start network scan\n")
	content.WriteString("- H: Submission history\n")
	content.WriteString("- q: Quit (with confirmation)\n")
	content.WriteString("- Ctrl+S: Save snapshot and report\n")
	content.WriteString("- Ctrl+Q: Force quit\n")
	content.WriteString("- ?: Show this help\n\n")
	content.WriteString("Entry dialog\n")
	content.WriteString("- Enter: Submit\n")
	content.WriteString("- Esc: Close\n")
	content.WriteString("- Ctrl+L: Use suggested vendor\n")
	content.WriteString("- Ctrl+E: Edit description in $EDITOR\n\n")
	content.WriteString("Current context\n")
	for _, key := range a.CurrentMenuItemKeys {
		content.WriteString("- ")
		content.WriteString(key)
		content.WriteString("\n")
	}
	for _, key := range a.CurrentFocusKeys {
		content.WriteString("- ")
		content.WriteString(key)
		content.WriteString("\n")
	}

	a.showTextPopup(helpPageName, "Keyboard Shortcuts (scroll: Up/Down, PgUp/PgDn)", content.String(), 58, 20)
}

// showTextPopup shows a scrollable read-only dialog dismissed by Escape, Enter or Backspace.
func (a *App) showTextPopup(pageName, title, text string, width, height int) {
	popup := tview.NewTextView().
		SetText(text).
		SetScrollable(true).
		SetWrap(true).
		SetWordWrap(true)
	popup.SetBorder(true).SetTitle(title)

	var release func()
	dismiss := func() {
		release()
		a.dismissDialog(pageName)
	}
	release = a.Keys.AcquireEscape(dismiss)

	popup.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEnter, tcell.KeyBS, tcell.KeyBackspace2:
			dismiss()
			return nil
		}
		return event
	})

	a.Pages.RemovePage(pageName)
	a.Pages.AddPage(pageName, a.createDialogPage(popup, width, height, nil), true, true)
	a.Pages.ShowPage(pageName)
	a.TviewApp.SetFocus(popup)
}

// resizeStatusLine adjusts the status panel height to fit its text content.
func (a *App) resizeStatusLine() {
	if a.StatusLine == nil || a.DetailsFlex == nil {
		return
	}

	_, _, innerWidth, _ := a.StatusLine.GetInnerRect()
	if innerWidth <= 0 {
		a.DetailsFlex.ResizeItem(a.StatusLine, 3, 0)
		return
	}

	text := a.StatusLine.GetText(false)
	requiredLines := wrappedLineCount(text, innerWidth)
	height := requiredLines + 2 // top and bottom border
	if height < 3 {
		height = 3
	}
	a.DetailsFlex.ResizeItem(a.StatusLine, height, 0)
}

// wrappedLineCount returns the number of visual lines after word wrapping.
func wrappedLineCount(text string, width int) int {
	if width <= 0 {
		return 1
	}
	totalLines := 0
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			totalLines++
			continue
		}
		wrapped := tview.WordWrap(line, width)
		if len(wrapped) == 0 {
			totalLines++
			continue
		}
		totalLines += len(wrapped)
	}
	if totalLines < 1 {
		return 1
	}
	return totalLines
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "an unknown time"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// hintedTextArea keeps a textarea and its hint in one FormItem.
type hintedTextArea struct {
	*tview.TextArea
	hint       string
	labelWidth int
}

func newHintedTextArea(label, text string, rows int, hint string) *hintedTextArea {
	textArea := tview.NewTextArea().SetLabel(label).SetSize(rows, FormFieldWidth)
	textArea.SetText(text, false)
	return &hintedTextArea{
		TextArea: textArea,
		hint:     hint,
	}
}

func (h *hintedTextArea) GetFieldHeight() int {
	return h.TextArea.GetFieldHeight()
}

func (h *hintedTextArea) SetFormAttributes(labelWidth int, labelColor, bgColor, fieldTextColor, fieldBgColor tcell.Color) tview.FormItem {
	h.labelWidth = labelWidth
	h.TextArea.SetFormAttributes(labelWidth, labelColor, bgColor, fieldTextColor, fieldBgColor)
	return h
}

func (h *hintedTextArea) Draw(screen tcell.Screen) {
	x, y, width, height := h.GetRect()
	if height <= 0 {
		return
	}
	h.SetRect(x, y, width, max(height-1, 0))
	h.TextArea.Draw(screen)

	fieldX := x + h.labelWidth
	fieldW := max(width-h.labelWidth, 0)
	tview.Print(screen, h.hint, fieldX, y+height-1, fieldW, tview.AlignLeft, tcell.ColorGray)
}
