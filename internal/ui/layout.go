package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/plumber-cd/ez-netwatch/internal/domain"
)

func (a *App) setupLayout() {
	a.TviewApp = tview.NewApplication()
	a.Pages = tview.NewPages()
	rootFlex := tview.NewFlex().SetDirection(tview.FlexRow)

	a.PositionLine = tview.NewTextView()
	a.PositionLine.SetBorder(true)
	a.PositionLine.SetTitle("Navigation")
	a.PositionLine.SetText("Home")
	rootFlex.AddItem(a.PositionLine, 3, 1, false)

	middleFlex := tview.NewFlex().SetDirection(tview.FlexColumn)
	rootFlex.AddItem(middleFlex, 0, 2, false)

	a.NavPanel = tview.NewList()
	a.NavPanel.ShowSecondaryText(false)
	a.NavPanel.SetBorder(true).SetTitle("Menu")
	middleFlex.AddItem(a.NavPanel, 0, 1, false)

	a.DetailsFlex = tview.NewFlex().SetDirection(tview.FlexRow)
	middleFlex.AddItem(a.DetailsFlex, 0, 2, false)

	a.DetailsPanel = tview.NewTextView()
	a.DetailsPanel.SetBorder(true).SetTitle("Details")
	a.DetailsFlex.AddItem(a.DetailsPanel, 0, 1, false)

	a.KeysLine = tview.NewTextView()
	a.KeysLine.SetBorder(false)
	a.UpdateKeysLine()
	rootFlex.AddItem(a.KeysLine, 1, 1, false)

	a.StatusLine = tview.NewTextView()
	a.StatusLine.SetBorder(true)
	a.StatusLine.SetTitle("Status")
	a.StatusLine.SetWrap(true)
	a.StatusLine.SetWordWrap(true)
	a.DetailsFlex.AddItem(a.StatusLine, 3, 0, false)

	a.Pages.AddPage(mainPageName, rootFlex, true, true)

	// Redirect focus from non-interactive panels to nav panel.
	a.PositionLine.SetFocusFunc(func() { a.TviewApp.SetFocus(a.NavPanel) })
	a.DetailsPanel.SetFocusFunc(func() { a.TviewApp.SetFocus(a.NavPanel) })
	a.StatusLine.SetFocusFunc(func() { a.TviewApp.SetFocus(a.NavPanel) })
	a.KeysLine.SetFocusFunc(func() { a.TviewApp.SetFocus(a.NavPanel) })

	// Mouse capture: single click only highlights, double click navigates.
	a.NavPanel.SetMouseCapture(func(action tview.MouseAction, event *tcell.EventMouse) (tview.MouseAction, *tcell.EventMouse) {
		switch action {
		case tview.MouseLeftClick:
			a.mouseSelectArmed = false
		case tview.MouseLeftDoubleClick:
			a.mouseSelectArmed = true
			return tview.MouseLeftClick, event
		}
		return action, event
	})

	// Navigation changed callback.
	a.NavPanel.SetChangedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
		a.CurrentFocusID = mainText
		a.onItemChanged(mainText)
		a.UpdateKeysLine()
	})

	// Navigation selected callback (enter / double-click).
	a.NavPanel.SetSelectedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
		if !a.mouseSelectArmed {
			a.mouseSelectArmed = true
			return
		}

		if a.CurrentFolder != "" {
			if entry, ok := a.Inventory.FindByDisplayID(a.CurrentFolder, mainText); ok {
				a.openEditDialog(entry)
			}
			return
		}

		source, ok := domain.SourceForFolder(mainText)
		if !ok {
			return
		}
		a.CurrentFolder = source
		a.onFolderSelected(source)
		a.ReloadMenu("")
	})

	// Navigation done callback (escape / backspace).
	a.NavPanel.SetDoneFunc(func() {
		if a.CurrentFolder == "" {
			return
		}

		oldFolder := a.CurrentFolder
		a.onFolderDone(oldFolder)
		a.CurrentFolder = ""
		a.ReloadMenu(oldFolder.Folder())
	})

	// Input capture on nav panel for vim keys and global shortcuts.
	a.NavPanel.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyBS, tcell.KeyBackspace2:
			return tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)
		case tcell.KeyCtrlU:
			return tcell.NewEventKey(tcell.KeyPgUp, 0, tcell.ModNone)
		case tcell.KeyCtrlD:
			return tcell.NewEventKey(tcell.KeyPgDn, 0, tcell.ModNone)
		case tcell.KeyRune:
			switch event.Rune() {
			case 'h':
				return tcell.NewEventKey(tcell.KeyLeft, tcell.RuneLArrow, tcell.ModNone)
			case 'j':
				return tcell.NewEventKey(tcell.KeyDown, tcell.RuneDArrow, tcell.ModNone)
			case 'k':
				return tcell.NewEventKey(tcell.KeyUp, tcell.RuneUArrow, tcell.ModNone)
			case 'l':
				return tcell.NewEventKey(tcell.KeyRight, tcell.RuneRArrow, tcell.ModNone)
			case 'q':
				a.showQuitDialog()
				return nil
			case '?':
				a.showHelpPopup()
				return nil
			}
		}

		if e := a.onGlobalKeyPress(event); e != event {
			return e
		}
		if entry, ok := a.focusedEntry(); ok {
			if e := a.onFocusKeyPress(entry, event); e != event {
				return e
			}
		}

		return event
	})

	// Confirm modals.
	a.setupModals()

	// Quit dialog.
	{
		a.quitDialog = tview.NewModal().SetText("Do you want to quit? Unsaved snapshots will be lost.").
			AddButtons([]string{"Quit", "Cancel"}).
			SetDoneFunc(func(buttonIndex int, buttonLabel string) {
				switch buttonLabel {
				case "Quit":
					a.Stop()
				case "Cancel":
					fallthrough
				default:
					a.Pages.SwitchToPage(mainPageName)
					a.TviewApp.SetFocus(a.NavPanel)
				}
			})
		a.Pages.AddPage(quitPageName, a.quitDialog, true, false)
	}

	// Root setup.
	a.TviewApp.SetRoot(a.Pages, true)
	a.TviewApp.EnableMouse(true)
	a.TviewApp.SetBeforeDrawFunc(func(screen tcell.Screen) bool {
		a.resizeStatusLine()
		a.UpdateKeysLine()
		return false
	})
	a.TviewApp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEscape:
			// Open dialogs own Escape while they are registered.
			if a.Keys.HandleEscape() {
				return nil
			}
		case tcell.KeyCtrlC:
			a.showQuitDialog()
			return nil
		case tcell.KeyCtrlS:
			a.Save()
			return nil
		case tcell.KeyCtrlQ:
			a.Stop()
			return nil
		}
		return event
	})
	a.Pages.SwitchToPage(mainPageName)
	a.TviewApp.SetFocus(a.NavPanel)
}

func (a *App) showQuitDialog() {
	a.Pages.ShowPage(quitPageName)
	a.quitDialog.SetFocus(1)
	a.TviewApp.SetFocus(a.quitDialog)
}

func (a *App) setupModals() {
	makeModal := func(pageName, text string, onYes func()) {
		modal := tview.NewModal().SetText(text).AddButtons([]string{"Yes", "No"})
		modal.SetDoneFunc(func(buttonIndex int, buttonLabel string) {
			switch buttonLabel {
			case "Yes":
				onYes()
				fallthrough
			case "No":
				fallthrough
			default:
				modal.SetText("")
				a.Pages.SwitchToPage(mainPageName)
				a.TviewApp.SetFocus(a.NavPanel)
			}
		})
		a.Pages.AddPage(pageName, modal, true, false)
	}

	makeModal(removePageName, "Remove this entry?", func() { a.RemovePending() })
}

// mouseBlocker returns a box that absorbs mouse events (prevents clicking
// through dialog overlays). A left click calls onClick when it is set.
func mouseBlocker(onClick func()) *tview.Box {
	box := tview.NewBox()
	box.SetMouseCapture(func(action tview.MouseAction, event *tcell.EventMouse) (tview.MouseAction, *tcell.EventMouse) {
		if action == tview.MouseLeftClick && onClick != nil {
			onClick()
		}
		return tview.MouseConsumed, nil
	})
	return box
}

// createDialogPage wraps a form or content primitive in a centered dialog
// overlay. Clicking the backdrop calls onBackdrop when it is set.
func (a *App) createDialogPage(content tview.Primitive, width, height int, onBackdrop func()) tview.Primitive {
	return tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(mouseBlocker(onBackdrop), 0, 1, false).
		AddItem(
			tview.NewFlex().SetDirection(tview.FlexRow).
				AddItem(mouseBlocker(onBackdrop), 0, 1, false).
				AddItem(content, height, 1, false).
				AddItem(mouseBlocker(onBackdrop), 0, 1, false),
			width, 1, false).
		AddItem(mouseBlocker(onBackdrop), 0, 1, false)
}

// submitPrimaryFormButton programmatically activates the first button in a form.
func submitPrimaryFormButton(form *tview.Form, setFocus func(p tview.Primitive)) {
	if form.GetButtonCount() == 0 {
		return
	}
	handler := form.GetButton(0).InputHandler()
	if handler == nil {
		return
	}
	handler(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone), setFocus)
}

// wireDialogFormKeys sets up standard keyboard handling for a dialog form.
// Escape is not handled here; dialogs register it with the KeyHub.
func (a *App) wireDialogFormKeys(form *tview.Form) {
	form.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		formItemIndex, buttonIndex := form.GetFocusedItemIndex()
		if buttonIndex >= 0 {
			return event
		}
		var focusedFormItem tview.FormItem
		if formItemIndex >= 0 {
			focusedFormItem = form.GetFormItem(formItemIndex)
		}

		switch event.Key() {
		case tcell.KeyCtrlE:
			textArea, ok := focusedFormItem.(*hintedTextArea)
			if !ok {
				return event
			}
			updatedText, err := a.openInExternalEditor(textArea.GetText())
			if err != nil {
				a.setStatus("Failed to open external editor: " + err.Error())
				return nil
			}
			textArea.SetText(updatedText, true)
			return nil
		case tcell.KeyEnter:
			if formItemIndex >= 0 {
				if _, ok := focusedFormItem.(*hintedTextArea); ok {
					return event
				}
			}
			submitPrimaryFormButton(form, func(p tview.Primitive) {
				a.TviewApp.SetFocus(p)
			})
			return nil
		}
		return event
	})
}

// dismissDialog removes a dialog page and returns to main.
func (a *App) dismissDialog(pageName string) {
	a.Pages.RemovePage(pageName)
	a.Pages.SwitchToPage(mainPageName)
	a.TviewApp.SetFocus(a.NavPanel)
}
