package ui

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/plumber-cd/ez-netwatch/internal/form"
)

const (
	labelIPAddress   = "IP Address"
	labelMACAddress  = "MAC Address"
	labelVendor      = "Vendor"
	labelDescription = "Description"

	errorRows = 2
)

// entryModal renders a form.Controller. The controller owns all state; the
// widgets are rebuilt on every open and only push edits back.
type entryModal struct {
	app  *App
	ctrl *form.Controller

	frame      *tview.Flex
	form       *tview.Form
	errorView  *tview.TextView
	vendor     *tview.InputField
	suggestion string
	shown      bool
}

func newEntryModal(a *App, ctrl *form.Controller) *entryModal {
	m := &entryModal{app: a, ctrl: ctrl}
	ctrl.OnChange = m.render
	return m
}

func (m *entryModal) render() {
	if !m.ctrl.IsOpen() {
		return
	}
	if !m.shown {
		m.show()
	}
	m.sync()
}

func (m *entryModal) show() {
	draft := m.ctrl.Draft()
	locked := m.ctrl.IdentityLocked()

	f := tview.NewForm().SetButtonsAlign(tview.AlignCenter)

	ip := tview.NewInputField().SetLabel(labelIPAddress).SetFieldWidth(FormFieldWidth)
	ip.SetText(draft.IPAddress)
	ip.SetDisabled(locked)
	ip.SetChangedFunc(func(text string) {
		m.ctrl.SetField(form.FieldIPAddress, text)
	})

	mac := tview.NewInputField().SetLabel(labelMACAddress).SetFieldWidth(FormFieldWidth)
	mac.SetText(draft.MACAddress)
	mac.SetDisabled(locked)
	mac.SetChangedFunc(func(text string) {
		m.ctrl.SetField(form.FieldMACAddress, text)
		m.updateSuggestion(text)
	})

	vendor := tview.NewInputField().SetLabel(labelVendor).SetFieldWidth(FormFieldWidth)
	vendor.SetText(draft.Vendor)
	vendor.SetChangedFunc(func(text string) {
		m.ctrl.SetField(form.FieldVendor, text)
	})
	m.vendor = vendor

	description := newHintedTextArea(labelDescription, draft.Description, 3, descriptionHint)
	description.SetChangedFunc(func() {
		m.ctrl.SetField(form.FieldDescription, description.GetText())
	})

	f.AddFormItem(ip).
		AddFormItem(mac).
		AddFormItem(vendor).
		AddFormItem(description).
		AddButton(m.ctrl.SubmitLabel(), m.submit).
		AddButton("Cancel", m.ctrl.Close)
	m.app.wireDialogFormKeys(f)
	m.form = f

	m.errorView = tview.NewTextView().
		SetTextColor(tcell.ColorRed).
		SetWrap(true).
		SetWordWrap(true)

	m.frame = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(f, 0, 1, true).
		AddItem(m.errorView, errorRows, 0, false)
	m.frame.SetBorder(true).SetTitle(m.ctrl.Title())
	m.frame.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlL {
			m.acceptSuggestion()
			return nil
		}
		return event
	})

	m.updateSuggestion(draft.MACAddress)

	pages := m.app.Pages
	pages.RemovePage(entryPageName)
	width, height := entryDialogSize(f)
	pages.AddPage(entryPageName, m.app.createDialogPage(m.frame, width, height, m.ctrl.Close), true, false)
	pages.ShowPage(entryPageName)

	focusIndex := 0
	if locked {
		focusIndex = f.GetFormItemIndex(labelVendor)
	}
	f.SetFocus(focusIndex)
	m.app.TviewApp.SetFocus(f)
	m.shown = true
}

// sync copies controller state that the user does not type into the widgets.
func (m *entryModal) sync() {
	m.frame.SetTitle(m.ctrl.Title())
	if submit := m.form.GetButton(0); submit != nil {
		submit.SetLabel(m.ctrl.SubmitLabel())
		submit.SetDisabled(!m.ctrl.CanSubmit())
	}
	m.errorView.SetText(m.ctrl.Error())
}

func (m *entryModal) hide() {
	m.shown = false
	m.app.dismissDialog(entryPageName)
}

func (m *entryModal) submit() {
	m.ctrl.Submit()
}

func (m *entryModal) updateSuggestion(mac string) {
	m.suggestion = m.app.vendorSuggestion(mac)
	placeholder := ""
	if m.suggestion != "" {
		placeholder = m.suggestion + " (Ctrl+L)"
	}
	m.vendor.SetPlaceholder(placeholder)
}

func (m *entryModal) acceptSuggestion() {
	if m.suggestion == "" || strings.TrimSpace(m.vendor.GetText()) != "" {
		return
	}
	m.vendor.SetText(m.suggestion)
}

// entryDialogSize fits the dialog around the form items, the buttons and the
// error rows.
func entryDialogSize(f *tview.Form) (width, height int) {
	labelWidth := 0
	rows := 0
	for i := range f.GetFormItemCount() {
		item := f.GetFormItem(i)
		labelWidth = max(labelWidth, tview.TaggedStringWidth(item.GetLabel()))
		rows += max(item.GetFieldHeight(), tview.DefaultFormFieldHeight) + 1
	}
	// Border and padding on each side, then the button row and its gap.
	width = 4 + labelWidth + 1 + FormFieldWidth
	height = 4 + rows + 1 + errorRows
	return width, min(height, maxDialogViewportHeight+errorRows)
}
