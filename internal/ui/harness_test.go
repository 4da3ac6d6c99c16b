package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/plumber-cd/ez-netwatch/internal/api"
	"github.com/plumber-cd/ez-netwatch/internal/domain"
	"github.com/plumber-cd/ez-netwatch/internal/journal"
	"github.com/plumber-cd/ez-netwatch/internal/vendors"
)

const (
	sentinelSyncKey = tcell.KeyF63
	waitTimeout     = 3 * time.Second
	testOUIDatabase = `{"oui":"00:1A:2B","companyName":"Acme Networks","isPrivate":false}` + "\n"
)

// ---------- Fake backend ----------

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

func (r recordedRequest) decode(t *testing.T) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("decode %s %s body %q: %v", r.Method, r.Path, r.Body, err)
	}
	return body
}

type failure struct {
	code int
	body string
}

// fakeBackend is an in-memory stand-in for the inventory service.
type fakeBackend struct {
	mu         sync.Mutex
	approved   []domain.Entry
	unapproved []domain.Entry
	requests   []recordedRequest
	failures   map[string]failure
	hold       chan struct{}

	server *httptest.Server
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{failures: map[string]failure{}}
	b.server = httptest.NewServer(b)
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) URL() string {
	return b.server.URL
}

func (b *fakeBackend) setApproved(entries ...domain.Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.approved = entries
}

func (b *fakeBackend) setUnapproved(entries ...domain.Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unapproved = entries
}

// failNext makes the next request to path fail with code and body.
func (b *fakeBackend) failNext(path string, code int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[path] = failure{code: code, body: body}
}

// holdWrites blocks every non-GET request until the returned func is called.
func (b *fakeBackend) holdWrites() (resume func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	hold := make(chan struct{})
	b.hold = hold
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			b.hold = nil
			b.mu.Unlock()
			close(hold)
		})
	}
}

func (b *fakeBackend) requestsTo(path string) []recordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []recordedRequest
	for _, req := range b.requests {
		if req.Path == path {
			out = append(out, req)
		}
	}
	return out
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	b.mu.Lock()
	b.requests = append(b.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: string(body)})
	fail, failing := b.failures[r.URL.Path]
	delete(b.failures, r.URL.Path)
	hold := b.hold
	b.mu.Unlock()

	if hold != nil && r.Method != http.MethodGet {
		<-hold
	}
	if failing {
		http.Error(w, fail.body, fail.code)
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == domain.PathGetApproved:
		b.mu.Lock()
		entries := slices.Clone(b.approved)
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, entries)
	case r.Method == http.MethodGet && r.URL.Path == domain.PathGetUnapproved:
		b.mu.Lock()
		entries := slices.Clone(b.unapproved)
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, entries)
	case r.Method == http.MethodPost && r.URL.Path == domain.PathAddApproved:
		var entry domain.Entry
		if err := json.Unmarshal(body, &entry); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		b.approved = upsert(b.approved, entry)
		b.unapproved = without(b.unapproved, entry.MACAddress)
		b.mu.Unlock()
		writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
	case r.Method == http.MethodPut && r.URL.Path == domain.PathUpdateUnapproved:
		var entry domain.Entry
		if err := json.Unmarshal(body, &entry); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		b.unapproved = upsert(b.unapproved, entry)
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case r.Method == http.MethodDelete && (r.URL.Path == domain.PathRemoveApproved || r.URL.Path == domain.PathRemoveUnapproved):
		var id domain.Identity
		if err := json.Unmarshal(body, &id); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		if r.URL.Path == domain.PathRemoveApproved {
			b.approved = without(b.approved, id.MACAddress)
		} else {
			b.unapproved = without(b.unapproved, id.MACAddress)
		}
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case r.Method == http.MethodPost && r.URL.Path == domain.PathStartScan:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "scanning"})
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func upsert(entries []domain.Entry, entry domain.Entry) []domain.Entry {
	for i := range entries {
		if strings.EqualFold(entries[i].MACAddress, entry.MACAddress) {
			entries[i].IPAddress = entry.IPAddress
			entries[i].Vendor = entry.Vendor
			entries[i].Description = entry.Description
			return entries
		}
	}
	return append(entries, entry)
}

func without(entries []domain.Entry, mac string) []domain.Entry {
	return slices.DeleteFunc(entries, func(e domain.Entry) bool {
		return strings.EqualFold(e.MACAddress, mac)
	})
}

// ---------- Terminal harness ----------

type testHarness struct {
	t       *testing.T
	app     *App
	backend *fakeBackend
	screen  tcell.SimulationScreen
	workDir string
	runErr  chan error
	exited  bool
	once    sync.Once
}

// newTestApp builds an App against backend without starting the event loop.
func newTestApp(t *testing.T, backend *fakeBackend, workDir string) *App {
	t.Helper()

	client, err := api.New(backend.URL())
	if err != nil {
		t.Fatalf("api client: %v", err)
	}
	submissions, err := journal.Open(filepath.Join(workDir, "journal.db"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = submissions.Close() })

	ouiPath := filepath.Join(workDir, "oui.jsonl")
	if err := os.WriteFile(ouiPath, []byte(testOUIDatabase), 0o644); err != nil {
		t.Fatalf("write OUI database: %v", err)
	}
	ouiDB, err := vendors.Open(ouiPath, nil)
	if err != nil {
		t.Fatalf("open OUI database: %v", err)
	}

	app, err := New(context.Background(), Deps{
		Client:  client,
		Journal: submissions,
		Vendors: ouiDB,
		WorkDir: workDir,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return app
}

func newTestHarness(t *testing.T, backend *fakeBackend) *testHarness {
	t.Helper()

	workDir := t.TempDir()
	app := newTestApp(t, backend, workDir)

	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("init simulation screen: %v", err)
	}
	screen.SetSize(120, 30)
	app.TviewApp.SetScreen(screen)

	h := &testHarness{
		t:       t,
		app:     app,
		backend: backend,
		screen:  screen,
		workDir: workDir,
		runErr:  make(chan error, 1),
	}
	t.Cleanup(h.Close)

	go func() {
		h.runErr <- app.Run()
	}()

	h.WaitForDraw()
	return h
}

func (h *testHarness) Close() {
	h.once.Do(func() {
		if h.exited {
			return
		}
		go h.app.TviewApp.QueueUpdate(h.app.Stop)
		select {
		case err := <-h.runErr:
			if err != nil {
				h.t.Errorf("app run failed: %v", err)
			}
		case <-time.After(2 * time.Second):
		}
	})
}

func (h *testHarness) WaitForDraw() {
	h.t.Helper()
	h.onUI(func() {})
}

// onUI runs fn on the event loop and waits for it.
func (h *testHarness) onUI(fn func()) {
	h.t.Helper()
	done := make(chan struct{})
	// QueueUpdateDraw never returns once the loop has stopped.
	go h.app.TviewApp.QueueUpdateDraw(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
	case <-time.After(waitTimeout):
		h.t.Fatalf("timed out waiting for UI update")
	}
}

// inject posts events and waits until the event loop has handled them.
func (h *testHarness) inject(post func()) {
	h.t.Helper()
	tviewApp := h.app.TviewApp
	done := make(chan struct{})
	oldCapture := tviewApp.GetInputCapture()
	var once sync.Once
	tviewApp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == sentinelSyncKey {
			once.Do(func() {
				close(done)
			})
			return nil
		}
		if oldCapture != nil {
			return oldCapture(event)
		}
		return event
	})

	post()
	h.screen.InjectKey(sentinelSyncKey, 0, tcell.ModNone)

	select {
	case <-done:
	case <-time.After(waitTimeout):
		tviewApp.SetInputCapture(oldCapture)
		h.t.Fatalf("timed out waiting for event processing")
	}
	tviewApp.SetInputCapture(oldCapture)
	h.WaitForDraw()
}

func (h *testHarness) PressKey(key tcell.Key, r rune, mod tcell.ModMask) {
	h.t.Helper()
	h.inject(func() {
		h.screen.InjectKey(key, r, mod)
	})
}

// PressKeyNoWait posts a key without waiting for the event loop, for keys
// that stop the application.
func (h *testHarness) PressKeyNoWait(key tcell.Key, r rune, mod tcell.ModMask) {
	h.screen.InjectKey(key, r, mod)
}

func (h *testHarness) PressRune(r rune) {
	h.t.Helper()
	h.PressKey(tcell.KeyRune, r, tcell.ModNone)
}

func (h *testHarness) TypeText(s string) {
	h.t.Helper()
	for _, r := range s {
		h.PressRune(r)
	}
}

func (h *testHarness) PressEnter() {
	h.t.Helper()
	h.PressKey(tcell.KeyEnter, 0, tcell.ModNone)
}

func (h *testHarness) PressEscape() {
	h.t.Helper()
	h.PressKey(tcell.KeyEscape, 0, tcell.ModNone)
}

func (h *testHarness) PressBackspace() {
	h.t.Helper()
	h.PressKey(tcell.KeyBackspace2, 0, tcell.ModNone)
}

func (h *testHarness) PressTab() {
	h.t.Helper()
	h.PressKey(tcell.KeyTab, 0, tcell.ModNone)
}

func (h *testHarness) PressCtrl(r rune) {
	h.t.Helper()
	switch r {
	case 'c', 'C':
		h.PressKey(tcell.KeyCtrlC, 0, tcell.ModNone)
	case 'l', 'L':
		h.PressKey(tcell.KeyCtrlL, 0, tcell.ModNone)
	case 'q', 'Q':
		h.PressKey(tcell.KeyCtrlQ, 0, tcell.ModNone)
	case 's', 'S':
		h.PressKey(tcell.KeyCtrlS, 0, tcell.ModNone)
	default:
		h.t.Fatalf("unsupported ctrl key: %q", r)
	}
}

// Click presses and releases the left button at x, y.
func (h *testHarness) Click(x, y int) {
	h.t.Helper()
	h.inject(func() {
		h.screen.InjectMouse(x, y, tcell.Button1, tcell.ModNone)
		h.screen.InjectMouse(x, y, tcell.ButtonNone, tcell.ModNone)
	})
}

func (h *testHarness) ConfirmModal() {
	h.t.Helper()
	h.PressTab()
	h.PressEnter()
}

func (h *testHarness) CancelModal() {
	h.t.Helper()
	h.PressEnter()
}

// OpenFolder enters a collection from the home menu.
func (h *testHarness) OpenFolder(source domain.Source) {
	h.t.Helper()
	if source == domain.SourceUnapproved {
		h.PressRune('j')
	}
	h.PressEnter()
	if got := h.CurrentFolder(); got != source {
		h.t.Fatalf("expected folder %q, got %q", source, got)
	}
}

// FocusEntry moves the cursor to the entry labelled id.
func (h *testHarness) FocusEntry(id string) {
	h.t.Helper()
	for range 20 {
		h.PressRune('k')
	}
	for range 40 {
		if h.CurrentFocusID() == id {
			return
		}
		h.PressRune('j')
	}
	h.t.Fatalf("could not focus item %q; current=%q", id, h.CurrentFocusID())
}

func (h *testHarness) CurrentFolder() domain.Source {
	h.t.Helper()
	var folder domain.Source
	h.onUI(func() { folder = h.app.CurrentFolder })
	return folder
}

func (h *testHarness) CurrentFocusID() string {
	h.t.Helper()
	var id string
	h.onUI(func() { id = h.app.CurrentFocusID })
	return id
}

func (h *testHarness) StatusText() string {
	h.t.Helper()
	var text string
	h.onUI(func() { text = h.app.StatusLine.GetText(true) })
	return text
}

func (h *testHarness) DialogOpen() bool {
	h.t.Helper()
	var open bool
	h.onUI(func() { open = h.app.Entry.IsOpen() })
	return open
}

func (h *testHarness) ActiveEscapeHandlers() int {
	h.t.Helper()
	var n int
	h.onUI(func() { n = h.app.Keys.Active() })
	return n
}

// EntryFieldText reads a field of the open entry dialog.
func (h *testHarness) EntryFieldText(label string) string {
	h.t.Helper()
	var text string
	h.onUI(func() {
		view := h.app.entryView
		if !view.shown {
			return
		}
		switch item := view.form.GetFormItemByLabel(label).(type) {
		case *tview.InputField:
			text = item.GetText()
		case *hintedTextArea:
			text = item.GetText()
		}
	})
	return text
}

// WaitFor polls cond on the event loop until it holds.
func (h *testHarness) WaitFor(what string, cond func() bool) {
	h.t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for {
		var ok bool
		h.onUI(func() { ok = cond() })
		if ok {
			return
		}
		if time.Now().After(deadline) {
			h.DumpScreen()
			h.t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (h *testHarness) WaitForStatusContains(substr string) {
	h.t.Helper()
	h.WaitFor(fmt.Sprintf("status containing %q", substr), func() bool {
		return strings.Contains(h.app.StatusLine.GetText(true), substr)
	})
}

func (h *testHarness) WaitForScreenContains(substr string) {
	h.t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for !strings.Contains(h.GetScreenText(), substr) {
		if time.Now().After(deadline) {
			h.DumpScreen()
			h.t.Fatalf("screen does not contain %q", substr)
		}
		time.Sleep(10 * time.Millisecond)
		h.WaitForDraw()
	}
}

func (h *testHarness) WaitForExit(timeout time.Duration) error {
	select {
	case err := <-h.runErr:
		h.exited = true
		return err
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for app exit")
	}
}

// GetScreenText reads the simulation screen on the event loop so it never
// overlaps a draw.
func (h *testHarness) GetScreenText() string {
	h.t.Helper()
	var sb strings.Builder
	h.onUI(func() {
		cells, width, height := h.screen.GetContents()
		for row := 0; row < height; row++ {
			for col := 0; col < width; col++ {
				cell := cells[row*width+col]
				if len(cell.Runes) > 0 && cell.Runes[0] != 0 {
					sb.WriteRune(cell.Runes[0])
				} else {
					sb.WriteRune(' ')
				}
			}
			sb.WriteRune('\n')
		}
	})
	return sb.String()
}

func (h *testHarness) DumpScreen() {
	h.t.Logf("\n%s", h.GetScreenText())
}

func (h *testHarness) AssertScreenContains(substr string) {
	h.t.Helper()
	if !strings.Contains(h.GetScreenText(), substr) {
		h.DumpScreen()
		h.t.Fatalf("screen does not contain %q", substr)
	}
}

func (h *testHarness) AssertScreenNotContains(substr string) {
	h.t.Helper()
	if strings.Contains(h.GetScreenText(), substr) {
		h.DumpScreen()
		h.t.Fatalf("screen unexpectedly contains %q", substr)
	}
}

func textPtr(s string) *string {
	return &s
}
