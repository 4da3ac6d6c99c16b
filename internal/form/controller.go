// Package form holds the state of the entry dialog: the draft, the
// submission lifecycle and the Escape key registration. It knows nothing
// about widgets; the ui package renders it.
package form

import (
	"context"
	"encoding/json"
	"io"
	"sync/atomic"

	"github.com/pterm/pterm"

	"github.com/plumber-cd/ez-netwatch/internal/domain"
)

// FallbackError is shown when a submission fails without a message.
const FallbackError = "Could not save changes"

// State is the dialog lifecycle state.
type State uint8

const (
	StateClosed State = iota
	StateIdle
	StateSubmitting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateFailed:
		return "failed"
	default:
		return "closed"
	}
}

// Field names one of the four inputs.
type Field uint8

const (
	FieldIPAddress Field = iota
	FieldMACAddress
	FieldVendor
	FieldDescription
)

// Submitter sends a payload to the backend.
type Submitter interface {
	Submit(ctx context.Context, route domain.Route, payload domain.Payload) (json.RawMessage, error)
}

// KeyHub hands out Escape key registrations. The returned release must be
// safe to call more than once.
type KeyHub interface {
	AcquireEscape(onEscape func()) (release func())
}

// Props is what the host supplies when it opens the dialog.
type Props struct {
	Mode          domain.Mode
	Source        domain.Source
	InitialValues *domain.Entry

	// OnClose is called every time the dialog closes.
	OnClose func()
	// OnCreated runs on the submission goroutine after a successful request
	// and is waited for before the dialog closes. An error keeps the dialog open.
	OnCreated func(ctx context.Context, payload domain.Payload) error
}

// Controller is the entry dialog state machine. All methods except Submit's
// background work must be called from the UI goroutine; completions are
// delivered back through the dispatch function.
type Controller struct {
	submitter Submitter
	keys      KeyHub
	dispatch  func(func())
	logger    *pterm.Logger

	props   Props
	draft   domain.Draft
	state   State
	err     string
	session atomic.Uint64
	release func()

	// OnChange is called after every state or draft change.
	OnChange func()
}

// New creates a closed controller. dispatch must run the function on the UI goroutine.
func New(submitter Submitter, keys KeyHub, dispatch func(func()), logger *pterm.Logger) *Controller {
	if logger == nil {
		logger = pterm.DefaultLogger.WithWriter(io.Discard)
	}
	return &Controller{
		submitter: submitter,
		keys:      keys,
		dispatch:  dispatch,
		logger:    logger,
	}
}

// Open moves the dialog from closed to open. It starts a new session, resets
// busy and error, fills the draft from props.InitialValues and takes the
// Escape registration. It returns false and does nothing if already open.
func (c *Controller) Open(props Props) bool {
	if c.state != StateClosed {
		return false
	}
	if props.Mode == "" {
		props.Mode = domain.ModeCreate
	}
	if props.Source == "" {
		props.Source = domain.SourceApproved
	}

	c.props = props
	c.session.Add(1)
	c.state = StateIdle
	c.err = ""
	c.draft = domain.DraftFrom(props.InitialValues)
	c.release = c.keys.AcquireEscape(c.Close)

	c.logger.Debug("entry dialog opened", c.logger.Args("mode", props.Mode, "source", props.Source, "session", c.session.Load()))
	c.changed()
	return true
}

// Close releases the Escape registration and notifies the host. Any request
// still in flight is left to finish, but its result is ignored.
func (c *Controller) Close() {
	if c.state == StateClosed {
		return
	}
	c.releaseKeys()
	c.state = StateClosed
	c.session.Add(1)

	c.logger.Debug("entry dialog closed", c.logger.Args("session", c.session.Load()))
	if c.props.OnClose != nil {
		c.props.OnClose()
	}
	c.changed()
}

// Teardown drops the Escape registration without notifying the host. Used
// when the whole application goes away.
func (c *Controller) Teardown() {
	c.releaseKeys()
	if c.state != StateClosed {
		c.state = StateClosed
		c.session.Add(1)
	}
}

func (c *Controller) releaseKeys() {
	if c.release != nil {
		c.release()
		c.release = nil
	}
}

// IsOpen reports whether the dialog is showing.
func (c *Controller) IsOpen() bool { return c.state != StateClosed }

// State returns the lifecycle state.
func (c *Controller) State() State { return c.state }

// Busy reports whether a submission is outstanding.
func (c *Controller) Busy() bool { return c.state == StateSubmitting }

// Error returns the last submission failure, or "".
func (c *Controller) Error() string { return c.err }

// Session returns the current session id.
func (c *Controller) Session() uint64 { return c.session.Load() }

// Draft returns the current field values.
func (c *Controller) Draft() domain.Draft { return c.draft }

// Props returns the props of the current session.
func (c *Controller) Props() Props { return c.props }

// Title returns the dialog heading for the current session.
func (c *Controller) Title() string { return domain.Title(c.props.Mode, c.props.Source) }

// SubmitLabel returns the primary button caption.
func (c *Controller) SubmitLabel() string { return domain.SubmitLabel(c.props.Mode, c.Busy()) }

// IdentityLocked reports whether IP and MAC are read-only.
func (c *Controller) IdentityLocked() bool { return c.props.Mode == domain.ModeEdit }

// CanSubmit reports whether the draft may be submitted now.
func (c *Controller) CanSubmit() bool {
	return c.IsOpen() && c.draft.Ready() && !c.Busy()
}

// SetField updates one input. Identity fields are ignored in edit mode.
// The error is not cleared here; it stays until the next submit or open.
func (c *Controller) SetField(field Field, value string) {
	if !c.IsOpen() {
		return
	}
	switch field {
	case FieldIPAddress:
		if c.IdentityLocked() || c.draft.IPAddress == value {
			return
		}
		c.draft.IPAddress = value
	case FieldMACAddress:
		if c.IdentityLocked() || c.draft.MACAddress == value {
			return
		}
		c.draft.MACAddress = value
	case FieldVendor:
		if c.draft.Vendor == value {
			return
		}
		c.draft.Vendor = value
	case FieldDescription:
		if c.draft.Description == value {
			return
		}
		c.draft.Description = value
	default:
		return
	}
	c.changed()
}

// Submit sends the draft if it is eligible. It returns a channel closed once
// the outcome has been applied on the UI goroutine, or nil if nothing was sent.
func (c *Controller) Submit() <-chan struct{} {
	if !c.CanSubmit() {
		return nil
	}

	payload := c.draft.Payload()
	route, err := domain.RouteFor(c.props.Mode, c.props.Source)
	if err != nil {
		c.fail(err)
		return nil
	}

	session := c.session.Load()
	onCreated := c.props.OnCreated
	c.state = StateSubmitting
	c.err = ""
	c.logger.Info("submitting entry", c.logger.Args("route", route.String(), "ip", payload.IPAddress, "mac", payload.MACAddress, "session", session))
	c.changed()

	done := make(chan struct{})
	go func() {
		ctx := context.Background()
		_, err := c.submitter.Submit(ctx, route, payload)
		// Every accepted write reaches OnCreated. Only the dialog state
		// below is tied to the session.
		if err == nil && onCreated != nil {
			err = onCreated(ctx, payload)
		}
		c.dispatch(func() {
			defer close(done)
			c.finish(session, err)
		})
	}()
	return done
}

func (c *Controller) finish(session uint64, err error) {
	if session != c.session.Load() || c.state != StateSubmitting {
		c.logger.Debug("dropping stale submission result", c.logger.Args("session", session, "current", c.session.Load()))
		return
	}
	if err != nil {
		c.fail(err)
		return
	}
	c.state = StateIdle
	c.logger.Info("entry saved", c.logger.Args("session", session))
	c.Close()
}

func (c *Controller) fail(err error) {
	msg := err.Error()
	if msg == "" {
		msg = FallbackError
	}
	c.state = StateFailed
	c.err = msg
	c.logger.Warn("entry submission failed", c.logger.Args("error", msg))
	c.changed()
}

func (c *Controller) changed() {
	if c.OnChange != nil {
		c.OnChange()
	}
}
