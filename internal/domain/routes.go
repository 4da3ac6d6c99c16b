package domain

import (
	"fmt"
	"net/http"
)

// Backend paths, relative to the API base URL.
const (
	PathAddApproved      = "/addApproved"
	PathUpdateUnapproved = "/updateUnApproved"
	PathGetApproved      = "/getApproved"
	PathGetUnapproved    = "/getUnapproved"
	PathRemoveApproved   = "/removeApproved"
	PathRemoveUnapproved = "/removeUnapproved"
	PathStartScan        = "/StartScan"
)

// Route is the endpoint a submission is sent to.
type Route struct {
	Method string
	Path   string
}

func (r Route) String() string {
	return r.Method + " " + r.Path
}

type routeKey struct {
	mode   Mode
	source Source
}

// routes is the complete submission table. Editing an approved entry goes
// through the add endpoint, which upserts; there is no update-approved route.
var routes = map[routeKey]Route{
	{ModeCreate, SourceApproved}:   {Method: http.MethodPost, Path: PathAddApproved},
	{ModeCreate, SourceUnapproved}: {Method: http.MethodPost, Path: PathAddApproved},
	{ModeEdit, SourceUnapproved}:   {Method: http.MethodPut, Path: PathUpdateUnapproved},
	{ModeEdit, SourceApproved}:     {Method: http.MethodPost, Path: PathAddApproved},
}

// RouteFor returns the submission route for a mode and source.
// Empty values take their defaults (create, approved).
func RouteFor(mode Mode, source Source) (Route, error) {
	if mode == "" {
		mode = ModeCreate
	}
	if source == "" {
		source = SourceApproved
	}
	route, ok := routes[routeKey{mode, source}]
	if !ok {
		return Route{}, fmt.Errorf("no route for mode %q and source %q", mode, source)
	}
	return route, nil
}

// RemovePath returns the delete endpoint for a collection.
func RemovePath(source Source) string {
	if source == SourceUnapproved {
		return PathRemoveUnapproved
	}
	return PathRemoveApproved
}

// ListPath returns the read endpoint for a collection.
func ListPath(source Source) string {
	if source == SourceUnapproved {
		return PathGetUnapproved
	}
	return PathGetApproved
}

// Title is the dialog heading for a mode and source.
func Title(mode Mode, source Source) string {
	if mode != ModeEdit {
		return "Add new IP"
	}
	if source == SourceUnapproved {
		return "Edit unknown IP"
	}
	return "Edit allowed IP"
}

// SubmitLabel is the caption of the dialog's primary button.
func SubmitLabel(mode Mode, busy bool) string {
	switch {
	case busy:
		return "Saving…"
	case mode == ModeEdit:
		return "Save"
	default:
		return "Add"
	}
}
