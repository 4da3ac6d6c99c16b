package api

import (
	"net/http"
	"strconv"
	"strings"
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Code   int
	Status string
	Body   string
}

// Error renders "{code} {status text} – {body}", leaving out the body part
// when the body was empty or could not be read.
func (e *StatusError) Error() string {
	head := strings.TrimSpace(strconv.Itoa(e.Code) + " " + e.Status)
	if e.Body == "" {
		return head
	}
	return head + " – " + e.Body
}

// newStatusError extracts the reason phrase from resp.Status, falling back to
// the standard text for the code.
func newStatusError(resp *http.Response, body string) *StatusError {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return &StatusError{
		Code:   resp.StatusCode,
		Status: text,
		Body:   strings.TrimSpace(body),
	}
}
