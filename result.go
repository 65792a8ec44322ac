package splitter

import (
	"fmt"
	"net/http"
)

// Canonical result messages.
const (
	MessageInvalidEvent = "invalid event argument"
	MessageIgnored      = "event was ignored, not a type of interest"
)

// Result is the outcome of one dispatch.
type Result struct {
	// StatusCode is 200 when the single item was handled, 202 when the event
	// was split or ignored and 400 when it was malformed. A failed split
	// reports 500 alongside the returned error.
	StatusCode int `json:"statusCode"`

	// Count is the number of items handled or queued.
	Count int `json:"count"`

	// Body is a short human-readable description.
	Body string `json:"body"`
}

func invalidResult() Result {
	return Result{StatusCode: http.StatusBadRequest, Body: MessageInvalidEvent}
}

func ignoredResult() Result {
	return Result{StatusCode: http.StatusAccepted, Body: MessageIgnored}
}

func handledResult(noun string) Result {
	return Result{StatusCode: http.StatusOK, Count: 1, Body: fmt.Sprintf("handled 1 %s", noun)}
}

func splitResult(noun string, n int) Result {
	return Result{
		StatusCode: http.StatusAccepted,
		Count:      n,
		Body:       fmt.Sprintf("split '%d' %ss into '%d' queued messages", n, noun, n),
	}
}

func partialResult(noun string, sent, n int) Result {
	return Result{
		StatusCode: http.StatusInternalServerError,
		Count:      sent,
		Body:       fmt.Sprintf("queued '%d' of '%d' %ss before failure", sent, n, noun),
	}
}
