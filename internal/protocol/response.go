package protocol

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Response is the controller's reply to one command, or a locally
// synthesized outcome such as a timeout.
type Response struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message"`
	Raw       string    `json:"raw,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// OK reports whether the controller accepted the command.
func (r Response) OK() bool { return r.Status == StatusOK }

// Parse turns a received line into a Response. Control bytes from line
// noise are dropped first. A line is OK only when the token before the
// first ':' is exactly "OK"; a line without ':' is a protocol error.
func Parse(line string) Response {
	now := time.Now()
	clean := strings.TrimSpace(stripNonPrintable(line))

	head, msg, found := strings.Cut(clean, ":")
	if !found {
		return Response{
			Status:    StatusError,
			Message:   fmt.Sprintf("Invalid response format: %s", clean),
			Raw:       line,
			Timestamp: now,
		}
	}
	status := StatusError
	if head == string(StatusOK) {
		status = StatusOK
	}
	return Response{Status: status, Message: msg, Raw: line, Timestamp: now}
}

// IsReply reports whether line answers a command: its status token is OK or
// ERROR. Notices such as INFO:... and debug chatter are not replies.
func IsReply(line string) bool {
	head, _, found := strings.Cut(strings.TrimSpace(stripNonPrintable(line)), ":")
	return found && (head == string(StatusOK) || head == string(StatusError))
}

// TimeoutResponse is the reply synthesized when a command gets no answer in time.
func TimeoutResponse(c Command) Response {
	return Response{
		Status:    StatusTimeout,
		Message:   fmt.Sprintf("Timeout waiting for response to %s", c.Name),
		Timestamp: time.Now(),
	}
}

// ErrorResponse synthesizes a local ERROR outcome for c.
func ErrorResponse(c Command, err error) Response {
	return Response{
		Status:    StatusError,
		Message:   fmt.Sprintf("%s: %v", c.Name, err),
		Timestamp: time.Now(),
	}
}

// Fields splits a KEY=VALUE,KEY=VALUE message into a map. Keys are
// upper-cased and trimmed; parts without '=' are skipped.
func (r Response) Fields() map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(r.Message, ",") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		out[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out
}

func stripNonPrintable(s string) string {
	return strings.Map(func(r rune) rune {
		if r == unicode.ReplacementChar || !unicode.IsPrint(r) {
			return -1
		}
		return r
	}, s)
}
