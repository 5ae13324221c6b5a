package protocol

import (
	"regexp"
	"strings"
)

var checksumSuffix = regexp.MustCompile(`;([0-9A-Fa-f]+)$`)

// Request is a command line as seen by the receiving side.
type Request struct {
	Name     Name
	Params   []string
	Checksum string // hex digits after ';', empty when absent
	Text     string // command text with the checksum fragment removed
}

// ParseRequest splits a received command line into name and parameters.
// A trailing ";<hex>" fragment is removed and returned in Checksum without
// being verified. The name is upper-cased.
func ParseRequest(line string) Request {
	line = strings.TrimSpace(line)

	var req Request
	if m := checksumSuffix.FindStringSubmatchIndex(line); m != nil {
		req.Checksum = line[m[2]:m[3]]
		line = line[:m[0]]
	}
	req.Text = line

	name, params, hasParams := strings.Cut(line, ":")
	req.Name = Name(strings.ToUpper(name))
	if hasParams {
		req.Params = strings.Split(params, ",")
	}
	return req
}

// ChecksumValid reports whether the request's checksum matches its text.
// Requests without a checksum are reported valid.
func (r Request) ChecksumValid() bool {
	if r.Checksum == "" {
		return true
	}
	return strings.EqualFold(strings.TrimLeft(r.Checksum, "0"), strings.TrimLeft(Checksum(r.Text), "0"))
}
