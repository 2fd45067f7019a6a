// Package token mints and parses the opaque bearer tokens used in invite links and check-in QR codes.
package token

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
)

const (
	checkInMarker = "/checkin/"
	inviteMarker  = "/invite/"
)

// New returns a fresh random token (UUIDv4, 122 random bits).
func New() string {
	return uuid.NewString()
}

// Extract recovers a bare token from a scanned or pasted value. The value may be a bare token,
// a check-in URL, or a URL with query or fragment noise. It never fails: anything it cannot
// interpret is returned trimmed, and the empty string is returned only for blank input.
func Extract(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if _, after, ok := strings.Cut(s, checkInMarker); ok {
		if i := strings.IndexAny(after, "?#"); i >= 0 {
			after = after[:i]
		}
		return strings.TrimSpace(after)
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return s
	}
	segments := strings.Split(u.Path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if seg := strings.TrimSpace(segments[i]); seg != "" {
			return seg
		}
	}
	return s
}

// CheckInURL returns the URL encoded in an attendee's QR code.
func CheckInURL(baseURL, tok string) string {
	return strings.TrimRight(baseURL, "/") + checkInMarker + tok
}

// InviteURL returns the registration link sent in an invite email.
func InviteURL(baseURL, tok string) string {
	return strings.TrimRight(baseURL, "/") + inviteMarker + tok
}
