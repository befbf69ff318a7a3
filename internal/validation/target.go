package validation

import (
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// MaxTargetLength bounds raw target input before any normalization.
const MaxTargetLength = 255

// Error is a target validation failure with a caller-facing reason.
type Error struct {
	Reason string
}

func (e *Error) Error() string { return "invalid target: " + e.Reason }

var domainRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)+$`)

// NormalizeTarget canonicalizes a raw target: trims whitespace, lower-cases,
// strips the scheme and a leading "www.", and drops any path including the
// trailing slash. "https://www.Example.com/" becomes "example.com".
func NormalizeTarget(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.Index(t, "://"); i >= 0 {
		t = t[i+3:]
	}
	t = strings.TrimPrefix(t, "www.")
	if i := strings.IndexAny(t, "/?#"); i >= 0 {
		t = t[:i]
	}
	return t
}

// ValidateTarget rejects empty, over-length, or non-domain-shaped targets.
// It returns nil for acceptable input and *Error with a descriptive reason
// otherwise. Shared by the job service pre-flight and the tests; the
// pipeline re-normalizes but never re-validates.
func ValidateTarget(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return &Error{Reason: "target is empty"}
	}
	if len(raw) > MaxTargetLength {
		return &Error{Reason: "target exceeds 255 characters"}
	}
	t := NormalizeTarget(raw)
	if t == "" {
		return &Error{Reason: "target has no host"}
	}
	if !domainRe.MatchString(t) {
		return &Error{Reason: "target is not a domain name"}
	}
	if _, err := publicsuffix.EffectiveTLDPlusOne(t); err != nil {
		return &Error{Reason: "target has no registrable domain"}
	}
	return nil
}
