// internal/workers/export/handoff-dispatch/uri.go
package handoffdispatch

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var ErrInvalidHandoffURI = errors.New("invalid handoff URI")

// BuildHandoffURI returns <scheme>://upload?file=<percent-encoded path>.
// Spaces are encoded as %20, never '+', so both form and percent decoders
// recover the same path.
func BuildHandoffURI(scheme, path string) string {
	return scheme + "://upload?file=" + escapeComponent(path)
}

func escapeComponent(s string) string {
	// QueryEscape already encodes a literal '+' as %2B.
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// ParseHandoffURI returns the file path carried by a handoff URI.
func ParseHandoffURI(raw string) (scheme, path string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidHandoffURI, err)
	}
	if u.Scheme == "" {
		return "", "", fmt.Errorf("%w: missing scheme", ErrInvalidHandoffURI)
	}
	if u.Host != "upload" {
		return "", "", fmt.Errorf("%w: unexpected action %q", ErrInvalidHandoffURI, u.Host)
	}
	path = u.Query().Get("file")
	if path == "" {
		return "", "", fmt.Errorf("%w: missing file parameter", ErrInvalidHandoffURI)
	}
	return u.Scheme, path, nil
}
