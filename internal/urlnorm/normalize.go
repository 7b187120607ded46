// Package urlnorm provides URL canonicalization and the two hash widths
// the fabric uses: a 64-bit fingerprint for the seen-approximator and the
// visited record's key, and a 256-bit hex digest for content-store path naming
// (spec.md §9 fixes this convention to resolve the prototype's ambiguity).
package urlnorm

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// defaultPorts maps schemes to the port number that is implicit for them.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

var (
	// ErrEmpty is returned when Canonicalize is given an empty string.
	ErrEmpty = errors.New("urlnorm: empty input")
	// ErrMissingSchemeOrHost is returned when the URL has no scheme or host.
	ErrMissingSchemeOrHost = errors.New("urlnorm: missing scheme or host")
)

// Canonicalize applies the deterministic transformations spec.md §3
// requires of the normalized URL: lowercase scheme and host, strip the
// default port for the scheme, percent-decode unreserved path octets,
// resolve dot-segments, strip the fragment, and collapse a host-only path
// to a single trailing "/". Canonicalize is idempotent:
// Canonicalize(Canonicalize(u)) == Canonicalize(u).
func Canonicalize(rawURL string) (string, error) {
	if rawURL == "" {
		return "", ErrEmpty
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("urlnorm: parse: %w", err)
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return "", ErrMissingSchemeOrHost
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = normalizeHost(parsed)
	parsed.Fragment = ""
	parsed.RawFragment = ""
	escapedPath := normalizePath(parsed)
	unescapedPath, err := url.PathUnescape(escapedPath)
	if err != nil {
		return "", fmt.Errorf("urlnorm: unescape path: %w", err)
	}
	parsed.Path = unescapedPath
	parsed.RawPath = escapedPath

	return parsed.String(), nil
}

// normalizeHost lowercases the hostname and strips the port when it is
// the scheme's default.
func normalizeHost(u *url.URL) string {
	hostname := strings.ToLower(u.Hostname())
	port := u.Port()

	if port == "" {
		return hostname
	}

	if defaultPort, ok := defaultPorts[u.Scheme]; ok && port == defaultPort {
		return hostname
	}

	return hostname + ":" + port
}

// normalizePath percent-decodes unreserved octets, resolves "." and ".."
// segments, and removes a trailing slash — except for a host-only URL,
// which keeps exactly one "/".
func normalizePath(u *url.URL) string {
	decoded := decodeUnreserved(u.EscapedPath())
	if decoded == "" {
		return "/"
	}

	cleaned := path.Clean(decoded)
	if cleaned == "/" {
		return "/"
	}

	return strings.TrimRight(cleaned, "/")
}

// decodeUnreserved percent-decodes only the RFC 3986 unreserved character
// class (ALPHA / DIGIT / "-" / "." / "_" / "~"), leaving reserved and
// percent-escaped-on-purpose octets untouched.
func decodeUnreserved(escapedPath string) string {
	var b strings.Builder

	for i := 0; i < len(escapedPath); i++ {
		if escapedPath[i] == '%' && i+2 < len(escapedPath) {
			if decoded, ok := decodeHexByte(escapedPath[i+1], escapedPath[i+2]); ok && isUnreserved(decoded) {
				b.WriteByte(decoded)
				i += 2

				continue
			}
		}

		b.WriteByte(escapedPath[i])
	}

	return b.String()
}

func decodeHexByte(hi, lo byte) (byte, bool) {
	hiV, ok := hexVal(hi)
	if !ok {
		return 0, false
	}

	loV, ok := hexVal(lo)
	if !ok {
		return 0, false
	}

	return hiV<<4 | loV, true
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '.' || c == '_' || c == '~':
		return true
	default:
		return false
	}
}

// Fingerprint returns the 64-bit url-fingerprint used by the seen
// approximator and as the visited record's key: xxhash of the
// already-canonicalized URL.
func Fingerprint(canonicalURL string) uint64 {
	return xxhash.Sum64String(canonicalURL)
}

// ContentHash returns the 256-bit hex digest used to name content-store
// files: SHA-256 of the canonicalized URL.
func ContentHash(canonicalURL string) string {
	sum := sha256.Sum256([]byte(canonicalURL))
	return hex.EncodeToString(sum[:])
}

// TextHash returns the 256-bit hex digest of extracted page text, used as
// the visited record's content_hash.
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
