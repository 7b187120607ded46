// Package registrable computes the registrable domain (public-suffix + one
// label) of a host, the unit the shard fabric hashes to assign a pod.
//
// Grounded on the pack's own prior art: dankinder-walker/url.go resolves
// the same value via publicsuffix.EffectiveTLDPlusOne, from the
// now-moved code.google.com/p/go.net/publicsuffix package. We use its
// current home, golang.org/x/net/publicsuffix.
package registrable

import (
	"fmt"
	"net"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Of returns the registrable domain for a host, lowercased. Hosts that are
// themselves not under a known public suffix (e.g. bare IP literals, or a
// single-label host like "localhost") are returned lowercased and
// unchanged — there is no narrower registrable unit to compute.
func Of(host string) (string, error) {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return "", fmt.Errorf("registrable: empty host")
	}
	if net.ParseIP(host) != nil {
		return host, nil
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// No registrable domain above a public suffix (bare suffix or
		// single-label host): the host itself is the
		// finest-grained unit we can shard on.
		return host, nil
	}

	return domain, nil
}
