package urlnorm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northfleet/podcrawl/internal/urlnorm"
)

func TestCanonicalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases host", "HTTP://Example.COM/foo", "http://example.com/foo"},
		{"strips default http port", "http://example.com:80/foo", "http://example.com/foo"},
		{"strips default https port", "https://example.com:443/foo", "https://example.com/foo"},
		{"keeps non-default port", "http://example.com:8080/foo", "http://example.com:8080/foo"},
		{"strips fragment", "https://example.com/p?x=1#frag", "https://example.com/p?x=1"},
		{"host-only keeps single slash", "http://a.com", "http://a.com/"},
		{"host-only with slash unchanged", "http://a.com/", "http://a.com/"},
		{"trailing slash stripped on paths", "http://a.com/x/", "http://a.com/x"},
		{"dot segments resolved", "http://a.com/x/../y", "http://a.com/y"},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := urlnorm.Canonicalize(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"HTTP://Example.COM:80/a/b/../c/?z=1&a=2#frag",
		"https://B.com/p?x=1#frag",
	}

	for _, in := range inputs {
		first, err := urlnorm.Canonicalize(in)
		require.NoError(t, err)

		second, err := urlnorm.Canonicalize(first)
		require.NoError(t, err)

		assert.Equal(t, first, second)
	}
}

func TestCanonicalizeErrors(t *testing.T) {
	t.Parallel()

	_, err := urlnorm.Canonicalize("")
	require.ErrorIs(t, err, urlnorm.ErrEmpty)

	_, err = urlnorm.Canonicalize("/just/a/path")
	require.ErrorIs(t, err, urlnorm.ErrMissingSchemeOrHost)
}

func TestFingerprintStable(t *testing.T) {
	t.Parallel()

	u, err := urlnorm.Canonicalize("https://a.com/x")
	require.NoError(t, err)

	fp1 := urlnorm.Fingerprint(u)
	fp2 := urlnorm.Fingerprint(u)
	assert.Equal(t, fp1, fp2)
}

func TestContentHashLength(t *testing.T) {
	t.Parallel()

	u, err := urlnorm.Canonicalize("https://a.com/x")
	require.NoError(t, err)

	hash := urlnorm.ContentHash(u)
	assert.Len(t, hash, 64)
}
