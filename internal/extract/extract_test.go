package extract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northfleet/podcrawl/internal/extract"
)

func TestExtractPrefersArticleBody(t *testing.T) {
	t.Parallel()

	html := []byte(`<html><head><title>Hello</title></head>
		<body>
			<nav>menu</nav>
			<article>Real content <a href="/a">link a</a> <a href="https://other.com/b">link b</a></article>
			<footer>footer junk</footer>
		</body></html>`)

	r, err := extract.Extract("https://example.com/page", html)
	require.NoError(t, err)

	assert.Equal(t, "Hello", r.Title)
	assert.Contains(t, r.Body, "Real content")
	assert.NotContains(t, r.Body, "footer junk")
	assert.ElementsMatch(t, []string{"https://example.com/a", "https://other.com/b"}, r.Links)
}

func TestExtractFallsBackToBodyWhenNoArticle(t *testing.T) {
	t.Parallel()

	html := []byte(`<html><body><script>ignored</script><p>plain body text</p></body></html>`)

	r, err := extract.Extract("https://example.com/", html)
	require.NoError(t, err)

	assert.Contains(t, r.Body, "plain body text")
	assert.NotContains(t, r.Body, "ignored")
}

func TestExtractDeduplicatesLinks(t *testing.T) {
	t.Parallel()

	html := []byte(`<html><body><a href="/x">1</a><a href="/x">2</a></body></html>`)

	r, err := extract.Extract("https://example.com/", html)
	require.NoError(t, err)

	assert.Len(t, r.Links, 1)
}
