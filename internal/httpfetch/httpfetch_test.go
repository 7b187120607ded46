package httpfetch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northfleet/podcrawl/internal/httpfetch"
)

func TestClientGetReturnsBodyAndStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>hi</html>"))
	}))
	defer srv.Close()

	c := httpfetch.New(httpfetch.Config{UserAgent: "podcrawl-test", ContactEmail: "test@example.com"})
	resp, err := c.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html", resp.ContentType)
	assert.Equal(t, "<html>hi</html>", string(resp.Body))
	assert.False(t, resp.Truncated)
}

func TestClientGetSendsConditionalHeaders(t *testing.T) {
	t.Parallel()

	var gotETag, gotIMS string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotETag = r.Header.Get("If-None-Match")
		gotIMS = r.Header.Get("If-Modified-Since")
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	c := httpfetch.New(httpfetch.Config{UserAgent: "podcrawl-test"})
	resp, err := c.Get(context.Background(), srv.URL, &httpfetch.ConditionalHeaders{
		ETag:         `"abc"`,
		LastModified: "Mon, 01 Jan 2024 00:00:00 GMT",
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotModified, resp.StatusCode)
	assert.Equal(t, `"abc"`, gotETag)
	assert.Equal(t, "Mon, 01 Jan 2024 00:00:00 GMT", gotIMS)
}

func TestClientGetTooManyRedirects(t *testing.T) {
	t.Parallel()

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+"/next", http.StatusFound)
	}))
	defer srv.Close()

	c := httpfetch.New(httpfetch.Config{UserAgent: "podcrawl-test"})
	_, err := c.Get(context.Background(), srv.URL, nil)
	require.ErrorIs(t, err, httpfetch.ErrTooManyRedirects)
}
