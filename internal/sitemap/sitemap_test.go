package sitemap

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDiscoverSeedURLs(t *testing.T) {
	t.Parallel()

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml":
			fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>%s/about</loc></url>
  <url><loc>%s/contact</loc></url>
  <url><loc>https://other.example/away</loc></url>
</urlset>`, srv.URL, srv.URL)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := New(2*time.Second, "wormy-test", nil)
	urls := f.DiscoverSeedURLs(context.Background(), srv.URL)

	require.Equal(t, []string{srv.URL + "/about", srv.URL + "/contact"}, urls)
}

func TestDiscoverFollowsSitemapIndex(t *testing.T) {
	t.Parallel()

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml":
			fmt.Fprintf(w, `<?xml version="1.0"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>%s/sitemap-pages.xml</loc></sitemap>
</sitemapindex>`, srv.URL)
		case "/sitemap-pages.xml":
			fmt.Fprintf(w, `<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>%s/deep</loc></url>
</urlset>`, srv.URL)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := New(2*time.Second, "wormy-test", nil)
	urls := f.DiscoverSeedURLs(context.Background(), srv.URL)
	require.Equal(t, []string{srv.URL + "/deep"}, urls)
}

func TestDiscoverSurvivesMissingSitemap(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f := New(2*time.Second, "wormy-test", nil)
	require.Empty(t, f.DiscoverSeedURLs(context.Background(), srv.URL))
}

func TestDiscoverSurvivesMalformedXML(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<urlset><url><loc>unclosed")
	}))
	defer srv.Close()

	f := New(2*time.Second, "wormy-test", nil)
	// Best effort: whatever parses before the error is fine, no panic.
	require.NotPanics(t, func() {
		f.DiscoverSeedURLs(context.Background(), srv.URL)
	})
}
