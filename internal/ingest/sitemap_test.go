package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/bookrag/internal/pkg/errors"
)

func TestSitemapResolveURLSet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/docs/intro</loc></url>
  <url><loc> https://example.com/docs/setup </loc></url>
</urlset>`)
	}))
	defer srv.Close()

	resolver := NewSitemapResolver(srv.Client(), "test-agent")
	urls, err := resolver.Resolve(context.Background(), srv.URL+"/sitemap.xml")
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://example.com/docs/intro",
		"https://example.com/docs/setup",
	}, urls)
}

func TestSitemapResolveIndexRecursion(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml":
			fmt.Fprintf(w, `<sitemapindex>
  <sitemap><loc>%s/part1.xml</loc></sitemap>
  <sitemap><loc>%s/part2.xml</loc></sitemap>
</sitemapindex>`, srv.URL, srv.URL)
		case "/part1.xml":
			fmt.Fprint(w, `<urlset><url><loc>https://example.com/a</loc></url></urlset>`)
		case "/part2.xml":
			fmt.Fprint(w, `<urlset><url><loc>https://example.com/b</loc></url></urlset>`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	resolver := NewSitemapResolver(srv.Client(), "test-agent")
	urls, err := resolver.Resolve(context.Background(), srv.URL+"/sitemap.xml")
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, urls)
}

func TestSitemapResolveCycleGuard(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml":
			fmt.Fprintf(w, `<sitemapindex>
  <sitemap><loc>%s/sitemap.xml</loc></sitemap>
  <sitemap><loc>%s/leaf.xml</loc></sitemap>
</sitemapindex>`, srv.URL, srv.URL)
		case "/leaf.xml":
			fmt.Fprint(w, `<urlset><url><loc>https://example.com/page</loc></url></urlset>`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	resolver := NewSitemapResolver(srv.Client(), "test-agent")
	urls, err := resolver.Resolve(context.Background(), srv.URL+"/sitemap.xml")
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.com/page"}, urls)
}

func TestSitemapResolveFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	resolver := NewSitemapResolver(srv.Client(), "test-agent")
	_, err := resolver.Resolve(context.Background(), srv.URL+"/sitemap.xml")
	require.True(t, appErr.IsFetch(err))
}

func TestSitemapResolveBadXML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `this is not xml`)
	}))
	defer srv.Close()

	resolver := NewSitemapResolver(srv.Client(), "test-agent")
	_, err := resolver.Resolve(context.Background(), srv.URL+"/sitemap.xml")
	require.Error(t, err)
}
