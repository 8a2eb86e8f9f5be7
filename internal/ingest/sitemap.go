package ingest

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/bookrag/internal/pkg/errors"
)

// maxSitemapDepth caps sitemap-index recursion; real indexes are shallow
// and anything deeper is treated as a cycle.
const maxSitemapDepth = 8

type sitemapDoc struct {
	XMLName xml.Name     `xml:"urlset"`
	Entries []sitemapLoc `xml:"url"`
}

type sitemapIndexDoc struct {
	XMLName xml.Name     `xml:"sitemapindex"`
	Entries []sitemapLoc `xml:"sitemap"`
}

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// SitemapResolver expands a sitemap URL, possibly a sitemap-of-sitemaps,
// into a flat list of page URLs in document order.
type SitemapResolver struct {
	client    *http.Client
	userAgent string
}

func NewSitemapResolver(client *http.Client, userAgent string) *SitemapResolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &SitemapResolver{client: client, userAgent: userAgent}
}

func (r *SitemapResolver) Resolve(ctx context.Context, sitemapURL string) ([]string, error) {
	visited := make(map[string]struct{})
	return r.resolve(ctx, sitemapURL, visited, 0)
}

func (r *SitemapResolver) resolve(ctx context.Context, sitemapURL string, visited map[string]struct{}, depth int) ([]string, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("sitemap", sitemapURL))
	if depth > maxSitemapDepth {
		return nil, fmt.Errorf("%w: sitemap nesting exceeds depth %d", appErr.ErrParse, maxSitemapDepth)
	}
	if _, seen := visited[sitemapURL]; seen {
		logger.Warn("sitemap cycle detected, skipping")
		return nil, nil
	}
	visited[sitemapURL] = struct{}{}

	body, err := r.fetch(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	// Try the index form first; a urlset will fail to match its root tag.
	var index sitemapIndexDoc
	if err := xml.Unmarshal(body, &index); err == nil {
		var urls []string
		for _, entry := range index.Entries {
			nested := strings.TrimSpace(entry.Loc)
			if nested == "" {
				continue
			}
			nestedURLs, err := r.resolve(ctx, nested, visited, depth+1)
			if err != nil {
				return nil, err
			}
			urls = append(urls, nestedURLs...)
		}
		logger.Info("resolved sitemap index", zap.Int("sitemaps", len(index.Entries)), zap.Int("urls", len(urls)))
		return urls, nil
	}

	var urlset sitemapDoc
	if err := xml.Unmarshal(body, &urlset); err != nil {
		return nil, fmt.Errorf("%w: sitemap xml: %v", appErr.ErrParse, err)
	}
	urls := make([]string, 0, len(urlset.Entries))
	for _, entry := range urlset.Entries {
		// Malformed loc values pass through as-is; the extractor decides
		// whether they are fetchable.
		urls = append(urls, strings.TrimSpace(entry.Loc))
	}
	logger.Info("resolved sitemap", zap.Int("urls", len(urls)))
	return urls, nil
}

func (r *SitemapResolver) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrFetch, err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %s returned status %d", appErr.ErrFetch, url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrFetch, err)
	}
	return body, nil
}
