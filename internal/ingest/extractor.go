package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/xxxsen/common/logutil"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"go.uber.org/zap"

	"github.com/xxxsen/bookrag/internal/model"
	appErr "github.com/xxxsen/bookrag/internal/pkg/errors"
	"github.com/xxxsen/bookrag/internal/snapshot"
)

const DefaultUserAgent = "bookrag/1.0 (+https://github.com/xxxsen/bookrag)"

// mainContentSelectors are tried in order; the first match wins. The last
// resort is the document body.
var mainContentSelectors = []string{
	"main",
	"article",
	"[role=main]",
	".content",
	".main-content",
	".post-content",
	".entry-content",
	"body",
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Extractor fetches a page and reduces it to a plain-text document with
// module/chapter/anchor metadata derived from the URL path.
type Extractor struct {
	client    *http.Client
	userAgent string
	snapshots snapshot.Store // optional raw-body archive
}

func NewExtractor(client *http.Client, userAgent string, snapshots snapshot.Store) *Extractor {
	if client == nil {
		client = http.DefaultClient
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Extractor{client: client, userAgent: userAgent, snapshots: snapshots}
}

func (e *Extractor) Extract(ctx context.Context, pageURL string) (*model.ContentDocument, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("url", pageURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrFetch, err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %s returned status %d", appErr.ErrFetch, pageURL, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrFetch, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%w: %s returned empty body", appErr.ErrFetch, pageURL)
	}

	if e.snapshots != nil {
		if err := e.snapshots.Save(ctx, snapshot.Key(pageURL), body); err != nil {
			logger.Warn("snapshot archive failed", zap.Error(err))
		}
	}

	var title, textContent string
	if isMarkdown(pageURL, resp.Header.Get("Content-Type")) {
		title, textContent = extractMarkdown(body)
	} else {
		title, textContent, err = extractHTML(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", appErr.ErrParse, err)
		}
	}
	textContent = whitespaceRe.ReplaceAllString(strings.TrimSpace(textContent), " ")

	doc := &model.ContentDocument{
		URL:     pageURL,
		Title:   title,
		Content: textContent,
	}
	doc.Module, doc.Chapter, doc.Anchor = deriveMetadata(pageURL, title)

	logger.Info("content extracted", zap.Int("chars", len(textContent)), zap.String("module", doc.Module))
	return doc, nil
}

func extractHTML(body []byte) (title, content string, err error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	doc.Find("script, style").Remove()
	title = strings.TrimSpace(doc.Find("title").First().Text())

	for _, selector := range mainContentSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() > 0 {
			return title, sel.Text(), nil
		}
	}
	// No body at all: fall back to whatever text the document has.
	return title, doc.Text(), nil
}

// extractMarkdown walks the goldmark AST collecting text nodes. The first
// level-1 heading doubles as the title.
func extractMarkdown(body []byte) (title, content string) {
	md := goldmark.New()
	reader := text.NewReader(body)
	doc := md.Parser().Parse(reader)

	var sb strings.Builder
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := node.(type) {
		case *ast.Heading:
			if n.Level == 1 && title == "" {
				title = string(n.Text(body))
			}
		case *ast.Text:
			sb.Write(n.Segment.Value(body))
			sb.WriteByte(' ')
		}
		return ast.WalkContinue, nil
	})
	return title, sb.String()
}

// deriveMetadata maps URL path segments to module/chapter: first segment
// becomes the module, second the chapter with the page title as fallback,
// and the URL fragment the anchor.
func deriveMetadata(pageURL, title string) (module, chapter, anchor string) {
	module, chapter = "General", "Chapter"
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return module, chapter, ""
	}
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) > 0 && parts[0] != "" {
		module = parts[0]
	}
	switch {
	case len(parts) > 1 && parts[1] != "":
		chapter = parts[1]
	case title != "":
		chapter = title
	}
	return module, chapter, parsed.Fragment
}

func isMarkdown(pageURL, contentType string) bool {
	if strings.Contains(contentType, "text/markdown") {
		return true
	}
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(parsed.Path, ".md")
}
