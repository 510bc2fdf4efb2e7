package media

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"caption-search/pkg/httpclient"
)

// PageLister extracts video ids from watch links in an HTML page (a saved
// or served channel/playlist page). Useful when no feed or playlist API is
// reachable for the collection.
type PageLister struct {
	client *http.Client
}

// NewPageLister creates a page-scraping lister. Browser-like headers keep
// origins from rejecting the request outright.
func NewPageLister() *PageLister {
	return &PageLister{client: httpclient.NewBrowser()}
}

// ListVideoIDs fetches the page and collects the "v" parameter of every
// watch link, deduplicated in document order.
func (l *PageLister) ListVideoIDs(ctx context.Context, pageURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("media: build request %s: %w", pageURL, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media: fetch page %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media: fetch page %s: unexpected status code %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("media: parse page %s: %w", pageURL, err)
	}

	var ids []string
	seen := make(map[string]struct{})
	doc.Find(`a[href*="watch?v="]`).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		id := videoIDFromHref(href)
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	})

	if len(ids) == 0 {
		return nil, fmt.Errorf("media: no watch links found in page %s", pageURL)
	}
	return ids, nil
}

func videoIDFromHref(href string) string {
	// Relative watch links ("/watch?v=...") are common in channel pages.
	if strings.HasPrefix(href, "/") {
		href = "https://www.youtube.com" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return u.Query().Get("v")
}
