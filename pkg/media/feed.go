package media

import (
	"context"
	"fmt"
	"net/url"

	"github.com/mmcdole/gofeed"

	"caption-search/pkg/httpclient"
)

// FeedLister lists video ids from an RSS/Atom feed, such as a YouTube
// channel's feeds/videos.xml. It is a cheap alternative to a full playlist
// extraction when the collection reference is a feed URL.
type FeedLister struct {
	parser *gofeed.Parser
}

// NewFeedLister creates a feed-backed lister.
func NewFeedLister() *FeedLister {
	parser := gofeed.NewParser()
	parser.Client = httpclient.NewPlain()
	return &FeedLister{parser: parser}
}

// ListVideoIDs fetches the feed and extracts one video id per item, first
// from the yt:videoId extension and otherwise from the item link's "v"
// query parameter.
func (l *FeedLister) ListVideoIDs(ctx context.Context, feedURL string) ([]string, error) {
	feed, err := l.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("media: parse feed %s: %w", feedURL, err)
	}
	if feed == nil || len(feed.Items) == 0 {
		return nil, fmt.Errorf("media: feed %s contains no items", feedURL)
	}

	var ids []string
	seen := make(map[string]struct{})
	for _, item := range feed.Items {
		id := videoIDFromItem(item)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		return nil, fmt.Errorf("media: no video ids found in feed %s", feedURL)
	}
	return ids, nil
}

func videoIDFromItem(item *gofeed.Item) string {
	if yt, ok := item.Extensions["yt"]; ok {
		if vals, ok := yt["videoId"]; ok && len(vals) > 0 && vals[0].Value != "" {
			return vals[0].Value
		}
	}
	if item.Link == "" {
		return ""
	}
	u, err := url.Parse(item.Link)
	if err != nil {
		return ""
	}
	return u.Query().Get("v")
}
