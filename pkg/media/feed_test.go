package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestFeedLister_ListVideoIDs(t *testing.T) {
	// Shaped like a YouTube channel feed: Atom entries carrying yt:videoId
	// plus a plain watch link.
	feedXML := `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns="http://www.w3.org/2005/Atom">
	<title>Test Channel</title>
	<entry>
		<title>First video</title>
		<yt:videoId>abc123</yt:videoId>
		<link rel="alternate" href="https://www.youtube.com/watch?v=abc123"/>
	</entry>
	<entry>
		<title>Second video</title>
		<yt:videoId>def456</yt:videoId>
		<link rel="alternate" href="https://www.youtube.com/watch?v=def456"/>
	</entry>
	<entry>
		<title>Duplicate of first</title>
		<yt:videoId>abc123</yt:videoId>
		<link rel="alternate" href="https://www.youtube.com/watch?v=abc123"/>
	</entry>
</feed>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		w.Write([]byte(feedXML))
	}))
	defer server.Close()

	lister := NewFeedLister()
	ids, err := lister.ListVideoIDs(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("ListVideoIDs failed: %v", err)
	}

	want := []string{"abc123", "def456"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("Expected %v, got %v", want, ids)
	}
}

func TestFeedLister_FallsBackToLink(t *testing.T) {
	feedXML := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
	<channel>
		<title>Plain RSS</title>
		<item>
			<title>Only a link</title>
			<link>https://www.youtube.com/watch?v=xyz789</link>
		</item>
	</channel>
</rss>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(feedXML))
	}))
	defer server.Close()

	lister := NewFeedLister()
	ids, err := lister.ListVideoIDs(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("ListVideoIDs failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "xyz789" {
		t.Errorf("Expected [xyz789], got %v", ids)
	}
}

func TestFeedLister_NoIDs(t *testing.T) {
	feedXML := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
	<channel>
		<title>No videos here</title>
		<item>
			<title>Blog post</title>
			<link>https://example.com/post</link>
		</item>
	</channel>
</rss>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(feedXML))
	}))
	defer server.Close()

	lister := NewFeedLister()
	if _, err := lister.ListVideoIDs(context.Background(), server.URL); err == nil {
		t.Fatal("Expected error when feed has no video ids")
	}
}
