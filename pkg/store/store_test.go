package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"caption-search/pkg/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testChannel(uploaderID string) domain.Channel {
	return domain.Channel{
		UploaderID: uploaderID,
		Name:       "Channel " + uploaderID,
		URL:        "https://example.com/" + uploaderID,
	}
}

func testVideo(videoID, uploaderID string) domain.Video {
	return domain.Video{
		VideoID:    videoID,
		Title:      "Video " + videoID,
		URL:        "https://example.com/watch?v=" + videoID,
		UploaderID: uploaderID,
		UploadDate: "2024-01-15",
	}
}

func testSegment(videoID, lang, text string, start, end int) domain.Segment {
	return domain.Segment{
		VideoID:      videoID,
		Lang:         lang,
		StartSeconds: start,
		EndSeconds:   end,
		StartTime:    fmt.Sprintf("00:00:%02d.000", start),
		EndTime:      fmt.Sprintf("00:00:%02d.000", end),
		Text:         text,
	}
}

func ingest(t *testing.T, s *Store, videoID, uploaderID, lang string, segments []domain.Segment) {
	t.Helper()
	err := s.SaveIngest(context.Background(), testVideo(videoID, uploaderID), testChannel(uploaderID), lang, segments)
	if err != nil {
		t.Fatalf("SaveIngest failed for %s: %v", videoID, err)
	}
}

func segmentCount(t *testing.T, s *Store, videoID, lang string) int {
	t.Helper()
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM subtitles WHERE video_id = ? AND lang = ?`, videoID, lang,
	).Scan(&n)
	if err != nil {
		t.Fatalf("count segments: %v", err)
	}
	return n
}

func TestUpsertAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ch := testChannel("@alice")
	if err := s.UpsertChannel(ctx, ch); err != nil {
		t.Fatalf("UpsertChannel failed: %v", err)
	}
	v := testVideo("v1", "@alice")
	if err := s.UpsertVideo(ctx, v); err != nil {
		t.Fatalf("UpsertVideo failed: %v", err)
	}

	got, err := s.GetVideo(ctx, "v1")
	if err != nil {
		t.Fatalf("GetVideo failed: %v", err)
	}
	if got.Title != v.Title || got.UploaderID != "@alice" {
		t.Errorf("GetVideo returned %+v, want %+v", got, v)
	}

	// Upsert overwrites metadata.
	v.Title = "Updated title"
	if err := s.UpsertVideo(ctx, v); err != nil {
		t.Fatalf("second UpsertVideo failed: %v", err)
	}
	got, err = s.GetVideo(ctx, "v1")
	if err != nil {
		t.Fatalf("GetVideo after upsert failed: %v", err)
	}
	if got.Title != "Updated title" {
		t.Errorf("Expected overwritten title, got %q", got.Title)
	}

	if _, err := s.GetChannel(ctx, "@nobody"); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound for unknown channel, got %v", err)
	}
}

func TestReplaceSegmentsIsIdempotent(t *testing.T) {
	s := openTestStore(t)

	segments := []domain.Segment{
		testSegment("v1", "en", "hello world", 10, 12),
		testSegment("v1", "en", "goodbye world", 20, 22),
	}
	ingest(t, s, "v1", "@alice", "en", segments)
	ingest(t, s, "v1", "@alice", "en", segments)

	if n := segmentCount(t, s, "v1", "en"); n != 2 {
		t.Errorf("Expected 2 segments after re-ingest, got %d", n)
	}

	// Re-ingesting must also leave the FTS index consistent: one match per
	// stored segment, not one per ingest run.
	results, err := s.SearchAll(context.Background(), "hello", SearchOptions{})
	if err != nil {
		t.Fatalf("SearchAll failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("Expected 1 FTS match after re-ingest, got %d", len(results))
	}
}

func TestReplaceSegmentsKeepsOtherLanguages(t *testing.T) {
	s := openTestStore(t)

	ingest(t, s, "v1", "@alice", "en", []domain.Segment{testSegment("v1", "en", "english text", 1, 3)})
	ingest(t, s, "v1", "@alice", "es", []domain.Segment{testSegment("v1", "es", "texto espanol", 1, 3)})

	if n := segmentCount(t, s, "v1", "en"); n != 1 {
		t.Errorf("Expected en segments untouched, got %d", n)
	}
	if n := segmentCount(t, s, "v1", "es"); n != 1 {
		t.Errorf("Expected 1 es segment, got %d", n)
	}
}

func TestSearchOrdering(t *testing.T) {
	s := openTestStore(t)

	ingest(t, s, "b", "@alice", "en", []domain.Segment{
		testSegment("b", "en", "needle in b", 50, 52),
	})
	ingest(t, s, "a", "@alice", "en", []domain.Segment{
		testSegment("a", "en", "needle at ten", 10, 12),
		testSegment("a", "en", "needle at five", 5, 7),
	})

	results, err := s.SearchAll(context.Background(), "needle", SearchOptions{})
	if err != nil {
		t.Fatalf("SearchAll failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}

	wantOrder := []struct {
		videoID string
		start   int
	}{
		{"a", 5}, {"a", 10}, {"b", 50},
	}
	for i, want := range wantOrder {
		if results[i].VideoID != want.videoID || results[i].StartSeconds != want.start {
			t.Errorf("result[%d] = %s@%d, want %s@%d",
				i, results[i].VideoID, results[i].StartSeconds, want.videoID, want.start)
		}
	}
}

func TestSearchLinkPadding(t *testing.T) {
	s := openTestStore(t)

	video := domain.Video{
		VideoID:    "v1",
		Title:      "Padded",
		URL:        "https://x/v",
		UploaderID: "@alice",
	}
	seg := testSegment("v1", "en", "padded phrase", 100, 110)
	if err := s.SaveIngest(context.Background(), video, testChannel("@alice"), "en", []domain.Segment{seg}); err != nil {
		t.Fatalf("SaveIngest failed: %v", err)
	}

	results, err := s.SearchAll(context.Background(), "padded", SearchOptions{})
	if err != nil {
		t.Fatalf("SearchAll failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	want := "https://x/v&start=96&end=112"
	if results[0].Link != want {
		t.Errorf("Expected link %q, got %q", want, results[0].Link)
	}
}

func TestSearchFilters(t *testing.T) {
	s := openTestStore(t)

	ingest(t, s, "v1", "@alice", "en", []domain.Segment{testSegment("v1", "en", "shared phrase", 1, 3)})
	ingest(t, s, "v2", "@bob", "en", []domain.Segment{testSegment("v2", "en", "shared phrase", 1, 3)})
	ingest(t, s, "v3", "@alice", "es", []domain.Segment{testSegment("v3", "es", "shared phrase", 1, 3)})

	byUser, err := s.SearchAll(context.Background(), "shared", SearchOptions{UploaderID: "@alice"})
	if err != nil {
		t.Fatalf("SearchAll by uploader failed: %v", err)
	}
	if len(byUser) != 2 {
		t.Errorf("Expected 2 results for @alice, got %d", len(byUser))
	}

	byLang, err := s.SearchAll(context.Background(), "shared", SearchOptions{Lang: "es"})
	if err != nil {
		t.Fatalf("SearchAll by lang failed: %v", err)
	}
	if len(byLang) != 1 || byLang[0].VideoID != "v3" {
		t.Errorf("Expected only v3 for lang=es, got %+v", byLang)
	}

	both, err := s.SearchAll(context.Background(), "shared", SearchOptions{UploaderID: "@alice", Lang: "en"})
	if err != nil {
		t.Fatalf("SearchAll with both filters failed: %v", err)
	}
	if len(both) != 1 || both[0].VideoID != "v1" {
		t.Errorf("Expected only v1 for @alice+en, got %+v", both)
	}
}

func TestSearchNoResults(t *testing.T) {
	s := openTestStore(t)

	ingest(t, s, "v1", "@alice", "en", []domain.Segment{testSegment("v1", "en", "something", 1, 3)})

	results, err := s.SearchAll(context.Background(), "unmatchable", SearchOptions{})
	if err != nil {
		t.Fatalf("Expected empty result, got error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected 0 results, got %d", len(results))
	}
}

func TestSearchCursorIsRestartable(t *testing.T) {
	s := openTestStore(t)

	ingest(t, s, "v1", "@alice", "en", []domain.Segment{testSegment("v1", "en", "repeatable", 1, 3)})

	for run := 0; run < 2; run++ {
		cursor, err := s.Search(context.Background(), "repeatable", SearchOptions{})
		if err != nil {
			t.Fatalf("Search run %d failed: %v", run, err)
		}
		n := 0
		for cursor.Next() {
			n++
		}
		if err := cursor.Err(); err != nil {
			t.Fatalf("cursor run %d: %v", run, err)
		}
		cursor.Close()
		if n != 1 {
			t.Errorf("run %d: expected 1 row, got %d", run, n)
		}
	}
}

func TestDeleteChannelCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ingest(t, s, "v1", "@alice", "en", []domain.Segment{testSegment("v1", "en", "alice one", 1, 3)})
	ingest(t, s, "v2", "@alice", "en", []domain.Segment{testSegment("v2", "en", "alice two", 1, 3)})
	ingest(t, s, "v3", "@bob", "en", []domain.Segment{testSegment("v3", "en", "bob stays", 1, 3)})

	if err := s.DeleteChannel(ctx, "@alice"); err != nil {
		t.Fatalf("DeleteChannel failed: %v", err)
	}

	if _, err := s.GetChannel(ctx, "@alice"); err != ErrNotFound {
		t.Errorf("Expected channel gone, got %v", err)
	}
	if _, err := s.GetVideo(ctx, "v1"); err != ErrNotFound {
		t.Errorf("Expected v1 gone, got %v", err)
	}

	results, err := s.SearchAll(ctx, "alice", SearchOptions{})
	if err != nil {
		t.Fatalf("SearchAll failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected no matches for deleted channel, got %d", len(results))
	}

	attempted, err := s.AttemptedVideoIDs(ctx, []string{"v1", "v2", "v3"}, "en")
	if err != nil {
		t.Fatalf("AttemptedVideoIDs failed: %v", err)
	}
	if _, ok := attempted["v1"]; ok {
		t.Error("Expected v1 availability rows removed by cascade")
	}
	if _, ok := attempted["v3"]; !ok {
		t.Error("Expected v3 availability row to survive")
	}

	remaining, err := s.SearchAll(ctx, "bob", SearchOptions{})
	if err != nil {
		t.Fatalf("SearchAll failed: %v", err)
	}
	if len(remaining) != 1 {
		t.Errorf("Expected bob's segment to survive, got %d matches", len(remaining))
	}
}

func TestDeleteVideoCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ingest(t, s, "v1", "@alice", "en", []domain.Segment{testSegment("v1", "en", "deleted soon", 1, 3)})

	if err := s.DeleteVideo(ctx, "v1"); err != nil {
		t.Fatalf("DeleteVideo failed: %v", err)
	}
	if n := segmentCount(t, s, "v1", "en"); n != 0 {
		t.Errorf("Expected segments gone, got %d", n)
	}
	attempted, err := s.AttemptedVideoIDs(ctx, []string{"v1"}, "en")
	if err != nil {
		t.Fatalf("AttemptedVideoIDs failed: %v", err)
	}
	if len(attempted) != 0 {
		t.Error("Expected availability row removed with video")
	}
}

func TestAttemptedVideoIDs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// v1 attempted for es, v2 unavailable in de, v3 untouched.
	if err := s.SetLanguageAvailability(ctx, "v1", "es", true); err != nil {
		t.Fatalf("SetLanguageAvailability failed: %v", err)
	}
	if err := s.SetLanguageAvailability(ctx, "v2", "de", false); err != nil {
		t.Fatalf("SetLanguageAvailability failed: %v", err)
	}

	attempted, err := s.AttemptedVideoIDs(ctx, []string{"v1", "v2", "v3"}, "es")
	if err != nil {
		t.Fatalf("AttemptedVideoIDs failed: %v", err)
	}

	if _, ok := attempted["v1"]; !ok {
		t.Error("Expected v1 attempted (es row exists)")
	}
	// Any unavailable row suppresses the video for every language.
	if _, ok := attempted["v2"]; !ok {
		t.Error("Expected v2 attempted (unavailable row in another language)")
	}
	if _, ok := attempted["v3"]; ok {
		t.Error("Expected v3 not attempted")
	}
}

func TestAttemptedVideoIDs_LargeCandidateSet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ids := make([]string, 0, 1200)
	for i := 0; i < 1200; i++ {
		ids = append(ids, fmt.Sprintf("vid%04d", i))
	}
	if err := s.SetLanguageAvailability(ctx, "vid0001", "en", true); err != nil {
		t.Fatalf("SetLanguageAvailability failed: %v", err)
	}
	if err := s.SetLanguageAvailability(ctx, "vid1100", "en", true); err != nil {
		t.Fatalf("SetLanguageAvailability failed: %v", err)
	}

	attempted, err := s.AttemptedVideoIDs(ctx, ids, "en")
	if err != nil {
		t.Fatalf("AttemptedVideoIDs failed: %v", err)
	}
	if len(attempted) != 2 {
		t.Errorf("Expected 2 attempted ids across chunks, got %d", len(attempted))
	}
}

func TestGetStats(t *testing.T) {
	s := openTestStore(t)

	ingest(t, s, "v1", "@alice", "en", []domain.Segment{testSegment("v1", "en", "one", 1, 3)})
	ingest(t, s, "v2", "@alice", "en", []domain.Segment{testSegment("v2", "en", "two", 1, 3)})
	ingest(t, s, "v3", "@bob", "en", []domain.Segment{testSegment("v3", "en", "three", 1, 3)})

	stats, err := s.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.Channels != 2 || stats.Videos != 3 {
		t.Errorf("Expected 2 channels / 3 videos, got %d / %d", stats.Channels, stats.Videos)
	}
}

func TestConcurrentIngestIsSafe(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	const videos = 16
	const segmentsPerVideo = 25

	var wg sync.WaitGroup
	errs := make(chan error, videos)
	for i := 0; i < videos; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			videoID := fmt.Sprintf("v%02d", i)
			segments := make([]domain.Segment, 0, segmentsPerVideo)
			for j := 0; j < segmentsPerVideo; j++ {
				segments = append(segments,
					testSegment(videoID, "en", fmt.Sprintf("segment %d of %s", j, videoID), j*2, j*2+1))
			}
			errs <- s.SaveIngest(ctx, testVideo(videoID, "@alice"), testChannel("@alice"), "en", segments)
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent SaveIngest failed: %v", err)
		}
	}

	// Every video must come out with its complete, uncorrupted segment set.
	for i := 0; i < videos; i++ {
		videoID := fmt.Sprintf("v%02d", i)
		if n := segmentCount(t, s, videoID, "en"); n != segmentsPerVideo {
			t.Errorf("%s: expected %d segments, got %d", videoID, segmentsPerVideo, n)
		}
	}
}
