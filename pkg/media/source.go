// Package media wraps the external media-source capability: listing the
// video ids of a collection, fetching caption tracks with their metadata,
// and extracting bounded clips. Everything here is slow, can fail, and is
// safe to retry at the caller's discretion.
package media

import (
	"context"
	"errors"

	"caption-search/pkg/captions"
	"caption-search/pkg/domain"
)

// ErrNoCaptions reports that a fetch succeeded but no caption track exists
// in the requested language. It is not a failure: callers record it as a
// negative availability fact.
var ErrNoCaptions = errors.New("media: no caption track")

// FetchResult carries everything one caption fetch produces: the cue list
// plus the video and channel metadata that accompany it.
type FetchResult struct {
	Cues    []captions.Cue
	Video   domain.Video
	Channel domain.Channel
}

// ClipRequest asks for an exact sub-range of a video. OutputTemplate is the
// destination path template handed to the underlying tool (the tool picks
// the container extension).
type ClipRequest struct {
	Link           string
	StartSeconds   int
	EndSeconds     int
	OutputTemplate string
}

// Lister enumerates the video ids of a collection reference (channel URL,
// playlist URL, feed URL, or a single video).
type Lister interface {
	ListVideoIDs(ctx context.Context, collectionRef string) ([]string, error)
}

// CaptionFetcher fetches the caption track and metadata for one video.
// Returns ErrNoCaptions when the track does not exist in lang.
type CaptionFetcher interface {
	FetchCaptions(ctx context.Context, videoID, lang string) (*FetchResult, error)
}

// ClipFetcher downloads exactly the requested sub-range of a video.
type ClipFetcher interface {
	FetchClip(ctx context.Context, req ClipRequest) error
}

// Source is the full external media capability.
type Source interface {
	Lister
	CaptionFetcher
	ClipFetcher
}
