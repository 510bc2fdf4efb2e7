package clip

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"caption-search/pkg/domain"
	"caption-search/pkg/media"
)

// Extractor downloads the padded sub-range around each search result into
// one output folder, skipping ranges the folder's archive already has.
type Extractor struct {
	source  media.ClipFetcher
	archive *Archive
	folder  string
	spacing int
}

// Summary tallies one extraction batch.
type Summary struct {
	Extracted int
	Skipped   int
	Failed    int
}

// NewExtractor opens (or creates) folder and its archive. spacing is the
// number of seconds of context added on each side of a result's bounds.
func NewExtractor(source media.ClipFetcher, folder string, spacing int) (*Extractor, error) {
	archive, err := OpenArchive(folder)
	if err != nil {
		return nil, err
	}
	return &Extractor{
		source:  source,
		archive: archive,
		folder:  folder,
		spacing: spacing,
	}, nil
}

// Extract downloads the clip for one search result. Returns (false, nil)
// when the archive shows the range was already downloaded.
func (e *Extractor) Extract(ctx context.Context, row domain.SearchResult) (bool, error) {
	start := row.StartSeconds - e.spacing
	if start < 0 {
		start = 0
	}
	end := row.EndSeconds + e.spacing

	key := fmt.Sprintf("%s %d-%d", row.VideoID, start, end)
	if e.archive.Contains(key) {
		logrus.WithField("key", key).Debug("clip already downloaded")
		return false, nil
	}

	req := media.ClipRequest{
		Link:           row.Link,
		StartSeconds:   start,
		EndSeconds:     end,
		OutputTemplate: filepath.Join(e.folder, outputName(row)),
	}
	if err := e.source.FetchClip(ctx, req); err != nil {
		return false, fmt.Errorf("clip: fetch %s: %w", key, err)
	}

	if err := e.archive.Add(key); err != nil {
		return true, err
	}
	return true, nil
}

// ExtractAll processes a batch of results. Per-row failures are logged and
// counted; they never abort the rest of the batch.
func (e *Extractor) ExtractAll(ctx context.Context, rows []domain.SearchResult) (Summary, error) {
	var summary Summary
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		extracted, err := e.Extract(ctx, row)
		switch {
		case err != nil:
			logrus.WithFields(logrus.Fields{
				"video": row.VideoID,
				"start": row.StartSeconds,
			}).WithError(err).Warn("clip extraction failed")
			summary.Failed++
		case extracted:
			summary.Extracted++
		default:
			summary.Skipped++
		}
	}
	return summary, nil
}

// outputName builds a per-clip file name template. Title, video id, and the
// display timestamps together disambiguate multiple clips from one video.
func outputName(row domain.SearchResult) string {
	return fmt.Sprintf("%s [%s] %s-%s.%%(ext)s",
		sanitize(row.VideoTitle),
		row.VideoID,
		sanitize(row.StartTime),
		sanitize(row.EndTime),
	)
}

// maxTitleRunes keeps file names inside common filesystem limits.
const maxTitleRunes = 80

func sanitize(s string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", ".", "*", "_",
		"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_",
	)
	s = strings.TrimSpace(replacer.Replace(s))
	runes := []rune(s)
	if len(runes) > maxTitleRunes {
		s = string(runes[:maxTitleRunes])
	}
	return s
}
