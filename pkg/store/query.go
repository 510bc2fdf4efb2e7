package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"caption-search/pkg/domain"
)

// GetChannel returns the channel with the given uploader id, or ErrNotFound.
func (s *Store) GetChannel(ctx context.Context, uploaderID string) (*domain.Channel, error) {
	var ch domain.Channel
	err := s.db.QueryRowContext(ctx,
		`SELECT uploader_id, channel_name, channel_url FROM channels WHERE uploader_id = ?`,
		uploaderID,
	).Scan(&ch.UploaderID, &ch.Name, &ch.URL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get channel %s: %w", uploaderID, err)
	}
	return &ch, nil
}

// GetVideo returns the video with the given id, or ErrNotFound.
func (s *Store) GetVideo(ctx context.Context, videoID string) (*domain.Video, error) {
	var v domain.Video
	var uploadDate sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT video_id, video_title, video_url, uploader_id, upload_date FROM videos WHERE video_id = ?`,
		videoID,
	).Scan(&v.VideoID, &v.Title, &v.URL, &v.UploaderID, &uploadDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get video %s: %w", videoID, err)
	}
	v.UploadDate = uploadDate.String
	return &v, nil
}

// ListChannels returns all channels ordered by uploader id.
func (s *Store) ListChannels(ctx context.Context) ([]domain.Channel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT uploader_id, channel_name, channel_url FROM channels ORDER BY uploader_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list channels: %w", err)
	}
	defer rows.Close()

	channels := []domain.Channel{}
	for rows.Next() {
		var ch domain.Channel
		if err := rows.Scan(&ch.UploaderID, &ch.Name, &ch.URL); err != nil {
			return nil, fmt.Errorf("store: scan channel: %w", err)
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list channels: %w", err)
	}
	return channels, nil
}

// ListVideos returns all videos ordered by video id.
func (s *Store) ListVideos(ctx context.Context) ([]domain.Video, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT video_id, video_title, video_url, uploader_id, upload_date FROM videos ORDER BY video_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list videos: %w", err)
	}
	defer rows.Close()

	videos := []domain.Video{}
	for rows.Next() {
		var v domain.Video
		var uploadDate sql.NullString
		if err := rows.Scan(&v.VideoID, &v.Title, &v.URL, &v.UploaderID, &uploadDate); err != nil {
			return nil, fmt.Errorf("store: scan video: %w", err)
		}
		v.UploadDate = uploadDate.String
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list videos: %w", err)
	}
	return videos, nil
}

// attemptedChunkSize bounds the IN-list length of a single membership query.
const attemptedChunkSize = 500

// AttemptedVideoIDs returns, from the candidate set, the ids for which a
// fetch attempt is already on record for lang, plus the ids with an
// unavailable row in any language (see DESIGN.md on that rule). Membership
// is tested in batches, never per id.
func (s *Store) AttemptedVideoIDs(ctx context.Context, ids []string, lang string) (map[string]struct{}, error) {
	attempted := make(map[string]struct{})

	for start := 0; start < len(ids); start += attemptedChunkSize {
		end := start + attemptedChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		placeholders := strings.Repeat("?,", len(chunk))
		placeholders = placeholders[:len(placeholders)-1]

		args := make([]any, 0, len(chunk)+1)
		for _, id := range chunk {
			args = append(args, id)
		}
		args = append(args, lang)

		query := `SELECT DISTINCT video_id FROM video_languages
			WHERE video_id IN (` + placeholders + `) AND (lang = ? OR available = 0)`

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("store: attempted ids: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("store: scan attempted id: %w", err)
			}
			attempted[id] = struct{}{}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("store: attempted ids: %w", err)
		}
		rows.Close()
	}

	return attempted, nil
}

// Stats summarizes the archive for the stats verb.
type Stats struct {
	Channels int `json:"channels"`
	Videos   int `json:"videos"`
}

// GetStats returns channel and video counts.
func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM channels`).Scan(&st.Channels); err != nil {
		return Stats{}, fmt.Errorf("store: count channels: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM videos`).Scan(&st.Videos); err != nil {
		return Stats{}, fmt.Errorf("store: count videos: %w", err)
	}
	return st, nil
}
