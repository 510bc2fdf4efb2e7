package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"caption-search/pkg/domain"
)

// SearchOptions narrows a full-text search to a single uploader and/or
// language. Zero values mean no restriction.
type SearchOptions struct {
	UploaderID string
	Lang       string
}

// Rows is a lazy, single-pass cursor over search results. It is read-only
// and restartable by issuing the search again. Callers must Close it.
type Rows struct {
	rows    *sql.Rows
	current domain.SearchResult
	err     error
}

// Next advances the cursor. It returns false at the end of the result set or
// on error; check Err afterwards.
func (r *Rows) Next() bool {
	if r.err != nil || !r.rows.Next() {
		return false
	}
	var res domain.SearchResult
	var uploadDate sql.NullString
	if err := r.rows.Scan(
		&res.SubtitleID, &res.VideoID, &res.UploaderID, &res.VideoTitle, &uploadDate,
		&res.ChannelName, &res.StartSeconds, &res.EndSeconds, &res.StartTime, &res.EndTime,
		&res.Lang, &res.Text, &res.Link,
	); err != nil {
		r.err = fmt.Errorf("store: scan search result: %w", err)
		return false
	}
	res.UploadDate = uploadDate.String
	r.current = res
	return true
}

// Result returns the row the cursor currently points at.
func (r *Rows) Result() domain.SearchResult {
	return r.current
}

// Err returns the first error hit while iterating.
func (r *Rows) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.rows.Err()
}

// Close releases the cursor.
func (r *Rows) Close() error {
	return r.rows.Close()
}

// Search runs a full-text query over segment text and returns matching query
// view rows ordered by video id, then start second. Matching semantics are
// FTS5's tokenized phrase/term matching. Zero matches yield an empty cursor,
// not an error.
func (s *Store) Search(ctx context.Context, text string, opts SearchOptions) (*Rows, error) {
	where := []string{
		`subtitle_id IN (SELECT rowid FROM subtitles_fts WHERE subtitles_fts MATCH ?)`,
	}
	args := []any{text}

	if opts.Lang != "" {
		where = append(where, `lang = ?`)
		args = append(args, opts.Lang)
	}
	if opts.UploaderID != "" {
		where = append(where, `uploader_id = ?`)
		args = append(args, opts.UploaderID)
	}

	query := `SELECT subtitle_id, video_id, uploader_id, video_title, upload_date,
			channel_name, start_seconds, end_seconds, start_time, end_time, lang, text, link
		FROM subtitles_with_videos
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY video_id, start_seconds ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: search %q: %w", text, err)
	}
	return &Rows{rows: rows}, nil
}

// SearchAll materializes a full search result set.
func (s *Store) SearchAll(ctx context.Context, text string, opts SearchOptions) ([]domain.SearchResult, error) {
	cursor, err := s.Search(ctx, text, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	results := []domain.SearchResult{}
	for cursor.Next() {
		results = append(results, cursor.Result())
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
