package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"caption-search/pkg/domain"
)

// ErrNotFound is returned by point lookups when no row exists.
var ErrNotFound = errors.New("store: not found")

// Store owns all persisted state: channels, videos, caption segments,
// per-video language availability, the full-text index over segment text,
// and the denormalized query view. All other components read and write
// through it; none keeps its own copy of persisted state.
//
// SQLite is not safe for unsynchronized concurrent writers, so every
// mutating operation takes the store-level write mutex and runs as a single
// transaction. Readers share the one connection and never observe a
// half-applied write.
type Store struct {
	db *sql.DB
	mu sync.Mutex // serializes write transactions
}

// Open opens (or creates) the archive database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// schemaStatements mirrors the four-table layout plus the external-content
// FTS5 index (kept in sync by triggers) and the query view that computes the
// padded clip link.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS channels (
		uploader_id  TEXT PRIMARY KEY,
		channel_name TEXT NOT NULL,
		channel_url  TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS videos (
		video_id    TEXT PRIMARY KEY,
		video_title TEXT NOT NULL,
		video_url   TEXT NOT NULL,
		uploader_id TEXT NOT NULL REFERENCES channels(uploader_id),
		upload_date TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_videos_uploader ON videos(uploader_id)`,
	`CREATE TABLE IF NOT EXISTS subtitles (
		subtitle_id   INTEGER PRIMARY KEY AUTOINCREMENT,
		video_id      TEXT NOT NULL REFERENCES videos(video_id),
		lang          TEXT NOT NULL,
		start_time    TEXT NOT NULL,
		end_time      TEXT NOT NULL,
		start_seconds INTEGER NOT NULL,
		end_seconds   INTEGER NOT NULL,
		text          TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_subtitles_video_lang ON subtitles(video_id, lang)`,
	`CREATE VIRTUAL TABLE IF NOT EXISTS subtitles_fts USING fts5(
		text,
		content='subtitles',
		content_rowid='subtitle_id'
	)`,
	`CREATE TRIGGER IF NOT EXISTS subtitles_ai AFTER INSERT ON subtitles BEGIN
		INSERT INTO subtitles_fts(rowid, text) VALUES (new.subtitle_id, new.text);
	END`,
	`CREATE TRIGGER IF NOT EXISTS subtitles_ad AFTER DELETE ON subtitles BEGIN
		INSERT INTO subtitles_fts(subtitles_fts, rowid, text) VALUES ('delete', old.subtitle_id, old.text);
	END`,
	`CREATE TRIGGER IF NOT EXISTS subtitles_au AFTER UPDATE ON subtitles BEGIN
		INSERT INTO subtitles_fts(subtitles_fts, rowid, text) VALUES ('delete', old.subtitle_id, old.text);
		INSERT INTO subtitles_fts(rowid, text) VALUES (new.subtitle_id, new.text);
	END`,
	`CREATE TABLE IF NOT EXISTS video_languages (
		video_id  TEXT NOT NULL REFERENCES videos(video_id),
		lang      TEXT NOT NULL,
		available INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (video_id, lang)
	)`,
	`CREATE VIEW IF NOT EXISTS subtitles_with_videos AS
		SELECT
			s.subtitle_id,
			v.video_id,
			v.uploader_id,
			v.video_title,
			v.upload_date,
			c.channel_name,
			s.start_seconds,
			s.end_seconds,
			s.start_time,
			s.end_time,
			s.lang,
			s.text,
			v.video_url || '&start=' || (s.start_seconds-4) || '&end=' || (s.end_seconds+2) AS link
		FROM subtitles s
		JOIN videos v ON s.video_id = v.video_id
		JOIN channels c ON v.uploader_id = c.uploader_id`,
}

func initSchema(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}
	return nil
}

// withWriteTx runs fn inside the single global write section as one
// transaction. Mutations grouped in one call are all-or-nothing.
func (s *Store) withWriteTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// UpsertChannel inserts or overwrites a channel row.
func (s *Store) UpsertChannel(ctx context.Context, ch domain.Channel) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		return upsertChannelTx(tx, ch)
	})
}

// UpsertVideo inserts or overwrites a video row, so metadata always reflects
// the most recent fetch.
func (s *Store) UpsertVideo(ctx context.Context, v domain.Video) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		return upsertVideoTx(tx, v)
	})
}

// ReplaceSegments atomically deletes all segments for (videoID, lang) and
// inserts the given set, making re-indexing idempotent.
func (s *Store) ReplaceSegments(ctx context.Context, videoID, lang string, segments []domain.Segment) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		return replaceSegmentsTx(tx, videoID, lang, segments)
	})
}

// SetLanguageAvailability records the outcome of a caption-track fetch
// attempt for (videoID, lang). available=false is the negative cache entry
// that prevents repeated re-fetch attempts.
func (s *Store) SetLanguageAvailability(ctx context.Context, videoID, lang string, available bool) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		return setLanguageAvailabilityTx(tx, videoID, lang, available)
	})
}

// SaveIngest applies one video's full ingestion write unit atomically:
// segment replacement, video and channel upserts, and the positive
// availability mark all commit together or not at all.
func (s *Store) SaveIngest(ctx context.Context, video domain.Video, channel domain.Channel, lang string, segments []domain.Segment) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		if err := upsertChannelTx(tx, channel); err != nil {
			return err
		}
		if err := upsertVideoTx(tx, video); err != nil {
			return err
		}
		if err := replaceSegmentsTx(tx, video.VideoID, lang, segments); err != nil {
			return err
		}
		return setLanguageAvailabilityTx(tx, video.VideoID, lang, true)
	})
}

// DeleteVideo removes a video together with its segments and availability
// rows.
func (s *Store) DeleteVideo(ctx context.Context, videoID string) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		return deleteVideoRowsTx(tx, videoID)
	})
}

// DeleteChannel removes a channel and cascades through all its videos,
// their segments, and their availability rows.
func (s *Store) DeleteChannel(ctx context.Context, uploaderID string) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`DELETE FROM subtitles WHERE video_id IN (SELECT video_id FROM videos WHERE uploader_id = ?)`,
			uploaderID,
		); err != nil {
			return fmt.Errorf("store: delete channel subtitles: %w", err)
		}
		if _, err := tx.Exec(
			`DELETE FROM video_languages WHERE video_id IN (SELECT video_id FROM videos WHERE uploader_id = ?)`,
			uploaderID,
		); err != nil {
			return fmt.Errorf("store: delete channel languages: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM videos WHERE uploader_id = ?`, uploaderID); err != nil {
			return fmt.Errorf("store: delete channel videos: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM channels WHERE uploader_id = ?`, uploaderID); err != nil {
			return fmt.Errorf("store: delete channel: %w", err)
		}
		return nil
	})
}

func upsertChannelTx(tx *sql.Tx, ch domain.Channel) error {
	_, err := tx.Exec(
		`INSERT OR REPLACE INTO channels (uploader_id, channel_name, channel_url) VALUES (?, ?, ?)`,
		ch.UploaderID, ch.Name, ch.URL,
	)
	if err != nil {
		return fmt.Errorf("store: upsert channel %s: %w", ch.UploaderID, err)
	}
	return nil
}

func upsertVideoTx(tx *sql.Tx, v domain.Video) error {
	_, err := tx.Exec(
		`INSERT OR REPLACE INTO videos (video_id, video_title, video_url, uploader_id, upload_date)
		 VALUES (?, ?, ?, ?, ?)`,
		v.VideoID, v.Title, v.URL, v.UploaderID, v.UploadDate,
	)
	if err != nil {
		return fmt.Errorf("store: upsert video %s: %w", v.VideoID, err)
	}
	return nil
}

func replaceSegmentsTx(tx *sql.Tx, videoID, lang string, segments []domain.Segment) error {
	if _, err := tx.Exec(
		`DELETE FROM subtitles WHERE video_id = ? AND lang = ?`, videoID, lang,
	); err != nil {
		return fmt.Errorf("store: clear segments %s/%s: %w", videoID, lang, err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO subtitles (video_id, lang, start_time, end_time, start_seconds, end_seconds, text)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("store: prepare segment insert: %w", err)
	}
	defer stmt.Close()

	for _, seg := range segments {
		if _, err := stmt.Exec(
			videoID, lang, seg.StartTime, seg.EndTime, seg.StartSeconds, seg.EndSeconds, seg.Text,
		); err != nil {
			return fmt.Errorf("store: insert segment %s/%s@%d: %w", videoID, lang, seg.StartSeconds, err)
		}
	}
	return nil
}

func setLanguageAvailabilityTx(tx *sql.Tx, videoID, lang string, available bool) error {
	_, err := tx.Exec(
		`INSERT OR REPLACE INTO video_languages (video_id, lang, available) VALUES (?, ?, ?)`,
		videoID, lang, available,
	)
	if err != nil {
		return fmt.Errorf("store: set availability %s/%s: %w", videoID, lang, err)
	}
	return nil
}

func deleteVideoRowsTx(tx *sql.Tx, videoID string) error {
	if _, err := tx.Exec(`DELETE FROM subtitles WHERE video_id = ?`, videoID); err != nil {
		return fmt.Errorf("store: delete video subtitles: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM video_languages WHERE video_id = ?`, videoID); err != nil {
		return fmt.Errorf("store: delete video languages: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM videos WHERE video_id = ?`, videoID); err != nil {
		return fmt.Errorf("store: delete video: %w", err)
	}
	return nil
}
