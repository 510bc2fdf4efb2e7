package domain

// Channel represents a video channel (uploader) known to the archive.
// Channels are created implicitly the first time one of their videos is
// ingested and only removed by an explicit channel delete.
type Channel struct {
	UploaderID string `json:"uploader_id"`
	Name       string `json:"channel_name"`
	URL        string `json:"channel_url"`
}

// Video represents a single video whose captions have been ingested.
// Metadata is overwritten on every successful re-ingest, so it always
// reflects the most recent fetch.
type Video struct {
	VideoID    string `json:"video_id"`
	Title      string `json:"video_title"`
	URL        string `json:"video_url"`
	UploaderID string `json:"uploader_id"`
	UploadDate string `json:"upload_date,omitempty"`
}

// Segment is a stored, time-bounded unit of spoken text derived from one
// caption cue. StartSeconds/EndSeconds are the floor/ceil-rounded display
// bounds; StartTime/EndTime keep the cue's original display stamps.
type Segment struct {
	SubtitleID   int64  `json:"subtitle_id,omitempty"`
	VideoID      string `json:"video_id"`
	Lang         string `json:"lang"`
	StartSeconds int    `json:"start_seconds"`
	EndSeconds   int    `json:"end_seconds"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	Text         string `json:"text"`
}

// SearchResult is one row of the denormalized query view: a segment joined
// with its video and channel, plus the padded clip link computed by the view.
type SearchResult struct {
	SubtitleID   int64  `json:"subtitle_id"`
	VideoID      string `json:"video_id"`
	UploaderID   string `json:"uploader_id"`
	VideoTitle   string `json:"video_title"`
	UploadDate   string `json:"upload_date,omitempty"`
	ChannelName  string `json:"channel_name"`
	StartSeconds int    `json:"start_seconds"`
	EndSeconds   int    `json:"end_seconds"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	Lang         string `json:"lang"`
	Text         string `json:"text"`
	Link         string `json:"link"`
}
