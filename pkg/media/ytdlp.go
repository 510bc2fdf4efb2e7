package media

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"caption-search/pkg/captions"
	"caption-search/pkg/domain"
)

// YtDlp drives the yt-dlp binary as the media source. Argument construction
// is separated from execution so it can be tested without the binary.
type YtDlp struct {
	// Bin is the yt-dlp executable. Empty means "yt-dlp" on PATH.
	Bin string
}

// NewYtDlp returns a driver using yt-dlp from PATH.
func NewYtDlp() *YtDlp {
	return &YtDlp{}
}

func (y *YtDlp) bin() string {
	if y.Bin != "" {
		return y.Bin
	}
	return "yt-dlp"
}

// listArgs builds the flat-playlist listing invocation: one video id per
// output line, no media download.
func listArgs(collectionRef string) []string {
	return []string{
		"--flat-playlist",
		"--skip-download",
		"--no-warnings",
		"--print", "%(id)s",
		collectionRef,
	}
}

// ListVideoIDs enumerates the collection without downloading anything.
func (y *YtDlp) ListVideoIDs(ctx context.Context, collectionRef string) ([]string, error) {
	cmd := exec.CommandContext(ctx, y.bin(), listArgs(collectionRef)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("media: list %s: %w\nstderr: %s", collectionRef, err, stderr.String())
	}

	var ids []string
	scanner := bufio.NewScanner(&stdout)
	for scanner.Scan() {
		id := strings.TrimSpace(scanner.Text())
		if id != "" {
			ids = append(ids, id)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("media: read listing: %w", err)
	}

	logrus.WithField("collection", collectionRef).Debugf("listed %d video ids", len(ids))
	return ids, nil
}

// fetchArgs builds the caption download invocation: auto-generated and
// regular subtitles in lang plus the info.json, into dir, no media.
func fetchArgs(videoID, lang, dir string) []string {
	return []string{
		"--skip-download",
		"--no-warnings",
		"--no-progress",
		"--write-subs",
		"--write-auto-subs",
		"--write-info-json",
		"--sub-format", "vtt",
		"--sub-langs", lang + ",-live_chat",
		"-o", filepath.Join(dir, "%(id)s.%(ext)s"),
		watchURL(videoID),
	}
}

func watchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// videoInfo is the slice of yt-dlp's info.json this system needs.
type videoInfo struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	WebpageURL string `json:"webpage_url"`
	Uploader   string `json:"uploader"`
	UploaderID string `json:"uploader_id"`
	ChannelURL string `json:"channel_url"`
	UploadDate string `json:"upload_date"` // YYYYMMDD
}

// FetchCaptions downloads the caption track and metadata for one video into
// a temp dir and parses both. A missing subtitle file means the track does
// not exist: ErrNoCaptions.
func (y *YtDlp) FetchCaptions(ctx context.Context, videoID, lang string) (*FetchResult, error) {
	dir, err := os.MkdirTemp("", "captionsearch-")
	if err != nil {
		return nil, fmt.Errorf("media: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	cmd := exec.CommandContext(ctx, y.bin(), fetchArgs(videoID, lang, dir)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("media: fetch captions %s: %w\nstderr: %s", videoID, err, stderr.String())
	}

	subPath := filepath.Join(dir, videoID+"."+lang+".vtt")
	if _, err := os.Stat(subPath); errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoCaptions
	}

	cues, err := captions.ParseWebVTTFile(subPath)
	if err != nil {
		return nil, fmt.Errorf("media: parse captions %s: %w", videoID, err)
	}

	infoRaw, err := os.ReadFile(filepath.Join(dir, videoID+".info.json"))
	if err != nil {
		return nil, fmt.Errorf("media: read metadata %s: %w", videoID, err)
	}
	video, channel, err := parseVideoInfo(infoRaw)
	if err != nil {
		return nil, fmt.Errorf("media: metadata %s: %w", videoID, err)
	}

	return &FetchResult{Cues: cues, Video: video, Channel: channel}, nil
}

// parseVideoInfo decodes an info.json document into video and channel
// metadata. The upload date is normalized from YYYYMMDD to ISO form.
func parseVideoInfo(raw []byte) (domain.Video, domain.Channel, error) {
	var info videoInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return domain.Video{}, domain.Channel{}, fmt.Errorf("decode info.json: %w", err)
	}
	if info.ID == "" || info.UploaderID == "" {
		return domain.Video{}, domain.Channel{}, fmt.Errorf("info.json missing video or uploader id")
	}

	uploadDate := info.UploadDate
	if t, err := time.Parse("20060102", info.UploadDate); err == nil {
		uploadDate = t.Format("2006-01-02")
	}

	video := domain.Video{
		VideoID:    info.ID,
		Title:      info.Title,
		URL:        info.WebpageURL,
		UploaderID: info.UploaderID,
		UploadDate: uploadDate,
	}
	channel := domain.Channel{
		UploaderID: info.UploaderID,
		Name:       info.Uploader,
		URL:        info.ChannelURL,
	}
	return video, channel, nil
}

// clipArgs builds the bounded download invocation for an exact sub-range.
func clipArgs(req ClipRequest) []string {
	section := fmt.Sprintf("*%d-%d", req.StartSeconds, req.EndSeconds)
	return []string{
		"--no-warnings",
		"--no-progress",
		"--force-keyframes-at-cuts",
		"--download-sections", section,
		"-o", req.OutputTemplate,
		req.Link,
	}
}

// FetchClip downloads exactly the requested sub-range.
func (y *YtDlp) FetchClip(ctx context.Context, req ClipRequest) error {
	cmd := exec.CommandContext(ctx, y.bin(), clipArgs(req)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("media: fetch clip %s: %w\nstderr: %s", req.Link, err, stderr.String())
	}
	return nil
}
