package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"caption-search/pkg/clip"
	"caption-search/pkg/media"
	"caption-search/pkg/pipeline"
	"caption-search/pkg/planner"
	"caption-search/pkg/store"
)

const defaultDBPath = "captions.db"

func main() {
	os.Exit(run())
}

func run() int {
	setupLogging()

	if len(os.Args) < 2 {
		usage()
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verb, args := os.Args[1], os.Args[2:]
	var err error
	switch verb {
	case "index":
		err = runIndex(ctx, args)
	case "search":
		err = runSearch(ctx, args)
	case "channels":
		err = runChannels(ctx, args)
	case "videos":
		err = runVideos(ctx, args)
	case "stats":
		err = runStats(ctx, args)
	case "remove-channel":
		err = runRemoveChannel(ctx, args)
	case "help", "-h", "--help":
		usage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", verb)
		usage()
		return 1
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		logrus.Warn("interrupted")
		return 130
	default:
		logrus.WithError(err).Error("command failed")
		return 1
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: captionsearch <command> [flags]

Commands:
  index <collectionRef>    fetch and index captions for a channel, playlist, or video
  search <text>            full-text search over indexed captions
  channels                 list indexed channels
  videos                   list indexed videos
  stats                    channel and video counts
  remove-channel <id>      delete a channel and everything it owns

The database path comes from CAPTIONSEARCH_DB (default captions.db).
Run "captionsearch <command> -h" for command flags.
`)
}

func setupLogging() {
	logrus.SetOutput(os.Stderr)
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		level, err := logrus.ParseLevel(raw)
		if err != nil {
			logrus.Warnf("ignoring invalid LOG_LEVEL %q", raw)
			return
		}
		logrus.SetLevel(level)
	}
}

func openStore() (*store.Store, error) {
	path := os.Getenv("CAPTIONSEARCH_DB")
	if path == "" {
		path = defaultDBPath
	}
	return store.Open(path)
}

// pickLister chooses the listing backend. Feed URLs are cheap to poll but
// only carry recent uploads; the default backend enumerates everything.
func pickLister(kind, ref string) (media.Lister, error) {
	switch kind {
	case "auto":
		if strings.Contains(ref, "feeds/videos.xml") || strings.HasSuffix(ref, ".xml") {
			return media.NewFeedLister(), nil
		}
		return media.NewYtDlp(), nil
	case "ytdlp":
		return media.NewYtDlp(), nil
	case "feed":
		return media.NewFeedLister(), nil
	case "page":
		return media.NewPageLister(), nil
	default:
		return nil, fmt.Errorf("unknown lister %q (want auto, ytdlp, feed, or page)", kind)
	}
}

func runIndex(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("index", flag.ContinueOnError)
	lang := fs.String("lang", "es", "caption language to index")
	workers := fs.Int("workers", 0, "concurrent fetches (0 picks a default)")
	listerKind := fs.String("lister", "auto", "listing backend: auto, ytdlp, feed, page")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ref := fs.Arg(0)
	if ref == "" {
		return errors.New("index: missing channel, playlist, or video reference")
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	lister, err := pickLister(*listerKind, ref)
	if err != nil {
		return err
	}
	ids, err := lister.ListVideoIDs(ctx, ref)
	if err != nil {
		return fmt.Errorf("list videos: %w", err)
	}

	need, err := planner.New(s).Filter(ctx, ids, *lang)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"listed": len(ids),
		"need":   len(need),
		"lang":   *lang,
	}).Info("planned ingestion")
	if len(need) == 0 {
		fmt.Println("nothing to index")
		return nil
	}

	bar := progressbar.Default(int64(len(need)), "indexing")
	p := pipeline.New(media.NewYtDlp(), s, *workers)
	p.Progress = func(done, total int) { _ = bar.Set(done) }

	summary, err := p.Run(ctx, need, *lang)
	_ = bar.Finish()
	fmt.Printf("indexed %d, unavailable %d, failed %d\n",
		summary.Indexed, summary.Unavailable, summary.Failed)
	return err
}

func runSearch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	user := fs.String("user", "", "restrict to one uploader id")
	lang := fs.String("lang", "", "restrict to one caption language")
	jsonOut := fs.Bool("json", false, "print results as JSON")
	download := fs.Bool("download", false, "download a clip for every result")
	spacing := fs.Int("spacing", 5, "seconds of context around each downloaded clip")
	if err := fs.Parse(args); err != nil {
		return err
	}
	text := fs.Arg(0)
	if text == "" {
		return errors.New("search: missing query text")
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	results, err := s.SearchAll(ctx, text, store.SearchOptions{
		UploaderID: *user,
		Lang:       *lang,
	})
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("no results")
		return nil
	}

	if *jsonOut {
		if err := printJSON(results); err != nil {
			return err
		}
	} else {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CHANNEL\tTITLE\tTIME\tTEXT\tLINK")
		for _, r := range results {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				r.ChannelName, r.VideoTitle, r.StartTime, r.Text, r.Link)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if !*download {
		return nil
	}

	folder := "output-" + slug(text)
	extractor, err := clip.NewExtractor(media.NewYtDlp(), folder, *spacing)
	if err != nil {
		return err
	}
	summary, err := extractor.ExtractAll(ctx, results)
	fmt.Printf("downloaded %d clips (%d skipped, %d failed) into %s\n",
		summary.Extracted, summary.Skipped, summary.Failed, folder)
	return err
}

func runChannels(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("channels", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "print channels as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	channels, err := s.ListChannels(ctx)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(channels)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "UPLOADER\tNAME\tURL")
	for _, ch := range channels {
		fmt.Fprintf(w, "%s\t%s\t%s\n", ch.UploaderID, ch.Name, ch.URL)
	}
	return w.Flush()
}

func runVideos(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("videos", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "print videos as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	videos, err := s.ListVideos(ctx)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(videos)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VIDEO\tUPLOADER\tDATE\tTITLE")
	for _, v := range videos {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.VideoID, v.UploaderID, v.UploadDate, v.Title)
	}
	return w.Flush()
}

func runStats(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "print stats as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	stats, err := s.GetStats(ctx)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(stats)
	}
	fmt.Printf("channels: %d\nvideos: %d\n", stats.Channels, stats.Videos)
	return nil
}

func runRemoveChannel(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("remove-channel", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	uploaderID := fs.Arg(0)
	if uploaderID == "" {
		return errors.New("remove-channel: missing uploader id")
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	ch, err := s.GetChannel(ctx, uploaderID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("channel %s not found", uploaderID)
	}
	if err != nil {
		return err
	}
	if err := s.DeleteChannel(ctx, uploaderID); err != nil {
		return err
	}
	fmt.Printf("removed channel %s (%s)\n", ch.UploaderID, ch.Name)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// slug reduces query text to a filesystem-friendly folder suffix.
func slug(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
