// Package pipeline orchestrates concurrent caption ingestion: many
// fetch-and-parse operations in flight at once, all funneled into the
// store's single serialized write section.
package pipeline

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"

	"caption-search/pkg/captions"
	"caption-search/pkg/domain"
	"caption-search/pkg/media"
)

// Store is the slice of the persistent store the pipeline writes through.
type Store interface {
	// SaveIngest applies one video's complete write unit atomically.
	SaveIngest(ctx context.Context, video domain.Video, channel domain.Channel, lang string, segments []domain.Segment) error
	// SetLanguageAvailability records a fetch attempt outcome.
	SetLanguageAvailability(ctx context.Context, videoID, lang string, available bool) error
}

// Summary tallies one ingestion run. Failed counts per-video errors that
// were logged and skipped; they never abort the batch.
type Summary struct {
	Indexed     int
	Unavailable int
	Failed      int
}

// outcome classifies a single video's result inside a run.
type outcome int

const (
	outcomeIndexed outcome = iota
	outcomeUnavailable
	outcomeFailed
)

// Pipeline fetches caption tracks concurrently and writes them through the
// store. Fetches are I/O-bound; normalization is synchronous and cheap.
type Pipeline struct {
	source  media.CaptionFetcher
	store   Store
	workers int

	// Progress, if set, is called once per completed video with a
	// monotonically increasing done count. Completions arrive in whatever
	// order the underlying I/O finishes.
	Progress func(done, total int)
}

// New creates a pipeline with the given worker count. workers <= 0 picks a
// platform default.
func New(source media.CaptionFetcher, store Store, workers int) *Pipeline {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pipeline{
		source:  source,
		store:   store,
		workers: workers,
	}
}

// Run ingests captions for every id in videoIDs in the target language.
// Per-video failures are logged and counted, never fatal. Cancelling ctx
// stops feeding new ids; in-flight fetches are abandoned without leaving
// partial writes (each write unit is one transaction). The returned error
// is non-nil only for cancellation.
func (p *Pipeline) Run(ctx context.Context, videoIDs []string, lang string) (Summary, error) {
	total := len(videoIDs)
	if total == 0 {
		return Summary{}, nil
	}

	idChan := make(chan string)
	outcomes := make(chan outcome)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.worker(ctx, workerID, lang, idChan, outcomes)
		}(i)
	}

	// Feed ids until done or cancelled; workers drain and exit on close.
	go func() {
		defer close(idChan)
		for _, id := range videoIDs {
			select {
			case idChan <- id:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	var summary Summary
	done := 0
	for out := range outcomes {
		done++
		switch out {
		case outcomeIndexed:
			summary.Indexed++
		case outcomeUnavailable:
			summary.Unavailable++
		case outcomeFailed:
			summary.Failed++
		}
		if p.Progress != nil {
			p.Progress(done, total)
		}
	}

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (p *Pipeline) worker(ctx context.Context, workerID int, lang string, idChan <-chan string, outcomes chan<- outcome) {
	for {
		select {
		case id, ok := <-idChan:
			if !ok {
				return
			}
			out := p.processVideo(ctx, id, lang)
			select {
			case outcomes <- out:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			logrus.WithField("worker", workerID).Debug("ingestion worker cancelled")
			return
		}
	}
}

// processVideo handles one video end to end: fetch, normalize, write.
func (p *Pipeline) processVideo(ctx context.Context, videoID, lang string) outcome {
	log := logrus.WithFields(logrus.Fields{"video": videoID, "lang": lang})

	result, err := p.source.FetchCaptions(ctx, videoID, lang)
	switch {
	case errors.Is(err, media.ErrNoCaptions):
		// Negative cache: remember the track doesn't exist so the planner
		// skips this pair next run.
		if err := p.store.SetLanguageAvailability(ctx, videoID, lang, false); err != nil {
			log.WithError(err).Warn("failed to record missing caption track")
			return outcomeFailed
		}
		log.Debug("no caption track")
		return outcomeUnavailable
	case err != nil:
		log.WithError(err).Warn("caption fetch failed")
		return outcomeFailed
	}

	segments := captions.Normalize(videoID, lang, result.Cues)

	if err := p.store.SaveIngest(ctx, result.Video, result.Channel, lang, segments); err != nil {
		log.WithError(err).Warn("failed to store segments")
		return outcomeFailed
	}

	log.WithField("segments", len(segments)).Debug("indexed")
	return outcomeIndexed
}
