package captions

import (
	"math"
	"strings"

	"caption-search/pkg/domain"
)

// minCueSeconds is the shortest cue duration worth indexing. Auto-generated
// tracks emit sub-half-second cues that carry no searchable speech.
const minCueSeconds = 0.5

// Normalize converts an ordered cue list into filtered, second-resolution
// segments for the given video and language. Cues shorter than half a second
// are discarded; start is floored and end is ceiled to whole seconds; only
// the first line of multi-line cue text is kept. Pure transform, no other
// rewriting of the text.
func Normalize(videoID, lang string, cues []Cue) []domain.Segment {
	segments := make([]domain.Segment, 0, len(cues))
	for _, cue := range cues {
		if cue.End-cue.Start < minCueSeconds {
			continue
		}

		text := cue.Text
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			text = text[:i]
		}

		segments = append(segments, domain.Segment{
			VideoID:      videoID,
			Lang:         lang,
			StartSeconds: int(math.Floor(cue.Start)),
			EndSeconds:   int(math.Ceil(cue.End)),
			StartTime:    cue.StartStamp,
			EndTime:      cue.EndStamp,
			Text:         text,
		})
	}
	return segments
}
