package gcp

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/ghprograms/programs-backend/internal/logger"
)

// SpeechProvider transcribes lesson audio with time-aligned segments.
type SpeechProvider interface {
	TranscribeAudio(ctx context.Context, gcsURI string, mimeType string) ([]Segment, error)
	Close() error
}

type speechProvider struct {
	log        *logger.Logger
	client     *speech.Client
	maxRetries int
}

func NewSpeechProvider(log *logger.Logger) (SpeechProvider, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	client, err := speech.NewClient(context.Background(), ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	return &speechProvider{
		log:        log.With("service", "SpeechProvider"),
		client:     client,
		maxRetries: 4,
	}, nil
}

func (p *speechProvider) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

func (p *speechProvider) TranscribeAudio(ctx context.Context, gcsURI string, mimeType string) ([]Segment, error) {
	// Long audio can take a while through the long-running API.
	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	if !strings.HasPrefix(gcsURI, "gs://") {
		return nil, fmt.Errorf("gcsURI must be gs://... got %q", gcsURI)
	}

	req := &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			LanguageCode:               "en-US",
			EnableAutomaticPunctuation: true,
			EnableWordTimeOffsets:      true,
			Encoding:                   inferSpeechEncoding(mimeType, gcsURI),
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Uri{Uri: gcsURI},
		},
	}

	resp, err := withRetry(ctx, p.maxRetries, func() (*speechpb.LongRunningRecognizeResponse, error) {
		op, err := p.client.LongRunningRecognize(ctx, req)
		if err != nil {
			return nil, err
		}
		return op.Wait(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("speech longrunningrecognize: %w", err)
	}

	return speechSegments(resp), nil
}

func inferSpeechEncoding(mimeType string, gcsURI string) speechpb.RecognitionConfig_AudioEncoding {
	m := strings.ToLower(strings.TrimSpace(mimeType))
	ext := strings.ToLower(filepath.Ext(gcsURI))

	switch {
	case strings.Contains(m, "wav") || ext == ".wav":
		return speechpb.RecognitionConfig_LINEAR16
	case strings.Contains(m, "flac") || ext == ".flac":
		return speechpb.RecognitionConfig_FLAC
	case strings.Contains(m, "mp3") || ext == ".mp3":
		return speechpb.RecognitionConfig_MP3
	case strings.Contains(m, "ogg") || ext == ".ogg" || ext == ".opus":
		return speechpb.RecognitionConfig_OGG_OPUS
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}

type timedWord struct {
	word       string
	start, end float64
	confidence float64
}

// speechSegments groups recognized words into ~10s windows. Responses
// without word offsets fall back to one segment per result.
func speechSegments(resp *speechpb.LongRunningRecognizeResponse) []Segment {
	if resp == nil {
		return nil
	}

	var words []timedWord
	var fallback []Segment
	for _, r := range resp.Results {
		if r == nil || len(r.Alternatives) == 0 || r.Alternatives[0] == nil {
			continue
		}
		alt := r.Alternatives[0]
		text := strings.TrimSpace(alt.Transcript)
		if text == "" {
			continue
		}
		fallback = append(fallback, Segment{Text: text, Confidence: float64(alt.Confidence)})
		for _, w := range alt.Words {
			if w == nil {
				continue
			}
			words = append(words, timedWord{
				word:       w.Word,
				start:      durSec(w.StartTime),
				end:        durSec(w.EndTime),
				confidence: float64(w.Confidence),
			})
		}
	}
	if len(words) == 0 {
		return fallback
	}
	return groupWords(words, 10.0)
}

func groupWords(words []timedWord, windowSec float64) []Segment {
	if len(words) == 0 {
		return nil
	}
	if windowSec <= 0 {
		windowSec = 10
	}

	var segs []Segment
	curStart := words[0].start
	curEnd := words[0].end
	var buf strings.Builder
	var confSum float64
	var confN int

	flush := func() {
		text := strings.TrimSpace(buf.String())
		if text == "" {
			return
		}
		seg := Segment{Text: text, StartSec: curStart, EndSec: curEnd}
		if confN > 0 {
			seg.Confidence = confSum / float64(confN)
		}
		segs = append(segs, seg)
		buf.Reset()
		confSum = 0
		confN = 0
	}

	for _, w := range words {
		if (w.start-curStart) >= windowSec && buf.Len() > 0 {
			flush()
			curStart = w.start
			curEnd = w.end
		}
		if buf.Len() > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(w.word)
		if w.end > curEnd {
			curEnd = w.end
		}
		if w.confidence > 0 {
			confSum += w.confidence
			confN++
		}
	}
	flush()
	return segs
}

func durSec(d *durationpb.Duration) float64 {
	if d == nil {
		return 0
	}
	return d.AsDuration().Seconds()
}
