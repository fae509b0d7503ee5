package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	videointelligence "cloud.google.com/go/videointelligence/apiv1"
	"cloud.google.com/go/videointelligence/apiv1/videointelligencepb"

	"github.com/ghprograms/programs-backend/internal/logger"
)

// VideoProvider transcribes speech from lesson videos.
type VideoProvider interface {
	TranscribeVideo(ctx context.Context, gcsURI string) ([]Segment, error)
	Close() error
}

type videoProvider struct {
	log        *logger.Logger
	client     *videointelligence.Client
	maxRetries int
}

func NewVideoProvider(log *logger.Logger) (VideoProvider, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	client, err := videointelligence.NewClient(context.Background(), ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("video intelligence client: %w", err)
	}
	return &videoProvider{
		log:        log.With("service", "VideoProvider"),
		client:     client,
		maxRetries: 4,
	}, nil
}

func (p *videoProvider) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

func (p *videoProvider) TranscribeVideo(ctx context.Context, gcsURI string) ([]Segment, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Minute)
	defer cancel()

	if !strings.HasPrefix(gcsURI, "gs://") {
		return nil, fmt.Errorf("gcsURI must be gs://... got %q", gcsURI)
	}

	req := &videointelligencepb.AnnotateVideoRequest{
		InputUri: gcsURI,
		Features: []videointelligencepb.Feature{videointelligencepb.Feature_SPEECH_TRANSCRIPTION},
		VideoContext: &videointelligencepb.VideoContext{
			SpeechTranscriptionConfig: &videointelligencepb.SpeechTranscriptionConfig{
				LanguageCode:               "en-US",
				EnableAutomaticPunctuation: true,
			},
		},
	}

	resp, err := withRetry(ctx, p.maxRetries, func() (*videointelligencepb.AnnotateVideoResponse, error) {
		op, err := p.client.AnnotateVideo(ctx, req)
		if err != nil {
			return nil, err
		}
		return op.Wait(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("video annotate: %w", err)
	}

	return videoSegments(resp), nil
}

func videoSegments(resp *videointelligencepb.AnnotateVideoResponse) []Segment {
	if resp == nil {
		return nil
	}

	var words []timedWord
	var fallback []Segment
	for _, result := range resp.AnnotationResults {
		if result == nil {
			continue
		}
		for _, st := range result.SpeechTranscriptions {
			if st == nil || len(st.Alternatives) == 0 || st.Alternatives[0] == nil {
				continue
			}
			alt := st.Alternatives[0]
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
					confidence: float64(alt.Confidence),
				})
			}
		}
	}
	if len(words) == 0 {
		return fallback
	}
	return groupWords(words, 10.0)
}
