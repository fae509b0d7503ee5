package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"

	"github.com/ghprograms/programs-backend/internal/logger"
)

// VisionProvider runs OCR over lesson images.
type VisionProvider interface {
	ExtractImageText(ctx context.Context, img []byte) ([]Segment, error)
	Close() error
}

type visionProvider struct {
	log        *logger.Logger
	client     *vision.ImageAnnotatorClient
	maxRetries int
}

func NewVisionProvider(log *logger.Logger) (VisionProvider, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	client, err := vision.NewImageAnnotatorClient(context.Background(), ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &visionProvider{
		log:        log.With("service", "VisionProvider"),
		client:     client,
		maxRetries: 4,
	}, nil
}

func (p *visionProvider) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

func (p *visionProvider) ExtractImageText(ctx context.Context, img []byte) ([]Segment, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if len(img) == 0 {
		return nil, nil
	}

	doc, err := withRetry(ctx, p.maxRetries, func() (*visionpb.TextAnnotation, error) {
		return p.client.DetectDocumentText(ctx, &visionpb.Image{Content: img}, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("vision DetectDocumentText: %w", err)
	}
	if doc == nil || strings.TrimSpace(doc.Text) == "" {
		return nil, nil
	}

	// One segment per detected page; a plain image is a single page.
	var segs []Segment
	for i, page := range doc.Pages {
		if page == nil {
			continue
		}
		text := pageText(page)
		if text == "" {
			continue
		}
		segs = append(segs, Segment{
			Text:       text,
			Page:       i + 1,
			Confidence: float64(page.Confidence),
		})
	}
	if len(segs) == 0 {
		segs = append(segs, Segment{Text: strings.TrimSpace(doc.Text), Page: 1})
	}
	return segs, nil
}

func pageText(page *visionpb.Page) string {
	var out strings.Builder
	for _, block := range page.Blocks {
		if block == nil {
			continue
		}
		for _, para := range block.Paragraphs {
			if para == nil {
				continue
			}
			for _, word := range para.Words {
				if word == nil {
					continue
				}
				for _, sym := range word.Symbols {
					if sym == nil {
						continue
					}
					out.WriteString(sym.Text)
					if brk := sym.GetProperty().GetDetectedBreak(); brk != nil {
						switch brk.Type {
						case visionpb.TextAnnotation_DetectedBreak_SPACE,
							visionpb.TextAnnotation_DetectedBreak_SURE_SPACE:
							out.WriteString(" ")
						case visionpb.TextAnnotation_DetectedBreak_EOL_SURE_SPACE,
							visionpb.TextAnnotation_DetectedBreak_LINE_BREAK:
							out.WriteString("\n")
						}
					}
				}
			}
			out.WriteString("\n")
		}
	}
	return strings.TrimSpace(out.String())
}
