package gcp

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"

	"github.com/ghprograms/programs-backend/internal/logger"
)

// DocumentProvider extracts text from lesson PDFs with Document AI.
type DocumentProvider interface {
	ExtractPDF(ctx context.Context, data []byte, mimeType string) ([]Segment, error)
	Close() error
}

type documentProvider struct {
	log        *logger.Logger
	client     *documentai.DocumentProcessorClient
	processor  string
	maxRetries int
}

// NewDocumentProvider needs DOCUMENTAI_PROCESSOR_NAME, the full
// projects/.../locations/.../processors/... resource. DOCUMENTAI_LOCATION
// picks the regional endpoint, default "us".
func NewDocumentProvider(log *logger.Logger) (DocumentProvider, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	processor := strings.TrimSpace(os.Getenv("DOCUMENTAI_PROCESSOR_NAME"))
	if processor == "" {
		return nil, fmt.Errorf("missing DOCUMENTAI_PROCESSOR_NAME")
	}

	location := strings.TrimSpace(os.Getenv("DOCUMENTAI_LOCATION"))
	if location == "" {
		location = "us"
	}
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", location)

	opts := append([]option.ClientOption{option.WithEndpoint(endpoint)}, ClientOptionsFromEnv()...)
	client, err := documentai.NewDocumentProcessorClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("documentai client: %w", err)
	}

	return &documentProvider{
		log:        log.With("service", "DocumentProvider"),
		client:     client,
		processor:  processor,
		maxRetries: 4,
	}, nil
}

func (p *documentProvider) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

func (p *documentProvider) ExtractPDF(ctx context.Context, data []byte, mimeType string) ([]Segment, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	if len(data) == 0 {
		return nil, nil
	}
	if strings.TrimSpace(mimeType) == "" {
		mimeType = "application/pdf"
	}

	req := &documentaipb.ProcessRequest{
		Name: p.processor,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: mimeType,
			},
		},
	}

	resp, err := withRetry(ctx, p.maxRetries, func() (*documentaipb.ProcessResponse, error) {
		return p.client.ProcessDocument(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("documentai ProcessDocument: %w", err)
	}
	if resp == nil || resp.Document == nil {
		return nil, nil
	}

	return documentSegments(resp.Document), nil
}

// documentSegments assembles one segment per page from the paragraph
// text anchors into the shared document text.
func documentSegments(doc *documentaipb.Document) []Segment {
	if doc == nil {
		return nil
	}

	var segs []Segment
	for _, page := range doc.Pages {
		if page == nil {
			continue
		}
		var pageText strings.Builder
		for _, para := range page.Paragraphs {
			if para == nil || para.Layout == nil || para.Layout.TextAnchor == nil {
				continue
			}
			t := strings.TrimSpace(textFromAnchor(doc.Text, para.Layout.TextAnchor))
			if t == "" {
				continue
			}
			pageText.WriteString(t)
			pageText.WriteString("\n")
		}
		text := strings.TrimSpace(pageText.String())
		if text == "" {
			continue
		}
		segs = append(segs, Segment{Text: text, Page: int(page.PageNumber)})
	}

	if len(segs) == 0 && strings.TrimSpace(doc.Text) != "" {
		segs = append(segs, Segment{Text: strings.TrimSpace(doc.Text), Page: 1})
	}
	return segs
}

func textFromAnchor(full string, anchor *documentaipb.Document_TextAnchor) string {
	if anchor == nil || len(anchor.TextSegments) == 0 || full == "" {
		return ""
	}
	var b strings.Builder
	for _, seg := range anchor.TextSegments {
		if seg == nil {
			continue
		}
		start := int(seg.StartIndex)
		end := int(seg.EndIndex)
		if start < 0 {
			start = 0
		}
		if end > len(full) {
			end = len(full)
		}
		if start >= end {
			continue
		}
		b.WriteString(full[start:end])
	}
	return b.String()
}
