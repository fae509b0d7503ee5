package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/clients/gcp"
	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/repos"
	"github.com/ghprograms/programs-backend/internal/types"
)

// fakeBucket serves canned bytes and never talks to GCS.
type fakeBucket struct {
	files map[string][]byte
}

func (b *fakeBucket) UploadFile(ctx context.Context, tx *gorm.DB, key string, file io.Reader) error {
	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	if b.files == nil {
		b.files = map[string][]byte{}
	}
	b.files[key] = data
	return nil
}

func (b *fakeBucket) DownloadFile(ctx context.Context, key string) ([]byte, error) {
	data, ok := b.files[key]
	if !ok {
		// Match what the real client reports for a missing object.
		return nil, fmt.Errorf("object %q: %w", key, storage.ErrObjectNotExist)
	}
	return data, nil
}

func (b *fakeBucket) DeleteFile(ctx context.Context, tx *gorm.DB, key string) error {
	delete(b.files, key)
	return nil
}

func (b *fakeBucket) ReplaceFile(ctx context.Context, tx *gorm.DB, key string, newFile io.Reader) error {
	return b.UploadFile(ctx, tx, key, newFile)
}

func (b *fakeBucket) ObjectKey(category, name string) (string, error) {
	return category + "/" + name, nil
}

func (b *fakeBucket) GetPublicURL(key string) string { return "https://bucket.test/" + key }
func (b *fakeBucket) GetSignedURL(key string, ttl time.Duration) (string, error) {
	return "https://bucket.test/signed/" + key, nil
}
func (b *fakeBucket) GCSURI(key string) string { return "gs://bucket-test/" + key }

type fakeDocumentProvider struct {
	segments []gcp.Segment
	err      error
}

func (p *fakeDocumentProvider) ExtractPDF(ctx context.Context, data []byte, mimeType string) ([]gcp.Segment, error) {
	return p.segments, p.err
}
func (p *fakeDocumentProvider) Close() error { return nil }

type fakeSpeechProvider struct {
	segments []gcp.Segment
	gotURI   string
}

func (p *fakeSpeechProvider) TranscribeAudio(ctx context.Context, gcsURI string, mimeType string) ([]gcp.Segment, error) {
	p.gotURI = gcsURI
	return p.segments, nil
}
func (p *fakeSpeechProvider) Close() error { return nil }

func newIngestFixture(t *testing.T, doc gcp.DocumentProvider, speech gcp.SpeechProvider, bucket BucketService) (MediaIngestService, *gorm.DB, *catalogFixture) {
	t.Helper()
	gdb := newTestDB(t)
	log := logger.NewNop()
	svc := NewMediaIngestService(
		gdb,
		log,
		repos.NewLessonResourceRepo(gdb, log),
		repos.NewTranscriptSegmentRepo(gdb, log),
		bucket,
		doc,
		nil,
		speech,
		nil,
	)
	fx := seedCatalog(t, gdb, 1)
	return svc, gdb, fx
}

func seedResource(t *testing.T, gdb *gorm.DB, lessonID uuid.UUID, kind, bucketKey string) *types.LessonResource {
	t.Helper()
	res := &types.LessonResource{
		ID:           uuid.New(),
		LessonID:     lessonID,
		Kind:         kind,
		Title:        "R",
		BucketKey:    bucketKey,
		MimeType:     "application/pdf",
		IngestStatus: types.IngestPending,
	}
	if err := gdb.Create(res).Error; err != nil {
		t.Fatalf("seed resource: %v", err)
	}
	return res
}

func TestIngestPDFStoresTranscript(t *testing.T) {
	bucket := &fakeBucket{files: map[string][]byte{"resources/doc.pdf": []byte("%PDF")}}
	doc := &fakeDocumentProvider{segments: []gcp.Segment{
		{Text: "Page one text", Page: 1, Confidence: 0.98},
		{Text: "Page two text", Page: 2, Confidence: 0.97},
	}}
	svc, gdb, fx := newIngestFixture(t, doc, nil, bucket)
	res := seedResource(t, gdb, fx.Lessons[0].ID, types.ResourceKindPDF, "resources/doc.pdf")

	if err := svc.IngestResource(context.Background(), res.ID); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	var reloaded types.LessonResource
	if err := gdb.First(&reloaded, "id = ?", res.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.IngestStatus != types.IngestSucceeded {
		t.Fatalf("status = %q", reloaded.IngestStatus)
	}

	var segments []*types.TranscriptSegment
	if err := gdb.Where("resource_id = ?", res.ID).Order("idx asc").Find(&segments).Error; err != nil {
		t.Fatalf("load segments: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("segments = %d", len(segments))
	}
	if segments[0].Provider != "gcp_documentai" || segments[0].Page != 1 {
		t.Fatalf("segment = %+v", segments[0])
	}
}

func TestIngestReplacesPriorTranscript(t *testing.T) {
	bucket := &fakeBucket{files: map[string][]byte{"resources/doc.pdf": []byte("%PDF")}}
	doc := &fakeDocumentProvider{segments: []gcp.Segment{{Text: "v1", Page: 1}}}
	svc, gdb, fx := newIngestFixture(t, doc, nil, bucket)
	res := seedResource(t, gdb, fx.Lessons[0].ID, types.ResourceKindPDF, "resources/doc.pdf")

	if err := svc.IngestResource(context.Background(), res.ID); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	doc.segments = []gcp.Segment{{Text: "v2 a", Page: 1}, {Text: "v2 b", Page: 2}}
	if err := svc.IngestResource(context.Background(), res.ID); err != nil {
		t.Fatalf("second ingest: %v", err)
	}

	var count int64
	gdb.Model(&types.TranscriptSegment{}).Where("resource_id = ?", res.ID).Count(&count)
	if count != 2 {
		t.Fatalf("segments after re-ingest = %d, want 2", count)
	}
}

func TestIngestFailureMarksResource(t *testing.T) {
	bucket := &fakeBucket{files: map[string][]byte{"resources/doc.pdf": []byte("%PDF")}}
	doc := &fakeDocumentProvider{err: fmt.Errorf("document ai unavailable")}
	svc, gdb, fx := newIngestFixture(t, doc, nil, bucket)
	res := seedResource(t, gdb, fx.Lessons[0].ID, types.ResourceKindPDF, "resources/doc.pdf")

	if err := svc.IngestResource(context.Background(), res.ID); err == nil {
		t.Fatal("expected ingest error")
	}

	var reloaded types.LessonResource
	if err := gdb.First(&reloaded, "id = ?", res.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.IngestStatus != types.IngestFailed || reloaded.IngestError == "" {
		t.Fatalf("resource = %q / %q", reloaded.IngestStatus, reloaded.IngestError)
	}
}

func TestIngestMissingObjectAwaitsUpload(t *testing.T) {
	// The resource row exists but nothing was put in the bucket yet. The
	// ingest must report the sentinel and leave the row pending so a
	// later attempt can pick it up.
	bucket := &fakeBucket{}
	doc := &fakeDocumentProvider{segments: []gcp.Segment{{Text: "never reached", Page: 1}}}
	svc, gdb, fx := newIngestFixture(t, doc, nil, bucket)
	res := seedResource(t, gdb, fx.Lessons[0].ID, types.ResourceKindPDF, "resources/late.pdf")

	err := svc.IngestResource(context.Background(), res.ID)
	if !errors.Is(err, ErrIngestAwaitingUpload) {
		t.Fatalf("err = %v, want ErrIngestAwaitingUpload", err)
	}

	var reloaded types.LessonResource
	if err := gdb.First(&reloaded, "id = ?", res.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.IngestStatus != types.IngestPending {
		t.Fatalf("status = %q, want %q", reloaded.IngestStatus, types.IngestPending)
	}
	if reloaded.IngestError != "" {
		t.Fatalf("ingest_error = %q, want empty", reloaded.IngestError)
	}
}

func TestIngestAudioUsesGCSURI(t *testing.T) {
	bucket := &fakeBucket{}
	speech := &fakeSpeechProvider{segments: []gcp.Segment{{Text: "hello", StartSec: 0, EndSec: 2.5}}}
	svc, gdb, fx := newIngestFixture(t, nil, speech, bucket)
	res := seedResource(t, gdb, fx.Lessons[0].ID, types.ResourceKindAudio, "resources/talk.mp3")

	if err := svc.IngestResource(context.Background(), res.ID); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if speech.gotURI != "gs://bucket-test/resources/talk.mp3" {
		t.Fatalf("speech uri = %q", speech.gotURI)
	}

	var reloaded types.LessonResource
	if err := gdb.First(&reloaded, "id = ?", res.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.DurationSecs != 2.5 {
		t.Fatalf("duration = %v", reloaded.DurationSecs)
	}
}

func TestIngestWithoutProviderSkips(t *testing.T) {
	bucket := &fakeBucket{files: map[string][]byte{"resources/doc.pdf": []byte("%PDF")}}
	svc, gdb, fx := newIngestFixture(t, nil, nil, bucket)
	res := seedResource(t, gdb, fx.Lessons[0].ID, types.ResourceKindPDF, "resources/doc.pdf")

	if err := svc.IngestResource(context.Background(), res.ID); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	var reloaded types.LessonResource
	if err := gdb.First(&reloaded, "id = ?", res.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.IngestStatus != types.IngestSkipped {
		t.Fatalf("status = %q", reloaded.IngestStatus)
	}
}

func TestIngestLinkResourceSkips(t *testing.T) {
	svc, gdb, fx := newIngestFixture(t, nil, nil, &fakeBucket{})
	res := seedResource(t, gdb, fx.Lessons[0].ID, types.ResourceKindLink, "")

	if err := svc.IngestResource(context.Background(), res.ID); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	var reloaded types.LessonResource
	if err := gdb.First(&reloaded, "id = ?", res.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.IngestStatus != types.IngestSkipped {
		t.Fatalf("status = %q", reloaded.IngestStatus)
	}
}
