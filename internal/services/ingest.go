package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/clients/gcp"
	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/repos"
	"github.com/ghprograms/programs-backend/internal/types"
)

// ErrIngestAwaitingUpload reports that the resource row exists but the
// bucket object does not yet. The job layer parks on it instead of
// failing: a direct-to-bucket upload can land after the resource row.
var ErrIngestAwaitingUpload = errors.New("resource object not uploaded yet")

// MediaIngestService extracts transcript segments from uploaded lesson
// resources through the provider clients. Providers are optional; an
// unavailable provider marks the resource skipped rather than failed.
type MediaIngestService interface {
	IngestResource(ctx context.Context, resourceID uuid.UUID) error
	IngestResources(ctx context.Context, resourceIDs []uuid.UUID) error
}

type mediaIngestService struct {
	db  *gorm.DB
	log *logger.Logger

	resourceRepo  repos.LessonResourceRepo
	segmentRepo   repos.TranscriptSegmentRepo
	bucketService BucketService

	document gcp.DocumentProvider
	vision   gcp.VisionProvider
	speech   gcp.SpeechProvider
	video    gcp.VideoProvider
}

func NewMediaIngestService(
	db *gorm.DB,
	log *logger.Logger,
	resourceRepo repos.LessonResourceRepo,
	segmentRepo repos.TranscriptSegmentRepo,
	bucketService BucketService,
	document gcp.DocumentProvider,
	vision gcp.VisionProvider,
	speech gcp.SpeechProvider,
	video gcp.VideoProvider,
) MediaIngestService {
	return &mediaIngestService{
		db:            db,
		log:           log.With("service", "MediaIngestService"),
		resourceRepo:  resourceRepo,
		segmentRepo:   segmentRepo,
		bucketService: bucketService,
		document:      document,
		vision:        vision,
		speech:        speech,
		video:         video,
	}
}

// IngestResources fans out over resources, four at a time. The first
// failure cancels the rest.
func (s *mediaIngestService) IngestResources(ctx context.Context, resourceIDs []uuid.UUID) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, id := range resourceIDs {
		id := id
		g.Go(func() error {
			return s.IngestResource(ctx, id)
		})
	}
	return g.Wait()
}

func (s *mediaIngestService) IngestResource(ctx context.Context, resourceID uuid.UUID) error {
	resources, err := s.resourceRepo.GetByIDs(ctx, nil, []uuid.UUID{resourceID})
	if err != nil || len(resources) == 0 || resources[0] == nil {
		return fmt.Errorf("Resource not found")
	}
	resource := resources[0]

	if resource.Kind == types.ResourceKindLink {
		return s.markStatus(ctx, resource.ID, types.IngestSkipped, "")
	}
	if err := s.markStatus(ctx, resource.ID, types.IngestRunning, ""); err != nil {
		return err
	}

	segments, provider, err := s.extract(ctx, resource)
	if errors.Is(err, ErrIngestAwaitingUpload) {
		_ = s.markStatus(ctx, resource.ID, types.IngestPending, "")
		return err
	}
	if err != nil {
		_ = s.markStatus(ctx, resource.ID, types.IngestFailed, err.Error())
		return err
	}
	if provider == "" {
		s.log.Warn("No provider configured for resource kind, skipping ingest",
			"resource_id", resource.ID, "kind", resource.Kind)
		return s.markStatus(ctx, resource.ID, types.IngestSkipped, "")
	}

	rows := make([]*types.TranscriptSegment, 0, len(segments))
	var durationSecs float64
	for i, seg := range segments {
		rows = append(rows, &types.TranscriptSegment{
			ID:         uuid.New(),
			ResourceID: resource.ID,
			Idx:        i,
			StartMS:    int64(seg.StartSec * 1000),
			EndMS:      int64(seg.EndSec * 1000),
			Page:       seg.Page,
			Confidence: seg.Confidence,
			Provider:   provider,
			Text:       seg.Text,
		})
		if seg.EndSec > durationSecs {
			durationSecs = seg.EndSec
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// A re-ingest replaces the transcript wholesale.
		if dErr := s.segmentRepo.FullDeleteByResourceIDs(ctx, tx, []uuid.UUID{resource.ID}); dErr != nil {
			return fmt.Errorf("Failed to clear transcript: %w", dErr)
		}
		if _, cErr := s.segmentRepo.Create(ctx, tx, rows); cErr != nil {
			return fmt.Errorf("Failed to store transcript: %w", cErr)
		}
		updates := map[string]interface{}{
			"ingest_status": types.IngestSucceeded,
			"ingest_error":  "",
			"updated_at":    time.Now().UTC(),
		}
		if durationSecs > 0 {
			updates["duration_secs"] = durationSecs
		}
		return s.resourceRepo.UpdateFields(ctx, tx, resource.ID, updates)
	})
	if err != nil {
		_ = s.markStatus(ctx, resource.ID, types.IngestFailed, err.Error())
		return err
	}

	s.log.Info("Resource ingested",
		"resource_id", resource.ID, "kind", resource.Kind, "segments", len(rows), "provider", provider)
	return nil
}

// extract returns the provider name alongside the segments; an empty
// provider name means nothing is configured for this kind.
func (s *mediaIngestService) extract(ctx context.Context, resource *types.LessonResource) ([]gcp.Segment, string, error) {
	switch resource.Kind {
	case types.ResourceKindPDF:
		if s.document == nil {
			return nil, "", nil
		}
		data, err := s.download(ctx, resource.BucketKey)
		if err != nil {
			return nil, "", err
		}
		segs, err := s.document.ExtractPDF(ctx, data, resource.MimeType)
		return segs, "gcp_documentai", err
	case types.ResourceKindImage:
		if s.vision == nil {
			return nil, "", nil
		}
		data, err := s.download(ctx, resource.BucketKey)
		if err != nil {
			return nil, "", err
		}
		segs, err := s.vision.ExtractImageText(ctx, data)
		return segs, "gcp_vision", err
	case types.ResourceKindAudio:
		if s.speech == nil {
			return nil, "", nil
		}
		segs, err := s.speech.TranscribeAudio(ctx, s.bucketService.GCSURI(resource.BucketKey), resource.MimeType)
		return segs, "gcp_speech", err
	case types.ResourceKindVideo:
		if s.video == nil {
			return nil, "", nil
		}
		segs, err := s.video.TranscribeVideo(ctx, s.bucketService.GCSURI(resource.BucketKey))
		return segs, "gcp_videointelligence", err
	default:
		return nil, "", fmt.Errorf("Unknown resource kind %q", resource.Kind)
	}
}

func (s *mediaIngestService) download(ctx context.Context, bucketKey string) ([]byte, error) {
	data, err := s.bucketService.DownloadFile(ctx, bucketKey)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("Object %q: %w", bucketKey, ErrIngestAwaitingUpload)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *mediaIngestService) markStatus(ctx context.Context, resourceID uuid.UUID, status string, ingestError string) error {
	return s.resourceRepo.UpdateFields(ctx, nil, resourceID, map[string]interface{}{
		"ingest_status": status,
		"ingest_error":  ingestError,
		"updated_at":    time.Now().UTC(),
	})
}
