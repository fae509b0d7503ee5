package services

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/repos"
	"github.com/ghprograms/programs-backend/internal/types"
)

var ingestableKinds = map[string]bool{
	types.ResourceKindVideo: true,
	types.ResourceKindAudio: true,
	types.ResourceKindPDF:   true,
	types.ResourceKindImage: true,
}

type UploadResourceInput struct {
	LessonID uuid.UUID `json:"lesson_id"`
	Kind     string    `json:"kind"`
	Title    string    `json:"title"`
	FileName string    `json:"file_name"`
	MimeType string    `json:"mime_type"`
	Data     []byte    `json:"-"`
}

type CreateLinkResourceInput struct {
	LessonID uuid.UUID `json:"lesson_id"`
	Title    string    `json:"title"`
	URL      string    `json:"url"`
}

type UploadResourceResult struct {
	Resource *types.LessonResource `json:"resource"`
	Job      *types.JobRun         `json:"job,omitempty"`
}

// ResourceService manages coach-uploaded lesson materials and their
// extracted transcripts.
type ResourceService interface {
	UploadResource(ctx context.Context, input UploadResourceInput) (*UploadResourceResult, error)
	CreateLinkResource(ctx context.Context, input CreateLinkResourceInput) (*types.LessonResource, error)
	ListResources(ctx context.Context, lessonID uuid.UUID) ([]*types.LessonResource, error)
	DeleteResource(ctx context.Context, resourceID uuid.UUID) error
	GetTranscript(ctx context.Context, resourceID uuid.UUID) ([]*types.TranscriptSegment, error)
}

type resourceService struct {
	db  *gorm.DB
	log *logger.Logger

	programRepo    repos.ProgramRepo
	lessonRepo     repos.LessonRepo
	resourceRepo   repos.LessonResourceRepo
	segmentRepo    repos.TranscriptSegmentRepo
	enrollmentRepo repos.EnrollmentRepo
	membershipRepo repos.OrgMembershipRepo
	bucketService  BucketService
	jobService     JobService
}

func NewResourceService(
	db *gorm.DB,
	log *logger.Logger,
	programRepo repos.ProgramRepo,
	lessonRepo repos.LessonRepo,
	resourceRepo repos.LessonResourceRepo,
	segmentRepo repos.TranscriptSegmentRepo,
	enrollmentRepo repos.EnrollmentRepo,
	membershipRepo repos.OrgMembershipRepo,
	bucketService BucketService,
	jobService JobService,
) ResourceService {
	return &resourceService{
		db:             db,
		log:            log.With("service", "ResourceService"),
		programRepo:    programRepo,
		lessonRepo:     lessonRepo,
		resourceRepo:   resourceRepo,
		segmentRepo:    segmentRepo,
		enrollmentRepo: enrollmentRepo,
		membershipRepo: membershipRepo,
		bucketService:  bucketService,
		jobService:     jobService,
	}
}

func (s *resourceService) requireCoachForLesson(ctx context.Context, lessonID uuid.UUID) (*types.Lesson, uuid.UUID, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, uuid.Nil, err
	}
	lessons, err := s.lessonRepo.GetByIDs(ctx, nil, []uuid.UUID{lessonID})
	if err != nil || len(lessons) == 0 || lessons[0] == nil {
		return nil, uuid.Nil, fmt.Errorf("Lesson not found")
	}
	lesson := lessons[0]
	programs, err := s.programRepo.GetByIDs(ctx, nil, []uuid.UUID{lesson.ProgramID})
	if err != nil || len(programs) == 0 || programs[0] == nil {
		return nil, uuid.Nil, fmt.Errorf("Program not found")
	}
	if _, err := requireCoach(ctx, nil, s.membershipRepo, programs[0].OrganizationID, userID); err != nil {
		return nil, uuid.Nil, err
	}
	return lesson, userID, nil
}

func (s *resourceService) UploadResource(ctx context.Context, input UploadResourceInput) (*UploadResourceResult, error) {
	kind := strings.ToLower(strings.TrimSpace(input.Kind))
	if !ingestableKinds[kind] {
		return nil, fmt.Errorf("Unknown resource kind %q", input.Kind)
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("Missing resource title")
	}
	if len(input.Data) == 0 {
		return nil, fmt.Errorf("Missing resource file")
	}

	lesson, userID, err := s.requireCoachForLesson(ctx, input.LessonID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.FileName)
	if name == "" {
		name = "resource"
	}
	name = path.Base(name)
	key, err := s.bucketService.ObjectKey(BucketCategoryResource,
		fmt.Sprintf("%s/%d-%s", lesson.ID, time.Now().UnixNano(), name))
	if err != nil {
		return nil, err
	}
	if err := s.bucketService.UploadFile(ctx, nil, key, bytes.NewReader(input.Data)); err != nil {
		return nil, fmt.Errorf("Failed to upload resource: %w", err)
	}

	result := &UploadResourceResult{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := &types.LessonResource{
			ID:           uuid.New(),
			LessonID:     lesson.ID,
			Kind:         kind,
			Title:        strings.TrimSpace(input.Title),
			BucketKey:    key,
			URL:          s.bucketService.GetPublicURL(key),
			MimeType:     strings.TrimSpace(input.MimeType),
			SizeBytes:    int64(len(input.Data)),
			IngestStatus: types.IngestPending,
		}
		created, cErr := s.resourceRepo.Create(ctx, tx, []*types.LessonResource{row})
		if cErr != nil || len(created) == 0 {
			return fmt.Errorf("Failed to create resource: %w", cErr)
		}
		result.Resource = created[0]

		resourceID := created[0].ID
		job, jErr := s.jobService.Enqueue(ctx, tx, userID, types.JobTypeResourceIngest, "lesson_resource", &resourceID, map[string]any{
			"resource_id": resourceID.String(),
		})
		if jErr != nil {
			return jErr
		}
		result.Job = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *resourceService) CreateLinkResource(ctx context.Context, input CreateLinkResourceInput) (*types.LessonResource, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("Missing resource title")
	}
	url := strings.TrimSpace(input.URL)
	if url == "" {
		return nil, fmt.Errorf("Missing resource url")
	}
	lesson, _, err := s.requireCoachForLesson(ctx, input.LessonID)
	if err != nil {
		return nil, err
	}

	row := &types.LessonResource{
		ID:           uuid.New(),
		LessonID:     lesson.ID,
		Kind:         types.ResourceKindLink,
		Title:        strings.TrimSpace(input.Title),
		URL:          url,
		IngestStatus: types.IngestSkipped,
	}
	created, err := s.resourceRepo.Create(ctx, nil, []*types.LessonResource{row})
	if err != nil || len(created) == 0 {
		return nil, fmt.Errorf("Failed to create resource: %w", err)
	}
	return created[0], nil
}

// ListResources is open to any authenticated member of the program's
// audience: coaches always, learners once enrolled.
func (s *resourceService) ListResources(ctx context.Context, lessonID uuid.UUID) ([]*types.LessonResource, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	lessons, err := s.lessonRepo.GetByIDs(ctx, nil, []uuid.UUID{lessonID})
	if err != nil || len(lessons) == 0 || lessons[0] == nil {
		return nil, fmt.Errorf("Lesson not found")
	}
	lesson := lessons[0]

	if !s.canViewLesson(ctx, lesson, userID) {
		return nil, fmt.Errorf("Not enrolled in this program")
	}

	resources, err := s.resourceRepo.GetByLessonIDs(ctx, nil, []uuid.UUID{lessonID})
	if err != nil {
		return nil, fmt.Errorf("Failed to load resources: %w", err)
	}
	return resources, nil
}

func (s *resourceService) canViewLesson(ctx context.Context, lesson *types.Lesson, userID uuid.UUID) bool {
	enrollment, err := s.enrollmentRepo.GetByUserAndProgram(ctx, nil, userID, lesson.ProgramID)
	if err == nil && enrollment != nil && enrollment.Status != types.EnrollmentCanceled {
		return true
	}
	programs, err := s.programRepo.GetByIDs(ctx, nil, []uuid.UUID{lesson.ProgramID})
	if err != nil || len(programs) == 0 || programs[0] == nil {
		return false
	}
	_, err = requireCoach(ctx, nil, s.membershipRepo, programs[0].OrganizationID, userID)
	return err == nil
}

func (s *resourceService) DeleteResource(ctx context.Context, resourceID uuid.UUID) error {
	resources, err := s.resourceRepo.GetByIDs(ctx, nil, []uuid.UUID{resourceID})
	if err != nil || len(resources) == 0 || resources[0] == nil {
		return fmt.Errorf("Resource not found")
	}
	resource := resources[0]
	if _, _, err := s.requireCoachForLesson(ctx, resource.LessonID); err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if dErr := s.segmentRepo.FullDeleteByResourceIDs(ctx, tx, []uuid.UUID{resourceID}); dErr != nil {
			return fmt.Errorf("Failed to delete transcript: %w", dErr)
		}
		if dErr := s.resourceRepo.SoftDeleteByIDs(ctx, tx, []uuid.UUID{resourceID}); dErr != nil {
			return fmt.Errorf("Failed to delete resource: %w", dErr)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if resource.BucketKey != "" {
		if dErr := s.bucketService.DeleteFile(ctx, nil, resource.BucketKey); dErr != nil {
			s.log.Warn("Failed to delete resource object", "key", resource.BucketKey, "error", dErr)
		}
	}
	return nil
}

func (s *resourceService) GetTranscript(ctx context.Context, resourceID uuid.UUID) ([]*types.TranscriptSegment, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	resources, err := s.resourceRepo.GetByIDs(ctx, nil, []uuid.UUID{resourceID})
	if err != nil || len(resources) == 0 || resources[0] == nil {
		return nil, fmt.Errorf("Resource not found")
	}
	lessons, err := s.lessonRepo.GetByIDs(ctx, nil, []uuid.UUID{resources[0].LessonID})
	if err != nil || len(lessons) == 0 || lessons[0] == nil {
		return nil, fmt.Errorf("Lesson not found")
	}
	if !s.canViewLesson(ctx, lessons[0], userID) {
		return nil, fmt.Errorf("Not enrolled in this program")
	}

	segments, err := s.segmentRepo.GetByResourceID(ctx, nil, resourceID)
	if err != nil {
		return nil, fmt.Errorf("Failed to load transcript: %w", err)
	}
	return segments, nil
}
