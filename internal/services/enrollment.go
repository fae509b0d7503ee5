package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/repos"
	"github.com/ghprograms/programs-backend/internal/types"
)

// EnrollmentItem pairs an enrollment with its program summary for the
// "my programs" screen.
type EnrollmentItem struct {
	Enrollment *types.Enrollment `json:"enrollment"`
	Program    *types.Program    `json:"program"`
}

type EnrollmentService interface {
	Enroll(ctx context.Context, programID uuid.UUID) (*types.Enrollment, error)
	EnrollMember(ctx context.Context, userID, programID uuid.UUID) (*types.Enrollment, error)
	ListMyEnrollments(ctx context.Context) ([]*EnrollmentItem, error)
	Pause(ctx context.Context, enrollmentID uuid.UUID) (*types.Enrollment, error)
	Resume(ctx context.Context, enrollmentID uuid.UUID) (*types.Enrollment, error)
	Cancel(ctx context.Context, enrollmentID uuid.UUID) (*types.Enrollment, error)
}

type enrollmentService struct {
	db  *gorm.DB
	log *logger.Logger

	enrollmentRepo repos.EnrollmentRepo
	programRepo    repos.ProgramRepo
	membershipRepo repos.OrgMembershipRepo
	userEventRepo  repos.UserEventRepo

	notifier EnrollmentNotifier
}

func NewEnrollmentService(
	db *gorm.DB,
	log *logger.Logger,
	enrollmentRepo repos.EnrollmentRepo,
	programRepo repos.ProgramRepo,
	membershipRepo repos.OrgMembershipRepo,
	userEventRepo repos.UserEventRepo,
	notifier EnrollmentNotifier,
) EnrollmentService {
	return &enrollmentService{
		db:             db,
		log:            log.With("service", "EnrollmentService"),
		enrollmentRepo: enrollmentRepo,
		programRepo:    programRepo,
		membershipRepo: membershipRepo,
		userEventRepo:  userEventRepo,
		notifier:       notifier,
	}
}

func (s *enrollmentService) Enroll(ctx context.Context, programID uuid.UUID) (*types.Enrollment, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	return s.enroll(ctx, userID, programID, false)
}

func (s *enrollmentService) EnrollMember(ctx context.Context, userID, programID uuid.UUID) (*types.Enrollment, error) {
	actorID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	if userID == uuid.Nil {
		return nil, fmt.Errorf("Missing user id")
	}
	programs, err := s.programRepo.GetByIDs(ctx, nil, []uuid.UUID{programID})
	if err != nil || len(programs) == 0 || programs[0] == nil {
		return nil, fmt.Errorf("Program not found")
	}
	program := programs[0]

	actorMembership, err := s.membershipRepo.GetByOrgAndUser(ctx, nil, program.OrganizationID, actorID)
	if err != nil {
		return nil, fmt.Errorf("Failed to load membership: %w", err)
	}
	if actorMembership == nil || (actorMembership.Role != types.OrgRoleCoach && actorMembership.Role != types.OrgRoleOwner) {
		return nil, fmt.Errorf("Only coaches and owners can enroll members")
	}
	targetMembership, err := s.membershipRepo.GetByOrgAndUser(ctx, nil, program.OrganizationID, userID)
	if err != nil {
		return nil, fmt.Errorf("Failed to load membership: %w", err)
	}
	if targetMembership == nil {
		return nil, fmt.Errorf("User is not a member of this organization")
	}
	return s.enroll(ctx, userID, programID, true)
}

// enroll is idempotent. Re-enrolling while active/paused/completed
// returns the existing row; re-enrolling a canceled enrollment
// reactivates it with its progress intact.
func (s *enrollmentService) enroll(ctx context.Context, userID, programID uuid.UUID, byCoach bool) (*types.Enrollment, error) {
	programs, err := s.programRepo.GetByIDs(ctx, nil, []uuid.UUID{programID})
	if err != nil {
		return nil, fmt.Errorf("Failed to load program: %w", err)
	}
	if len(programs) == 0 || programs[0] == nil {
		return nil, fmt.Errorf("Program not found")
	}
	program := programs[0]
	if !program.Published {
		return nil, fmt.Errorf("Program is not published")
	}
	if !byCoach {
		membership, mErr := s.membershipRepo.GetByOrgAndUser(ctx, nil, program.OrganizationID, userID)
		if mErr != nil {
			return nil, fmt.Errorf("Failed to load membership: %w", mErr)
		}
		if membership == nil {
			return nil, fmt.Errorf("Not a member of this program's organization")
		}
	}

	var enrollment *types.Enrollment
	created := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, gErr := s.enrollmentRepo.GetByUserAndProgram(ctx, tx, userID, programID)
		if gErr != nil {
			return fmt.Errorf("Failed to load enrollment: %w", gErr)
		}
		now := time.Now().UTC()
		if existing != nil {
			enrollment = existing
			if existing.Status != types.EnrollmentCanceled {
				return nil
			}
			if uErr := s.enrollmentRepo.UpdateFields(ctx, tx, existing.ID, map[string]interface{}{
				"status":      types.EnrollmentActive,
				"canceled_at": nil,
			}); uErr != nil {
				return fmt.Errorf("Failed to reactivate enrollment: %w", uErr)
			}
			existing.Status = types.EnrollmentActive
			existing.CanceledAt = nil
			created = true
			return nil
		}
		enrollment = &types.Enrollment{
			ID:        uuid.New(),
			UserID:    userID,
			ProgramID: programID,
			Status:    types.EnrollmentActive,
			StartedAt: now,
		}
		if _, cErr := s.enrollmentRepo.Create(ctx, tx, []*types.Enrollment{enrollment}); cErr != nil {
			if repos.IsUniqueViolation(cErr) {
				// Raced with an identical enroll; return the winner.
				winner, wErr := s.enrollmentRepo.GetByUserAndProgram(ctx, tx, userID, programID)
				if wErr == nil && winner != nil {
					enrollment = winner
					return nil
				}
			}
			return fmt.Errorf("Failed to create enrollment: %w", cErr)
		}
		created = true
		event := &types.UserEvent{
			ID:        uuid.New(),
			UserID:    userID,
			ProgramID: &programID,
			Type:      types.EventEnrollmentCreated,
		}
		if _, eErr := s.userEventRepo.Create(ctx, tx, []*types.UserEvent{event}); eErr != nil {
			s.log.Warn("Failed to append enrollment event", "error", eErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if created && s.notifier != nil {
		s.notifier.EnrollmentCreated(userID, enrollment)
	}
	return enrollment, nil
}

func (s *enrollmentService) ListMyEnrollments(ctx context.Context) ([]*EnrollmentItem, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.enrollmentRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("Failed to load enrollments: %w", err)
	}
	if len(enrollments) == 0 {
		return []*EnrollmentItem{}, nil
	}
	programIDs := make([]uuid.UUID, 0, len(enrollments))
	for _, e := range enrollments {
		if e != nil {
			programIDs = append(programIDs, e.ProgramID)
		}
	}
	programs, err := s.programRepo.GetByIDs(ctx, nil, programIDs)
	if err != nil {
		return nil, fmt.Errorf("Failed to load programs: %w", err)
	}
	byID := make(map[uuid.UUID]*types.Program, len(programs))
	for _, p := range programs {
		if p != nil {
			byID[p.ID] = p
		}
	}
	items := make([]*EnrollmentItem, 0, len(enrollments))
	for _, e := range enrollments {
		if e == nil {
			continue
		}
		items = append(items, &EnrollmentItem{Enrollment: e, Program: byID[e.ProgramID]})
	}
	return items, nil
}

func (s *enrollmentService) Pause(ctx context.Context, enrollmentID uuid.UUID) (*types.Enrollment, error) {
	return s.transition(ctx, enrollmentID, types.EnrollmentPaused)
}

func (s *enrollmentService) Resume(ctx context.Context, enrollmentID uuid.UUID) (*types.Enrollment, error) {
	return s.transition(ctx, enrollmentID, types.EnrollmentActive)
}

func (s *enrollmentService) Cancel(ctx context.Context, enrollmentID uuid.UUID) (*types.Enrollment, error) {
	return s.transition(ctx, enrollmentID, types.EnrollmentCanceled)
}

func (s *enrollmentService) transition(ctx context.Context, enrollmentID uuid.UUID, target string) (*types.Enrollment, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	if enrollmentID == uuid.Nil {
		return nil, fmt.Errorf("Missing enrollment id")
	}

	var enrollment *types.Enrollment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, gErr := s.enrollmentRepo.GetByIDs(ctx, tx, []uuid.UUID{enrollmentID})
		if gErr != nil {
			return fmt.Errorf("Failed to load enrollment: %w", gErr)
		}
		if len(rows) == 0 || rows[0] == nil || rows[0].UserID != userID {
			return fmt.Errorf("Enrollment not found")
		}
		enrollment = rows[0]
		if enrollment.Status == target {
			return nil
		}
		// Completion is system-driven from the lesson roll-up; the only
		// way out of completed is cancel.
		if enrollment.Status == types.EnrollmentCompleted && target != types.EnrollmentCanceled {
			return fmt.Errorf("Enrollment already completed")
		}

		now := time.Now().UTC()
		updates := map[string]interface{}{"status": target}
		switch target {
		case types.EnrollmentPaused:
			if enrollment.Status != types.EnrollmentActive {
				return fmt.Errorf("Only active enrollments can be paused")
			}
			updates["paused_at"] = now
			enrollment.PausedAt = &now
		case types.EnrollmentActive:
			if enrollment.Status != types.EnrollmentPaused {
				return fmt.Errorf("Only paused enrollments can be resumed")
			}
			updates["paused_at"] = nil
			enrollment.PausedAt = nil
		case types.EnrollmentCanceled:
			updates["canceled_at"] = now
			enrollment.CanceledAt = &now
		default:
			return fmt.Errorf("Unsupported enrollment transition")
		}
		if uErr := s.enrollmentRepo.UpdateFields(ctx, tx, enrollmentID, updates); uErr != nil {
			return fmt.Errorf("Failed to update enrollment: %w", uErr)
		}
		enrollment.Status = target

		eventType := ""
		switch target {
		case types.EnrollmentPaused:
			eventType = types.EventEnrollmentPaused
		case types.EnrollmentActive:
			eventType = types.EventEnrollmentResumed
		case types.EnrollmentCanceled:
			eventType = types.EventEnrollmentCanceled
		}
		if eventType != "" {
			event := &types.UserEvent{
				ID:        uuid.New(),
				UserID:    userID,
				ProgramID: &enrollment.ProgramID,
				Type:      eventType,
			}
			if _, eErr := s.userEventRepo.Create(ctx, tx, []*types.UserEvent{event}); eErr != nil {
				s.log.Warn("Failed to append enrollment event", "type", eventType, "error", eErr)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.EnrollmentUpdated(userID, enrollment)
	}
	return enrollment, nil
}
