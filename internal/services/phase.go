package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/repos"
	"github.com/ghprograms/programs-backend/internal/types"
)

type CreatePhaseInput struct {
	ProgramID  uuid.UUID `json:"program_id"`
	Title      string    `json:"title"`
	Summary    string    `json:"summary"`
	DripKind   string    `json:"drip_kind"`
	DripConfig []byte    `json:"drip_config"`
}

type PhaseService interface {
	CreatePhase(ctx context.Context, input CreatePhaseInput) (*types.Phase, error)
	UpdatePhase(ctx context.Context, phaseID uuid.UUID, updates map[string]interface{}) (*types.Phase, error)
	DeletePhase(ctx context.Context, phaseID uuid.UUID) error
	ReorderPhases(ctx context.Context, programID uuid.UUID, orderedIDs []uuid.UUID) ([]*types.Phase, error)
}

type phaseService struct {
	db  *gorm.DB
	log *logger.Logger

	programRepo    repos.ProgramRepo
	phaseRepo      repos.PhaseRepo
	membershipRepo repos.OrgMembershipRepo
}

func NewPhaseService(
	db *gorm.DB,
	log *logger.Logger,
	programRepo repos.ProgramRepo,
	phaseRepo repos.PhaseRepo,
	membershipRepo repos.OrgMembershipRepo,
) PhaseService {
	return &phaseService{
		db:             db,
		log:            log.With("service", "PhaseService"),
		programRepo:    programRepo,
		phaseRepo:      phaseRepo,
		membershipRepo: membershipRepo,
	}
}

var dripKinds = map[string]bool{
	types.DripImmediate:         true,
	types.DripOnDate:            true,
	types.DripAfterEnrollment:   true,
	types.DripAfterPrerequisite: true,
	types.DripHybrid:            true,
}

func (s *phaseService) requireProgramCoach(ctx context.Context, tx *gorm.DB, programID uuid.UUID) (*types.Program, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.programRepo.GetByIDs(ctx, tx, []uuid.UUID{programID})
	if err != nil {
		return nil, fmt.Errorf("Failed to load program: %w", err)
	}
	if len(rows) == 0 || rows[0] == nil {
		return nil, fmt.Errorf("Program not found")
	}
	program := rows[0]
	if _, err := requireCoach(ctx, tx, s.membershipRepo, program.OrganizationID, userID); err != nil {
		return nil, err
	}
	return program, nil
}

func (s *phaseService) CreatePhase(ctx context.Context, input CreatePhaseInput) (*types.Phase, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, fmt.Errorf("Missing phase title")
	}
	kind := input.DripKind
	if kind == "" {
		kind = types.DripImmediate
	}
	if !dripKinds[kind] {
		return nil, fmt.Errorf("Unknown drip kind %q", kind)
	}
	if _, err := s.requireProgramCoach(ctx, nil, input.ProgramID); err != nil {
		return nil, err
	}

	var phase *types.Phase
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, gErr := s.phaseRepo.GetByProgramID(ctx, tx, input.ProgramID)
		if gErr != nil {
			return fmt.Errorf("Failed to load phases: %w", gErr)
		}
		phase = &types.Phase{
			ID:        uuid.New(),
			ProgramID: input.ProgramID,
			Position:  len(existing) + 1,
			Title:     strings.TrimSpace(input.Title),
			Summary:   input.Summary,
			DripKind:  kind,
		}
		if len(input.DripConfig) > 0 {
			phase.DripConfig = input.DripConfig
		}
		if _, cErr := s.phaseRepo.Create(ctx, tx, []*types.Phase{phase}); cErr != nil {
			return fmt.Errorf("Failed to create phase: %w", cErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return phase, nil
}

var allowedPhaseUpdates = map[string]bool{
	"title":       true,
	"summary":     true,
	"drip_kind":   true,
	"drip_config": true,
}

func (s *phaseService) UpdatePhase(ctx context.Context, phaseID uuid.UUID, updates map[string]interface{}) (*types.Phase, error) {
	phase, err := s.loadPhase(ctx, nil, phaseID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireProgramCoach(ctx, nil, phase.ProgramID); err != nil {
		return nil, err
	}
	if kind, ok := updates["drip_kind"].(string); ok && !dripKinds[kind] {
		return nil, fmt.Errorf("Unknown drip kind %q", kind)
	}

	filtered := make(map[string]interface{}, len(updates))
	for k, v := range updates {
		if allowedPhaseUpdates[k] {
			filtered[k] = v
		}
	}
	if len(filtered) == 0 {
		return phase, nil
	}
	if err := s.phaseRepo.UpdateFields(ctx, nil, phaseID, filtered); err != nil {
		return nil, fmt.Errorf("Failed to update phase: %w", err)
	}
	return s.loadPhase(ctx, nil, phaseID)
}

// DeletePhase removes the phase and closes the position gap it leaves.
func (s *phaseService) DeletePhase(ctx context.Context, phaseID uuid.UUID) error {
	phase, err := s.loadPhase(ctx, nil, phaseID)
	if err != nil {
		return err
	}
	if _, err := s.requireProgramCoach(ctx, nil, phase.ProgramID); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if dErr := s.phaseRepo.SoftDeleteByIDs(ctx, tx, []uuid.UUID{phaseID}); dErr != nil {
			return fmt.Errorf("Failed to delete phase: %w", dErr)
		}
		remaining, gErr := s.phaseRepo.GetByProgramID(ctx, tx, phase.ProgramID)
		if gErr != nil {
			return fmt.Errorf("Failed to load phases: %w", gErr)
		}
		return compactPhasePositions(ctx, tx, s.phaseRepo, remaining)
	})
}

func (s *phaseService) ReorderPhases(ctx context.Context, programID uuid.UUID, orderedIDs []uuid.UUID) ([]*types.Phase, error) {
	if _, err := s.requireProgramCoach(ctx, nil, programID); err != nil {
		return nil, err
	}

	var out []*types.Phase
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		phases, gErr := s.phaseRepo.GetByProgramID(ctx, tx, programID)
		if gErr != nil {
			return fmt.Errorf("Failed to load phases: %w", gErr)
		}
		byID := make(map[uuid.UUID]*types.Phase, len(phases))
		for _, p := range phases {
			if p != nil {
				byID[p.ID] = p
			}
		}
		if len(orderedIDs) != len(byID) {
			return fmt.Errorf("Reorder must list every phase exactly once")
		}
		seen := make(map[uuid.UUID]bool, len(orderedIDs))
		for pos, id := range orderedIDs {
			phase, ok := byID[id]
			if !ok || seen[id] {
				return fmt.Errorf("Reorder must list every phase exactly once")
			}
			seen[id] = true
			target := pos + 1
			if phase.Position != target {
				if uErr := s.phaseRepo.UpdateFields(ctx, tx, id, map[string]interface{}{"position": target}); uErr != nil {
					return fmt.Errorf("Failed to reorder phase: %w", uErr)
				}
				phase.Position = target
			}
			out = append(out, phase)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *phaseService) loadPhase(ctx context.Context, tx *gorm.DB, phaseID uuid.UUID) (*types.Phase, error) {
	if phaseID == uuid.Nil {
		return nil, fmt.Errorf("Missing phase id")
	}
	rows, err := s.phaseRepo.GetByIDs(ctx, tx, []uuid.UUID{phaseID})
	if err != nil {
		return nil, fmt.Errorf("Failed to load phase: %w", err)
	}
	if len(rows) == 0 || rows[0] == nil {
		return nil, fmt.Errorf("Phase not found")
	}
	return rows[0], nil
}

func compactPhasePositions(ctx context.Context, tx *gorm.DB, repo repos.PhaseRepo, phases []*types.Phase) error {
	sort.Slice(phases, func(i, j int) bool { return phases[i].Position < phases[j].Position })
	for i, p := range phases {
		if p == nil {
			continue
		}
		target := i + 1
		if p.Position != target {
			if err := repo.UpdateFields(ctx, tx, p.ID, map[string]interface{}{"position": target}); err != nil {
				return fmt.Errorf("Failed to compact phase positions: %w", err)
			}
		}
	}
	return nil
}
