package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/repos"
	"github.com/ghprograms/programs-backend/internal/types"
)

type CreateCheckinInput struct {
	PartnerName   string `json:"partner_name"`
	CheckinDate   string `json:"checkin_date"`
	Connection    int    `json:"connection"`
	Communication int    `json:"communication"`
	Notes         string `json:"notes"`
}

// RelationshipSummary covers the trailing thirty days.
type RelationshipSummary struct {
	AvgConnection    float64 `json:"avg_connection"`
	AvgCommunication float64 `json:"avg_communication"`
	CheckinCount     int     `json:"checkin_count"`
	LastCheckinDate  string  `json:"last_checkin_date,omitempty"`
	DaysSinceCheckin int     `json:"days_since_checkin"`
}

type RelationshipService interface {
	CreateCheckin(ctx context.Context, input CreateCheckinInput) (*types.RelationshipCheckin, error)
	UpdateCheckin(ctx context.Context, checkinID uuid.UUID, updates map[string]interface{}) (*types.RelationshipCheckin, error)
	DeleteCheckin(ctx context.Context, checkinID uuid.UUID) error
	ListCheckins(ctx context.Context, limit int) ([]*types.RelationshipCheckin, error)
	GetSummary(ctx context.Context) (*RelationshipSummary, error)
}

type relationshipService struct {
	db   *gorm.DB
	log  *logger.Logger
	repo repos.RelationshipCheckinRepo
}

func NewRelationshipService(db *gorm.DB, log *logger.Logger, repo repos.RelationshipCheckinRepo) RelationshipService {
	return &relationshipService{db: db, log: log.With("service", "RelationshipService"), repo: repo}
}

func (s *relationshipService) CreateCheckin(ctx context.Context, input CreateCheckinInput) (*types.RelationshipCheckin, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.PartnerName) == "" {
		return nil, fmt.Errorf("Missing partner name")
	}
	checkinDate := input.CheckinDate
	if checkinDate == "" {
		checkinDate = time.Now().UTC().Format(dateLayout)
	}
	if _, pErr := time.Parse(dateLayout, checkinDate); pErr != nil {
		return nil, fmt.Errorf("Invalid checkin date %q, want YYYY-MM-DD", checkinDate)
	}
	for name, v := range map[string]int{"connection": input.Connection, "communication": input.Communication} {
		if v < 1 || v > 5 {
			return nil, fmt.Errorf("Field %s must be between 1 and 5", name)
		}
	}
	row := &types.RelationshipCheckin{
		ID:            uuid.New(),
		UserID:        userID,
		PartnerName:   strings.TrimSpace(input.PartnerName),
		CheckinDate:   checkinDate,
		Connection:    input.Connection,
		Communication: input.Communication,
		Notes:         input.Notes,
	}
	if _, err := s.repo.Create(ctx, nil, []*types.RelationshipCheckin{row}); err != nil {
		return nil, fmt.Errorf("Failed to create checkin: %w", err)
	}
	return row, nil
}

var allowedCheckinUpdates = map[string]bool{
	"partner_name":  true,
	"checkin_date":  true,
	"connection":    true,
	"communication": true,
	"notes":         true,
}

func (s *relationshipService) UpdateCheckin(ctx context.Context, checkinID uuid.UUID, updates map[string]interface{}) (*types.RelationshipCheckin, error) {
	if _, err := s.loadOwnedCheckin(ctx, checkinID); err != nil {
		return nil, err
	}
	filtered := make(map[string]interface{}, len(updates))
	for k, v := range updates {
		if allowedCheckinUpdates[k] {
			filtered[k] = v
		}
	}
	if len(filtered) > 0 {
		if err := s.repo.UpdateFields(ctx, nil, checkinID, filtered); err != nil {
			return nil, fmt.Errorf("Failed to update checkin: %w", err)
		}
	}
	return s.loadOwnedCheckin(ctx, checkinID)
}

func (s *relationshipService) DeleteCheckin(ctx context.Context, checkinID uuid.UUID) error {
	if _, err := s.loadOwnedCheckin(ctx, checkinID); err != nil {
		return err
	}
	if err := s.repo.SoftDeleteByIDs(ctx, nil, []uuid.UUID{checkinID}); err != nil {
		return fmt.Errorf("Failed to delete checkin: %w", err)
	}
	return nil
}

func (s *relationshipService) ListCheckins(ctx context.Context, limit int) ([]*types.RelationshipCheckin, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.GetByUserID(ctx, nil, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("Failed to list checkins: %w", err)
	}
	return rows, nil
}

func (s *relationshipService) GetSummary(ctx context.Context) (*RelationshipSummary, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.GetByUserID(ctx, nil, userID, 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to list checkins: %w", err)
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	cutoff := today.AddDate(0, 0, -29).Format(dateLayout)

	summary := &RelationshipSummary{DaysSinceCheckin: -1}
	var connection, communication float64
	for _, c := range rows {
		if c == nil {
			continue
		}
		if c.CheckinDate > summary.LastCheckinDate {
			summary.LastCheckinDate = c.CheckinDate
		}
		if c.CheckinDate < cutoff {
			continue
		}
		summary.CheckinCount++
		connection += float64(c.Connection)
		communication += float64(c.Communication)
	}
	if summary.CheckinCount > 0 {
		n := float64(summary.CheckinCount)
		summary.AvgConnection = connection / n
		summary.AvgCommunication = communication / n
	}
	if summary.LastCheckinDate != "" {
		if last, pErr := time.Parse(dateLayout, summary.LastCheckinDate); pErr == nil {
			summary.DaysSinceCheckin = int(today.Sub(last).Hours() / 24)
		}
	}
	return summary, nil
}

func (s *relationshipService) loadOwnedCheckin(ctx context.Context, checkinID uuid.UUID) (*types.RelationshipCheckin, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	if checkinID == uuid.Nil {
		return nil, fmt.Errorf("Missing checkin id")
	}
	rows, err := s.repo.GetByIDs(ctx, nil, []uuid.UUID{checkinID})
	if err != nil {
		return nil, fmt.Errorf("Failed to load checkin: %w", err)
	}
	if len(rows) == 0 || rows[0] == nil || rows[0].UserID != userID {
		return nil, fmt.Errorf("Checkin not found")
	}
	return rows[0], nil
}
