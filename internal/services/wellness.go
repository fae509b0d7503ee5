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

const dateLayout = "2006-01-02"

type UpsertWellnessEntryInput struct {
	EntryDate  string  `json:"entry_date"`
	Mood       int     `json:"mood"`
	Energy     int     `json:"energy"`
	Stress     int     `json:"stress"`
	SleepHours float64 `json:"sleep_hours"`
	Gratitude  string  `json:"gratitude"`
	Notes      string  `json:"notes"`
}

// WellnessSummary covers the trailing seven days plus the current streak
// of consecutive daily entries.
type WellnessSummary struct {
	AvgMood       float64 `json:"avg_mood"`
	AvgEnergy     float64 `json:"avg_energy"`
	AvgStress     float64 `json:"avg_stress"`
	AvgSleepHours float64 `json:"avg_sleep_hours"`
	EntryCount    int     `json:"entry_count"`
	StreakDays    int     `json:"streak_days"`
}

type WellnessService interface {
	UpsertEntry(ctx context.Context, input UpsertWellnessEntryInput) (*types.WellnessEntry, error)
	ListEntries(ctx context.Context, limit int) ([]*types.WellnessEntry, error)
	DeleteEntry(ctx context.Context, entryID uuid.UUID) error
	GetSummary(ctx context.Context) (*WellnessSummary, error)
}

type wellnessService struct {
	db   *gorm.DB
	log  *logger.Logger
	repo repos.WellnessEntryRepo
}

func NewWellnessService(db *gorm.DB, log *logger.Logger, repo repos.WellnessEntryRepo) WellnessService {
	return &wellnessService{db: db, log: log.With("service", "WellnessService"), repo: repo}
}

func (s *wellnessService) UpsertEntry(ctx context.Context, input UpsertWellnessEntryInput) (*types.WellnessEntry, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	entryDate := input.EntryDate
	if entryDate == "" {
		entryDate = time.Now().UTC().Format(dateLayout)
	}
	if _, pErr := time.Parse(dateLayout, entryDate); pErr != nil {
		return nil, fmt.Errorf("Invalid entry date %q, want YYYY-MM-DD", entryDate)
	}
	for name, v := range map[string]int{"mood": input.Mood, "energy": input.Energy, "stress": input.Stress} {
		if v < 1 || v > 5 {
			return nil, fmt.Errorf("Field %s must be between 1 and 5", name)
		}
	}
	if input.SleepHours < 0 || input.SleepHours > 24 {
		return nil, fmt.Errorf("Sleep hours must be between 0 and 24")
	}

	row := &types.WellnessEntry{
		ID:         uuid.New(),
		UserID:     userID,
		EntryDate:  entryDate,
		Mood:       input.Mood,
		Energy:     input.Energy,
		Stress:     input.Stress,
		SleepHours: input.SleepHours,
		Gratitude:  input.Gratitude,
		Notes:      input.Notes,
	}
	if err := s.repo.Upsert(ctx, nil, row); err != nil {
		return nil, fmt.Errorf("Failed to save wellness entry: %w", err)
	}
	return row, nil
}

func (s *wellnessService) ListEntries(ctx context.Context, limit int) ([]*types.WellnessEntry, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.GetByUserID(ctx, nil, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("Failed to list wellness entries: %w", err)
	}
	return entries, nil
}

func (s *wellnessService) DeleteEntry(ctx context.Context, entryID uuid.UUID) error {
	userID, err := requestUserID(ctx)
	if err != nil {
		return err
	}
	rows, err := s.repo.GetByIDs(ctx, nil, []uuid.UUID{entryID})
	if err != nil {
		return fmt.Errorf("Failed to load wellness entry: %w", err)
	}
	if len(rows) == 0 || rows[0] == nil || rows[0].UserID != userID {
		return fmt.Errorf("Wellness entry not found")
	}
	if err := s.repo.SoftDeleteByIDs(ctx, nil, []uuid.UUID{entryID}); err != nil {
		return fmt.Errorf("Failed to delete wellness entry: %w", err)
	}
	return nil
}

func (s *wellnessService) GetSummary(ctx context.Context) (*WellnessSummary, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	from := today.AddDate(0, 0, -6).Format(dateLayout)
	to := today.Format(dateLayout)

	window, err := s.repo.GetByUserAndDateRange(ctx, nil, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("Failed to load wellness entries: %w", err)
	}

	summary := &WellnessSummary{EntryCount: len(window)}
	if len(window) > 0 {
		var mood, energy, stress, sleep float64
		for _, e := range window {
			mood += float64(e.Mood)
			energy += float64(e.Energy)
			stress += float64(e.Stress)
			sleep += e.SleepHours
		}
		n := float64(len(window))
		summary.AvgMood = mood / n
		summary.AvgEnergy = energy / n
		summary.AvgStress = stress / n
		summary.AvgSleepHours = sleep / n
	}

	streak, err := s.currentStreak(ctx, userID, today)
	if err != nil {
		return nil, err
	}
	summary.StreakDays = streak
	return summary, nil
}

// currentStreak counts consecutive daily entries ending today, or ending
// yesterday when today has no entry yet.
func (s *wellnessService) currentStreak(ctx context.Context, userID uuid.UUID, today time.Time) (int, error) {
	entries, err := s.repo.GetByUserID(ctx, nil, userID, 730)
	if err != nil {
		return 0, fmt.Errorf("Failed to load wellness entries: %w", err)
	}
	byDate := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e != nil {
			byDate[e.EntryDate] = true
		}
	}
	cursor := today
	if !byDate[cursor.Format(dateLayout)] {
		cursor = cursor.AddDate(0, 0, -1)
	}
	streak := 0
	for byDate[cursor.Format(dateLayout)] {
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return streak, nil
}
