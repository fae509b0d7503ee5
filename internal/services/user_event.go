package services

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/repos"
	"github.com/ghprograms/programs-backend/internal/types"
)

// UserEventService is the read side of the append-only activity log. The
// progress and enrollment services write events inline with their own
// transactions.
type UserEventService interface {
	ListMyEvents(ctx context.Context, eventTypes []string, limit int) ([]*types.UserEvent, error)
}

type userEventService struct {
	db   *gorm.DB
	log  *logger.Logger
	repo repos.UserEventRepo
}

func NewUserEventService(db *gorm.DB, log *logger.Logger, repo repos.UserEventRepo) UserEventService {
	return &userEventService{
		db:   db,
		log:  log.With("service", "UserEventService"),
		repo: repo,
	}
}

func (s *userEventService) ListMyEvents(ctx context.Context, eventTypes []string, limit int) ([]*types.UserEvent, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	cleaned := make([]string, 0, len(eventTypes))
	for _, t := range eventTypes {
		if t = strings.TrimSpace(strings.ToLower(t)); t != "" {
			cleaned = append(cleaned, t)
		}
	}

	var rows []*types.UserEvent
	if len(cleaned) > 0 {
		rows, err = s.repo.GetByUserAndTypes(ctx, nil, userID, cleaned, limit)
	} else {
		rows, err = s.repo.GetByUserID(ctx, nil, userID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("Failed to list events: %w", err)
	}
	return rows, nil
}
