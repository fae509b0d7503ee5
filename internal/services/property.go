package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/repos"
	"github.com/ghprograms/programs-backend/internal/types"
)

type CreatePropertyInput struct {
	Nickname             string `json:"nickname"`
	Address              string `json:"address"`
	PurchasePriceCents   int64  `json:"purchase_price_cents"`
	CurrentValueCents    int64  `json:"current_value_cents"`
	MortgageBalanceCents int64  `json:"mortgage_balance_cents"`
	Notes                string `json:"notes"`
}

// PropertyItem decorates a row with its derived equity.
type PropertyItem struct {
	Property    *types.Property `json:"property"`
	EquityCents int64           `json:"equity_cents"`
}

type PropertyPortfolioSummary struct {
	PropertyCount      int   `json:"property_count"`
	TotalValueCents    int64 `json:"total_value_cents"`
	TotalMortgageCents int64 `json:"total_mortgage_cents"`
	TotalEquityCents   int64 `json:"total_equity_cents"`
}

type PropertyService interface {
	CreateProperty(ctx context.Context, input CreatePropertyInput) (*types.Property, error)
	UpdateProperty(ctx context.Context, propertyID uuid.UUID, updates map[string]interface{}) (*types.Property, error)
	DeleteProperty(ctx context.Context, propertyID uuid.UUID) error
	ListProperties(ctx context.Context) ([]*PropertyItem, error)
	GetPortfolioSummary(ctx context.Context) (*PropertyPortfolioSummary, error)
}

type propertyService struct {
	db   *gorm.DB
	log  *logger.Logger
	repo repos.PropertyRepo
}

func NewPropertyService(db *gorm.DB, log *logger.Logger, repo repos.PropertyRepo) PropertyService {
	return &propertyService{db: db, log: log.With("service", "PropertyService"), repo: repo}
}

func (s *propertyService) CreateProperty(ctx context.Context, input CreatePropertyInput) (*types.Property, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Nickname) == "" {
		return nil, fmt.Errorf("Missing property nickname")
	}
	if input.PurchasePriceCents < 0 || input.CurrentValueCents < 0 || input.MortgageBalanceCents < 0 {
		return nil, fmt.Errorf("Amounts cannot be negative")
	}
	row := &types.Property{
		ID:                   uuid.New(),
		UserID:               userID,
		Nickname:             strings.TrimSpace(input.Nickname),
		Address:              input.Address,
		PurchasePriceCents:   input.PurchasePriceCents,
		CurrentValueCents:    input.CurrentValueCents,
		MortgageBalanceCents: input.MortgageBalanceCents,
		Notes:                input.Notes,
	}
	if _, err := s.repo.Create(ctx, nil, []*types.Property{row}); err != nil {
		return nil, fmt.Errorf("Failed to create property: %w", err)
	}
	return row, nil
}

var allowedPropertyUpdates = map[string]bool{
	"nickname":               true,
	"address":                true,
	"purchase_price_cents":   true,
	"current_value_cents":    true,
	"mortgage_balance_cents": true,
	"notes":                  true,
	"metadata":               true,
}

func (s *propertyService) UpdateProperty(ctx context.Context, propertyID uuid.UUID, updates map[string]interface{}) (*types.Property, error) {
	if _, err := s.loadOwnedProperty(ctx, propertyID); err != nil {
		return nil, err
	}
	filtered := make(map[string]interface{}, len(updates))
	for k, v := range updates {
		if allowedPropertyUpdates[k] {
			filtered[k] = v
		}
	}
	if len(filtered) > 0 {
		if err := s.repo.UpdateFields(ctx, nil, propertyID, filtered); err != nil {
			return nil, fmt.Errorf("Failed to update property: %w", err)
		}
	}
	return s.loadOwnedProperty(ctx, propertyID)
}

func (s *propertyService) DeleteProperty(ctx context.Context, propertyID uuid.UUID) error {
	if _, err := s.loadOwnedProperty(ctx, propertyID); err != nil {
		return err
	}
	if err := s.repo.SoftDeleteByIDs(ctx, nil, []uuid.UUID{propertyID}); err != nil {
		return fmt.Errorf("Failed to delete property: %w", err)
	}
	return nil
}

func (s *propertyService) ListProperties(ctx context.Context) ([]*PropertyItem, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("Failed to list properties: %w", err)
	}
	items := make([]*PropertyItem, 0, len(rows))
	for _, p := range rows {
		if p == nil {
			continue
		}
		items = append(items, &PropertyItem{Property: p, EquityCents: p.EquityCents()})
	}
	return items, nil
}

func (s *propertyService) GetPortfolioSummary(ctx context.Context) (*PropertyPortfolioSummary, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("Failed to list properties: %w", err)
	}
	summary := &PropertyPortfolioSummary{}
	for _, p := range rows {
		if p == nil {
			continue
		}
		summary.PropertyCount++
		summary.TotalValueCents += p.CurrentValueCents
		summary.TotalMortgageCents += p.MortgageBalanceCents
		summary.TotalEquityCents += p.EquityCents()
	}
	return summary, nil
}

func (s *propertyService) loadOwnedProperty(ctx context.Context, propertyID uuid.UUID) (*types.Property, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	if propertyID == uuid.Nil {
		return nil, fmt.Errorf("Missing property id")
	}
	rows, err := s.repo.GetByIDs(ctx, nil, []uuid.UUID{propertyID})
	if err != nil {
		return nil, fmt.Errorf("Failed to load property: %w", err)
	}
	if len(rows) == 0 || rows[0] == nil || rows[0].UserID != userID {
		return nil, fmt.Errorf("Property not found")
	}
	return rows[0], nil
}
