package services

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/repos"
)

func newPropertyService(gdb *gorm.DB) PropertyService {
	log := logger.NewNop()
	return NewPropertyService(gdb, log, repos.NewPropertyRepo(gdb, log))
}

func TestPortfolioSummaryDerivedTotals(t *testing.T) {
	gdb := newTestDB(t)
	svc := newPropertyService(gdb)
	userID := uuid.New()
	ctx := ctxForUser(userID)

	for _, in := range []CreatePropertyInput{
		{Nickname: "Duplex", PurchasePriceCents: 30_000_000, CurrentValueCents: 40_000_000, MortgageBalanceCents: 25_000_000},
		{Nickname: "Condo", PurchasePriceCents: 15_000_000, CurrentValueCents: 18_000_000, MortgageBalanceCents: 20_000_000},
	} {
		if _, err := svc.CreateProperty(ctx, in); err != nil {
			t.Fatalf("CreateProperty %q: %v", in.Nickname, err)
		}
	}
	// Another user's property must not leak into the summary.
	if _, err := svc.CreateProperty(ctxForUser(uuid.New()), CreatePropertyInput{
		Nickname: "Other", CurrentValueCents: 99_000_000,
	}); err != nil {
		t.Fatalf("CreateProperty other user: %v", err)
	}

	summary, err := svc.GetPortfolioSummary(ctx)
	if err != nil {
		t.Fatalf("GetPortfolioSummary: %v", err)
	}
	if summary.PropertyCount != 2 {
		t.Fatalf("count = %d, want 2", summary.PropertyCount)
	}
	if summary.TotalValueCents != 58_000_000 {
		t.Fatalf("total value = %d, want 58000000", summary.TotalValueCents)
	}
	if summary.TotalMortgageCents != 45_000_000 {
		t.Fatalf("total mortgage = %d, want 45000000", summary.TotalMortgageCents)
	}
	// The condo is underwater, so its negative equity offsets the duplex.
	if summary.TotalEquityCents != 13_000_000 {
		t.Fatalf("total equity = %d, want 13000000", summary.TotalEquityCents)
	}
}

func TestPortfolioSummaryEmpty(t *testing.T) {
	gdb := newTestDB(t)
	svc := newPropertyService(gdb)

	summary, err := svc.GetPortfolioSummary(ctxForUser(uuid.New()))
	if err != nil {
		t.Fatalf("GetPortfolioSummary: %v", err)
	}
	if summary.PropertyCount != 0 || summary.TotalValueCents != 0 || summary.TotalEquityCents != 0 {
		t.Fatalf("expected zero summary, got %+v", summary)
	}
}
