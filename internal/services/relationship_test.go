package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/repos"
)

func newRelationshipService(gdb *gorm.DB) RelationshipService {
	log := logger.NewNop()
	return NewRelationshipService(gdb, log, repos.NewRelationshipCheckinRepo(gdb, log))
}

func TestRelationshipSummaryThirtyDayWindow(t *testing.T) {
	gdb := newTestDB(t)
	svc := newRelationshipService(gdb)
	userID := uuid.New()
	ctx := ctxForUser(userID)

	today := time.Now().UTC().Truncate(24 * time.Hour)
	for _, c := range []struct {
		daysAgo       int
		connection    int
		communication int
	}{
		{0, 5, 4},
		{10, 3, 2},
		{40, 1, 1}, // outside the window, must not move the averages
	} {
		_, err := svc.CreateCheckin(ctx, CreateCheckinInput{
			PartnerName:   "Sam",
			CheckinDate:   today.AddDate(0, 0, -c.daysAgo).Format(dateLayout),
			Connection:    c.connection,
			Communication: c.communication,
		})
		if err != nil {
			t.Fatalf("CreateCheckin (-%dd): %v", c.daysAgo, err)
		}
	}

	summary, err := svc.GetSummary(ctx)
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if summary.CheckinCount != 2 {
		t.Fatalf("count = %d, want 2", summary.CheckinCount)
	}
	if summary.AvgConnection != 4 {
		t.Fatalf("avg connection = %v, want 4", summary.AvgConnection)
	}
	if summary.AvgCommunication != 3 {
		t.Fatalf("avg communication = %v, want 3", summary.AvgCommunication)
	}
	if summary.LastCheckinDate != today.Format(dateLayout) {
		t.Fatalf("last checkin = %q, want %q", summary.LastCheckinDate, today.Format(dateLayout))
	}
	if summary.DaysSinceCheckin != 0 {
		t.Fatalf("days since checkin = %d, want 0", summary.DaysSinceCheckin)
	}
}

func TestRelationshipSummaryNoCheckins(t *testing.T) {
	gdb := newTestDB(t)
	svc := newRelationshipService(gdb)

	summary, err := svc.GetSummary(ctxForUser(uuid.New()))
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if summary.CheckinCount != 0 || summary.AvgConnection != 0 {
		t.Fatalf("expected empty summary, got %+v", summary)
	}
	if summary.DaysSinceCheckin != -1 {
		t.Fatalf("days since checkin = %d, want -1", summary.DaysSinceCheckin)
	}
}
