package services

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/repos"
	"github.com/ghprograms/programs-backend/internal/types"
)

func newWellnessFixture(t *testing.T) (WellnessService, *types.User) {
	t.Helper()
	gdb := newTestDB(t)
	log := logger.NewNop()
	svc := NewWellnessService(gdb, log, repos.NewWellnessEntryRepo(gdb, log))
	user := &types.User{ID: uuid.New(), Email: uuid.NewString() + "@example.com", Password: "x"}
	if err := gdb.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return svc, user
}

func TestUpsertWellnessEntrySameDayUpdates(t *testing.T) {
	svc, user := newWellnessFixture(t)
	ctx := ctxForUser(user.ID)
	day := time.Now().UTC().Format("2006-01-02")

	first, err := svc.UpsertEntry(ctx, UpsertWellnessEntryInput{EntryDate: day, Mood: 3, Energy: 2, Stress: 4, SleepHours: 6})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second, err := svc.UpsertEntry(ctx, UpsertWellnessEntryInput{EntryDate: day, Mood: 4, Energy: 3, Stress: 3, SleepHours: 7.5})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("same day created a second row: %v vs %v", second.ID, first.ID)
	}
	if second.Mood != 4 || second.SleepHours != 7.5 {
		t.Fatalf("update did not stick: %+v", second)
	}

	entries, err := svc.ListEntries(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
}

func TestWellnessEntryValidation(t *testing.T) {
	svc, user := newWellnessFixture(t)
	ctx := ctxForUser(user.ID)

	cases := []struct {
		name  string
		input UpsertWellnessEntryInput
	}{
		{name: "bad date", input: UpsertWellnessEntryInput{EntryDate: "2026/01/01", Mood: 3}},
		{name: "mood out of range", input: UpsertWellnessEntryInput{EntryDate: "2026-01-01", Mood: 9}},
		{name: "negative sleep", input: UpsertWellnessEntryInput{EntryDate: "2026-01-01", Mood: 3, SleepHours: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.UpsertEntry(ctx, tc.input); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestWellnessSummaryStreak(t *testing.T) {
	svc, user := newWellnessFixture(t)
	ctx := ctxForUser(user.ID)
	today := time.Now().UTC()

	// Three consecutive days ending today, plus an old gap entry.
	for _, offset := range []int{0, 1, 2, 10} {
		day := today.AddDate(0, 0, -offset).Format("2006-01-02")
		if _, err := svc.UpsertEntry(ctx, UpsertWellnessEntryInput{EntryDate: day, Mood: 4, Energy: 3, Stress: 2, SleepHours: 8}); err != nil {
			t.Fatalf("upsert %s: %v", day, err)
		}
	}

	summary, err := svc.GetSummary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.StreakDays != 3 {
		t.Fatalf("streak = %d, want 3", summary.StreakDays)
	}
	if summary.EntryCount != 3 {
		t.Fatalf("trailing-week entries = %d, want 3", summary.EntryCount)
	}
	if summary.AvgMood != 4 {
		t.Fatalf("avg mood = %v", summary.AvgMood)
	}
}
