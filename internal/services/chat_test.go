package services

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/repos"
	"github.com/ghprograms/programs-backend/internal/types"
)

// fakeJobService records enqueues without touching Temporal.
type fakeJobService struct {
	enqueued []*types.JobRun
}

func (f *fakeJobService) Enqueue(ctx context.Context, tx *gorm.DB, ownerUserID uuid.UUID, jobType string, entityType string, entityID *uuid.UUID, payload map[string]any) (*types.JobRun, error) {
	job := &types.JobRun{
		ID:          uuid.New(),
		OwnerUserID: ownerUserID,
		JobType:     jobType,
		EntityType:  entityType,
		EntityID:    entityID,
		Status:      types.JobQueued,
		Payload:     datatypes.JSON([]byte(`{}`)),
		Result:      datatypes.JSON([]byte(`{}`)),
	}
	f.enqueued = append(f.enqueued, job)
	return job, nil
}

func (f *fakeJobService) Dispatch(ctx context.Context, jobID uuid.UUID) error { return nil }
func (f *fakeJobService) GetByIDForRequestUser(ctx context.Context, jobID uuid.UUID) (*types.JobRun, error) {
	return nil, nil
}
func (f *fakeJobService) ResumeForRequestUser(ctx context.Context, jobID uuid.UUID) (*types.JobRun, error) {
	return nil, nil
}
func (f *fakeJobService) GetLatestForEntityForRequestUser(ctx context.Context, entityType string, entityID uuid.UUID, jobType string) (*types.JobRun, error) {
	return nil, nil
}
func (f *fakeJobService) CancelForRequestUser(ctx context.Context, jobID uuid.UUID) (*types.JobRun, error) {
	return nil, nil
}
func (f *fakeJobService) RestartForRequestUser(ctx context.Context, jobID uuid.UUID) (*types.JobRun, error) {
	return nil, nil
}

func newChatService(gdb *gorm.DB, jobs JobService) ChatService {
	log := logger.NewNop()
	return NewChatService(
		gdb,
		log,
		repos.NewChatThreadRepo(gdb, log),
		repos.NewChatMessageRepo(gdb, log),
		repos.NewEnrollmentRepo(gdb, log),
		jobs,
		nil,
	)
}

func TestSendMessagePersistsPairAndEnqueues(t *testing.T) {
	gdb := newTestDB(t)
	jobs := &fakeJobService{}
	svc := newChatService(gdb, jobs)
	fx := seedCatalog(t, gdb, 1)
	ctx := ctxForUser(fx.User.ID)

	thread, err := svc.CreateThread(ctx, CreateThreadInput{Title: "Help"})
	if err != nil {
		t.Fatalf("create thread: %v", err)
	}

	result, err := svc.SendMessage(ctx, SendMessageInput{ThreadID: thread.ID, Content: "How do I start?"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if result.UserMessage.Role != types.ChatRoleUser || result.UserMessage.Status != types.ChatStatusComplete {
		t.Fatalf("user message = %+v", result.UserMessage)
	}
	if result.AssistantMessage.Role != types.ChatRoleAssistant || result.AssistantMessage.Status != types.ChatStatusPending {
		t.Fatalf("assistant message = %+v", result.AssistantMessage)
	}
	if result.AssistantMessage.Seq != result.UserMessage.Seq+1 {
		t.Fatalf("seqs = %d, %d", result.UserMessage.Seq, result.AssistantMessage.Seq)
	}
	if len(jobs.enqueued) != 1 || jobs.enqueued[0].JobType != types.JobTypeChatRespond {
		t.Fatalf("enqueued = %v", jobs.enqueued)
	}
	if result.Job == nil {
		t.Fatal("result missing job")
	}
}

func TestSendMessageIdempotencyReplays(t *testing.T) {
	gdb := newTestDB(t)
	jobs := &fakeJobService{}
	svc := newChatService(gdb, jobs)
	fx := seedCatalog(t, gdb, 1)
	ctx := ctxForUser(fx.User.ID)

	thread, err := svc.CreateThread(ctx, CreateThreadInput{})
	if err != nil {
		t.Fatalf("create thread: %v", err)
	}

	first, err := svc.SendMessage(ctx, SendMessageInput{ThreadID: thread.ID, Content: "once", IdempotencyKey: "key-1"})
	if err != nil {
		t.Fatalf("first send: %v", err)
	}
	second, err := svc.SendMessage(ctx, SendMessageInput{ThreadID: thread.ID, Content: "once", IdempotencyKey: "key-1"})
	if err != nil {
		t.Fatalf("replay send: %v", err)
	}
	if second.UserMessage.ID != first.UserMessage.ID {
		t.Fatalf("replay created a new user message: %v vs %v", second.UserMessage.ID, first.UserMessage.ID)
	}
	if second.AssistantMessage == nil || second.AssistantMessage.ID != first.AssistantMessage.ID {
		t.Fatal("replay did not return the original assistant placeholder")
	}
	if len(jobs.enqueued) != 1 {
		t.Fatalf("replay enqueued again: %d jobs", len(jobs.enqueued))
	}

	var count int64
	gdb.Model(&types.ChatMessage{}).Where("thread_id = ?", thread.ID).Count(&count)
	if count != 2 {
		t.Fatalf("messages = %d, want 2", count)
	}
}

// injectSeqRace registers a create hook that slips a conflicting
// (thread_id, seq) row into the same transaction right before a chat
// message insert, so the unique index rejects the insert the way a
// concurrent sender would.
func injectSeqRace(t *testing.T, gdb *gorm.DB, every bool) *int {
	t.Helper()
	fired := 0
	err := gdb.Callback().Create().Before("gorm:create").Register("chat_seq_race", func(d *gorm.DB) {
		if d.Statement == nil || d.Statement.Table != "chat_message" {
			return
		}
		if !every && fired > 0 {
			return
		}
		msgs, ok := d.Statement.Dest.(*[]*types.ChatMessage)
		if !ok || len(*msgs) == 0 {
			return
		}
		fired++
		race := &types.ChatMessage{
			ID:       uuid.New(),
			ThreadID: (*msgs)[0].ThreadID,
			Seq:      (*msgs)[0].Seq,
			Role:     types.ChatRoleUser,
			Content:  "raced",
			Status:   types.ChatStatusComplete,
		}
		if cErr := d.Session(&gorm.Session{NewDB: true}).Create(race).Error; cErr != nil {
			d.AddError(cErr)
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}
	return &fired
}

func TestSendMessageRetriesSeqCollision(t *testing.T) {
	gdb := newTestDB(t)
	jobs := &fakeJobService{}
	svc := newChatService(gdb, jobs)
	fx := seedCatalog(t, gdb, 1)
	ctx := ctxForUser(fx.User.ID)

	thread, err := svc.CreateThread(ctx, CreateThreadInput{})
	if err != nil {
		t.Fatalf("create thread: %v", err)
	}
	fired := injectSeqRace(t, gdb, false)

	result, err := svc.SendMessage(ctx, SendMessageInput{ThreadID: thread.ID, Content: "hello"})
	if err != nil {
		t.Fatalf("send after collision: %v", err)
	}
	if *fired != 1 {
		t.Fatalf("race fired %d times, want 1", *fired)
	}
	if result.UserMessage.Seq != 1 || result.AssistantMessage.Seq != 2 {
		t.Fatalf("seqs = %d, %d, want 1, 2", result.UserMessage.Seq, result.AssistantMessage.Seq)
	}

	// The losing attempt rolled back whole, including the raced row.
	var count int64
	gdb.Model(&types.ChatMessage{}).Where("thread_id = ?", thread.ID).Count(&count)
	if count != 2 {
		t.Fatalf("messages = %d, want 2", count)
	}
	if len(jobs.enqueued) != 1 {
		t.Fatalf("enqueued = %d jobs, want 1", len(jobs.enqueued))
	}
}

func TestSendMessageGivesUpAfterRepeatedCollisions(t *testing.T) {
	gdb := newTestDB(t)
	svc := newChatService(gdb, &fakeJobService{})
	fx := seedCatalog(t, gdb, 1)
	ctx := ctxForUser(fx.User.ID)

	thread, err := svc.CreateThread(ctx, CreateThreadInput{})
	if err != nil {
		t.Fatalf("create thread: %v", err)
	}
	injectSeqRace(t, gdb, true)

	_, err = svc.SendMessage(ctx, SendMessageInput{ThreadID: thread.ID, Content: "hello"})
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if !strings.Contains(err.Error(), "busy") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestThreadOwnershipEnforced(t *testing.T) {
	gdb := newTestDB(t)
	svc := newChatService(gdb, nil)
	fx := seedCatalog(t, gdb, 1)

	thread, err := svc.CreateThread(ctxForUser(fx.User.ID), CreateThreadInput{})
	if err != nil {
		t.Fatalf("create thread: %v", err)
	}

	other := &types.User{ID: uuid.New(), Email: uuid.NewString() + "@example.com", Password: "x"}
	if err := gdb.Create(other).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if _, err := svc.GetThread(ctxForUser(other.ID), thread.ID, 10); err == nil {
		t.Fatal("expected ownership error")
	}
	if _, err := svc.SendMessage(ctxForUser(other.ID), SendMessageInput{ThreadID: thread.ID, Content: "hi"}); err == nil {
		t.Fatal("expected ownership error")
	}
}

func TestCreateThreadRequiresEnrollmentForProgramScope(t *testing.T) {
	gdb := newTestDB(t)
	svc := newChatService(gdb, nil)
	fx := seedCatalog(t, gdb, 1)

	stranger := &types.User{ID: uuid.New(), Email: uuid.NewString() + "@example.com", Password: "x"}
	if err := gdb.Create(stranger).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if _, err := svc.CreateThread(ctxForUser(stranger.ID), CreateThreadInput{ProgramID: &fx.Program.ID}); err == nil {
		t.Fatal("expected enrollment gate")
	}
	if _, err := svc.CreateThread(ctxForUser(fx.User.ID), CreateThreadInput{ProgramID: &fx.Program.ID}); err != nil {
		t.Fatalf("enrolled user should scope thread: %v", err)
	}
}
