package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/repos"
	"github.com/ghprograms/programs-backend/internal/types"
)

type CreateThreadInput struct {
	ProgramID *uuid.UUID `json:"program_id,omitempty"`
	Title     string     `json:"title"`
}

type SendMessageInput struct {
	ThreadID       uuid.UUID `json:"thread_id"`
	Content        string    `json:"content"`
	IdempotencyKey string    `json:"-"`
}

// SendMessageResult bundles the persisted user message, the pending
// assistant placeholder, and the job that will fill it.
type SendMessageResult struct {
	UserMessage      *types.ChatMessage `json:"user_message"`
	AssistantMessage *types.ChatMessage `json:"assistant_message"`
	Job              *types.JobRun      `json:"job,omitempty"`
}

type ThreadDetail struct {
	Thread   *types.ChatThread    `json:"thread"`
	Messages []*types.ChatMessage `json:"messages"`
}

type ChatService interface {
	CreateThread(ctx context.Context, input CreateThreadInput) (*types.ChatThread, error)
	ListThreads(ctx context.Context) ([]*types.ChatThread, error)
	GetThread(ctx context.Context, threadID uuid.UUID, limit int) (*ThreadDetail, error)
	DeleteThread(ctx context.Context, threadID uuid.UUID) error

	// SendMessage persists the user message plus a pending assistant
	// placeholder in one transaction and enqueues a chat_respond job.
	SendMessage(ctx context.Context, input SendMessageInput) (*SendMessageResult, error)
}

type chatService struct {
	db  *gorm.DB
	log *logger.Logger

	threadRepo     repos.ChatThreadRepo
	messageRepo    repos.ChatMessageRepo
	enrollmentRepo repos.EnrollmentRepo
	jobService     JobService
	notifier       ChatNotifier
}

func NewChatService(
	db *gorm.DB,
	log *logger.Logger,
	threadRepo repos.ChatThreadRepo,
	messageRepo repos.ChatMessageRepo,
	enrollmentRepo repos.EnrollmentRepo,
	jobService JobService,
	notifier ChatNotifier,
) ChatService {
	return &chatService{
		db:             db,
		log:            log.With("service", "ChatService"),
		threadRepo:     threadRepo,
		messageRepo:    messageRepo,
		enrollmentRepo: enrollmentRepo,
		jobService:     jobService,
		notifier:       notifier,
	}
}

func (s *chatService) CreateThread(ctx context.Context, input CreateThreadInput) (*types.ChatThread, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	if input.ProgramID != nil && *input.ProgramID != uuid.Nil {
		enrollment, gErr := s.enrollmentRepo.GetByUserAndProgram(ctx, nil, userID, *input.ProgramID)
		if gErr != nil {
			return nil, fmt.Errorf("Failed to check enrollment: %w", gErr)
		}
		if enrollment == nil {
			return nil, fmt.Errorf("Thread can only be scoped to an enrolled program")
		}
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = "New conversation"
	}
	thread := &types.ChatThread{
		ID:        uuid.New(),
		UserID:    userID,
		ProgramID: input.ProgramID,
		Title:     title,
	}
	if _, err := s.threadRepo.Create(ctx, nil, []*types.ChatThread{thread}); err != nil {
		return nil, fmt.Errorf("Failed to create thread: %w", err)
	}
	return thread, nil
}

func (s *chatService) ListThreads(ctx context.Context) ([]*types.ChatThread, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	threads, err := s.threadRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("Failed to list threads: %w", err)
	}
	// Most recently active first; untouched threads sink to the bottom.
	sort.Slice(threads, func(i, j int) bool {
		ti, tj := threads[i], threads[j]
		if ti.LastMessageAt == nil {
			return false
		}
		if tj.LastMessageAt == nil {
			return true
		}
		return ti.LastMessageAt.After(*tj.LastMessageAt)
	})
	return threads, nil
}

func (s *chatService) GetThread(ctx context.Context, threadID uuid.UUID, limit int) (*ThreadDetail, error) {
	thread, err := s.loadOwnedThread(ctx, nil, threadID)
	if err != nil {
		return nil, err
	}
	messages, err := s.messageRepo.GetByThreadID(ctx, nil, threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("Failed to load messages: %w", err)
	}
	sort.Slice(messages, func(i, j int) bool { return messages[i].Seq < messages[j].Seq })
	return &ThreadDetail{Thread: thread, Messages: messages}, nil
}

func (s *chatService) DeleteThread(ctx context.Context, threadID uuid.UUID) error {
	if _, err := s.loadOwnedThread(ctx, nil, threadID); err != nil {
		return err
	}
	if err := s.threadRepo.SoftDeleteByIDs(ctx, nil, []uuid.UUID{threadID}); err != nil {
		return fmt.Errorf("Failed to delete thread: %w", err)
	}
	return nil
}

func (s *chatService) SendMessage(ctx context.Context, input SendMessageInput) (*SendMessageResult, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, fmt.Errorf("Missing message content")
	}
	thread, err := s.loadOwnedThread(ctx, nil, input.ThreadID)
	if err != nil {
		return nil, err
	}

	// Replay: the same idempotency key returns the original pair.
	if input.IdempotencyKey != "" {
		existing, gErr := s.messageRepo.GetByThreadAndIdempotencyKey(ctx, nil, thread.ID, input.IdempotencyKey)
		if gErr != nil {
			return nil, fmt.Errorf("Failed to check idempotency key: %w", gErr)
		}
		if existing != nil {
			return s.replayPair(ctx, thread.ID, existing)
		}
	}

	var result *SendMessageResult
	send := func() error {
		result = nil
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			maxSeq, sErr := s.messageRepo.MaxSeqByThreadID(ctx, tx, thread.ID)
			if sErr != nil {
				return fmt.Errorf("Failed to read thread sequence: %w", sErr)
			}
			now := time.Now().UTC()

			userMsg := &types.ChatMessage{
				ID:       uuid.New(),
				ThreadID: thread.ID,
				Seq:      maxSeq + 1,
				Role:     types.ChatRoleUser,
				Content:  content,
				Status:   types.ChatStatusComplete,
			}
			if input.IdempotencyKey != "" {
				key := input.IdempotencyKey
				userMsg.IdempotencyKey = &key
			}
			assistantMsg := &types.ChatMessage{
				ID:       uuid.New(),
				ThreadID: thread.ID,
				Seq:      maxSeq + 2,
				Role:     types.ChatRoleAssistant,
				Status:   types.ChatStatusPending,
			}
			if _, cErr := s.messageRepo.Create(ctx, tx, []*types.ChatMessage{userMsg, assistantMsg}); cErr != nil {
				return fmt.Errorf("Failed to persist messages: %w", cErr)
			}
			if uErr := s.threadRepo.UpdateFields(ctx, tx, thread.ID, map[string]interface{}{
				"last_message_at": now,
			}); uErr != nil {
				return fmt.Errorf("Failed to touch thread: %w", uErr)
			}

			var job *types.JobRun
			if s.jobService != nil {
				threadID := thread.ID
				var jErr error
				job, jErr = s.jobService.Enqueue(ctx, tx, userID, types.JobTypeChatRespond, "chat_thread", &threadID, map[string]any{
					"thread_id":            thread.ID.String(),
					"user_message_id":      userMsg.ID.String(),
					"assistant_message_id": assistantMsg.ID.String(),
				})
				if jErr != nil {
					return fmt.Errorf("Failed to enqueue chat response: %w", jErr)
				}
			}
			result = &SendMessageResult{UserMessage: userMsg, AssistantMessage: assistantMsg, Job: job}
			return nil
		})
	}

	// Two senders can race on the same seq; the unique index on
	// (thread_id, seq) rejects the loser, which re-reads the sequence
	// and retries behind the winner.
	err = send()
	for attempt := 0; attempt < 2 && repos.IsUniqueViolation(err); attempt++ {
		if input.IdempotencyKey != "" {
			existing, gErr := s.messageRepo.GetByThreadAndIdempotencyKey(ctx, nil, thread.ID, input.IdempotencyKey)
			if gErr == nil && existing != nil {
				return s.replayPair(ctx, thread.ID, existing)
			}
		}
		err = send()
	}
	if err != nil {
		if repos.IsUniqueViolation(err) {
			return nil, fmt.Errorf("Thread is busy, retry the message: %w", err)
		}
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.ChatMessageCreated(userID, result.UserMessage)
		s.notifier.ChatMessageCreated(userID, result.AssistantMessage)
	}
	return result, nil
}

// replayPair reconstructs the user/assistant pair for an idempotent resend.
// The assistant placeholder is always the seq directly after the user message.
func (s *chatService) replayPair(ctx context.Context, threadID uuid.UUID, userMsg *types.ChatMessage) (*SendMessageResult, error) {
	messages, err := s.messageRepo.GetByThreadID(ctx, nil, threadID, 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to load messages: %w", err)
	}
	result := &SendMessageResult{UserMessage: userMsg}
	for _, m := range messages {
		if m != nil && m.Seq == userMsg.Seq+1 && m.Role == types.ChatRoleAssistant {
			result.AssistantMessage = m
			break
		}
	}
	if s.jobService != nil {
		if job, jErr := s.jobService.GetLatestForEntityForRequestUser(ctx, "chat_thread", threadID, types.JobTypeChatRespond); jErr == nil {
			result.Job = job
		}
	}
	return result, nil
}

func (s *chatService) loadOwnedThread(ctx context.Context, tx *gorm.DB, threadID uuid.UUID) (*types.ChatThread, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	if threadID == uuid.Nil {
		return nil, fmt.Errorf("Missing thread id")
	}
	rows, err := s.threadRepo.GetByIDs(ctx, tx, []uuid.UUID{threadID})
	if err != nil {
		return nil, fmt.Errorf("Failed to load thread: %w", err)
	}
	if len(rows) == 0 || rows[0] == nil || rows[0].UserID != userID {
		return nil, fmt.Errorf("Thread not found")
	}
	return rows[0], nil
}
