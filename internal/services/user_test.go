package services

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/repos"
	"github.com/ghprograms/programs-backend/internal/sse"
	"github.com/ghprograms/programs-backend/internal/types"
)

// recordingEmitter captures emitted SSE messages for assertions.
type recordingEmitter struct {
	mu       sync.Mutex
	messages []sse.SSEMessage
}

func (e *recordingEmitter) Emit(ctx context.Context, msg sse.SSEMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages = append(e.messages, msg)
}

func (e *recordingEmitter) byEvent(event sse.SSEEvent) []sse.SSEMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []sse.SSEMessage
	for _, m := range e.messages {
		if m.Event == event {
			out = append(out, m)
		}
	}
	return out
}

// fakeAvatarService stamps avatar fields without touching a bucket.
type fakeAvatarService struct{}

func (f *fakeAvatarService) CreateAndUploadUserAvatar(ctx context.Context, tx *gorm.DB, user *types.User) error {
	user.AvatarBucketKey = "avatars/" + user.ID.String() + ".png"
	user.AvatarURL = "https://bucket.test/" + user.AvatarBucketKey
	return nil
}

func (f *fakeAvatarService) CreateAndUploadUserAvatarFromImage(ctx context.Context, tx *gorm.DB, user *types.User, raw []byte) error {
	return f.CreateAndUploadUserAvatar(ctx, tx, user)
}

func (f *fakeAvatarService) GenerateUserAvatar(ctx context.Context, tx *gorm.DB, user *types.User) (bytes.Buffer, error) {
	return bytes.Buffer{}, nil
}

func newUserService(gdb *gorm.DB, emitter SSEEmitter) UserService {
	log := logger.NewNop()
	return NewUserService(
		gdb,
		log,
		repos.NewUserRepo(gdb, log),
		repos.NewOrgMembershipRepo(gdb, log),
		repos.NewOrganizationRepo(gdb, log),
		&fakeAvatarService{},
		NewUserNotifier(emitter),
	)
}

func TestUploadAvatarEmitsAvatarChanged(t *testing.T) {
	gdb := newTestDB(t)
	fx := seedCatalog(t, gdb, 1)
	emitter := &recordingEmitter{}
	svc := newUserService(gdb, emitter)
	ctx := ctxForUser(fx.User.ID)

	user, err := svc.UploadAvatarImage(ctx, []byte("png-bytes"))
	if err != nil {
		t.Fatalf("UploadAvatarImage: %v", err)
	}
	if user.AvatarURL == "" {
		t.Fatalf("expected avatar url to be set")
	}

	events := emitter.byEvent(sse.SSEEventUserAvatarChanged)
	if len(events) != 1 {
		t.Fatalf("expected 1 UserAvatarChanged event, got %d", len(events))
	}
	if events[0].Channel != fx.User.ID.String() {
		t.Fatalf("event on channel %q, want %q", events[0].Channel, fx.User.ID.String())
	}
}

func TestUpdateNameEmitsAvatarChanged(t *testing.T) {
	gdb := newTestDB(t)
	fx := seedCatalog(t, gdb, 1)
	emitter := &recordingEmitter{}
	svc := newUserService(gdb, emitter)
	ctx := ctxForUser(fx.User.ID)

	user, err := svc.UpdateName(ctx, "Ada", "Lovelace")
	if err != nil {
		t.Fatalf("UpdateName: %v", err)
	}
	if user.FirstName != "Ada" || user.LastName != "Lovelace" {
		t.Fatalf("unexpected name %q %q", user.FirstName, user.LastName)
	}
	// New initials regenerate the avatar, so the event fires here too.
	if got := len(emitter.byEvent(sse.SSEEventUserAvatarChanged)); got != 1 {
		t.Fatalf("expected 1 UserAvatarChanged event, got %d", got)
	}
}

func TestListMyOrganizationsHydratesOrgRows(t *testing.T) {
	gdb := newTestDB(t)
	fx := seedCatalog(t, gdb, 1)
	svc := newUserService(gdb, &recordingEmitter{})

	membership := &types.OrgMembership{
		ID:             uuid.New(),
		OrganizationID: fx.Org.ID,
		UserID:         fx.User.ID,
		Role:           types.OrgRoleMember,
	}
	if err := gdb.Create(membership).Error; err != nil {
		t.Fatalf("seed membership: %v", err)
	}

	memberships, err := svc.ListMyOrganizations(ctxForUser(fx.User.ID))
	if err != nil {
		t.Fatalf("ListMyOrganizations: %v", err)
	}
	if len(memberships) != 1 {
		t.Fatalf("expected 1 membership, got %d", len(memberships))
	}
	org := memberships[0].Organization
	if org == nil {
		t.Fatalf("expected membership to carry the organization row")
	}
	if org.ID != fx.Org.ID || org.Name != fx.Org.Name {
		t.Fatalf("hydrated wrong org: %+v", org)
	}
}
