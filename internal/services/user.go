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

type UserService interface {
	GetMe(ctx context.Context) (*types.User, error)
	UpdateName(ctx context.Context, firstName, lastName string) (*types.User, error)
	UploadAvatarImage(ctx context.Context, raw []byte) (*types.User, error)
	ListMyOrganizations(ctx context.Context) ([]*types.OrgMembership, error)
}

type userService struct {
	db               *gorm.DB
	log              *logger.Logger
	userRepo         repos.UserRepo
	membershipRepo   repos.OrgMembershipRepo
	organizationRepo repos.OrganizationRepo
	avatarService    AvatarService
	notify           UserNotifier
}

func NewUserService(
	db *gorm.DB,
	log *logger.Logger,
	userRepo repos.UserRepo,
	membershipRepo repos.OrgMembershipRepo,
	organizationRepo repos.OrganizationRepo,
	avatarService AvatarService,
	notify UserNotifier,
) UserService {
	return &userService{
		db:               db,
		log:              log.With("service", "UserService"),
		userRepo:         userRepo,
		membershipRepo:   membershipRepo,
		organizationRepo: organizationRepo,
		avatarService:    avatarService,
		notify:           notify,
	}
}

func (us *userService) GetMe(ctx context.Context) (*types.User, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	found, err := us.userRepo.GetByIDs(ctx, nil, []uuid.UUID{userID})
	if err != nil {
		return nil, fmt.Errorf("Error fetching user: %w", err)
	}
	if len(found) == 0 || found[0] == nil {
		return nil, fmt.Errorf("User does not exist")
	}
	return found[0], nil
}

func (us *userService) UpdateName(ctx context.Context, firstName, lastName string) (*types.User, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if firstName == "" || lastName == "" {
		return nil, fmt.Errorf("First and last name are required")
	}

	var out *types.User
	if err := us.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, gErr := us.userRepo.GetByIDs(ctx, tx, []uuid.UUID{userID})
		if gErr != nil || len(found) == 0 || found[0] == nil {
			return fmt.Errorf("User not found")
		}
		u := found[0]
		u.FirstName = firstName
		u.LastName = lastName

		// New initials mean a new generated avatar.
		if us.avatarService != nil {
			if aErr := us.avatarService.CreateAndUploadUserAvatar(ctx, tx, u); aErr != nil {
				return aErr
			}
		}
		if uErr := us.userRepo.UpdateFields(ctx, tx, userID, map[string]interface{}{
			"first_name":        firstName,
			"last_name":         lastName,
			"avatar_bucket_key": u.AvatarBucketKey,
			"avatar_url":        u.AvatarURL,
		}); uErr != nil {
			return fmt.Errorf("Failed to update user: %w", uErr)
		}
		out = u
		return nil
	}); err != nil {
		return nil, err
	}
	if us.avatarService != nil && us.notify != nil {
		us.notify.UserAvatarChanged(userID, out)
	}
	return out, nil
}

func (us *userService) UploadAvatarImage(ctx context.Context, raw []byte) (*types.User, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("Empty upload")
	}

	var out *types.User
	if err := us.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, gErr := us.userRepo.GetByIDs(ctx, tx, []uuid.UUID{userID})
		if gErr != nil || len(found) == 0 || found[0] == nil {
			return fmt.Errorf("User not found")
		}
		u := found[0]

		if aErr := us.avatarService.CreateAndUploadUserAvatarFromImage(ctx, tx, u, raw); aErr != nil {
			return aErr
		}
		if uErr := us.userRepo.UpdateFields(ctx, tx, userID, map[string]interface{}{
			"avatar_bucket_key": u.AvatarBucketKey,
			"avatar_url":        u.AvatarURL,
		}); uErr != nil {
			return fmt.Errorf("Failed to update user: %w", uErr)
		}
		out = u
		return nil
	}); err != nil {
		return nil, err
	}
	if us.notify != nil {
		us.notify.UserAvatarChanged(userID, out)
	}
	return out, nil
}

func (us *userService) ListMyOrganizations(ctx context.Context) ([]*types.OrgMembership, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	memberships, err := us.membershipRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("Failed to list memberships: %w", err)
	}

	// Hydrate the org rows so the client gets names and slugs without a
	// second round trip.
	orgIDs := make([]uuid.UUID, 0, len(memberships))
	for _, m := range memberships {
		if m != nil {
			orgIDs = append(orgIDs, m.OrganizationID)
		}
	}
	if len(orgIDs) > 0 {
		orgs, oErr := us.organizationRepo.GetByIDs(ctx, nil, orgIDs)
		if oErr != nil {
			return nil, fmt.Errorf("Failed to load organizations: %w", oErr)
		}
		byID := make(map[uuid.UUID]*types.Organization, len(orgs))
		for _, o := range orgs {
			if o != nil {
				byID[o.ID] = o
			}
		}
		for _, m := range memberships {
			if m != nil {
				m.Organization = byID[m.OrganizationID]
			}
		}
	}
	return memberships, nil
}
