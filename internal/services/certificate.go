package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"image/color"
	"os"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"github.com/google/uuid"
	"golang.org/x/image/font"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/repos"
	"github.com/ghprograms/programs-backend/internal/types"
)

// CertificateService renders and records completion certificates. Issue
// is called by the certificate_render job after a program roll-up hits
// 100%; the read methods back the learner-facing endpoints.
type CertificateService interface {
	Issue(ctx context.Context, enrollmentID uuid.UUID) (*types.Certificate, error)
	GetByEnrollment(ctx context.Context, enrollmentID uuid.UUID) (*types.Certificate, error)
	ListMyCertificates(ctx context.Context) ([]*types.Certificate, error)
}

type certificateService struct {
	db  *gorm.DB
	log *logger.Logger

	certificateRepo repos.CertificateRepo
	enrollmentRepo  repos.EnrollmentRepo
	programRepo     repos.ProgramRepo
	userRepo        repos.UserRepo
	userEventRepo   repos.UserEventRepo
	bucketService   BucketService
	notifier        CertificateNotifier

	titleFace font.Face
	bodyFace  font.Face
}

func NewCertificateService(
	db *gorm.DB,
	log *logger.Logger,
	certificateRepo repos.CertificateRepo,
	enrollmentRepo repos.EnrollmentRepo,
	programRepo repos.ProgramRepo,
	userRepo repos.UserRepo,
	userEventRepo repos.UserEventRepo,
	bucketService BucketService,
	notifier CertificateNotifier,
) (CertificateService, error) {
	serviceLog := log.With("service", "CertificateService")

	fontPath := os.Getenv("CERTIFICATE_FONT")
	if strings.TrimSpace(fontPath) == "" {
		fontPath = os.Getenv("AVATAR_FONT")
	}
	if strings.TrimSpace(fontPath) == "" {
		return nil, fmt.Errorf("Env vars CERTIFICATE_FONT and AVATAR_FONT are both empty")
	}
	titleFace, err := loadFontFace(fontPath, 64)
	if err != nil {
		return nil, fmt.Errorf("Could not load certificate font: %w", err)
	}
	bodyFace, err := loadFontFace(fontPath, 32)
	if err != nil {
		return nil, fmt.Errorf("Could not load certificate font: %w", err)
	}

	return &certificateService{
		db:              db,
		log:             serviceLog,
		certificateRepo: certificateRepo,
		enrollmentRepo:  enrollmentRepo,
		programRepo:     programRepo,
		userRepo:        userRepo,
		userEventRepo:   userEventRepo,
		bucketService:   bucketService,
		notifier:        notifier,
		titleFace:       titleFace,
		bodyFace:        bodyFace,
	}, nil
}

func (cs *certificateService) Issue(ctx context.Context, enrollmentID uuid.UUID) (*types.Certificate, error) {
	if enrollmentID == uuid.Nil {
		return nil, fmt.Errorf("Missing enrollment id")
	}

	// Idempotent: one certificate per enrollment.
	if existing, err := cs.certificateRepo.GetByEnrollmentID(ctx, nil, enrollmentID); err == nil && existing != nil {
		return existing, nil
	}

	enrollments, err := cs.enrollmentRepo.GetByIDs(ctx, nil, []uuid.UUID{enrollmentID})
	if err != nil || len(enrollments) == 0 || enrollments[0] == nil {
		return nil, fmt.Errorf("Enrollment not found")
	}
	enrollment := enrollments[0]
	if enrollment.Status != types.EnrollmentCompleted {
		return nil, fmt.Errorf("Enrollment is not completed")
	}

	programs, err := cs.programRepo.GetByIDs(ctx, nil, []uuid.UUID{enrollment.ProgramID})
	if err != nil || len(programs) == 0 || programs[0] == nil {
		return nil, fmt.Errorf("Program not found")
	}
	program := programs[0]

	users, err := cs.userRepo.GetByIDs(ctx, nil, []uuid.UUID{enrollment.UserID})
	if err != nil || len(users) == 0 || users[0] == nil {
		return nil, fmt.Errorf("User not found")
	}
	user := users[0]

	issuedAt := time.Now().UTC()
	serial, err := newCertificateSerial(issuedAt)
	if err != nil {
		return nil, err
	}

	png, err := cs.render(user, program, issuedAt, serial)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("%s/%s.png", enrollment.UserID.String(), serial)
	key, err := cs.bucketService.ObjectKey(BucketCategoryCertificate, name)
	if err != nil {
		return nil, err
	}
	if err := cs.bucketService.UploadFile(ctx, nil, key, bytes.NewReader(png.Bytes())); err != nil {
		return nil, fmt.Errorf("Failed to upload certificate: %w", err)
	}

	cert := &types.Certificate{
		ID:           uuid.New(),
		UserID:       enrollment.UserID,
		ProgramID:    enrollment.ProgramID,
		EnrollmentID: enrollmentID,
		Serial:       serial,
		BucketKey:    key,
		URL:          cs.bucketService.GetPublicURL(key),
		IssuedAt:     issuedAt,
	}
	err = cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, cErr := cs.certificateRepo.Create(ctx, tx, []*types.Certificate{cert}); cErr != nil {
			return fmt.Errorf("Failed to record certificate: %w", cErr)
		}
		programID := enrollment.ProgramID
		event := &types.UserEvent{
			ID:        uuid.New(),
			UserID:    enrollment.UserID,
			ProgramID: &programID,
			Type:      types.EventCertificateIssued,
		}
		if _, eErr := cs.userEventRepo.Create(ctx, tx, []*types.UserEvent{event}); eErr != nil {
			cs.log.Warn("Failed to append certificate event", "error", eErr)
		}
		return nil
	})
	if err != nil {
		// A concurrent render may have won the unique enrollment index.
		if repos.IsUniqueViolation(err) {
			if existing, gErr := cs.certificateRepo.GetByEnrollmentID(ctx, nil, enrollmentID); gErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}

	if cs.notifier != nil {
		cs.notifier.CertificateIssued(enrollment.UserID, cert)
	}
	return cert, nil
}

func (cs *certificateService) GetByEnrollment(ctx context.Context, enrollmentID uuid.UUID) (*types.Certificate, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	cert, err := cs.certificateRepo.GetByEnrollmentID(ctx, nil, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("Failed to load certificate: %w", err)
	}
	if cert == nil || cert.UserID != userID {
		return nil, fmt.Errorf("Certificate not found")
	}
	return cert, nil
}

func (cs *certificateService) ListMyCertificates(ctx context.Context) ([]*types.Certificate, error) {
	userID, err := requestUserID(ctx)
	if err != nil {
		return nil, err
	}
	certs, err := cs.certificateRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("Failed to list certificates: %w", err)
	}
	return certs, nil
}

func (cs *certificateService) render(user *types.User, program *types.Program, issuedAt time.Time, serial string) (bytes.Buffer, error) {
	const width, height = 1600, 1100
	var buf bytes.Buffer

	dc := gg.NewContext(width, height)

	dc.SetColor(color.NRGBA{R: 250, G: 248, B: 243, A: 255})
	dc.Clear()

	// Border
	dc.SetColor(color.NRGBA{R: 31, G: 59, B: 77, A: 255})
	dc.SetLineWidth(6)
	dc.DrawRectangle(40, 40, width-80, height-80)
	dc.Stroke()

	cx := float64(width) / 2

	dc.SetFontFace(cs.titleFace)
	dc.SetColor(color.NRGBA{R: 31, G: 59, B: 77, A: 255})
	dc.DrawStringAnchored("Certificate of Completion", cx, 220, 0.5, 0.5)

	dc.SetFontFace(cs.bodyFace)
	dc.DrawStringAnchored("awarded to", cx, 340, 0.5, 0.5)

	dc.SetFontFace(cs.titleFace)
	learner := strings.TrimSpace(user.FirstName + " " + user.LastName)
	dc.DrawStringAnchored(learner, cx, 460, 0.5, 0.5)

	dc.SetFontFace(cs.bodyFace)
	dc.DrawStringAnchored("for completing", cx, 580, 0.5, 0.5)
	dc.DrawStringAnchored(program.Title, cx, 660, 0.5, 0.5)
	dc.DrawStringAnchored(issuedAt.Format("January 2, 2006"), cx, 800, 0.5, 0.5)
	dc.DrawStringAnchored("Serial: "+serial, cx, 960, 0.5, 0.5)

	if err := dc.EncodePNG(&buf); err != nil {
		return buf, fmt.Errorf("Failed to encode certificate PNG: %w", err)
	}
	return buf, nil
}

// newCertificateSerial builds a short verifiable serial like
// GH-2026-4F9C2A1B.
func newCertificateSerial(issuedAt time.Time) (string, error) {
	raw := make([]byte, 4)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("Failed to generate certificate serial: %w", err)
	}
	return fmt.Sprintf("GH-%d-%s", issuedAt.Year(), strings.ToUpper(hex.EncodeToString(raw))), nil
}
