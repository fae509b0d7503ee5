package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ghprograms/programs-backend/internal/logger"
	"github.com/ghprograms/programs-backend/internal/types"
	"github.com/ghprograms/programs-backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	log.Info("Loading environment variables...")
	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "ghprograms", log)
	postgresSSLMode := utils.GetEnv("POSTGRES_SSLMODE", "disable", log)
	log.Debug("Environment variables loaded")

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName, postgresSSLMode)

	log.Info("Connecting to Postgres...")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		log.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("Failed to connect to Postgres: %w", err)
	}

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		log.Error("Failed to enable uuid-ossp extension", "error", err)
		return nil, fmt.Errorf("Failed to enable uuid-ossp extension: %w", err)
	}
	log.Info("uuid-ossp extension enabled")

	return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := s.db.AutoMigrate(types.AllModels()...); err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}
	s.log.Info("Configuring foreign key relationships for postgres tables...")
	fks := []struct {
		table, name, column, refTable string
		onDelete                      string
	}{
		{"user_token", "fk_user_token_user_id", "user_id", "user", "CASCADE"},
		{"org_membership", "fk_org_membership_organization_id", "organization_id", "organization", "CASCADE"},
		{"org_membership", "fk_org_membership_user_id", "user_id", "user", "CASCADE"},
		{"program", "fk_program_organization_id", "organization_id", "organization", "CASCADE"},
		{"phase", "fk_phase_program_id", "program_id", "program", "CASCADE"},
		{"lesson", "fk_lesson_phase_id", "phase_id", "phase", "CASCADE"},
		{"lesson", "fk_lesson_program_id", "program_id", "program", "CASCADE"},
		{"tactic", "fk_tactic_lesson_id", "lesson_id", "lesson", "CASCADE"},
		{"assessment", "fk_assessment_lesson_id", "lesson_id", "lesson", "CASCADE"},
		{"assessment_question", "fk_assessment_question_assessment_id", "assessment_id", "assessment", "CASCADE"},
		{"lesson_resource", "fk_lesson_resource_lesson_id", "lesson_id", "lesson", "CASCADE"},
		{"transcript_segment", "fk_transcript_segment_resource_id", "resource_id", "lesson_resource", "CASCADE"},
		{"enrollment", "fk_enrollment_user_id", "user_id", "user", "CASCADE"},
		{"enrollment", "fk_enrollment_program_id", "program_id", "program", "CASCADE"},
		{"lesson_progress", "fk_lesson_progress_user_id", "user_id", "user", "CASCADE"},
		{"lesson_progress", "fk_lesson_progress_lesson_id", "lesson_id", "lesson", "CASCADE"},
		{"lesson_progress", "fk_lesson_progress_enrollment_id", "enrollment_id", "enrollment", "CASCADE"},
		{"tactic_progress", "fk_tactic_progress_user_id", "user_id", "user", "CASCADE"},
		{"tactic_progress", "fk_tactic_progress_tactic_id", "tactic_id", "tactic", "CASCADE"},
		{"assessment_attempt", "fk_assessment_attempt_user_id", "user_id", "user", "CASCADE"},
		{"assessment_attempt", "fk_assessment_attempt_assessment_id", "assessment_id", "assessment", "CASCADE"},
		{"assessment_attempt", "fk_assessment_attempt_enrollment_id", "enrollment_id", "enrollment", "CASCADE"},
		{"user_event", "fk_user_event_user_id", "user_id", "user", "CASCADE"},
		{"chat_thread", "fk_chat_thread_user_id", "user_id", "user", "CASCADE"},
		{"chat_message", "fk_chat_message_thread_id", "thread_id", "chat_thread", "CASCADE"},
		{"certificate", "fk_certificate_user_id", "user_id", "user", "CASCADE"},
		{"certificate", "fk_certificate_program_id", "program_id", "program", "CASCADE"},
		{"certificate", "fk_certificate_enrollment_id", "enrollment_id", "enrollment", "CASCADE"},
		{"wellness_entry", "fk_wellness_entry_user_id", "user_id", "user", "CASCADE"},
		{"property", "fk_property_user_id", "user_id", "user", "CASCADE"},
		{"relationship_checkin", "fk_relationship_checkin_user_id", "user_id", "user", "CASCADE"},
	}
	for _, fk := range fks {
		if err := s.addForeignKey(fk.table, fk.name, fk.column, fk.refTable, fk.onDelete); err != nil {
			return err
		}
	}
	return nil
}

// addForeignKey is idempotent so repeated boots do not trip over
// constraints created by an earlier migration.
func (s *PostgresService) addForeignKey(table, name, column, refTable, onDelete string) error {
	var count int64
	if err := s.db.Raw(`SELECT COUNT(*) FROM pg_constraint WHERE conname = ?`, name).Scan(&count).Error; err != nil {
		return fmt.Errorf("Failed to check constraint %s: %w", name, err)
	}
	if count > 0 {
		return nil
	}
	stmt := fmt.Sprintf(`
		ALTER TABLE %q
		ADD CONSTRAINT %q
		FOREIGN KEY (%q)
		REFERENCES %q("id")
		ON DELETE %s
	`, table, name, column, refTable, onDelete)
	if err := s.db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("Failed to add %s: %w", name, err)
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
