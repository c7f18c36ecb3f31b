package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TalentFox/app/models"
	"github.com/ManuelReschke/TalentFox/internal/pkg/env"
	"github.com/ManuelReschke/TalentFox/internal/pkg/logger"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

var DB *gorm.DB

// DSN builds the postgres connection string from the environment.
func DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		env.GetEnv("DB_HOST", "127.0.0.1"),
		env.GetEnv("DB_USER", "talentfox"),
		env.GetEnv("DB_PASSWORD", ""),
		env.GetEnv("DB_NAME", "talentfox"),
		env.GetEnv("DB_PORT", "5432"),
		env.GetEnv("DB_SSLMODE", "disable"),
	)
}

// MigrationURL builds the URL form used by golang-migrate.
func MigrationURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		env.GetEnv("DB_USER", "talentfox"),
		env.GetEnv("DB_PASSWORD", ""),
		env.GetEnv("DB_HOST", "127.0.0.1"),
		env.GetEnv("DB_PORT", "5432"),
		env.GetEnv("DB_NAME", "talentfox"),
		env.GetEnv("DB_SSLMODE", "disable"),
	)
}

// SetupDatabase connects with retries. Schema changes in production go through
// cmd/migrate; dev setups get AutoMigrate on top.
func SetupDatabase() error {
	var err error
	log := logger.L()

	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(postgres.Open(DSN()), &gorm.Config{TranslateError: true})
		if err == nil {
			if env.IsDev() {
				if err := AutoMigrate(DB); err != nil {
					return fmt.Errorf("auto migrate: %w", err)
				}
			}
			return nil
		}

		log.Warn("failed to connect to database",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Error(err))
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}

	return err
}

// AutoMigrate creates or updates all tables owned by the application.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Tenant{},
		&models.User{},
		&models.JobPosting{},
		&models.WebhookEvent{},
		&models.ActivationToken{},
	)
}

func GetDB() *gorm.DB {
	return DB
}

// SetDB installs an already opened handle (tests, CLIs).
func SetDB(db *gorm.DB) {
	DB = db
}
