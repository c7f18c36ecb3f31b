package repository

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ManuelReschke/TalentFox/app/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is a fresh database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Tenant{},
		&models.User{},
		&models.JobPosting{},
		&models.ActivationToken{},
	))
	return db
}

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{SkipDefaultTransaction: true, Logger: logger.Discard})
	require.NoError(t, err)
	return gormDB, mock, mockDB
}

func createTenant(t *testing.T, repo TenantRepository, slug string) *models.Tenant {
	t.Helper()
	tenant := &models.Tenant{
		Slug:     slug,
		Name:     "Tenant " + slug,
		Domain:   fmt.Sprintf("%s.talentfox.test", slug),
		Plan:     models.PLAN_STARTER,
		Status:   models.TENANT_STATUS_ACTIVE,
		Settings: models.DefaultTenantSettings(),
	}
	require.NoError(t, repo.Create(context.Background(), tenant))
	return tenant
}
