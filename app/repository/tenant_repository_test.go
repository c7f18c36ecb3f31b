package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TalentFox/app/models"
)

func TestTenantRepository_Lookups(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTenantRepository(db)
	ctx := context.Background()

	tenant := createTenant(t, repo, "acme")
	tenant.SetCustomerID("cus_acme")
	tenant.SetSubscriptionID("sub_acme")
	require.NoError(t, repo.Update(ctx, tenant))

	t.Run("by slug is case insensitive", func(t *testing.T) {
		got, err := repo.GetBySlug(ctx, " ACME ")
		require.NoError(t, err)
		assert.Equal(t, tenant.ID, got.ID)
	})

	t.Run("by customer id", func(t *testing.T) {
		got, err := repo.GetByStripeCustomerID(ctx, "cus_acme")
		require.NoError(t, err)
		assert.Equal(t, tenant.ID, got.ID)
	})

	t.Run("by subscription id", func(t *testing.T) {
		got, err := repo.GetByStripeSubscriptionID(ctx, "sub_acme")
		require.NoError(t, err)
		assert.Equal(t, tenant.ID, got.ID)
	})

	t.Run("empty ids never match", func(t *testing.T) {
		_, err := repo.GetByStripeCustomerID(ctx, "")
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
		_, err = repo.GetByStripeSubscriptionID(ctx, " ")
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})

	t.Run("settings survive a round trip", func(t *testing.T) {
		got, err := repo.GetByID(ctx, tenant.ID)
		require.NoError(t, err)
		assert.Equal(t, "#1f6feb", got.SettingsSection("branding")["primary_color"])
	})
}

func TestTenantRepository_CustomerIDIsUnique(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTenantRepository(db)
	ctx := context.Background()

	first := createTenant(t, repo, "first")
	first.SetCustomerID("cus_shared")
	require.NoError(t, repo.Update(ctx, first))

	second := createTenant(t, repo, "second")
	second.SetCustomerID("cus_shared")
	assert.Error(t, repo.Update(ctx, second))

	// tenants without a customer do not collide
	createTenant(t, repo, "third")
	createTenant(t, repo, "fourth")

	dups, err := repo.FindDuplicateCustomers(ctx)
	require.NoError(t, err)
	assert.Empty(t, dups)
}

func TestTenantRepository_SlugExistsIncludesDeleted(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTenantRepository(db)
	ctx := context.Background()

	tenant := createTenant(t, repo, "gone")
	require.NoError(t, db.Delete(tenant).Error)

	exists, err := repo.SlugExists(ctx, "gone")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.SlugExists(ctx, "fresh")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestTenantRepository_FindDuplicateCustomersScansRows(t *testing.T) {
	gormDB, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	repo := NewTenantRepository(gormDB)

	rows := sqlmock.NewRows([]string{"stripe_customer_id", "tenant_count"}).
		AddRow("cus_legacy", 2)
	mock.ExpectQuery(`SELECT stripe_customer_id, COUNT\(\*\) AS tenant_count FROM "tenants"`).
		WillReturnRows(rows)

	dups, err := repo.FindDuplicateCustomers(context.Background())
	require.NoError(t, err)
	require.Len(t, dups, 1)
	assert.Equal(t, "cus_legacy", dups[0].StripeCustomerID)
	assert.Equal(t, int64(2), dups[0].TenantCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantRepository_GetByCustomerPropagatesErrors(t *testing.T) {
	gormDB, mock, mockDB := newMockDB(t)
	defer mockDB.Close()
	repo := NewTenantRepository(gormDB)

	mock.ExpectQuery(`SELECT \* FROM "tenants" WHERE stripe_customer_id = \$1`).
		WithArgs("cus_x", 1).
		WillReturnError(errors.New("connection reset"))

	tenant, err := repo.GetByStripeCustomerID(context.Background(), "cus_x")
	assert.Nil(t, tenant)
	assert.EqualError(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTenantRepository_ListNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTenantRepository(db)

	createTenant(t, repo, "one")
	createTenant(t, repo, "two")

	tenants, err := repo.List(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Len(t, tenants, 2)
	for _, tenant := range tenants {
		assert.Equal(t, models.TENANT_STATUS_ACTIVE, tenant.Status)
	}
}
