package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TalentFox/app/models"
)

func TestUserRepository_TenantScoping(t *testing.T) {
	db := setupTestDB(t)
	tenants := NewTenantRepository(db)
	repo := NewUserRepository(db)
	ctx := context.Background()

	acme := createTenant(t, tenants, "acme")
	globex := createTenant(t, tenants, "globex")

	admin, err := models.NewInvitedUser(acme.ID, "Boss@Acme.test", "Boss", models.ROLE_ADMIN)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, admin))

	// same address in another tenant is a different account
	other, err := models.NewInvitedUser(globex.ID, "boss@acme.test", "Boss", models.ROLE_USER)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, other))

	dup, err := models.NewInvitedUser(acme.ID, "boss@acme.test", "Again", models.ROLE_USER)
	require.NoError(t, err)
	assert.Error(t, repo.Create(ctx, dup))

	got, err := repo.GetByEmail(ctx, acme.ID, "BOSS@acme.test")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, got.ID)

	_, err = repo.GetByID(ctx, globex.ID, admin.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	count, err := repo.CountByTenant(ctx, acme.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	admins, err := repo.CountAdmins(ctx, globex.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), admins)
}

func TestUserRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	tenants := NewTenantRepository(db)
	repo := NewUserRepository(db)
	ctx := context.Background()

	acme := createTenant(t, tenants, "acme")
	globex := createTenant(t, tenants, "globex")
	u, err := models.NewInvitedUser(acme.ID, "dev@acme.test", "Dev", "")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, u))

	assert.ErrorIs(t, repo.Delete(ctx, globex.ID, u.ID), gorm.ErrRecordNotFound)
	require.NoError(t, repo.Delete(ctx, acme.ID, u.ID))

	users, err := repo.ListByTenant(ctx, acme.ID, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, users)

	// the address can be invited again after deletion
	again, err := models.NewInvitedUser(acme.ID, "dev@acme.test", "Dev", "")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, again))
	assert.NotEqual(t, u.ID, again.ID)

	got, err := repo.GetByEmail(ctx, acme.ID, "dev@acme.test")
	require.NoError(t, err)
	assert.Equal(t, again.ID, got.ID)
}
