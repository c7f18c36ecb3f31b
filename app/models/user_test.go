package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInvitedUser(t *testing.T) {
	u, err := NewInvitedUser(7, "  Jane@Example.COM ", "Jane", "")
	require.NoError(t, err)

	assert.Equal(t, "jane@example.com", u.Email)
	assert.Equal(t, ROLE_USER, u.Role)
	assert.Equal(t, STATUS_INACTIVE, u.Status)
	assert.False(t, u.CheckPassword("anything"))
}

func TestNewInvitedUserRejectsBadInput(t *testing.T) {
	_, err := NewInvitedUser(7, "not-an-email", "Jane", ROLE_ADMIN)
	assert.Error(t, err)

	_, err = NewInvitedUser(0, "jane@example.com", "Jane", ROLE_ADMIN)
	assert.Error(t, err)

	_, err = NewInvitedUser(7, "jane@example.com", "Jane", "owner")
	assert.Error(t, err)
}

func TestUserSetPassword(t *testing.T) {
	u := &User{}
	require.NoError(t, u.SetPassword("s3cret-pass"))

	assert.NotEqual(t, "s3cret-pass", u.Password)
	assert.True(t, u.CheckPassword("s3cret-pass"))
	assert.False(t, u.CheckPassword("wrong"))
}
