package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAuthRealm(t *testing.T) {
	tests := []struct {
		in   string
		want AuthRealm
	}{
		{"LDAP", AuthRealmLDAP},
		{"ldap", AuthRealmLDAP},
		{" local ", AuthRealmLocal},
		{"External", AuthRealmExternal},
	}
	for _, tt := range tests {
		got, err := ParseAuthRealm(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, got, mustParse(t, got.String()))
	}

	_, err := ParseAuthRealm("kerberos")
	assert.ErrorIs(t, err, ErrInvalidAuthRealm)
}

func mustParse(t *testing.T, s string) AuthRealm {
	t.Helper()
	r, err := ParseAuthRealm(s)
	require.NoError(t, err)
	return r
}

func TestNewUser(t *testing.T) {
	u := NewUser("alice")
	assert.Equal(t, "alice", u.UID)
	assert.True(t, u.Active)
	assert.False(t, u.Admin)
	assert.False(t, u.IsPersisted())

	u.ID = 7
	assert.True(t, u.IsPersisted())
}

func TestUserNotFound(t *testing.T) {
	err := UserNotFound(99)
	assert.True(t, errors.Is(err, ErrUserNotFound))
	assert.Equal(t, "user not found: user does not exist (id=99)", err.Error())

	var de *DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "id=99", de.Resource)
}
