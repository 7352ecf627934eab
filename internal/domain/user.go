// Package domain contains the core entities of the user directory.
// These are plain Go structs with no external dependencies.
package domain

import (
	"fmt"
	"strings"
)

// AuthRealm identifies which authentication system owns an account.
type AuthRealm int

const (
	// AuthRealmUnknown is the zero value; no realm has been assigned yet.
	AuthRealmUnknown AuthRealm = iota

	// AuthRealmLDAP marks accounts provisioned from the LDAP directory.
	AuthRealmLDAP

	// AuthRealmLocal marks accounts managed only in the local store.
	AuthRealmLocal

	// AuthRealmExternal marks accounts owned by some other identity provider.
	AuthRealmExternal
)

// String returns the realm name used in CLI output and config.
func (r AuthRealm) String() string {
	switch r {
	case AuthRealmLDAP:
		return "LDAP"
	case AuthRealmLocal:
		return "local"
	case AuthRealmExternal:
		return "external"
	default:
		return "unknown"
	}
}

// ParseAuthRealm converts a realm name (case insensitive) into an AuthRealm.
func ParseAuthRealm(s string) (AuthRealm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ldap":
		return AuthRealmLDAP, nil
	case "local":
		return AuthRealmLocal, nil
	case "external":
		return AuthRealmExternal, nil
	default:
		return AuthRealmUnknown, fmt.Errorf("%w: %q", ErrInvalidAuthRealm, s)
	}
}

// User represents an account known to the directory.
type User struct {
	// ID is the store-assigned identifier. Zero means the user has not been persisted.
	ID int64 `json:"id"`

	// UID is the stable identifier from the external directory. Unique in the store.
	UID string `json:"uid"`

	Name  string `json:"name"`
	Email string `json:"email"`

	// Active indicates whether the account may be used.
	Active bool `json:"active"`

	// Admin indicates administrative privileges.
	Admin bool `json:"admin"`

	AuthRealm AuthRealm `json:"auth_realm"`
}

// NewUser creates an active, non-admin user shell for the given uid.
func NewUser(uid string) *User {
	return &User{
		UID:    uid,
		Active: true,
	}
}

// IsPersisted reports whether the store has assigned an ID to the user.
func (u *User) IsPersisted() bool {
	return u.ID != 0
}
