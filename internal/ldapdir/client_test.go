package ldapdir

import (
	"context"
	"errors"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/userdir/internal/config"
	"github.com/prn-tf/userdir/internal/domain"
)

const adminGroup = "cn=admins,ou=groups,dc=example,dc=com"

func newTestClient(t *testing.T, cfg Config, entries ...*ldap.Entry) (*Client, *[]*ldap.SearchRequest) {
	t.Helper()

	if cfg.URL == "" {
		cfg.URL = "ldap://127.0.0.1:389"
	}
	if cfg.BaseDN == "" {
		cfg.BaseDN = "dc=example,dc=com"
	}
	c, err := NewClient(cfg, zerolog.Nop())
	require.NoError(t, err)

	var requests []*ldap.SearchRequest
	c.search = func(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
		requests = append(requests, req)
		return &ldap.SearchResult{Entries: entries}, nil
	}
	return c, &requests
}

func TestNewClient(t *testing.T) {
	t.Run("requires url", func(t *testing.T) {
		_, err := NewClient(Config{BaseDN: "dc=example,dc=com"}, zerolog.Nop())
		require.Error(t, err)
	})

	t.Run("requires base dn", func(t *testing.T) {
		_, err := NewClient(Config{URL: "ldap://localhost"}, zerolog.Nop())
		require.Error(t, err)
	})

	t.Run("applies defaults", func(t *testing.T) {
		c, err := NewClient(Config{URL: "ldap://localhost", BaseDN: "dc=example,dc=com"}, zerolog.Nop())
		require.NoError(t, err)
		assert.Equal(t, "(uid=%s)", c.config.UserFilter)
		assert.Equal(t, "cn", c.config.NameAttr)
		assert.Equal(t, "mail", c.config.EmailAttr)
		assert.Equal(t, "memberOf", c.config.GroupAttr)
		assert.Equal(t, 5, cap(c.pool))
	})
}

func TestPopulate(t *testing.T) {
	entry := ldap.NewEntry("uid=alice,ou=people,dc=example,dc=com", map[string][]string{
		"cn":       {"Alice Liddell"},
		"mail":     {"alice@example.com"},
		"memberOf": {"cn=staff,ou=groups,dc=example,dc=com", "CN=Admins,OU=Groups,DC=example,DC=com"},
	})

	c, requests := newTestClient(t, Config{AdminGroup: adminGroup}, entry)

	user := domain.NewUser("alice")
	user.Active = false
	require.NoError(t, c.Populate(context.Background(), user))

	assert.Equal(t, "alice", user.UID)
	assert.Equal(t, "Alice Liddell", user.Name)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.True(t, user.Active)
	assert.True(t, user.Admin)
	assert.Equal(t, domain.AuthRealmLDAP, user.AuthRealm)
	assert.Zero(t, user.ID)

	require.Len(t, *requests, 1)
	req := (*requests)[0]
	assert.Equal(t, "dc=example,dc=com", req.BaseDN)
	assert.Equal(t, "(uid=alice)", req.Filter)
	assert.ElementsMatch(t, []string{"cn", "mail", "memberOf"}, req.Attributes)
}

func TestPopulate_EscapesFilter(t *testing.T) {
	entry := ldap.NewEntry("uid=x,dc=example,dc=com", map[string][]string{"cn": {"x"}})
	c, requests := newTestClient(t, Config{UserFilter: "(&(objectClass=person)(sAMAccountName=%s))"}, entry)

	require.NoError(t, c.Populate(context.Background(), domain.NewUser("a*)(uid=*")))

	require.Len(t, *requests, 1)
	assert.Equal(t, `(&(objectClass=person)(sAMAccountName=a\2a\29\28uid=\2a))`, (*requests)[0].Filter)
}

func TestPopulate_NotAdminWithoutGroup(t *testing.T) {
	entry := ldap.NewEntry("uid=bob,dc=example,dc=com", map[string][]string{
		"cn":       {"Bob"},
		"memberOf": {adminGroup},
	})

	c, _ := newTestClient(t, Config{}, entry)

	user := domain.NewUser("bob")
	require.NoError(t, c.Populate(context.Background(), user))
	assert.False(t, user.Admin)
}

func TestPopulate_ActiveAttribute(t *testing.T) {
	cfg := Config{ActiveAttr: "accountStatus", ActiveValues: []string{"active", "enabled"}}

	tests := []struct {
		name   string
		status []string
		want   bool
	}{
		{"matching value", []string{"Active"}, true},
		{"other value", []string{"disabled"}, false},
		{"missing attribute", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := map[string][]string{"cn": {"Carol"}}
			if tt.status != nil {
				attrs["accountStatus"] = tt.status
			}
			c, requests := newTestClient(t, cfg, ldap.NewEntry("uid=carol,dc=example,dc=com", attrs))

			user := domain.NewUser("carol")
			require.NoError(t, c.Populate(context.Background(), user))
			assert.Equal(t, tt.want, user.Active)
			assert.Contains(t, (*requests)[0].Attributes, "accountStatus")
		})
	}
}

func TestPopulate_NotFound(t *testing.T) {
	c, _ := newTestClient(t, Config{})

	user := domain.NewUser("ghost")
	err := c.Populate(context.Background(), user)
	require.ErrorIs(t, err, ErrUserNotFound)
	assert.Empty(t, user.Name)
	assert.Equal(t, domain.AuthRealmUnknown, user.AuthRealm)
}

func TestPopulate_Ambiguous(t *testing.T) {
	c, _ := newTestClient(t, Config{},
		ldap.NewEntry("uid=dup,ou=a,dc=example,dc=com", nil),
		ldap.NewEntry("uid=dup,ou=b,dc=example,dc=com", nil),
	)

	err := c.Populate(context.Background(), domain.NewUser("dup"))
	require.ErrorIs(t, err, ErrAmbiguousUser)
}

func TestPopulate_SizeLimitExceeded(t *testing.T) {
	c, _ := newTestClient(t, Config{})
	c.search = func(*ldap.SearchRequest) (*ldap.SearchResult, error) {
		return nil, ldap.NewError(ldap.LDAPResultSizeLimitExceeded, errors.New("size limit exceeded"))
	}

	err := c.Populate(context.Background(), domain.NewUser("dup"))
	require.ErrorIs(t, err, ErrAmbiguousUser)
}

func TestPopulate_SearchError(t *testing.T) {
	searchErr := errors.New("connection reset")

	c, _ := newTestClient(t, Config{})
	c.search = func(*ldap.SearchRequest) (*ldap.SearchResult, error) {
		return nil, searchErr
	}

	err := c.Populate(context.Background(), domain.NewUser("alice"))
	require.ErrorIs(t, err, searchErr)
	assert.NotErrorIs(t, err, ErrUserNotFound)
}

func TestPopulate_CanceledContext(t *testing.T) {
	c, requests := newTestClient(t, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Populate(ctx, domain.NewUser("alice"))
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, *requests)
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.LDAPConfig{
		URL:                "ldaps://ldap.example.com",
		BaseDN:             "dc=example,dc=com",
		BindDN:             "cn=reader,dc=example,dc=com",
		BindPassword:       "secret",
		InsecureSkipVerify: true,
		PoolSize:           3,
		AdminGroup:         adminGroup,
	})

	assert.Equal(t, "ldaps://ldap.example.com", cfg.URL)
	assert.Equal(t, "secret", cfg.BindPassword)
	assert.Equal(t, 3, cfg.PoolSize)
	assert.Equal(t, adminGroup, cfg.AdminGroup)
	require.NotNil(t, cfg.TLS)
	assert.True(t, cfg.TLS.InsecureSkipVerify)

	assert.Nil(t, ConfigFrom(config.LDAPConfig{}).TLS)
}

func TestUnconfigured(t *testing.T) {
	user := domain.NewUser("alice")
	err := Unconfigured{}.Populate(context.Background(), user)
	require.ErrorIs(t, err, ErrNotConfigured)
	assert.Contains(t, err.Error(), "alice")
}
