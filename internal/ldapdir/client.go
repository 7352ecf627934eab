// Package ldapdir resolves user attributes from an LDAP or Active Directory
// server. It is the directory source used to provision users that are not
// yet in the store.
package ldapdir

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog"

	"github.com/prn-tf/userdir/internal/config"
	"github.com/prn-tf/userdir/internal/domain"
)

var (
	// ErrUserNotFound is returned when the search yields no entry for the uid.
	ErrUserNotFound = errors.New("user not found in directory")

	// ErrAmbiguousUser is returned when the uid matches more than one entry.
	ErrAmbiguousUser = errors.New("uid matches multiple directory entries")

	// ErrNotConfigured is returned by Unconfigured.
	ErrNotConfigured = errors.New("directory source not configured")
)

// Config holds connection and attribute mapping settings.
type Config struct {
	URL          string // ldap://localhost:389 or ldaps://localhost:636
	BindDN       string
	BindPassword string
	BaseDN       string
	UserFilter   string // (uid=%s) or (sAMAccountName=%s)
	StartTLS     bool
	TLS          *tls.Config
	Timeout      time.Duration
	PoolSize     int

	NameAttr     string
	EmailAttr    string
	GroupAttr    string
	ActiveAttr   string
	ActiveValues []string
	AdminGroup   string
}

// ConfigFrom converts the application LDAP section.
func ConfigFrom(cfg config.LDAPConfig) Config {
	c := Config{
		URL:          cfg.URL,
		BindDN:       cfg.BindDN,
		BindPassword: cfg.BindPassword,
		BaseDN:       cfg.BaseDN,
		UserFilter:   cfg.UserFilter,
		StartTLS:     cfg.StartTLS,
		Timeout:      cfg.Timeout,
		PoolSize:     cfg.PoolSize,
		NameAttr:     cfg.NameAttr,
		EmailAttr:    cfg.EmailAttr,
		GroupAttr:    cfg.GroupAttr,
		ActiveAttr:   cfg.ActiveAttr,
		ActiveValues: cfg.ActiveValues,
		AdminGroup:   cfg.AdminGroup,
	}
	if cfg.InsecureSkipVerify {
		c.TLS = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for test directories
	}
	return c
}

type searchFunc func(req *ldap.SearchRequest) (*ldap.SearchResult, error)

// Client looks users up over a small pool of bound connections.
type Client struct {
	config Config
	logger zerolog.Logger

	pool   chan *ldap.Conn
	search searchFunc
}

// NewClient validates the config and applies defaults. Connections are
// dialled on first use; call Ping to check reachability up front.
func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("ldap server URL is required")
	}
	if cfg.BaseDN == "" {
		return nil, errors.New("ldap base DN is required")
	}
	if cfg.UserFilter == "" {
		cfg.UserFilter = "(uid=%s)"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.NameAttr == "" {
		cfg.NameAttr = "cn"
	}
	if cfg.EmailAttr == "" {
		cfg.EmailAttr = "mail"
	}
	if cfg.GroupAttr == "" {
		cfg.GroupAttr = "memberOf"
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 5
	}

	c := &Client{
		config: cfg,
		logger: logger.With().Str("component", "ldapdir").Logger(),
		pool:   make(chan *ldap.Conn, cfg.PoolSize),
	}
	c.search = c.pooledSearch
	return c, nil
}

// Populate fills name, email, active, admin and auth realm of user from
// the directory entry matching user.UID. The uid itself is left untouched.
func (c *Client) Populate(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entry, err := c.lookup(user.UID)
	if err != nil {
		return err
	}

	c.apply(entry, user)
	c.logger.Debug().
		Str("uid", user.UID).
		Str("dn", entry.DN).
		Bool("active", user.Active).
		Bool("admin", user.Admin).
		Msg("resolved directory entry")
	return nil
}

// Ping dials and binds a single connection.
func (c *Client) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := c.dial()
	if err != nil {
		return err
	}
	conn.Close()
	return nil
}

// Close closes all pooled connections.
func (c *Client) Close() error {
	for {
		select {
		case conn := <-c.pool:
			conn.Close()
		default:
			return nil
		}
	}
}

func (c *Client) lookup(uid string) (*ldap.Entry, error) {
	req := ldap.NewSearchRequest(
		c.config.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		2, // a second hit means the filter is ambiguous
		int(c.config.Timeout/time.Second),
		false,
		fmt.Sprintf(c.config.UserFilter, ldap.EscapeFilter(uid)),
		c.attributes(),
		nil,
	)

	result, err := c.search(req)
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrAmbiguousUser, uid)
		}
		return nil, fmt.Errorf("ldap search for %q: %w", uid, err)
	}

	switch len(result.Entries) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, uid)
	case 1:
		return result.Entries[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousUser, uid)
	}
}

func (c *Client) attributes() []string {
	attrs := []string{c.config.NameAttr, c.config.EmailAttr, c.config.GroupAttr}
	if c.config.ActiveAttr != "" {
		attrs = append(attrs, c.config.ActiveAttr)
	}
	return attrs
}

func (c *Client) apply(entry *ldap.Entry, user *domain.User) {
	user.Name = entry.GetAttributeValue(c.config.NameAttr)
	user.Email = entry.GetAttributeValue(c.config.EmailAttr)
	user.AuthRealm = domain.AuthRealmLDAP

	user.Active = true
	if c.config.ActiveAttr != "" {
		user.Active = containsFold(c.config.ActiveValues, entry.GetAttributeValue(c.config.ActiveAttr))
	}

	user.Admin = false
	if c.config.AdminGroup != "" {
		user.Admin = containsFold(entry.GetAttributeValues(c.config.GroupAttr), c.config.AdminGroup)
	}
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func (c *Client) pooledSearch(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	conn, err := c.getConnection()
	if err != nil {
		return nil, err
	}

	result, err := conn.Search(req)
	if err != nil && !ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) {
		// Connection state is unknown after a failed operation.
		conn.Close()
		return nil, err
	}
	c.returnConnection(conn)
	return result, err
}

// dial creates a new connection with StartTLS and service-account bind.
func (c *Client) dial() (*ldap.Conn, error) {
	opts := []ldap.DialOpt{ldap.DialWithDialer(&net.Dialer{Timeout: c.config.Timeout})}
	if c.config.TLS != nil {
		opts = append(opts, ldap.DialWithTLSConfig(c.config.TLS))
	}

	conn, err := ldap.DialURL(c.config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ldap server: %w", err)
	}
	conn.SetTimeout(c.config.Timeout)

	if c.config.StartTLS && !strings.HasPrefix(c.config.URL, "ldaps://") {
		tlsConfig := c.config.TLS
		if tlsConfig == nil {
			tlsConfig = &tls.Config{}
		}
		if err := conn.StartTLS(tlsConfig); err != nil {
			conn.Close()
			return nil, fmt.Errorf("starttls failed: %w", err)
		}
	}

	if c.config.BindDN != "" {
		if err := conn.Bind(c.config.BindDN, c.config.BindPassword); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ldap bind failed: %w", err)
		}
	}

	return conn, nil
}

func (c *Client) getConnection() (*ldap.Conn, error) {
	select {
	case conn := <-c.pool:
		if conn.IsClosing() {
			return c.dial()
		}
		return conn, nil
	default:
		return c.dial()
	}
}

func (c *Client) returnConnection(conn *ldap.Conn) {
	if conn == nil || conn.IsClosing() {
		return
	}
	select {
	case c.pool <- conn:
	default:
		conn.Close()
	}
}

// Unconfigured is the source used when no directory server is configured.
// Every lookup fails with ErrNotConfigured.
type Unconfigured struct{}

func (Unconfigured) Populate(_ context.Context, user *domain.User) error {
	return fmt.Errorf("%w: cannot provision %q", ErrNotConfigured, user.UID)
}
