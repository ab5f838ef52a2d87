package auth

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// LDAPConfig locates accounts in a directory server. Each account entry
// carries its PIN, company name, company code and account kind as attributes.
type LDAPConfig struct {
	URL          string
	BindDN       string
	BindPassword string
	BaseDN       string

	PinAttribute         string
	CompanyAttribute     string
	CompanyCodeAttribute string
	KindAttribute        string
}

func (c *LDAPConfig) applyDefaults() {
	if c.PinAttribute == "" {
		c.PinAttribute = "employeeNumber"
	}
	if c.CompanyAttribute == "" {
		c.CompanyAttribute = "o"
	}
	if c.CompanyCodeAttribute == "" {
		c.CompanyCodeAttribute = "departmentNumber"
	}
	if c.KindAttribute == "" {
		c.KindAttribute = "employeeType"
	}
}

// defaultLDAPDialTimeout bounds the connect when the caller sets no deadline.
const defaultLDAPDialTimeout = 10 * time.Second

// LDAPDirectory resolves PINs with one search per lookup.
type LDAPDirectory struct {
	cfg  LDAPConfig
	dial func(url string, timeout time.Duration) (*ldap.Conn, error)
}

// NewLDAPDirectory validates cfg and returns a directory.
func NewLDAPDirectory(cfg LDAPConfig) (*LDAPDirectory, error) {
	if cfg.URL == "" || cfg.BaseDN == "" {
		return nil, fmt.Errorf("auth: ldap url and base dn are required")
	}
	cfg.applyDefaults()
	return &LDAPDirectory{
		cfg: cfg,
		dial: func(url string, timeout time.Duration) (*ldap.Conn, error) {
			return ldap.DialURL(url, ldap.DialWithDialer(&net.Dialer{Timeout: timeout}))
		},
	}, nil
}

// Lookup binds with the service account and searches for the PIN.
func (d *LDAPDirectory) Lookup(ctx context.Context, pin string) (DirectoryRecord, error) {
	timeout := defaultLDAPDialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if err := ctx.Err(); err != nil {
		return DirectoryRecord{}, err
	}
	if timeout <= 0 {
		return DirectoryRecord{}, context.DeadlineExceeded
	}

	conn, err := d.dial(d.cfg.URL, timeout)
	if err != nil {
		return DirectoryRecord{}, fmt.Errorf("auth: connect to ldap: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetTimeout(time.Until(deadline))
	}

	if d.cfg.BindDN != "" {
		if err := conn.Bind(d.cfg.BindDN, d.cfg.BindPassword); err != nil {
			return DirectoryRecord{}, fmt.Errorf("auth: ldap bind: %w", err)
		}
	}

	req := ldap.NewSearchRequest(
		d.cfg.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		2, 0, false,
		d.filter(pin),
		d.attributes(),
		nil,
	)
	res, err := conn.Search(req)
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return DirectoryRecord{}, ErrNotFound
		}
		return DirectoryRecord{}, fmt.Errorf("auth: ldap search: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return DirectoryRecord{}, err
	}

	switch len(res.Entries) {
	case 0:
		return DirectoryRecord{}, ErrNotFound
	case 1:
		return d.entryRecord(res.Entries[0]), nil
	}
	log.Printf("auth: ldap pin matched %d entries under %s", len(res.Entries), d.cfg.BaseDN)
	return DirectoryRecord{}, ErrMalformed
}

func (d *LDAPDirectory) filter(pin string) string {
	return fmt.Sprintf("(%s=%s)", d.cfg.PinAttribute, ldap.EscapeFilter(pin))
}

func (d *LDAPDirectory) attributes() []string {
	return []string{
		d.cfg.PinAttribute,
		d.cfg.CompanyAttribute,
		d.cfg.CompanyCodeAttribute,
		d.cfg.KindAttribute,
	}
}

func (d *LDAPDirectory) entryRecord(e *ldap.Entry) DirectoryRecord {
	return DirectoryRecord{
		Company:     e.GetAttributeValue(d.cfg.CompanyAttribute),
		CompanyCode: e.GetAttributeValue(d.cfg.CompanyCodeAttribute),
		AccountKind: e.GetAttributeValue(d.cfg.KindAttribute),
		OperatorPin: e.GetAttributeValue(d.cfg.PinAttribute),
	}
}
