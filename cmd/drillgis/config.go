package main

import (
	"time"

	"github.com/tinytelemetry/drillgis/internal/model"
)

const (
	defaultBindHost     = "127.0.0.1"
	defaultAPIPort      = 3000
	defaultQueryTimeout = 30 * time.Second
	defaultDataSource   = "csv"
	defaultCSVPath      = "DrillGIS.csv"
	defaultPGTable      = "drill_runs"
	defaultDirectory    = "static"
	defaultAuthTimeout  = model.DefaultAuthTimeout
	defaultAuthRate     = 5.0
	defaultAuthBurst    = 10
	defaultSessionTTL   = model.DefaultSessionTTL
)

// Supported data-source and directory kinds.
const (
	sourceCSV      = "csv"
	sourcePostgres = "postgres"
	sourceDuckDB   = "duckdb"

	directoryStatic = "static"
	directoryHTTP   = "http"
	directoryLDAP   = "ldap"
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	DataSource    string `mapstructure:"data-source"`
	CSVPath       string `mapstructure:"csv-path"`
	PostgresDSN   string `mapstructure:"postgres-dsn"`
	PostgresTable string `mapstructure:"postgres-table"`
	CompaniesPath string `mapstructure:"companies-path"`
	DBPath        string `mapstructure:"db-path"`

	APIPort      int           `mapstructure:"api-port"`
	APIAddr      string        `mapstructure:"api-addr"`
	QueryTimeout time.Duration `mapstructure:"query-timeout"`

	Directory     string        `mapstructure:"directory"`
	DirectoryFile string        `mapstructure:"directory-file"`
	AuthURL       string        `mapstructure:"auth-url"`
	AuthTimeout   time.Duration `mapstructure:"auth-timeout"`
	AuthRate      float64       `mapstructure:"auth-rate"`
	AuthBurst     int           `mapstructure:"auth-burst"`

	LDAPURL          string `mapstructure:"ldap-url"`
	LDAPBindDN       string `mapstructure:"ldap-bind-dn"`
	LDAPBindPassword string `mapstructure:"ldap-bind-password"`
	LDAPBaseDN       string `mapstructure:"ldap-base-dn"`
	LDAPPinAttr      string `mapstructure:"ldap-pin-attr"`
	LDAPCompanyAttr  string `mapstructure:"ldap-company-attr"`
	LDAPCodeAttr     string `mapstructure:"ldap-code-attr"`
	LDAPKindAttr     string `mapstructure:"ldap-kind-attr"`

	SessionTTL  time.Duration `mapstructure:"session-ttl"`
	HoverFields []string      `mapstructure:"hover-fields"`

	ConfigPath string `mapstructure:"-"` // not from config file
}
