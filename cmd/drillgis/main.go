package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/tinytelemetry/drillgis/internal/model"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

// GetVersionInfo returns the current version and commit information.
func GetVersionInfo() (string, string) {
	return version, commit
}

func main() {
	var configPath string
	var envFile string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/drillgis/config.yml)")
	flag.StringVar(&envFile, "env-file", ".env", "dotenv file with DRILLGIS_* overrides")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("DrillGIS - Drill Run Dashboard\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	if err := loadEnvFile(envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading env file: %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := runServer(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadEnvFile exports the variables in path into the process environment.
// A missing file is not an error. Variables already set are kept.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("DRILLGIS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("data-source", defaultDataSource)
	v.SetDefault("csv-path", defaultCSVPath)
	v.SetDefault("postgres-dsn", "")
	v.SetDefault("postgres-table", defaultPGTable)
	v.SetDefault("companies-path", "")
	v.SetDefault("db-path", "")
	v.SetDefault("api-port", defaultAPIPort)
	v.SetDefault("api-addr", "")
	v.SetDefault("query-timeout", defaultQueryTimeout)
	v.SetDefault("directory", defaultDirectory)
	v.SetDefault("directory-file", filepath.Join(home, ".config", "drillgis", "directory.yml"))
	v.SetDefault("auth-url", "")
	v.SetDefault("auth-timeout", defaultAuthTimeout)
	v.SetDefault("auth-rate", defaultAuthRate)
	v.SetDefault("auth-burst", defaultAuthBurst)
	v.SetDefault("ldap-url", "")
	v.SetDefault("ldap-bind-dn", "")
	v.SetDefault("ldap-bind-password", "")
	v.SetDefault("ldap-base-dn", "")
	v.SetDefault("ldap-pin-attr", "")
	v.SetDefault("ldap-company-attr", "")
	v.SetDefault("ldap-code-attr", "")
	v.SetDefault("ldap-kind-attr", "")
	v.SetDefault("session-ttl", defaultSessionTTL)
	v.SetDefault("hover-fields", []string{})

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		defaultConfigPath := filepath.Join(home, ".config", "drillgis", "config.yml")
		v.SetConfigFile(defaultConfigPath)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()
	if _, err := os.Stat(cfg.ConfigPath); err != nil {
		cfg.ConfigPath = ""
	}

	if err := validateConfig(&cfg); err != nil {
		return cfg, err
	}

	// Expand ~ in paths
	for _, p := range []*string{&cfg.DBPath, &cfg.CSVPath, &cfg.CompaniesPath, &cfg.DirectoryFile} {
		if strings.HasPrefix(*p, "~/") {
			*p = filepath.Join(home, (*p)[2:])
		}
	}

	if cfg.APIAddr == "" {
		cfg.APIAddr = net.JoinHostPort(defaultBindHost, strconv.Itoa(cfg.APIPort))
	}

	return cfg, nil
}

func validateConfig(cfg *appConfig) error {
	if cfg.APIPort <= 0 || cfg.APIPort > 65535 {
		return fmt.Errorf("invalid api-port: %d", cfg.APIPort)
	}

	cfg.DataSource = strings.ToLower(strings.TrimSpace(cfg.DataSource))
	switch cfg.DataSource {
	case sourceCSV:
		if cfg.CSVPath == "" {
			return errors.New("csv-path is required for the csv data source")
		}
	case sourcePostgres:
		if cfg.PostgresDSN == "" {
			return errors.New("postgres-dsn is required for the postgres data source")
		}
	case sourceDuckDB:
		if cfg.DBPath == "" {
			return errors.New("db-path is required for the duckdb data source")
		}
	default:
		return fmt.Errorf("unknown data-source %q", cfg.DataSource)
	}

	cfg.Directory = strings.ToLower(strings.TrimSpace(cfg.Directory))
	switch cfg.Directory {
	case directoryStatic:
		if cfg.DirectoryFile == "" {
			return errors.New("directory-file is required for the static directory")
		}
	case directoryHTTP:
		if cfg.AuthURL == "" {
			return errors.New("auth-url is required for the http directory")
		}
	case directoryLDAP:
		if cfg.LDAPURL == "" || cfg.LDAPBaseDN == "" {
			return errors.New("ldap-url and ldap-base-dn are required for the ldap directory")
		}
	default:
		return fmt.Errorf("unknown directory %q", cfg.Directory)
	}

	if cfg.AuthTimeout <= 0 {
		return fmt.Errorf("invalid auth-timeout: %s", cfg.AuthTimeout)
	}
	if cfg.SessionTTL <= 0 {
		return fmt.Errorf("invalid session-ttl: %s", cfg.SessionTTL)
	}
	for _, name := range cfg.HoverFields {
		if !model.Field(name).Known() {
			return fmt.Errorf("unknown hover field %q", name)
		}
	}
	return nil
}
