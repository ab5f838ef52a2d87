package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tinytelemetry/drillgis/internal/model"
)

func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeFile(t *testing.T, path, body string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	home := setupHome(t)

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.DataSource != sourceCSV {
		t.Fatalf("DataSource = %q, want %q", cfg.DataSource, sourceCSV)
	}
	if cfg.APIAddr != "127.0.0.1:3000" {
		t.Fatalf("APIAddr = %q, want 127.0.0.1:3000", cfg.APIAddr)
	}
	if cfg.DBPath != "" {
		t.Fatalf("DBPath = %q, want in-memory", cfg.DBPath)
	}
	if cfg.AuthTimeout != model.DefaultAuthTimeout {
		t.Fatalf("AuthTimeout = %s, want %s", cfg.AuthTimeout, model.DefaultAuthTimeout)
	}
	if cfg.SessionTTL != model.DefaultSessionTTL {
		t.Fatalf("SessionTTL = %s, want %s", cfg.SessionTTL, model.DefaultSessionTTL)
	}
	wantDir := filepath.Join(home, ".config", "drillgis", "directory.yml")
	if cfg.DirectoryFile != wantDir {
		t.Fatalf("DirectoryFile = %q, want %q", cfg.DirectoryFile, wantDir)
	}
	if cfg.ConfigPath != "" {
		t.Fatalf("ConfigPath = %q, want empty without a file", cfg.ConfigPath)
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	home := setupHome(t)
	path := writeFile(t, filepath.Join(home, "drillgis.yml"), strings.Join([]string{
		"data-source: duckdb",
		"db-path: ~/runs.duckdb",
		"api-port: 4100",
		"session-ttl: 10m",
		"hover-fields:",
		"  - date",
		"  - job_type",
		"",
	}, "\n"))
	t.Setenv("DRILLGIS_API_PORT", "4200")

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.ConfigPath != path {
		t.Fatalf("ConfigPath = %q, want %q", cfg.ConfigPath, path)
	}
	if cfg.DataSource != sourceDuckDB {
		t.Fatalf("DataSource = %q, want duckdb", cfg.DataSource)
	}
	if cfg.DBPath != filepath.Join(home, "runs.duckdb") {
		t.Fatalf("DBPath = %q, want ~ expanded", cfg.DBPath)
	}
	if cfg.APIAddr != "127.0.0.1:4200" {
		t.Fatalf("APIAddr = %q, env should win over file", cfg.APIAddr)
	}
	if cfg.SessionTTL.Minutes() != 10 {
		t.Fatalf("SessionTTL = %s, want 10m", cfg.SessionTTL)
	}
	if len(cfg.HoverFields) != 2 || cfg.HoverFields[1] != "job_type" {
		t.Fatalf("HoverFields = %v", cfg.HoverFields)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string]string{
		"port":      "api-port: 70000\n",
		"source":    "data-source: dynamo\n",
		"postgres":  "data-source: postgres\n",
		"duckdb":    "data-source: duckdb\n",
		"directory": "directory: kerberos\n",
		"http":      "directory: http\n",
		"ldap":      "directory: ldap\nldap-url: ldap://localhost\n",
		"hover":     "hover-fields: [elevation]\n",
		"ttl":       "session-ttl: 0s\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			home := setupHome(t)
			path := writeFile(t, filepath.Join(home, "bad.yml"), body)
			if _, err := loadConfig(path); err == nil {
				t.Fatalf("expected error for %q", body)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	home := setupHome(t)
	t.Cleanup(func() {
		os.Unsetenv("DRILLGIS_DATA_SOURCE")
		os.Unsetenv("DRILLGIS_POSTGRES_DSN")
	})

	if err := loadEnvFile(filepath.Join(home, "missing.env")); err != nil {
		t.Fatalf("missing env file should be ignored: %v", err)
	}

	envPath := writeFile(t, filepath.Join(home, ".env"),
		"DRILLGIS_DATA_SOURCE=postgres\nDRILLGIS_POSTGRES_DSN=postgres://localhost/drill\n")
	if err := loadEnvFile(envPath); err != nil {
		t.Fatalf("loadEnvFile: %v", err)
	}

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.DataSource != sourcePostgres || cfg.PostgresDSN != "postgres://localhost/drill" {
		t.Fatalf("env file not applied: %+v", cfg)
	}
}

func TestBuildDirectoryAndSource(t *testing.T) {
	home := setupHome(t)
	dirPath := writeFile(t, filepath.Join(home, "directory.yml"), strings.Join([]string{
		"companies:",
		"  - name: Company 1",
		"    code: \"100001\"",
		"accounts:",
		"  - pin: \"200001\"",
		"    kind: operator",
		"    company_code: \"100001\"",
		"",
	}, "\n"))
	companiesPath := writeFile(t, filepath.Join(home, "companies.yml"),
		"companies:\n  - name: Company 2\n    code: \"100002\"\n")

	cfg := appConfig{
		DataSource:    sourceCSV,
		CSVPath:       filepath.Join(home, "runs.csv"),
		Directory:     directoryStatic,
		DirectoryFile: dirPath,
		CompaniesPath: companiesPath,
	}
	dir, companies, err := buildDirectory(cfg)
	if err != nil {
		t.Fatalf("buildDirectory: %v", err)
	}
	if dir == nil {
		t.Fatal("expected a directory")
	}
	if len(companies) != 2 {
		t.Fatalf("companies = %v, want directory and file entries", companies)
	}

	src, err := buildSource(cfg, nil, companies)
	if err != nil {
		t.Fatalf("buildSource: %v", err)
	}
	if !strings.HasSuffix(src.Name(), "runs.csv") {
		t.Fatalf("source name = %q", src.Name())
	}

	cfg.DataSource = sourcePostgres
	cfg.PostgresTable = "drill runs"
	cfg.PostgresDSN = "postgres://localhost/drill"
	if _, err := buildSource(cfg, nil, companies); err == nil {
		t.Fatal("expected invalid table name to be rejected")
	}
}

func TestHoverFields(t *testing.T) {
	fields := hoverFields([]string{"date", "drill_depth"})
	if len(fields) != 2 || fields[0] != model.FieldDate || fields[1] != model.FieldDrillDepth {
		t.Fatalf("hoverFields = %v", fields)
	}
}
