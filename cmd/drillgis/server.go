package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/drillgis/internal/auth"
	"github.com/tinytelemetry/drillgis/internal/dashboard"
	"github.com/tinytelemetry/drillgis/internal/duckdb"
	"github.com/tinytelemetry/drillgis/internal/httpserver"
	"github.com/tinytelemetry/drillgis/internal/model"
	"github.com/tinytelemetry/drillgis/internal/records"
	"github.com/tinytelemetry/drillgis/internal/source"
)

// runServer loads the drill runs and serves the dashboard API.
func runServer(cfg appConfig) error {
	cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	// DuckDB mirrors the loaded runs for the SQL endpoints.
	store, err := duckdb.NewStore(cfg.DBPath, cfg.QueryTimeout)
	if err != nil {
		return fmt.Errorf("failed to initialize DuckDB: %w", err)
	}
	defer store.Close()

	dir, companies, err := buildDirectory(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize directory: %w", err)
	}

	src, err := buildSource(cfg, store, companies)
	if err != nil {
		return fmt.Errorf("failed to initialize data source: %w", err)
	}

	runs := records.NewStore(store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A source that cannot be read at startup is fatal.
	snap, err := runs.Load(ctx, src)
	if err != nil {
		return err
	}

	authenticator := auth.New(auth.NewRateLimited(dir, cfg.AuthRate, cfg.AuthBurst), cfg.AuthTimeout)
	engine := dashboard.NewEngine(runs, authenticator, cfg.SessionTTL)
	if len(cfg.HoverFields) > 0 {
		engine.HoverFields = hoverFields(cfg.HoverFields)
	}

	reload := func(ctx context.Context) (*records.Snapshot, error) {
		return runs.Load(ctx, src)
	}

	apiServer := httpserver.NewServer(cfg.APIAddr, store, runs, engine, reload)
	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	defer apiServer.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		// Shutdown deadline starts now, not at boot.
		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		os.Exit(1)
	}()

	printStartupBanner(cfg, src.Name(), snap)

	g, gctx := errgroup.WithContext(ctx)

	// Expired sessions are swept on access; this keeps idle servers tidy too.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.SessionTTL)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := engine.Sessions().Sweep(); n > 0 {
					log.Printf("dashboard: expired %d sessions", n)
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("server: errgroup exited with error: %v", err)
	}

	signal.Stop(sigCh)
	return nil
}

// buildDirectory returns the account directory and the company table used to
// name companies while loading runs.
func buildDirectory(cfg appConfig) (auth.Directory, []model.Company, error) {
	var (
		dir       auth.Directory
		companies []model.Company
	)

	switch cfg.Directory {
	case directoryStatic:
		static, err := auth.LoadStaticFile(cfg.DirectoryFile)
		if err != nil {
			return nil, nil, err
		}
		dir = static
		companies = static.Companies()
	case directoryHTTP:
		client := &http.Client{Timeout: cfg.AuthTimeout}
		httpDir, err := auth.NewHTTPDirectory(cfg.AuthURL, client)
		if err != nil {
			return nil, nil, err
		}
		dir = httpDir
	case directoryLDAP:
		ldapDir, err := auth.NewLDAPDirectory(auth.LDAPConfig{
			URL:                  cfg.LDAPURL,
			BindDN:               cfg.LDAPBindDN,
			BindPassword:         cfg.LDAPBindPassword,
			BaseDN:               cfg.LDAPBaseDN,
			PinAttribute:         cfg.LDAPPinAttr,
			CompanyAttribute:     cfg.LDAPCompanyAttr,
			CompanyCodeAttribute: cfg.LDAPCodeAttr,
			KindAttribute:        cfg.LDAPKindAttr,
		})
		if err != nil {
			return nil, nil, err
		}
		dir = ldapDir
	default:
		return nil, nil, fmt.Errorf("unknown directory %q", cfg.Directory)
	}

	if cfg.CompaniesPath != "" {
		extra, err := source.LoadCompanies(cfg.CompaniesPath)
		if err != nil {
			return nil, nil, err
		}
		companies = append(companies, extra...)
	}
	if len(companies) == 0 {
		log.Printf("server: no company table configured, every run is labelled %q", model.OtherLabel)
	}
	return dir, companies, nil
}

func buildSource(cfg appConfig, store *duckdb.Store, companies []model.Company) (model.RecordSource, error) {
	table := source.NewCompanyTable(companies)
	switch cfg.DataSource {
	case sourceCSV:
		return source.NewCSVFile(cfg.CSVPath, table), nil
	case sourcePostgres:
		return source.NewPostgres(cfg.PostgresDSN, cfg.PostgresTable, table)
	case sourceDuckDB:
		return store, nil
	}
	return nil, fmt.Errorf("unknown data-source %q", cfg.DataSource)
}

func hoverFields(names []string) []model.Field {
	fields := make([]model.Field, 0, len(names))
	for _, n := range names {
		fields = append(fields, model.Field(n))
	}
	return fields
}

func configureRuntimeLogger() func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	home, err := os.UserHomeDir()
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logDir := filepath.Join(home, ".local", "state", "drillgis")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logPath := filepath.Join(logDir, "drillgis.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		_ = f.Close()
	}
}

func printStartupBanner(cfg appConfig, sourceName string, snap *records.Snapshot) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")
	warn := yellow.Render("●")

	logo := cyan.Bold(true).Render(`
    ╔╦╗╦═╗╦╦  ╦  ╔═╗╦╔═╗
     ║║╠╦╝║║  ║  ║ ╦║╚═╗
    ═╩╝╩╚═╩╩═╝╩═╝╚═╝╩╚═╝`)

	ver := dim.Render("v" + version)

	var lines []string
	lines = append(lines, "")
	lines = append(lines, logo)
	lines = append(lines, "    "+ver)
	lines = append(lines, "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator)
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Gateway"))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render(cfg.APIAddr)))
	lines = append(lines, fmt.Sprintf("    %s  Directory      %s", check, dim.Render(cfg.Directory)))
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Data"))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("    %s  Source         %s", check, dim.Render(shortenPath(sourceName))))
	lines = append(lines, fmt.Sprintf("    %s  Drill Runs     %s", check, cyan.Render(fmt.Sprintf("%d", snap.Len()))))
	if snap.Skipped() > 0 {
		lines = append(lines, fmt.Sprintf("    %s  Dropped Rows   %s", warn, yellow.Render(fmt.Sprintf("%d", snap.Skipped()))))
	}
	if cfg.DBPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Storage        %s", check, dim.Render(shortenPath(cfg.DBPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Storage        %s", dot, dim.Render("in-memory")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Config"))
	lines = append(lines, "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}
	lines = append(lines, fmt.Sprintf("    %s  Session TTL    %s", check, dim.Render(cfg.SessionTTL.String())))

	lines = append(lines, "")
	lines = append(lines, separator)
	lines = append(lines, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"))
	lines = append(lines, "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
