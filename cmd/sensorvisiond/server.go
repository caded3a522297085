package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/CodeFleck/sensorvision-sub002/internal/auth"
	"github.com/CodeFleck/sensorvision-sub002/internal/backup"
	"github.com/CodeFleck/sensorvision-sub002/internal/duckdb"
	"github.com/CodeFleck/sensorvision-sub002/internal/events"
	"github.com/CodeFleck/sensorvision-sub002/internal/httpserver"
	"github.com/CodeFleck/sensorvision-sub002/internal/importer"
	"github.com/CodeFleck/sensorvision-sub002/internal/ingest"
	"github.com/CodeFleck/sensorvision-sub002/internal/journal"
	"github.com/CodeFleck/sensorvision-sub002/internal/layout"
	"github.com/CodeFleck/sensorvision-sub002/internal/model"
	"github.com/CodeFleck/sensorvision-sub002/internal/otlpingest"
	"github.com/CodeFleck/sensorvision-sub002/internal/socketrpc"
)

// runServer starts headless telemetry ingestion with the HTTP API.
func runServer(cfg appConfig) error {
	cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	registerMetrics()

	// Initialize DuckDB store
	store, err := duckdb.NewStore(cfg.DBPath, cfg.QueryTimeout)
	if err != nil {
		return fmt.Errorf("failed to initialize DuckDB: %w", err)
	}
	defer store.Close()

	tokens, err := setupAuth(store, cfg)
	if err != nil {
		return err
	}

	// Open local ingest journal for crash-safe replay and durable buffering.
	var ingestJournal *journal.Journal
	if cfg.JournalEnabled {
		ingestJournal, err = journal.Open(cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("failed to open ingest journal: %w", err)
		}
		if err := replayUncommittedJournal(ingestJournal, store, cfg.InsertBatchSize); err != nil {
			_ = ingestJournal.Close()
			return fmt.Errorf("failed to replay ingest journal: %w", err)
		}
	}

	// Create insert buffer for batched DuckDB writes
	insertBuffer := duckdb.NewInsertBuffer(store, duckdb.InsertBufferConfig{
		BatchSize:      cfg.InsertBatchSize,
		FlushInterval:  cfg.InsertFlushInterval,
		FlushQueueSize: cfg.InsertFlushQueue,
		Journal:        ingestJournal,
	})
	defer insertBuffer.Stop()

	// Start retention cleaner for automatic telemetry expiry
	retentionCleaner := duckdb.NewRetentionCleaner(store, cfg.RetentionInterval)
	if retentionCleaner != nil {
		defer retentionCleaner.Stop()
	}

	// Start periodic backups when enabled.
	backupManager, err := backup.NewManager(store, backup.Config{
		Enabled:        cfg.BackupEnabled,
		Interval:       cfg.BackupInterval,
		LocalDir:       cfg.BackupLocalDir,
		KeepLast:       cfg.BackupKeepLast,
		BucketURL:      cfg.BackupBucketURL,
		S3Endpoint:     cfg.BackupS3Endpoint,
		S3Region:       cfg.BackupS3Region,
		S3AccessKey:    cfg.BackupS3AccessKey,
		S3SecretKey:    cfg.BackupS3SecretKey,
		S3SessionToken: cfg.BackupS3SessionToken,
		S3UseSSL:       cfg.BackupS3UseSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize backups: %w", err)
	}
	if backupManager != nil {
		defer backupManager.Stop()
	}

	// Debounce widget drag bursts into one store write per widget. Failed
	// writes surface as in-app notifications.
	debouncer := layout.NewDebouncer(store, layout.Config{
		Window:      cfg.DebounceWindow,
		FlushOnStop: cfg.DebounceFlushOnStop,
		Notifier: layout.NotifierFunc(func(dashboardID, widgetID int64, err error) {
			log.Printf("layout: save failed for widget %d on dashboard %d: %v", widgetID, dashboardID, err)
			msg := fmt.Sprintf("Layout save failed for widget %d on dashboard %d: %v", widgetID, dashboardID, err)
			if _, nerr := store.NotifyLayoutSaveFailed(msg); nerr != nil {
				log.Printf("layout: recording save failure notification: %v", nerr)
			}
		}),
	})
	defer debouncer.Stop()

	clusterer := events.NewClusterer()

	// Start HTTP API server if enabled
	if cfg.APIEnabled {
		apiServer := httpserver.NewServer(cfg.APIAddr, httpserver.Deps{
			Store:     store,
			Tokens:    tokens,
			Points:    insertBuffer,
			Importer:  importer.New(insertBuffer),
			Debouncer: debouncer,
			Clusterer: clusterer,
			Retention: retentionCleaner,
		})
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
	}

	// Start OTLP gRPC receiver if enabled
	if cfg.OTLPEnabled {
		otlpServer := otlpingest.NewServer(cfg.OTLPAddr, insertBuffer)
		if err := otlpServer.Start(); err != nil {
			return fmt.Errorf("failed to start OTLP receiver: %w", err)
		}
		defer otlpServer.Stop()
	}

	// Start socket RPC server for local admin IPC
	sockServer := socketrpc.NewServer(cfg.SocketPath, opsFacade{store: store, retention: retentionCleaner})
	if err := sockServer.Start(); err != nil {
		log.Printf("Warning: failed to start socket server: %v", err)
	} else {
		defer sockServer.Stop()
	}

	// Set up context and signal handling before errgroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		// Shutdown deadline starts now - not at boot.
		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		cleanupSocket(cfg.SocketPath)
		os.Exit(1)
	}()

	// Build input plugins and source multiplexer
	plugins := buildInputPlugins(InputPluginConfig{
		TCPEnabled: cfg.TCPEnabled,
		TCPAddr:    cfg.TCPAddr,
	})

	sources := make([]NamedTelemetrySource, 0, len(plugins))
	for _, plugin := range plugins {
		if !plugin.Enabled() {
			continue
		}
		src, err := plugin.Build(ctx)
		if err != nil {
			log.Printf("Error initializing input plugin %q: %v", plugin.Name(), err)
			continue
		}
		sources = append(sources, src)
	}

	mux := NewSourceMultiplexer(ctx, sources, cfg.MuxBufferSize)
	mux.Start()

	processor := ingest.NewProcessor(insertBuffer, ingest.Config{
		Events:    store,
		Clusterer: clusterer,
	})

	printStartupBanner(cfg, mux.HasSources())

	// Use errgroup for concurrent goroutine lifecycle management.
	g, gctx := errgroup.WithContext(ctx)

	// Ingestion loop
	if mux.HasSources() {
		g.Go(func() error {
			for env := range mux.Lines() {
				processor.ProcessEnvelope(env)
			}
			return nil
		})
	}

	// Wait for context cancellation (from signal handler) in the errgroup
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	// Wait for either signal or all sources to close.
	if err := g.Wait(); err != nil {
		log.Printf("server: errgroup exited with error: %v", err)
	}

	cancel()
	mux.Stop()

	// If we reach here, graceful shutdown succeeded within the deadline.
	// The signal goroutine (if active) dies with the process.
	signal.Stop(sigCh)

	return nil
}

// opsFacade exposes the admin surface of the store and retention cleaner
// over the ops RPC socket.
type opsFacade struct {
	store     *duckdb.Store
	retention *duckdb.RetentionCleaner
}

func (o opsFacade) TelemetryCount() (int64, error) { return o.store.TelemetryCount() }
func (o opsFacade) DeviceCount() (int64, error)    { return o.store.DeviceCount() }

func (o opsFacade) ListDevices(limit int) ([]model.Device, error) {
	return o.store.ListDevices(limit)
}

func (o opsFacade) ListTrash() ([]model.TrashEntry, error) { return o.store.ListTrash("") }
func (o opsFacade) RestoreTrash(id int64) error            { return o.store.RestoreTrash(id) }

func (o opsFacade) RunRetentionNow() (model.RetentionExecution, error) {
	if o.retention == nil {
		return model.RetentionExecution{}, errors.New("retention disabled")
	}
	return o.retention.RunNow()
}

func (o opsFacade) RecentNotifications(limit int) ([]model.Notification, error) {
	return o.store.RecentNotifications(limit)
}

// registerMetrics installs every package's prometheus collectors in the
// default registry. Must run once, before any server starts.
func registerMetrics() {
	ingest.RegisterMetrics()
	otlpingest.RegisterMetrics()
	layout.RegisterMetrics()
	httpserver.RegisterMetrics()
	backup.RegisterMetrics()
}

// setupAuth builds the token manager and creates the initial admin account
// on an empty user table.
func setupAuth(store *duckdb.Store, cfg appConfig) (*auth.TokenManager, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		raw := make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			return nil, fmt.Errorf("failed to generate jwt secret: %w", err)
		}
		secret = hex.EncodeToString(raw)
		log.Printf("auth: no jwt-secret configured, using an ephemeral one; logins will not survive restarts")
	}
	tokens := auth.NewTokenManager(secret, cfg.TokenTTL)

	count, err := store.CountUsers()
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if count == 0 {
		hash, err := auth.HashPassword(cfg.AdminPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to hash admin password: %w", err)
		}
		if _, err := store.CreateUser(cfg.AdminUsername, hash, model.RoleAdmin); err != nil {
			return nil, fmt.Errorf("failed to create admin user: %w", err)
		}
		log.Printf("auth: created initial admin user %q", cfg.AdminUsername)
		if cfg.AdminPassword == defaultAdminPassword {
			log.Printf("auth: admin user has the default password, change it after first login")
		}
	}

	return tokens, nil
}

func cleanupSocket(path string) {
	if path != "" {
		os.Remove(path)
	}
}

func configureRuntimeLogger() func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	home, err := os.UserHomeDir()
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logDir := filepath.Join(home, ".local", "state", "sensorvision")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logPath := filepath.Join(logDir, "sensorvisiond.log")
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

func replayUncommittedJournal(j *journal.Journal, store *duckdb.Store, batchSize int) error {
	if j == nil {
		return nil
	}
	if batchSize <= 0 {
		batchSize = defaultInsertBatchSize
	}

	batch := make([]*duckdb.TelemetryPoint, 0, batchSize)
	batchMaxSeq := uint64(0)
	replayed := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := store.InsertTelemetryBatch(batch); err != nil {
			return err
		}
		if batchMaxSeq > 0 {
			if err := j.Commit(batchMaxSeq); err != nil {
				return err
			}
		}
		replayed += len(batch)
		batch = make([]*duckdb.TelemetryPoint, 0, batchSize)
		batchMaxSeq = 0
		return nil
	}

	if err := j.Replay(func(seq uint64, point *model.TelemetryPoint) error {
		copied := *point
		batch = append(batch, &copied)
		if seq > batchMaxSeq {
			batchMaxSeq = seq
		}
		if len(batch) >= batchSize {
			return flush()
		}
		return nil
	}); err != nil {
		return err
	}

	if err := flush(); err != nil {
		return err
	}
	if replayed > 0 {
		log.Printf("ingest journal: replayed %d uncommitted points", replayed)
	}
	return nil
}

func printStartupBanner(cfg appConfig, _ bool) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╔═╗╔═╗╔╗╔╔═╗╔═╗╦═╗╦  ╦╦╔═╗╦╔═╗╔╗╔
    ╚═╗║╣ ║║║╚═╗║ ║╠╦╝╚╗╔╝║╚═╗║║ ║║║║
    ╚═╝╚═╝╝╚╝╚═╝╚═╝╩╚═ ╚╝ ╩╚═╝╩╚═╝╝╚╝`)

	ver := dim.Render("v" + version)

	var lines []string
	lines = append(lines, "")
	lines = append(lines, logo)
	lines = append(lines, "    "+ver)
	lines = append(lines, "")

	separator := dim.Render("    ─────────────────────────────────────")
	lines = append(lines, separator)
	lines = append(lines, "")

	// Gateway
	lines = append(lines, bold.Render("    Gateway"))
	lines = append(lines, "")

	if cfg.APIEnabled {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render(cfg.APIAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", dot, dim.Render("disabled")))
	}

	if cfg.TCPEnabled {
		lines = append(lines, fmt.Sprintf("    %s  TCP Ingest     %s", check, cyan.Render(cfg.TCPAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  TCP Ingest     %s", dot, dim.Render("disabled")))
	}

	if cfg.OTLPEnabled {
		lines = append(lines, fmt.Sprintf("    %s  OTLP Ingest    %s", check, cyan.Render(cfg.OTLPAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  OTLP Ingest    %s", dot, dim.Render("disabled")))
	}

	lines = append(lines, fmt.Sprintf("    %s  Unix Socket    %s", check, cyan.Render(shortenPath(cfg.SocketPath))))
	lines = append(lines, "")

	// Storage
	lines = append(lines, bold.Render("    Storage"))
	lines = append(lines, "")

	lines = append(lines, fmt.Sprintf("    %s  Database       %s", check, dim.Render(shortenPath(cfg.DBPath))))
	if cfg.JournalEnabled {
		lines = append(lines, fmt.Sprintf("    %s  Journal        %s", check, dim.Render(shortenPath(cfg.JournalPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Journal        %s", dot, dim.Render("disabled")))
	}
	if cfg.BackupEnabled {
		lines = append(lines, fmt.Sprintf("    %s  Snapshots      %s", check, dim.Render(shortenPath(cfg.BackupLocalDir))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Snapshots      %s", dot, dim.Render("disabled")))
	}

	lines = append(lines, "")

	// Runtime
	lines = append(lines, bold.Render("    Runtime"))
	lines = append(lines, "")

	if cfg.RetentionInterval > 0 {
		lines = append(lines, fmt.Sprintf("    %s  Retention      %s", check, dim.Render("every "+cfg.RetentionInterval.String())))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Retention      %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, fmt.Sprintf("    %s  Layout Window  %s", check, dim.Render(cfg.DebounceWindow.String())))

	lines = append(lines, "")
	lines = append(lines, bold.Render("    Config"))
	lines = append(lines, "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}

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
