// Package main runs one workspace lifecycle worker. A fleet of these runs
// per region; the account service hands each pending workspace to exactly
// one of them, matched on region, version, and declared operation.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/foundry-works/workspace-worker/pkg/controlplane"
	"github.com/foundry-works/workspace-worker/pkg/core"
	"github.com/foundry-works/workspace-worker/pkg/extproc"
	"github.com/foundry-works/workspace-worker/pkg/fulltext"
	"github.com/foundry-works/workspace-worker/pkg/phases"
	"github.com/foundry-works/workspace-worker/pkg/status"
	"github.com/foundry-works/workspace-worker/pkg/storageadapter"
	"github.com/foundry-works/workspace-worker/pkg/transactor"
	"github.com/foundry-works/workspace-worker/pkg/worker"
)

func main() {
	accountURL := flag.String("account-url", "http://localhost:3000", "Account service base URL")
	token := flag.String("token", os.Getenv("ACCOUNT_TOKEN"), "Account service token (or ACCOUNT_TOKEN)")
	region := flag.String("region", "", "Worker region; empty means default")
	versionStr := flag.String("version", "0.1.0", "Worker target version (major.minor.patch)")
	limit := flag.Int("limit", 5, "Max concurrent workspace jobs")
	operation := flag.String("operation", string(core.OperationAll), "Declared capability: create | upgrade | all | all+backup")
	dbURL := flag.String("db-url", os.Getenv("DB_URL"), "Workspace database URL (or DB_URL); scheme selects the adapter")
	fulltextURL := flag.String("fulltext-url", "", "Full-text service URL; empty disables reindex calls")
	txes := flag.String("tx", "", "Comma-separated transaction/migration set for the external tools")
	brandingsPath := flag.String("brandings", "", "Path to a JSON file mapping branding names to records")
	ignore := flag.String("ignore", "", "Comma-separated workspace ids the upgrade phase skips")
	force := flag.Bool("force", false, "Force external upgrades")
	console := flag.Bool("console", false, "Stream phase logs to the console instead of per-workspace files")
	logsDir := flag.String("logs", "logs", "Directory for per-workspace log files")
	waitTimeout := flag.Duration("wait-timeout", 5*time.Second, "Idle sleep between empty polls")
	statusAddr := flag.String("status-addr", "", "Admin/status listen address, e.g. :8080; empty disables")
	housekeeping := flag.String("housekeeping", "", "Cron expression for the periodic identity/load log line")
	createTool := flag.String("create-tool", "", "External create binary")
	upgradeTool := flag.String("upgrade-tool", "", "External upgrade binary")
	backupTool := flag.String("backup-tool", "", "External backup binary")
	restoreTool := flag.String("restore-tool", "", "External restore binary")
	backupStorage := flag.String("backup-storage", "", "Backup storage kind for the external tools")
	backupBucket := flag.String("backup-bucket", "", "Backup bucket name")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	version, err := core.ParseVersion(*versionStr)
	if err != nil {
		fatal(logger, "parsing version", err)
	}
	if *token == "" {
		fatal(logger, "configuration", fmt.Errorf("no account token: pass -token or set ACCOUNT_TOKEN"))
	}

	identity := core.WorkerIdentity{
		Version:     version,
		Region:      *region,
		Limit:       *limit,
		Operation:   core.Operation(*operation),
		Brandings:   loadBrandings(logger, *brandingsPath),
		FulltextURL: *fulltextURL,
	}
	if err := identity.Validate(); err != nil {
		fatal(logger, "validating identity", err)
	}

	client := controlplane.NewHTTPClient(*accountURL, logger)
	backoff := worker.DefaultBackoffConfig()

	adapters := storageadapter.NewRegistry()
	adapters.Register("postgresql", storageadapter.NewPostgresFactory())
	adapters.Register("mongodb", storageadapter.NewMongoFactory())
	logger.Info("storage adapters registered", "schemes", adapters.Schemes())

	var ft *fulltext.Client
	if *fulltextURL != "" {
		ft = fulltext.NewClient(*fulltextURL, *token, backoff, logger)
	}

	collector := status.NewCollector(256, logger)

	w := worker.New(client, identity, *token,
		worker.WithWaitTimeout(*waitTimeout),
		worker.WithBackoff(backoff),
		worker.WithLogger(logger),
		worker.WithTelemetry(collector),
		worker.WithObserver(collector.Observe),
		worker.WithHousekeeping(*housekeeping),
	)

	runner := extproc.NewRunner(extproc.Tools{
		Create:  *createTool,
		Upgrade: *upgradeTool,
		Backup:  *backupTool,
		Restore: *restoreTool,
	}, logger)

	var backup *phases.BackupOptions
	if *backupStorage != "" || *backupBucket != "" {
		backup = &phases.BackupOptions{Storage: *backupStorage, Bucket: *backupBucket}
	}

	handlers := phases.New(phases.Config{
		Token:            *token,
		DBURL:            *dbURL,
		Version:          version,
		Txes:             splitList(*txes),
		LogsDir:          *logsDir,
		Console:          *console,
		Ignore:           splitList(*ignore),
		Force:            *force,
		MigrationCleanup: os.Getenv("MIGRATION_CLEANUP") == "true",
		Brandings:        identity.Brandings,
		Backup:           backup,
		ErrorHandler: func(ws core.WorkspaceInfo, err error) {
			logger.Error("workspace phase failed", "workspace", ws.Workspace, "error", err)
		},
	}, phases.Deps{
		Client:      client,
		Adapters:    adapters,
		Maintenance: transactor.NewMaintenance(client, *token, backoff, logger),
		Fulltext:    ft,
		Creator:     runner,
		Upgrader:    runner,
		Backups:     runner,
		Backoff:     backoff,
		Observer:    collector.Observe,
		Logger:      logger,
	})
	handlers.RegisterAll(w)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *statusAddr != "" {
		srv := status.NewServer(w, collector, logger)
		go func() {
			if err := srv.Run(ctx, *statusAddr); err != nil {
				logger.Error("status server failed", "error", err)
			}
		}()
	}

	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		fatal(logger, "worker loop", err)
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func loadBrandings(logger *slog.Logger, path string) map[string]core.Branding {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fatal(logger, "reading brandings", err)
	}
	var brandings map[string]core.Branding
	if err := json.Unmarshal(data, &brandings); err != nil {
		fatal(logger, "parsing brandings", err)
	}
	return brandings
}

func fatal(logger *slog.Logger, stage string, err error) {
	logger.Error(stage, "error", err)
	os.Exit(1)
}
