package phases

import (
	"log/slog"

	"github.com/foundry-works/workspace-worker/pkg/controlplane"
	"github.com/foundry-works/workspace-worker/pkg/core"
	"github.com/foundry-works/workspace-worker/pkg/fulltext"
	"github.com/foundry-works/workspace-worker/pkg/storageadapter"
	"github.com/foundry-works/workspace-worker/pkg/transactor"
	"github.com/foundry-works/workspace-worker/pkg/worker"
)

// Config holds the handler-facing slice of the worker's configuration.
type Config struct {
	// Token authenticates every control-plane and service call.
	Token string

	// DBURL is the workspace database tier; its scheme selects the
	// storage adapter.
	DBURL string

	// Version is the worker's target version, stamped on every event.
	Version core.Version

	// Txes is the transaction/migration set threaded into the external
	// create, upgrade, and backup operations.
	Txes []string

	// LogsDir receives per-workspace log files when Console is false.
	LogsDir string

	// Console streams phase logs to the process logger instead of files.
	Console bool

	// Ignore lists workspace ids the upgrade phase must skip.
	Ignore []string

	// Force is passed through to the external upgrade operation.
	Force bool

	// MigrationCleanup gates the destructive step of the migrate-clean
	// phase; without it the phase only emits its markers.
	MigrationCleanup bool

	// Brandings maps branding names to the records threaded into create.
	Brandings map[string]core.Branding

	// Backup names the backup destination for backup/restore phases.
	Backup *BackupOptions

	// ErrorHandler is invoked once per failed phase with the workspace
	// and the error. Optional.
	ErrorHandler func(ws core.WorkspaceInfo, err error)
}

// Deps are the collaborators the handlers drive.
type Deps struct {
	Client      controlplane.Client
	Adapters    *storageadapter.Registry
	Maintenance *transactor.Maintenance
	Fulltext    *fulltext.Client // nil disables reindex calls
	Creator     WorkspaceCreator
	Upgrader    WorkspaceUpgrader
	Backups     BackupRunner
	Backoff     worker.BackoffConfig
	Observer    worker.Observer
	Logger      *slog.Logger
}

// Handlers is the full set of phase handlers, sharing one config and one
// collaborator set.
type Handlers struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger
}

// New creates the handler set.
func New(cfg Config, deps Deps) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{cfg: cfg, deps: deps, logger: logger}
}

// RegisterAll binds every handler to the modes it serves. Pending and
// in-progress variants of a phase route to the same handler: a mode
// observed mid-phase means a previous attempt died and the handler resumes
// or restarts as its phase allows.
func (h *Handlers) RegisterAll(w *worker.Worker) {
	w.Register(core.ModePendingCreation, h.Create)
	w.Register(core.ModeCreating, h.Create)

	w.Register(core.ModeUpgrading, h.Upgrade)
	w.Register(core.ModeActive, h.Upgrade)

	w.Register(core.ModeArchivingPendingBackup, h.ArchiveBackup)
	w.Register(core.ModeArchivingBackup, h.ArchiveBackup)
	w.Register(core.ModeArchivingPendingClean, h.ArchiveClean)
	w.Register(core.ModeArchivingClean, h.ArchiveClean)

	w.Register(core.ModeMigrationPendingBackup, h.MigrateBackup)
	w.Register(core.ModeMigrationBackup, h.MigrateBackup)
	w.Register(core.ModeMigrationPendingClean, h.MigrateClean)
	w.Register(core.ModeMigrationClean, h.MigrateClean)

	w.Register(core.ModePendingRestore, h.Restore)
	w.Register(core.ModeRestoring, h.Restore)

	w.Register(core.ModePendingDeletion, h.Delete)
	w.Register(core.ModeDeleting, h.Delete)
}
