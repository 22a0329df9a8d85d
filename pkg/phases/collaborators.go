package phases

import (
	"context"
	"log/slog"

	"github.com/foundry-works/workspace-worker/pkg/core"
	"github.com/foundry-works/workspace-worker/pkg/storageadapter"
)

// ProgressFunc receives raw progress observations in percent. Values may
// repeat or regress; the reporter behind it rounds and debounces.
type ProgressFunc func(p float64)

// CreateRequest carries everything the external create operation needs:
// model initialisation, indices, and seed data for a fresh workspace.
type CreateRequest struct {
	Workspace core.WorkspaceInfo
	Branding  *core.Branding
	Version   core.Version
	Txes      []string
	Logger    *slog.Logger
	Progress  ProgressFunc
}

// WorkspaceCreator runs the full create sequence for a workspace. The init
// script inside it is not reliably re-entrant; callers must not re-run it
// for a workspace that already made it past initialisation.
type WorkspaceCreator interface {
	CreateWorkspace(ctx context.Context, req CreateRequest) error
}

// UpgradeRequest carries the target version and transaction/migration sets
// for the external upgrade operation, which is itself re-entrant.
type UpgradeRequest struct {
	Workspace core.WorkspaceInfo
	Version   core.Version
	Txes      []string
	Force     bool
	Logger    *slog.Logger
	Progress  ProgressFunc
}

// WorkspaceUpgrader brings a workspace's schema up to the worker's version.
type WorkspaceUpgrader interface {
	UpgradeWorkspace(ctx context.Context, req UpgradeRequest) error
}

// BackupOptions names the backup destination.
type BackupOptions struct {
	Storage string
	Bucket  string
}

// BackupRequest binds a backup run to the workspace's DB endpoint and
// transaction set. FullCheck requests a full integrity pass over the
// backed-up data; migration backups skip it because migration is
// time-critical and a full check is scheduled separately beforehand.
type BackupRequest struct {
	Workspace core.WorkspaceInfo
	Adapter   storageadapter.Adapter
	Txes      []string
	FullCheck bool
	Options   *BackupOptions
	Logger    *slog.Logger
	Progress  ProgressFunc
}

// RestoreRequest mirrors BackupRequest for the restore direction.
// BlobsOnly restricts the restore to the blob domain; the transactional
// data is rebuilt by the serving tier on first open.
type RestoreRequest struct {
	Workspace core.WorkspaceInfo
	Adapter   storageadapter.Adapter
	BlobsOnly bool
	Options   *BackupOptions
	Logger    *slog.Logger
	Progress  ProgressFunc
}

// BackupRunner pumps workspace bytes to and from backup storage. Backup
// reports false when there was nothing to back up; that is not an error,
// but it does not advance the workspace's state machine either.
type BackupRunner interface {
	Backup(ctx context.Context, req BackupRequest) (bool, error)
	Restore(ctx context.Context, req RestoreRequest) error
}
