package phases

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foundry-works/workspace-worker/pkg/core"
)

func TestColdCreate(t *testing.T) {
	h := newHarness(t, nil)
	h.client.pending = []core.WorkspaceInfo{{Workspace: "w1", Mode: core.ModePendingCreation}}

	h.process(t, h.drained)

	events := h.client.events()
	require.NotEmpty(t, events)
	assert.Equal(t, recordedEvent{Workspace: "w1", Event: core.EventCreateStarted, Progress: 0}, events[0])
	assert.Equal(t, recordedEvent{Workspace: "w1", Event: core.EventCreateDone, Progress: 100}, events[len(events)-1])

	// The fake creator reported 25 then 75; both survive rounding.
	var progress []int
	for _, e := range events {
		if e.Event == core.EventProgress {
			progress = append(progress, e.Progress)
		}
	}
	assert.Equal(t, []int{25, 75}, progress)
	assert.Equal(t, 0, h.worker.Running())
	assert.Equal(t, 1, h.creator.callCount())
}

func TestResumeCreateAfterInitFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.client.pending = []core.WorkspaceInfo{{Workspace: "w2", Mode: core.ModeCreating, Progress: 42}}

	h.process(t, h.drained)

	// A creating workspace past the init threshold is advanced, not
	// re-initialised: one terminal marker at the observed progress.
	assert.Equal(t, []recordedEvent{
		{Workspace: "w2", Event: core.EventCreateDone, Progress: 42},
	}, h.client.events())
	assert.Equal(t, 0, h.creator.callCount())
}

func TestCreateRestartsBelowThreshold(t *testing.T) {
	h := newHarness(t, nil)
	h.client.pending = []core.WorkspaceInfo{{Workspace: "w2", Mode: core.ModeCreating, Progress: 12}}

	h.process(t, h.drained)

	// Progress 12 means the init script never completed; the full
	// sequence runs again.
	assert.Equal(t, 1, h.creator.callCount())
	events := h.client.events()
	require.NotEmpty(t, events)
	assert.Equal(t, core.EventCreateStarted, events[0].Event)
	assert.Equal(t, core.EventCreateDone, events[len(events)-1].Event)
}

func TestUpgradeSkippedWhenDisabled(t *testing.T) {
	h := newHarness(t, nil)
	h.client.pending = []core.WorkspaceInfo{{Workspace: "w3", Mode: core.ModeUpgrading, Disabled: true}}

	h.process(t, h.drained)

	assert.Empty(t, h.client.events())
	assert.Equal(t, 0, h.upgrader.callCount())
}

func TestUpgradeSkippedForIgnoredWorkspace(t *testing.T) {
	h := newHarness(t, func(cfg *Config, deps *Deps) {
		cfg.Ignore = []string{"frozen-tenant"}
	})
	h.client.pending = []core.WorkspaceInfo{
		{Workspace: "frozen-tenant", Mode: core.ModeActive},
		{Workspace: "live-tenant", Mode: core.ModeActive},
	}

	h.process(t, h.drained)

	assert.Equal(t, 1, h.upgrader.callCount())
	events := h.client.events()
	for _, e := range events {
		assert.Equal(t, "live-tenant", e.Workspace)
	}
}

func TestUpgradeRuns(t *testing.T) {
	h := newHarness(t, nil)
	h.client.pending = []core.WorkspaceInfo{{Workspace: "w3", Mode: core.ModeUpgrading}}

	h.process(t, h.drained)

	assert.Equal(t, 1, h.upgrader.callCount())
	events := h.client.events()
	require.Len(t, events, 2)
	assert.Equal(t, core.EventUpgradeStarted, events[0].Event)
	assert.Equal(t, recordedEvent{Workspace: "w3", Event: core.EventUpgradeDone, Progress: 100}, events[1])
}

func TestArchiveBackupThenClean(t *testing.T) {
	ftSrv, ftCalls := newFulltextServer(t, http.StatusOK)
	h := newHarness(t, func(cfg *Config, deps *Deps) {
		deps.Fulltext = newFulltextClient(ftSrv)
	})
	h.client.pending = []core.WorkspaceInfo{
		{Workspace: "w4", UUID: "u4", Mode: core.ModeArchivingBackup},
		{Workspace: "w4", UUID: "u4", Mode: core.ModeArchivingClean},
	}

	h.process(t, h.drained)

	assert.Equal(t, []recordedEvent{
		{Workspace: "w4", Event: core.EventArchivingBackupStarted, Progress: 0},
		{Workspace: "w4", Event: core.EventArchivingBackupDone, Progress: 100},
		{Workspace: "w4", Event: core.EventArchivingCleanStarted, Progress: 0},
		{Workspace: "w4", Event: core.EventArchivingCleanDone, Progress: 100},
	}, h.client.events())

	// The backup bound the workspace's DB URL with the full check on.
	h.backups.mu.Lock()
	require.Len(t, h.backups.backups, 1)
	assert.True(t, h.backups.backups[0].FullCheck)
	h.backups.mu.Unlock()

	// The clean force-closed serving sessions, destroyed the database,
	// and asked for a drop-and-rebuild reindex.
	forceCloses := h.trans.forceCloses()
	require.Len(t, forceCloses, 1)
	assert.Equal(t, "force-close", forceCloses[0].Get("operation"))
	assert.Equal(t, "w4", forceCloses[0].Get("workspace"))

	destroyed := h.adapters.destroyed()
	require.Len(t, destroyed, 1)
	assert.Equal(t, "w4", destroyed[0].Name)
	assert.Equal(t, "u4", destroyed[0].UUID)

	assert.GreaterOrEqual(t, ftCalls(), 1)
	assert.True(t, h.adapters.allClosed(), "every opened adapter must be closed")
}

func TestMigrateBackupSkipsFullCheck(t *testing.T) {
	h := newHarness(t, nil)
	h.client.pending = []core.WorkspaceInfo{{Workspace: "w6", Mode: core.ModeMigrationBackup}}

	h.process(t, h.drained)

	h.backups.mu.Lock()
	require.Len(t, h.backups.backups, 1)
	assert.False(t, h.backups.backups[0].FullCheck)
	h.backups.mu.Unlock()

	events := h.client.events()
	require.Len(t, events, 2)
	assert.Equal(t, core.EventMigrateBackupStarted, events[0].Event)
	assert.Equal(t, recordedEvent{Workspace: "w6", Event: core.EventMigrateBackupDone, Progress: 100}, events[1])
}

func TestMigrateCleanWithoutCleanupFlag(t *testing.T) {
	h := newHarness(t, nil)
	h.client.pending = []core.WorkspaceInfo{{Workspace: "w7", Mode: core.ModeMigrationClean}}

	h.process(t, h.drained)

	// Markers go out either way; the terminal marker carries progress 0.
	assert.Equal(t, []recordedEvent{
		{Workspace: "w7", Event: core.EventMigrateCleanStarted, Progress: 0},
		{Workspace: "w7", Event: core.EventMigrateCleanDone, Progress: 0},
	}, h.client.events())

	// Without the cleanup flag nothing is destroyed and the serving tier
	// is left alone.
	assert.Empty(t, h.adapters.destroyed())
	assert.Empty(t, h.trans.forceCloses())
}

func TestMigrateCleanWithCleanupFlag(t *testing.T) {
	h := newHarness(t, func(cfg *Config, deps *Deps) {
		cfg.MigrationCleanup = true
	})
	h.client.pending = []core.WorkspaceInfo{{Workspace: "w7", UUID: "u7", Mode: core.ModeMigrationClean}}

	h.process(t, h.drained)

	require.Len(t, h.adapters.destroyed(), 1)
	require.Len(t, h.trans.forceCloses(), 1)

	events := h.client.events()
	require.Len(t, events, 2)
	assert.Equal(t, recordedEvent{Workspace: "w7", Event: core.EventMigrateCleanDone, Progress: 0}, events[1])
}

func TestDeleteWithFailingReindex(t *testing.T) {
	ftSrv, ftCalls := newFulltextServer(t, http.StatusInternalServerError)
	h := newHarness(t, func(cfg *Config, deps *Deps) {
		deps.Fulltext = newFulltextClient(ftSrv)
	})
	h.client.pending = []core.WorkspaceInfo{{Workspace: "w5", UUID: "u5", Mode: core.ModeDeleting}}

	h.process(t, h.drained)

	// The reindex failure is logged and swallowed; the lifecycle still
	// completes because the workspace state transition already happened.
	assert.Equal(t, []recordedEvent{
		{Workspace: "w5", Event: core.EventDeleteStarted, Progress: 0},
		{Workspace: "w5", Event: core.EventDeleteDone, Progress: 100},
	}, h.client.events())

	require.Len(t, h.trans.forceCloses(), 1)
	require.Len(t, h.adapters.destroyed(), 1)
	assert.GreaterOrEqual(t, ftCalls(), 1)
}

func TestPoisonedWorkspace(t *testing.T) {
	var mu sync.Mutex
	var handled []error
	h := newHarness(t, func(cfg *Config, deps *Deps) {
		cfg.ErrorHandler = func(ws core.WorkspaceInfo, err error) {
			mu.Lock()
			handled = append(handled, err)
			mu.Unlock()
		}
	})
	h.creator.err = errors.New("init script exploded")
	h.client.pending = []core.WorkspaceInfo{
		{Workspace: "poisoned", Mode: core.ModePendingCreation},
		{Workspace: "healthy", Mode: core.ModeUpgrading},
	}

	h.process(t, h.drained)

	mu.Lock()
	require.Len(t, handled, 1)
	assert.Contains(t, handled[0].Error(), "init script exploded")
	mu.Unlock()

	// No done marker for the poisoned workspace, and the next job ran.
	for _, e := range h.client.events() {
		if e.Workspace == "poisoned" {
			assert.NotEqual(t, core.EventCreateDone, e.Event)
		}
	}
	assert.Equal(t, 1, h.upgrader.callCount())
	assert.Equal(t, 0, h.worker.Running())
}

func TestBackupErrorEmitsNoDoneAndClosesAdapter(t *testing.T) {
	h := newHarness(t, nil)
	h.backups.backupErr = errors.New("bucket unreachable")
	h.client.pending = []core.WorkspaceInfo{{Workspace: "w8", Mode: core.ModeArchivingBackup}}

	h.process(t, h.drained)

	events := h.client.events()
	require.Len(t, events, 1)
	assert.Equal(t, core.EventArchivingBackupStarted, events[0].Event)
	assert.True(t, h.adapters.allClosed(), "adapter must be closed on the error path")
}

func TestBackupFalseReturnLeavesModeUnchanged(t *testing.T) {
	h := newHarness(t, nil)
	h.backups.backupOK = false
	h.client.pending = []core.WorkspaceInfo{{Workspace: "w9", Mode: core.ModeArchivingBackup}}

	h.process(t, h.drained)

	events := h.client.events()
	require.Len(t, events, 1)
	assert.Equal(t, core.EventArchivingBackupStarted, events[0].Event)
}

func TestRestoreTriggersReindex(t *testing.T) {
	ftSrv, ftCalls := newFulltextServer(t, http.StatusOK)
	h := newHarness(t, func(cfg *Config, deps *Deps) {
		deps.Fulltext = newFulltextClient(ftSrv)
	})
	h.client.pending = []core.WorkspaceInfo{{Workspace: "w10", Mode: core.ModeRestoring}}

	h.process(t, h.drained)

	h.backups.mu.Lock()
	require.Len(t, h.backups.restores, 1)
	assert.True(t, h.backups.restores[0].BlobsOnly)
	h.backups.mu.Unlock()

	events := h.client.events()
	require.Len(t, events, 2)
	assert.Equal(t, core.EventRestoreStarted, events[0].Event)
	assert.Equal(t, recordedEvent{Workspace: "w10", Event: core.EventRestoreDone, Progress: 100}, events[1])
	assert.GreaterOrEqual(t, ftCalls(), 1)
	assert.True(t, h.adapters.allClosed())
}

func TestFileLogSinkWritesPerWorkspaceLog(t *testing.T) {
	logsDir := t.TempDir()
	h := newHarness(t, func(cfg *Config, deps *Deps) {
		cfg.Console = false
		cfg.LogsDir = logsDir
	})
	h.client.pending = []core.WorkspaceInfo{{Workspace: "w11", Mode: core.ModePendingCreation}}

	h.process(t, h.drained)

	data, err := os.ReadFile(filepath.Join(logsDir, "w11.log"))
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
