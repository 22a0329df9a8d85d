package core

// Event is one of the string literals the worker sends back to the
// control-plane as the `event` field of updateWorkspaceInfo.
type Event string

// The full event vocabulary accepted by the control-plane.
const (
	EventPing     Event = "ping"
	EventProgress Event = "progress"

	EventCreateStarted Event = "create-started"
	EventCreateDone    Event = "create-done"

	EventUpgradeStarted Event = "upgrade-started"
	EventUpgradeDone    Event = "upgrade-done"

	EventArchivingBackupStarted Event = "archiving-backup-started"
	EventArchivingBackupDone    Event = "archiving-backup-done"
	EventArchivingCleanStarted  Event = "archiving-clean-started"
	EventArchivingCleanDone     Event = "archiving-clean-done"

	EventMigrateBackupStarted Event = "migrate-backup-started"
	EventMigrateBackupDone    Event = "migrate-backup-done"
	EventMigrateCleanStarted  Event = "migrate-clean-started"
	EventMigrateCleanDone     Event = "migrate-clean-done"

	EventRestoreStarted Event = "restore-started"
	EventRestoreDone    Event = "restore-done"

	EventDeleteStarted Event = "delete-started"
	EventDeleteDone    Event = "delete-done"
)

// Phase identifies a single lifecycle transition a phase handler drives
// against a workspace. Its string value is the event prefix shared by
// the phase's started/done events, e.g. "archiving-backup".
type Phase string

const (
	PhaseCreate          Phase = "create"
	PhaseUpgrade         Phase = "upgrade"
	PhaseArchivingBackup Phase = "archiving-backup"
	PhaseArchivingClean  Phase = "archiving-clean"
	PhaseMigrateBackup   Phase = "migrate-backup"
	PhaseMigrateClean    Phase = "migrate-clean"
	PhaseRestore         Phase = "restore"
	PhaseDelete          Phase = "delete"
)

// Started returns the phase's "<phase>-started" event.
func (p Phase) Started() Event { return Event(string(p) + "-started") }

// Done returns the phase's "<phase>-done" event.
func (p Phase) Done() Event { return Event(string(p) + "-done") }
