package core

// Mode is a workspace's current durable state as observed from the
// control-plane. The dispatcher recognizes exactly
// the set of values below; any other string is logged as unknown and
// skipped.
type Mode string

const (
	ModePendingCreation Mode = "pending-creation"
	ModeCreating        Mode = "creating"

	ModeUpgrading Mode = "upgrading"
	ModeActive    Mode = "active"

	ModeArchivingPendingBackup Mode = "archiving-pending-backup"
	ModeArchivingBackup        Mode = "archiving-backup"
	ModeArchivingPendingClean  Mode = "archiving-pending-clean"
	ModeArchivingClean         Mode = "archiving-clean"

	ModeMigrationPendingBackup Mode = "migration-pending-backup"
	ModeMigrationBackup        Mode = "migration-backup"
	ModeMigrationPendingClean  Mode = "migration-pending-clean"
	ModeMigrationClean         Mode = "migration-clean"

	ModePendingRestore Mode = "pending-restore"
	ModeRestoring      Mode = "restoring"

	ModePendingDeletion Mode = "pending-deletion"
	ModeDeleting        Mode = "deleting"
)

// KnownModes is the exhaustive set of modes the dispatcher recognizes,
// exactly as the control-plane emits them.
var KnownModes = map[Mode]bool{
	ModePendingCreation: true,
	ModeCreating:        true,

	ModeUpgrading: true,
	ModeActive:    true,

	ModeArchivingPendingBackup: true,
	ModeArchivingBackup:        true,
	ModeArchivingPendingClean:  true,
	ModeArchivingClean:         true,

	ModeMigrationPendingBackup: true,
	ModeMigrationBackup:        true,
	ModeMigrationPendingClean:  true,
	ModeMigrationClean:         true,

	ModePendingRestore: true,
	ModeRestoring:      true,

	ModePendingDeletion: true,
	ModeDeleting:        true,
}

// Known reports whether m is one of the modes the dispatcher recognizes.
func (m Mode) Known() bool {
	return KnownModes[m]
}
