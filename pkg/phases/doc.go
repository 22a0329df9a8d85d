// Package phases implements the lifecycle phase handlers: create, upgrade,
// archive (backup and clean), migrate (backup and clean), restore, and
// delete. Every handler shares one skeleton — open a per-workspace log
// sink, force-close serving sessions before destructive work, stream
// progress through a reporter, emit the terminal done marker — and differs
// only in the external operation it drives.
//
// The byte-level work (schema creation, upgrade migrations, backup and
// restore pumping) stays behind the collaborator interfaces in this
// package; the handlers own ordering, reporting, and resource teardown.
package phases
