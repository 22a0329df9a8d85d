// Package storageadapter selects and opens a database adapter for a
// workspace's DB URL. Adapters are registered per URL scheme at startup
// (postgresql and mongodb in production); the worker resolves one by
// inspecting the configured URL prefix.
//
// An Adapter is the binding point the backup/restore pipeline and the
// destructive cleanup phases share: it owns a live driver connection, can
// destroy a workspace's database, and must be closed on every exit path.
// The byte-level backup, restore, and migration logic stays behind the
// pipeline collaborators in package phases.
package storageadapter
