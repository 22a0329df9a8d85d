// Package core provides the fundamental types shared across the workspace
// lifecycle worker: worker identity, workspace snapshots, lifecycle modes,
// the control-plane event vocabulary, and the sentinel errors the rest of
// the module wraps.
//
// Nothing in this package talks to the network or the filesystem; it is
// pure data and pure functions so every other package can depend on it
// without pulling in I/O.
package core
