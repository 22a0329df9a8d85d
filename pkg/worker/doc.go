// Package worker implements the workspace lifecycle worker's control loop:
// handshake with the account service, bounded-concurrency job pickup and
// dispatch, idle sleep with wake-up, and crash-safe progress reporting.
//
// This package includes:
//   - Worker: the long-running poll/dispatch loop
//   - Gate: the concurrency semaphore capping in-flight jobs
//   - Reporter: debounced, monotonic progress updates plus keepalive pings
//   - Dispatcher: routing from workspace mode to phase handler
//   - UntilSuccess / UntilTimeout: retry policies around control-plane calls
//
// Phase handlers themselves live in package phases; the worker only routes
// to them and contains their failures.
package worker
