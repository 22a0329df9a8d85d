// Package security provides validation, sanitization, and limits for the
// workspace worker.
//
// This package includes:
//   - Workspace/region/operation validation at the control-plane boundary
//   - Safe log-path construction for the per-workspace log sink
//   - Error message sanitization before logging or reporting upstream
//   - Clamping functions to enforce safe limits on concurrency
package security
