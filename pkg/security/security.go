package security

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/foundry-works/workspace-worker/pkg/core"
)

// Security limits and configuration.
const (
	// MaxWorkspaceNameLength is the maximum length for a workspace id.
	MaxWorkspaceNameLength = 255

	// MaxConcurrency is the hard limit for worker concurrency.
	MaxConcurrency = 1000

	// MaxErrorMessageLength is the maximum length for logged error messages.
	MaxErrorMessageLength = 4096

	// MaxRegionLength is the maximum length for a region string.
	MaxRegionLength = 64
)

// validWorkspaceName matches alphanumeric, hyphens, underscores, and dots —
// exactly what is safe to splice into a "<logs>/<workspace>.log" path.
var validWorkspaceName = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_\-\.]*$`)

// validRegionOrOperation matches alphanumeric, hyphens, underscores, and
// "+"; unlike a workspace name it does not allow dots. ValidateRegion uses
// it; operations are checked against the closed set instead.
var validRegionOrOperation = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_\-+]*$`)

// ValidateWorkspaceName validates a workspace id as received from the
// control-plane, before it is used to build a log file path or tagged into
// a log line.
func ValidateWorkspaceName(name string) error {
	if name == "" {
		return core.ErrInvalidWorkspaceName
	}
	if len(name) > MaxWorkspaceNameLength {
		return core.ErrInvalidWorkspaceName
	}
	if !validWorkspaceName.MatchString(name) {
		return core.ErrInvalidWorkspaceName
	}
	return nil
}

// ValidateRegion validates a region string. An empty region is valid and
// means "default region".
func ValidateRegion(region string) error {
	if region == "" {
		return nil
	}
	if len(region) > MaxRegionLength {
		return core.ErrInvalidRegion
	}
	if !validRegionOrOperation.MatchString(region) {
		return core.ErrInvalidRegion
	}
	return nil
}

// ValidateOperation validates a worker operation against the closed set
// the worker recognizes.
func ValidateOperation(op core.Operation) error {
	if !core.ValidOperations[op] {
		return core.ErrInvalidOperation
	}
	return nil
}

// SanitizeLogPath resolves the per-workspace log file path for logsDir and
// workspace ("<logs>/<workspace>.log"), rejecting any workspace
// name that would escape logsDir via path traversal or an absolute path.
func SanitizeLogPath(logsDir, workspace string) (string, error) {
	if err := ValidateWorkspaceName(workspace); err != nil {
		return "", err
	}
	if strings.ContainsAny(workspace, `/\`) {
		return "", core.ErrInvalidWorkspaceName
	}

	candidate := filepath.Join(logsDir, workspace+".log")
	cleanDir := filepath.Clean(logsDir)
	if cleanDir != "." && !strings.HasPrefix(candidate, cleanDir+string(filepath.Separator)) && candidate != cleanDir {
		return "", core.ErrInvalidWorkspaceName
	}
	return candidate, nil
}

// SanitizeErrorMessage truncates and sanitizes error messages before they
// are logged or sent upstream.
func SanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	var sanitized strings.Builder
	sanitized.Grow(len(msg))

	for _, r := range msg {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			sanitized.WriteRune(r)
		}
	}

	result := sanitized.String()

	if utf8.RuneCountInString(result) > MaxErrorMessageLength {
		runes := []rune(result)
		result = string(runes[:MaxErrorMessageLength-3]) + "..."
	}

	return result
}

// ClampConcurrency ensures a configured concurrency limit is within
// sane bounds.
func ClampConcurrency(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxConcurrency {
		return MaxConcurrency
	}
	return n
}
