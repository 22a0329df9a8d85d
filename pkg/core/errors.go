package core

import "errors"

// Validation and routing errors.
var (
	ErrInvalidWorkerIdentity = errors.New("workspaceworker: invalid worker identity")
	ErrInvalidRegion         = errors.New("workspaceworker: invalid region")
	ErrInvalidOperation      = errors.New("workspaceworker: invalid operation")
	ErrInvalidWorkspaceName  = errors.New("workspaceworker: invalid workspace name")
	ErrUnknownMode           = errors.New("workspaceworker: unknown workspace mode")
	ErrNoHandlerForMode      = errors.New("workspaceworker: no phase handler registered for mode")
	ErrGateClosed            = errors.New("workspaceworker: concurrency gate closed")
)
