package domain

import "fmt"

// Error types for consistent error handling across the service.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrForbidden indicates the user lacks permission for the operation.
type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrNoSession indicates no session account is bound and none could be
// auto-bound (zero or several candidates).
type ErrNoSession struct {
	UserID     string
	Kind       TenantKind
	Candidates int
}

func (e *ErrNoSession) Error() string {
	return fmt.Sprintf("no %s account bound for user %s (%d candidates)", e.Kind, e.UserID, e.Candidates)
}

// ErrNoCandidates indicates the role-scoped tenant listing is empty.
type ErrNoCandidates struct {
	UserID string
	Kind   TenantKind
}

func (e *ErrNoCandidates) Error() string {
	return fmt.Sprintf("no %s accounts available for user %s", e.Kind, e.UserID)
}

// ErrSessionCreate indicates the store rejected a new session account.
type ErrSessionCreate struct {
	UserID   string
	TenantID string
	Err      error
}

func (e *ErrSessionCreate) Error() string {
	return fmt.Sprintf("could not bind user %s to account %s: %v", e.UserID, e.TenantID, e.Err)
}

func (e *ErrSessionCreate) Unwrap() error {
	return e.Err
}

// ErrUnsupported indicates a gateway does not implement an operation.
type ErrUnsupported struct {
	Gateway   string
	Operation PaymentOperation
}

func (e *ErrUnsupported) Error() string {
	return fmt.Sprintf("gateway %s does not support %s", e.Gateway, e.Operation)
}
