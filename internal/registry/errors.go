package registry

import (
	"fmt"
	"strings"
)

// AuthorizationError means the partner token was missing or rejected.
type AuthorizationError struct{}

func (e *AuthorizationError) Error() string {
	return "partner token rejected by registry"
}

// ValidationError carries the registry's validation messages for a request
// it refused to process.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "registry rejected request: " + strings.Join(e.Messages, "; ")
}

type NotFoundError struct {
	PartnerID string
	KeyID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no key %s/%s in registry", e.PartnerID, e.KeyID)
}

// DeletedError means the record exists but has been deleted.
type DeletedError struct {
	PartnerID string
	KeyID     string
}

func (e *DeletedError) Error() string {
	return fmt.Sprintf("key %s/%s has been deleted", e.PartnerID, e.KeyID)
}
