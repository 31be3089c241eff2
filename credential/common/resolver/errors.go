package resolver

import (
	"fmt"

	"github.com/veritrail/go-attestation-sdk/credential/common/model"
)

// ControllerNotFoundError reports a controller id with no registered
// document.
type ControllerNotFoundError struct {
	ID string
}

func (e *ControllerNotFoundError) Error() string {
	return fmt.Sprintf("controller %q is not registered", e.ID)
}

// KeyNotFoundError reports a key id that does not resolve to a verification
// method authorized for the requested role.
type KeyNotFoundError struct {
	Controller string
	KeyID      string
	Role       model.Role
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("key %q is not a %s key of controller %q", e.KeyID, e.Role, e.Controller)
}

// SchemaNotFoundError reports a schema id with no registered document.
type SchemaNotFoundError struct {
	ID string
}

func (e *SchemaNotFoundError) Error() string {
	return fmt.Sprintf("schema %q is not registered", e.ID)
}
