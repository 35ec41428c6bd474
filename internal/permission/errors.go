package permission

import "errors"

// ErrPermissionsNotFound is returned when an agent instance has no stored
// permission record. Evaluation fails closed on it.
var ErrPermissionsNotFound = errors.New("permissions not found")
