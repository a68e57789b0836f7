package tenant

import "errors"

// ErrInitialization indicates storage initialization or data migration failed
// for a workspace. The workspace is left uncached and retryable; check with
// errors.Is() and unwrap for the underlying cause.
var ErrInitialization = errors.New("tenant initialization failed")
