package fleet

import "errors"

// ErrSessionNotFound is returned by every keyed dispatch when the session
// id is absent from the Manager's map.
var ErrSessionNotFound = errors.New("fleet: session not found")
