package shapeworks

import "errors"

// ErrMissingTerm means a term slot is enabled but nothing was assigned to it.
var ErrMissingTerm = errors.New("shapeworks: enabled term is not assigned")
