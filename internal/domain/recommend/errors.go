package recommend

import "errors"

// ErrInvalidQuery reports a bad threshold or page request.
var ErrInvalidQuery = errors.New("invalid recommendation query")
