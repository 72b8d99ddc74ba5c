package flip

import "errors"

// ErrConnectionClosed is returned by transports once the client is gone.
// Sends failing with it are not retried.
var ErrConnectionClosed = errors.New("connection closed")
