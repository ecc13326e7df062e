package memory

import "errors"

var errClosed = errors.New("ledger closed")
