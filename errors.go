package bulkload

import "errors"

// ErrNoJournal is returned by operations that need the failure journal when
// the session was opened without one.
var ErrNoJournal = errors.New("session has no journal")
