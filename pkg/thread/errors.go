package thread

import "errors"

// ErrMessageNotFound is returned when an operation targets a message that is
// not part of the current thread view.
var ErrMessageNotFound = errors.New("thread: message not found")
