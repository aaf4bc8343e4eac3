package store

import "errors"

// errMissingID is returned when a decoded record has no non-empty "id"
// field. Callers answer it with status 400.
var errMissingID = errors.New("record: missing or empty id")

// FileSyncError wraps a persistence failure from SyncToFile. It is
// logged and retried; it never fails the in-flight PUSH response.
type FileSyncError struct {
	Op  string
	Err error
}

func (e *FileSyncError) Error() string {
	return "file sync (" + e.Op + "): " + e.Err.Error()
}

func (e *FileSyncError) Unwrap() error { return e.Err }

// IsMissingID reports whether err is the "missing id" validation error.
func IsMissingID(err error) bool {
	return errors.Is(err, errMissingID)
}
