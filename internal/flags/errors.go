package flags

import "errors"

// Error classes. Storage and network failures during Initialize are logged
// and swallowed; only SaveLocalFlags, ClearFlags and SyncRemote hand them
// back to the caller, wrapped so errors.Is can classify them.
var (
	ErrStorageRead            = errors.New("flags: storage read failed")
	ErrStorageWrite           = errors.New("flags: storage write failed")
	ErrRemoteFetch            = errors.New("flags: remote fetch failed")
	ErrMalformedRemotePayload = errors.New("flags: malformed remote payload")
	ErrListenerFault          = errors.New("flags: listener fault")
	ErrRemoteDisabled         = errors.New("flags: no remote source configured")
)
