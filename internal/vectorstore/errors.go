package vectorstore

import "errors"

// ErrUnavailable wraps any failure to reach or prepare the vector store.
// During reauthentication it degrades to a negative verification result;
// at service startup it is fatal.
var ErrUnavailable = errors.New("vector store unavailable")
