package rag

import "errors"

// ErrProviderCommunication marks a failure talking to an embedding or chat
// model provider (network, auth, non-2xx status, malformed payload).
var ErrProviderCommunication = errors.New("provider communication error")

// ErrStoreAccess marks a missing, unreadable, or corrupt vector collection.
var ErrStoreAccess = errors.New("store access error")

// ErrEmbeddingMismatch is returned when a collection is opened with an
// embedding function different from the one it was populated with.
// Stores return it alongside ErrStoreAccess.
var ErrEmbeddingMismatch = errors.New("embedding function mismatch")
