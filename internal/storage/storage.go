package storage

// Store is the persistence capability the reassembler writes through:
// named, partially-received files that become visible only once finalized.
type Store interface {
	// Open starts (or restarts) the partial file for name. Any stale
	// spool left by an abandoned upload of the same name is truncated.
	Open(name string) (PartialFile, error)
	// Path returns where the finalized artifact for name lives.
	Path(name string) string
}

// PartialFile collects the bytes of one in-flight upload.
type PartialFile interface {
	// Append adds bytes to the growing artifact.
	Append(p []byte) (int, error)
	// Finalize flushes the artifact and publishes it under its final
	// name. The artifact is never observable half-written.
	Finalize() error
	// Abort discards the artifact and its spool.
	Abort() error
	// Name returns the artifact's file name.
	Name() string
	// Size returns how many bytes have been appended so far.
	Size() int64
}
