// Package storage holds the on-disk sync cache and the export writer.
package storage

// Provider is the interface for cache file operations. Names are relative
// to the provider root.
type Provider interface {
	// List returns the names of every file directly under the root.
	List() ([]string, error)
	// Read returns the raw bytes of the named file.
	Read(name string) ([]byte, error)
	// Write atomically writes content to the named file.
	Write(name string, content []byte) error
	// Delete removes the named file.
	Delete(name string) error
}
