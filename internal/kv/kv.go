// Package kv provides the persistent key-value store boundary the version
// engine writes through.
//
// Records are namespaced by key prefix (snapshot:{manuscript}:{version},
// branch:{manuscript}:{branch}) and looked up directly by key; prefix
// listing exists only for per-manuscript enumeration.
package kv

// Store is the contract the version engine depends on. Implementations
// must be safe for concurrent use.
type Store interface {
	// Get returns the value for key, or (nil, nil) if the key is absent.
	Get(key string) ([]byte, error)

	// Put stores value under key, overwriting any previous value.
	Put(key string, value []byte) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error

	// ListKeys returns all keys that start with prefix, in no
	// particular order.
	ListKeys(prefix string) ([]string, error)

	// Close releases any underlying resources.
	Close() error
}
