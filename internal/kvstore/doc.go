// Package kvstore provides the durable key-value store that holds portal's
// session metadata and one serialized OAuth client state per session.
//
// The store plays the role of the device's secure preferences: small string
// values addressed by string keys, enumerable so that orphaned session blobs
// can be found and reclaimed.
//
// # Backends
//
//   - file: a single JSON document (default ~/.config/portal/store.json),
//     written atomically and guarded by an advisory file lock so that several
//     portal processes can share it. Changes made by other processes can be
//     observed with Watch.
//   - keyring: the operating system keychain. Keychains cannot enumerate
//     entries, so the store keeps an index entry listing its keys.
//   - redis: a Redis server, keys namespaced by a prefix.
//   - memory: process-local map, used by tests and --storage memory.
//
// Removing a key that does not exist is never an error.
package kvstore
