// Package draft models a quiz draft as a plain tree of maps, sequences,
// and scalars, and provides the pure transforms the content store is built
// on: canonical serialization, content-addressed hashing, value obfuscation,
// quote extraction, and client-safe step sanitization.
//
// Nothing in this package touches storage. All transforms return fresh
// trees; callers never share structure with their inputs.
package draft
