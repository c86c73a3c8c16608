// Package store is the resilient database-access layer. It exposes
// narrow, typed operations over the quiz tables and hides transient
// infrastructure failures from callers: on any statement failure the
// connection is classified and repaired (roll back a wedged transaction,
// or discard and redial a dead link), probed, and the statement retried
// at most once when that is safe. When recovery itself fails the
// operation returns its typed fallback value together with
// ErrUnavailable instead of a raw driver error.
//
// Writes that are not naturally idempotent carry an idempotency key
// backed by a UNIQUE constraint, so a recovery cycle can never produce a
// duplicate insert.
package store
