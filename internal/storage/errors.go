package storage

import "errors"

// Sentinel errors returned by the data model layer. The command dispatcher
// maps these to RESP Error replies with the matching wire tag (§7).
var (
	// ErrWrongType is returned when a key exists with a type other than the
	// one the invoked command operates on.
	ErrWrongType = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")

	// ErrNotInteger is returned when a string value expected to parse as a
	// signed 64-bit integer does not, or overflows.
	ErrNotInteger = errors.New("value is not an integer or out of range")

	// ErrNotFloat is returned when a string value expected to parse as an
	// IEEE-754 double does not.
	ErrNotFloat = errors.New("value is not a valid float")

	// ErrNoSuchKey is returned by RENAME when the source key does not exist.
	ErrNoSuchKey = errors.New("no such key")

	// ErrInvalidExpire is returned for an invalid TTL argument.
	ErrInvalidExpire = errors.New("invalid expire time")

	// ErrInvalidData is returned for malformed command arguments that are
	// not plain syntax errors (e.g. an XADD ID that does not advance).
	ErrInvalidData = errors.New("invalid data")

	// ErrNoGroup is returned when a stream consumer group is referenced but
	// does not exist.
	ErrNoGroup = errors.New("NOGROUP No such key or consumer group")

	// ErrBusyGroup is returned by XGROUP CREATE when the group already
	// exists.
	ErrBusyGroup = errors.New("BUSYGROUP Consumer Group name already exists")

	// ErrSyntax is returned for malformed command argument syntax.
	ErrSyntax = errors.New("syntax error")

	// ErrOutOfRange is returned when an index/offset argument is out of the
	// addressable range for the operation.
	ErrOutOfRange = errors.New("index out of range")
)
