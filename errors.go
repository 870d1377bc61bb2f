package polycache

import "errors"

// Sentinel errors for the command pipeline. Drivers contribute their own
// kinds in the backend package (backend.ErrNotNumeric, backend.ErrNotSupported).
var (
	// ErrTimeout marks a command that exceeded its effective deadline. The
	// in-flight backend call is abandoned from the caller's perspective but
	// may still complete server-side; a timed-out Set or Add must not be
	// assumed to have had no effect.
	ErrTimeout = errors.New("polycache: operation timed out")

	// ErrSerialize is returned when a value could not be encoded for
	// storage. Nothing is written to the backend in that case.
	ErrSerialize = errors.New("polycache: failed to serialize value")

	// ErrDeserialize is returned when bytes read from the backend could not
	// be decoded into the caller's value type.
	ErrDeserialize = errors.New("polycache: failed to deserialize value")

	// ErrValueChanged is returned by OptimisticLock.Set when the stored
	// value moved since the snapshotting Get. The write is skipped.
	ErrValueChanged = errors.New("polycache: value changed since lock start")
)
