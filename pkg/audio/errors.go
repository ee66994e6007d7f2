package audio

import "errors"

// Error kinds shared by the codec and the mixer. Returned errors wrap exactly
// one of these, so callers branch with errors.Is.
var (
	// ErrInvalidArgument marks a bad direct input (wrong shape, range or encoding).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrMalformedPacket marks wire bytes that match no known packet layout.
	ErrMalformedPacket = errors.New("malformed packet")

	// ErrNotFound marks a reference to a lane that does not exist.
	ErrNotFound = errors.New("not found")
)
