package dlms

import "time"

// Stream is the accessor for a duplex byte stream to a remote meter
// or client. Session layers consume only this interface, so TCP, UDP
// and serial transports are interchangeable.
type Stream interface {
	// Read reads up to len(p) bytes. A zero count with nil error
	// means the peer closed the stream.
	Read(p []byte) (int, error)

	// Write writes len(p) bytes or returns an error.
	Write(p []byte) (int, error)

	// SetReadTimeout sets the deadline for subsequent reads.
	// Zero means no timeout.
	SetReadTimeout(timeout time.Duration) error

	// Closed reports whether Close has been called on the stream.
	// A close by the peer does not change it.
	Closed() bool

	// Close closes the stream. Closing a closed stream is a no-op.
	Close() error
}

// Transport is a Stream that also owns the physical connection.
type Transport interface {
	Stream

	// Open establishes the physical connection. It must be called
	// before the first Read or Write.
	Open() error
}
