// Package transfer implements a chunked file upload transport that
// tunnels file bytes through the query string of plain HTTP GET
// requests. The sender slices a file into chunks and ships each one as
// an /upload request; the receiver reassembles them strictly in order
// and publishes the artifact once the final chunk lands.
package transfer

// Receiver accepts decoded chunk frames and tracks in-flight upload
// sessions. The HTTP server is written against this interface so
// handlers can be exercised without a real reassembler behind them.
type Receiver interface {
	// Receive applies one chunk frame. A *ReceiveError carries the
	// HTTP status the server should answer with.
	Receive(frame *ChunkFrame) (*Ack, error)
	// ActiveSessions snapshots the in-flight sessions.
	ActiveSessions() []SessionStatus
	// CompletedFiles lists the filenames of finished uploads.
	CompletedFiles() ([]string, error)
}
